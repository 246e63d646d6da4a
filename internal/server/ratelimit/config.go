package ratelimit

import (
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/portfolio-api/internal/config"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path; a trailing "/" also matches sub-paths
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Window length
}

// Config holds rate limiting configuration. Only requests matching an entry
// in EndpointConfigs are limited.
type Config struct {
	Enabled         bool
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// LoadConfig loads rate limiting configuration from environment variables.
// apiPrefix is prepended to the protected endpoint paths.
func LoadConfig(apiPrefix string) *Config {
	enabled := config.EnvBool("RATE_LIMIT_ENABLED", true)
	if !enabled {
		return &Config{
			Enabled: false,
		}
	}

	limit := config.EnvInt("RATE_LIMIT_MESSAGES_LIMIT", 5)
	window := config.EnvDuration("RATE_LIMIT_MESSAGES_WINDOW", time.Minute)

	return &Config{
		Enabled:         enabled,
		CleanupInterval: config.EnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		Whitelist:       parseIPList(config.EnvString("RATE_LIMIT_WHITELIST", "")),
		Blacklist:       parseIPList(config.EnvString("RATE_LIMIT_BLACKLIST", "")),
		EndpointConfigs: DefaultEndpointConfigs(apiPrefix, limit, window),
	}
}

// DefaultEndpointConfigs protects the public contact endpoint, the only
// unauthenticated write that creates documents.
func DefaultEndpointConfigs(apiPrefix string, limit int, window time.Duration) []EndpointConfig {
	return []EndpointConfig{
		{Path: strings.TrimSuffix(apiPrefix, "/") + "/messages", Method: http.MethodPost, Limit: limit, Window: window},
	}
}

// parseIPList parses a comma-separated list of IP addresses into a map.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	if list == "" {
		return result
	}

	for _, ip := range strings.Split(list, ",") {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			result[ip] = true
		}
	}

	return result
}

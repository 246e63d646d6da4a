package ratelimit

import (
	"strings"
)

// MatchEndpoint matches a request path and method to an endpoint configuration.
// Returns the matching EndpointConfig or nil if no match is found.
// A single trailing slash is ignored, so "/messages" and "/messages/" share a
// configuration; a config path ending in "/" also matches everything below it.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	normalized := trimSlash(path)

	// Try exact match first
	for i := range configs {
		config := &configs[i]
		if config.Method == method && trimSlash(config.Path) == normalized {
			return config
		}
	}

	// Try prefix match (for paths ending with "/")
	for i := range configs {
		config := &configs[i]
		if config.Method == method && strings.HasSuffix(config.Path, "/") {
			if strings.HasPrefix(path, config.Path) {
				return config
			}
		}
	}

	return nil
}

func trimSlash(path string) string {
	if len(path) > 1 {
		return strings.TrimSuffix(path, "/")
	}
	return path
}

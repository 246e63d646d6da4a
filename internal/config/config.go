// Package config provides configuration loading and validation for the API server.
package config

import (
	"fmt"
	"strings"
	"time"
)

// DefaultCORSOrigins are the local frontend origins allowed when CORS_ORIGINS is unset.
var DefaultCORSOrigins = []string{
	"http://localhost:5173",
	"http://localhost:3000",
	"http://127.0.0.1:5173",
}

// DefaultGeminiModels is the explanation model chain, primary first.
var DefaultGeminiModels = []string{"gemini-2.0-flash", "gemini-1.5-flash"}

// ServerConfig holds everything the serve command needs besides JWT and
// password settings.
type ServerConfig struct {
	Port        int
	APIPrefix   string
	CORSOrigins []string

	// StoreDriver is one of postgres, sqlite or memory.
	StoreDriver string
	StoreDSN    string
	// AtomicEngagement switches likes, dislikes and comments to the store's
	// atomic update primitives.
	AtomicEngagement bool

	// TrustProxyHeaders makes the rate limiter key on the first X-Forwarded-For hop.
	TrustProxyHeaders bool
	RedisURL          string

	GeminiAPIKey   string
	GeminiModels   []string
	ExplainTimeout time.Duration

	Mail   MailConfig
	Notify NotifyConfig
	Admin  AdminCredentials

	ShutdownTimeout time.Duration
}

// MailConfig holds SMTP settings for contact message notifications.
type MailConfig struct {
	Server   string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// Enabled reports whether outbound mail is configured. A missing password
// disables delivery.
func (m MailConfig) Enabled() bool {
	return m.Password != "" && m.Server != "" && m.Username != ""
}

// NotifyConfig sizes the background notification dispatcher.
type NotifyConfig struct {
	QueueSize int
	Workers   int
	Timeout   time.Duration
}

// LoadServerConfig reads the server configuration from environment variables.
func LoadServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{
		Port:        EnvInt("PORT", 8000),
		APIPrefix:   EnvString("API_PREFIX", "/api/v1"),
		CORSOrigins: EnvList("CORS_ORIGINS", DefaultCORSOrigins),

		StoreDriver:      EnvString("STORE_DRIVER", ""),
		StoreDSN:         EnvString("STORE_DSN", EnvString("DATABASE_URL", "")),
		AtomicEngagement: EnvBool("ATOMIC_ENGAGEMENT", true),

		TrustProxyHeaders: EnvBool("TRUST_PROXY_HEADERS", false),
		RedisURL:          EnvString("REDIS_URL", ""),

		GeminiAPIKey:   EnvString("GEMINI_API_KEY", ""),
		GeminiModels:   EnvList("GEMINI_MODELS", DefaultGeminiModels),
		ExplainTimeout: EnvDuration("EXPLAIN_TIMEOUT", 30*time.Second),

		Mail: MailConfig{
			Server:   EnvString("MAIL_SERVER", "smtp.gmail.com"),
			Port:     EnvInt("MAIL_PORT", 587),
			Username: EnvString("MAIL_USERNAME", ""),
			Password: EnvString("MAIL_PASSWORD", ""),
			From:     EnvString("MAIL_FROM", ""),
			To:       EnvString("MAIL_TO", ""),
		},
		Notify: NotifyConfig{
			QueueSize: EnvInt("NOTIFY_QUEUE_SIZE", 32),
			Workers:   EnvInt("NOTIFY_WORKERS", 2),
			Timeout:   EnvDuration("NOTIFY_TIMEOUT", 15*time.Second),
		},
		Admin: AdminCredentials{
			Email:        EnvString("ADMIN_EMAIL", ""),
			PasswordHash: EnvString("ADMIN_PASSWORD_HASH", ""),
		},

		ShutdownTimeout: EnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize fills derived defaults and validates the configuration.
func (c *ServerConfig) normalize() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config error: PORT out of range: %d", c.Port)
	}
	if !strings.HasPrefix(c.APIPrefix, "/") {
		return fmt.Errorf("config error: API_PREFIX must start with '/', got %q", c.APIPrefix)
	}
	c.APIPrefix = strings.TrimSuffix(c.APIPrefix, "/")

	if c.StoreDriver == "" {
		if c.StoreDSN != "" {
			c.StoreDriver = "postgres"
		} else {
			c.StoreDriver = "memory"
		}
	}
	switch c.StoreDriver {
	case "postgres", "sqlite":
		if c.StoreDSN == "" {
			return fmt.Errorf("config error: STORE_DSN is required for the %s driver", c.StoreDriver)
		}
	case "memory":
	default:
		return fmt.Errorf("config error: unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.ExplainTimeout <= 0 {
		return fmt.Errorf("config error: EXPLAIN_TIMEOUT must be positive")
	}
	if c.Notify.QueueSize < 1 || c.Notify.Workers < 1 {
		return fmt.Errorf("config error: NOTIFY_QUEUE_SIZE and NOTIFY_WORKERS must be at least 1")
	}

	if c.Mail.From == "" {
		c.Mail.From = c.Mail.Username
	}
	if c.Mail.To == "" {
		c.Mail.To = c.Mail.Username
	}
	return nil
}

// Addr returns the listen address for the configured port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

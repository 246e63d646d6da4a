// Package config provides JWT configuration functionality.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Default claim values used when JWT_ISSUER / JWT_AUDIENCE are unset.
const (
	DefaultJWTIssuer   = "portfolio-api"
	DefaultJWTAudience = "portfolio-admin"
)

// JWTConfig holds configuration for bearer token issuing and verification.
type JWTConfig struct {
	// Secret signs and verifies HS256 tokens.
	Secret string
	// PublicKeyFile, when set, switches verification to RS256 with the PEM
	// encoded key at this path. Tokens are then minted by the identity provider.
	PublicKeyFile   string
	ExpirationHours int
	Issuer          string
	Audience        string
}

// NewJWTConfig creates a new JWT configuration from environment variables.
// It reads JWT_SECRET (required unless JWT_PUBLIC_KEY_FILE is set),
// JWT_EXPIRATION_HOURS (default: 24), JWT_ISSUER and JWT_AUDIENCE.
func NewJWTConfig() (*JWTConfig, error) {
	expirationStr := os.Getenv("JWT_EXPIRATION_HOURS")
	if expirationStr == "" {
		expirationStr = "24" // default
	}

	expirationHours, err := strconv.Atoi(expirationStr)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_HOURS: %v", err)
	}

	config := &JWTConfig{
		Secret:          os.Getenv("JWT_SECRET"),
		PublicKeyFile:   os.Getenv("JWT_PUBLIC_KEY_FILE"),
		ExpirationHours: expirationHours,
		Issuer:          EnvString("JWT_ISSUER", DefaultJWTIssuer),
		Audience:        EnvString("JWT_AUDIENCE", DefaultJWTAudience),
	}

	if err := config.normalize(); err != nil {
		return nil, err
	}

	return config, nil
}

// normalize validates the configuration.
func (c *JWTConfig) normalize() error {
	if c.Secret == "" && c.PublicKeyFile == "" {
		return fmt.Errorf("JWT_SECRET is required but not set")
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	if c.Issuer == "" {
		return fmt.Errorf("JWT_ISSUER cannot be empty")
	}
	return nil
}

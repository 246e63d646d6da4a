package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearJWTEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"JWT_SECRET", "JWT_PUBLIC_KEY_FILE", "JWT_EXPIRATION_HOURS", "JWT_ISSUER", "JWT_AUDIENCE"} {
		t.Setenv(key, "")
	}
}

func TestNewJWTConfig_DefaultValues(t *testing.T) {
	clearJWTEnv(t)
	t.Setenv("JWT_SECRET", "test-secret-key")

	cfg, err := NewJWTConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "test-secret-key", cfg.Secret)
	assert.Equal(t, 24, cfg.ExpirationHours, "should use default expiration of 24 hours")
	assert.Equal(t, DefaultJWTIssuer, cfg.Issuer)
	assert.Equal(t, DefaultJWTAudience, cfg.Audience)
}

func TestNewJWTConfig_CustomExpiration(t *testing.T) {
	tests := []struct {
		name          string
		expiration    string
		expectedHours int
		wantErr       bool
	}{
		{name: "custom expiration 12 hours", expiration: "12", expectedHours: 12},
		{name: "minimum expiration 1 hour", expiration: "1", expectedHours: 1},
		{name: "large expiration", expiration: "168", expectedHours: 168},
		{name: "non-numeric expiration", expiration: "invalid", wantErr: true},
		{name: "zero expiration", expiration: "0", wantErr: true},
		{name: "negative expiration", expiration: "-1", wantErr: true},
		{name: "float expiration", expiration: "12.5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearJWTEnv(t)
			t.Setenv("JWT_SECRET", "test-secret-key")
			t.Setenv("JWT_EXPIRATION_HOURS", tt.expiration)

			cfg, err := NewJWTConfig()
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, cfg)
				assert.Contains(t, err.Error(), "JWT_EXPIRATION_HOURS")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedHours, cfg.ExpirationHours)
		})
	}
}

func TestNewJWTConfig_MissingSecret(t *testing.T) {
	clearJWTEnv(t)

	cfg, err := NewJWTConfig()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestNewJWTConfig_PublicKeyWithoutSecret(t *testing.T) {
	clearJWTEnv(t)
	t.Setenv("JWT_PUBLIC_KEY_FILE", "/etc/portfolio/idp.pem")
	t.Setenv("JWT_ISSUER", "https://idp.example.com")
	t.Setenv("JWT_AUDIENCE", "portfolio")

	cfg, err := NewJWTConfig()
	require.NoError(t, err)
	assert.Empty(t, cfg.Secret)
	assert.Equal(t, "/etc/portfolio/idp.pem", cfg.PublicKeyFile)
	assert.Equal(t, "https://idp.example.com", cfg.Issuer)
	assert.Equal(t, "portfolio", cfg.Audience)
}

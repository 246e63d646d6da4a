package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jonathan/portfolio-api/internal/config"
)

// TokenIssuer mints HS256 tokens accepted by a JWTVerifier built from the
// same configuration.
type TokenIssuer struct {
	secret   []byte
	issuer   string
	audience string
	lifetime time.Duration
	now      func() time.Time
}

// NewTokenIssuer creates an issuer. It fails when no shared secret is
// configured, since RS256 deployments mint tokens elsewhere.
func NewTokenIssuer(cfg *config.JWTConfig) (*TokenIssuer, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required to issue tokens")
	}
	return &TokenIssuer{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		lifetime: time.Duration(cfg.ExpirationHours) * time.Hour,
		now:      time.Now,
	}, nil
}

// WithClock returns a copy of the issuer that stamps tokens using now.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	clone := *i
	clone.now = now
	return &clone
}

// WithLifetime returns a copy of the issuer with a different token lifetime.
func (i *TokenIssuer) WithLifetime(d time.Duration) *TokenIssuer {
	clone := *i
	clone.lifetime = d
	return &clone
}

// Issue signs a token for subject and returns it with its expiry.
func (i *TokenIssuer) Issue(subject, email string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, fmt.Errorf("subject is required")
	}

	now := i.now()
	expiresAt := now.Add(i.lifetime)

	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    i.issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if i.audience != "" {
		claims.Audience = jwt.ClaimStrings{i.audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

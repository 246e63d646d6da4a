package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonathan/portfolio-api/internal/config"
)

// Claims is the identity asserted by a verified token.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// RevocationSource reports the instant before which a subject's tokens are
// no longer accepted. ok is false when the subject has no revocation.
type RevocationSource interface {
	ValidAfter(ctx context.Context, subject string) (validAfter time.Time, ok bool, err error)
}

// JWTVerifier validates bearer tokens. Every call parses and checks the token
// and consults the revocation source; nothing is cached.
type JWTVerifier struct {
	key         any
	methods     []string
	issuer      string
	audience    string
	revocations RevocationSource
	now         func() time.Time
}

// VerifierOption configures a JWTVerifier.
type VerifierOption func(*JWTVerifier)

// WithVerifierClock overrides the time used for expiry checks.
func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *JWTVerifier) {
		v.now = now
	}
}

// WithRSAPublicKey switches verification to RS256 with the given key.
func WithRSAPublicKey(key *rsa.PublicKey) VerifierOption {
	return func(v *JWTVerifier) {
		v.key = key
		v.methods = []string{jwt.SigningMethodRS256.Alg()}
	}
}

// NewJWTVerifier creates a verifier from configuration. With PublicKeyFile
// set, tokens must be RS256-signed by the matching private key; otherwise they
// must be HS256-signed with Secret. revocations may be nil.
func NewJWTVerifier(cfg *config.JWTConfig, revocations RevocationSource, opts ...VerifierOption) (*JWTVerifier, error) {
	v := &JWTVerifier{
		key:         []byte(cfg.Secret),
		methods:     []string{jwt.SigningMethodHS256.Alg()},
		issuer:      cfg.Issuer,
		audience:    cfg.Audience,
		revocations: revocations,
		now:         time.Now,
	}

	if cfg.PublicKeyFile != "" {
		data, err := os.ReadFile(cfg.PublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read JWT public key: %w", err)
		}
		key, err := jwt.ParseRSAPublicKeyFromPEM(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse JWT public key: %w", err)
		}
		WithRSAPublicKey(key)(v)
	}

	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify checks an Authorization header value of the form "Bearer <token>".
// Failures are *CredentialError values whose kind is one of the Err*Credential
// sentinels.
func (v *JWTVerifier) Verify(ctx context.Context, header string) (*Claims, error) {
	tokenString, err := bearerToken(header)
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
	}

	_, err = jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &CredentialError{Kind: ErrExpiredCredential, Cause: err}
		}
		return nil, &CredentialError{Kind: ErrInvalidCredential, Cause: err}
	}

	if claims.Subject == "" {
		return nil, credentialError(ErrInvalidCredential, "token has no subject")
	}

	if v.revocations != nil {
		if err := v.checkRevocation(ctx, claims); err != nil {
			return nil, err
		}
	}

	return claims, nil
}

// checkRevocation fails closed: a lookup error rejects the token.
func (v *JWTVerifier) checkRevocation(ctx context.Context, claims *Claims) error {
	validAfter, ok, err := v.revocations.ValidAfter(ctx, claims.Subject)
	if err != nil {
		return credentialError(ErrInvalidCredential, "revocation lookup for %q failed: %w", claims.Subject, err)
	}
	if !ok {
		return nil
	}
	if claims.IssuedAt == nil {
		return credentialError(ErrRevokedCredential, "token for %q has no issue time", claims.Subject)
	}
	// iat has one-second resolution.
	validAfter = validAfter.Truncate(time.Second)
	if claims.IssuedAt.Time.Before(validAfter) {
		return credentialError(ErrRevokedCredential, "token for %q issued at %s, revoked before %s",
			claims.Subject, claims.IssuedAt.Time.UTC().Format(time.RFC3339), validAfter.UTC().Format(time.RFC3339))
	}
	return nil
}

// bearerToken extracts the token from a header value. The scheme is matched
// case-insensitively.
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", credentialError(ErrMalformedCredential, "missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", credentialError(ErrMalformedCredential, "expected 'Bearer <token>'")
	}
	return parts[1], nil
}

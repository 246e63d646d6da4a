package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/portfolio-api/internal/config"
	"github.com/jonathan/portfolio-api/internal/docstore"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{
		Secret:          "test-secret-key-for-jwt-signing-minimum-32-bytes",
		ExpirationHours: 24,
		Issuer:          config.DefaultJWTIssuer,
		Audience:        config.DefaultJWTAudience,
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestIssuer(t *testing.T, cfg *config.JWTConfig, at time.Time) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(cfg)
	require.NoError(t, err)
	return issuer.WithClock(fixedClock(at))
}

func newTestVerifier(t *testing.T, revocations RevocationSource, at time.Time) *JWTVerifier {
	t.Helper()
	v, err := NewJWTVerifier(testJWTConfig(), revocations, WithVerifierClock(fixedClock(at)))
	require.NoError(t, err)
	return v
}

func TestJWTVerifier_ValidToken(t *testing.T) {
	token, expiresAt, err := newTestIssuer(t, testJWTConfig(), baseTime).Issue("admin", "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, baseTime.Add(24*time.Hour), expiresAt)
	assert.Len(t, strings.Split(token, "."), 3, "JWT should have 3 parts separated by dots")

	v := newTestVerifier(t, nil, baseTime.Add(time.Minute))
	for _, header := range []string{"Bearer " + token, "bearer " + token, "BEARER  " + token} {
		claims, err := v.Verify(context.Background(), header)
		require.NoError(t, err, header)
		assert.Equal(t, "admin", claims.Subject)
		assert.Equal(t, "admin@example.com", claims.Email)
	}
}

func TestJWTVerifier_Malformed(t *testing.T) {
	v := newTestVerifier(t, nil, baseTime)

	for _, header := range []string{"", "Bearer", "Token abc", "Basic dXNlcjpwYXNz", "Bearer a b"} {
		_, err := v.Verify(context.Background(), header)
		require.Error(t, err, header)
		assert.ErrorIs(t, err, ErrMalformedCredential, header)
		assert.Equal(t, "malformed", KindOf(err))
	}
}

func TestJWTVerifier_Expired(t *testing.T) {
	token, _, err := newTestIssuer(t, testJWTConfig(), baseTime).Issue("admin", "")
	require.NoError(t, err)

	v := newTestVerifier(t, nil, baseTime.Add(25*time.Hour))
	_, err = v.Verify(context.Background(), "Bearer "+token)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExpiredCredential)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired, "cause stays reachable")
	assert.Equal(t, "expired", KindOf(err))

	var credErr *CredentialError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, ErrExpiredCredential, credErr.Kind)
}

func TestJWTVerifier_Invalid(t *testing.T) {
	otherSecret := testJWTConfig()
	otherSecret.Secret = "a-completely-different-secret-of-enough-length"

	otherIssuer := testJWTConfig()
	otherIssuer.Issuer = "someone-else"

	otherAudience := testJWTConfig()
	otherAudience.Audience = "public"

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			Issuer:    config.DefaultJWTIssuer,
			Audience:  jwt.ClaimStrings{config.DefaultJWTAudience},
			IssuedAt:  jwt.NewNumericDate(baseTime),
			ExpiresAt: jwt.NewNumericDate(baseTime.Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{name: "garbage", token: func(_ *testing.T) string { return "not.a.jwt" }},
		{name: "wrong signature", token: func(t *testing.T) string {
			tok, _, err := newTestIssuer(t, otherSecret, baseTime).Issue("admin", "")
			require.NoError(t, err)
			return tok
		}},
		{name: "wrong issuer", token: func(t *testing.T) string {
			tok, _, err := newTestIssuer(t, otherIssuer, baseTime).Issue("admin", "")
			require.NoError(t, err)
			return tok
		}},
		{name: "wrong audience", token: func(t *testing.T) string {
			tok, _, err := newTestIssuer(t, otherAudience, baseTime).Issue("admin", "")
			require.NoError(t, err)
			return tok
		}},
		{name: "alg none", token: func(_ *testing.T) string { return noneToken }},
	}

	v := newTestVerifier(t, nil, baseTime.Add(time.Minute))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), "Bearer "+tt.token(t))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidCredential)
			assert.NotErrorIs(t, err, ErrExpiredCredential)
		})
	}
}

func TestJWTVerifier_RS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "idp-user",
		Issuer:    config.DefaultJWTIssuer,
		Audience:  jwt.ClaimStrings{config.DefaultJWTAudience},
		IssuedAt:  jwt.NewNumericDate(baseTime),
		ExpiresAt: jwt.NewNumericDate(baseTime.Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)

	v, err := NewJWTVerifier(testJWTConfig(), nil,
		WithRSAPublicKey(&key.PublicKey), WithVerifierClock(fixedClock(baseTime.Add(time.Minute))))
	require.NoError(t, err)

	got, err := v.Verify(context.Background(), "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, "idp-user", got.Subject)

	hsToken, _, err := newTestIssuer(t, testJWTConfig(), baseTime).Issue("admin", "")
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), "Bearer "+hsToken)
	assert.ErrorIs(t, err, ErrInvalidCredential, "HS256 token must not pass an RS256 verifier")
}

func TestJWTVerifier_Revoked(t *testing.T) {
	ctx := context.Background()
	revocations := NewStoreRevocations(docstore.NewMemoryStore())

	oldToken, _, err := newTestIssuer(t, testJWTConfig(), baseTime).Issue("admin", "")
	require.NoError(t, err)

	require.NoError(t, revocations.Revoke(ctx, "admin", baseTime.Add(time.Second)))

	v := newTestVerifier(t, revocations, baseTime.Add(2*time.Second))
	_, err = v.Verify(ctx, "Bearer "+oldToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRevokedCredential)
	assert.Equal(t, "revoked", KindOf(err))

	newToken, _, err := newTestIssuer(t, testJWTConfig(), baseTime.Add(2*time.Second)).Issue("admin", "")
	require.NoError(t, err)
	claims, err := v.Verify(ctx, "Bearer "+newToken)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)

	otherToken, _, err := newTestIssuer(t, testJWTConfig(), baseTime).Issue("editor", "")
	require.NoError(t, err)
	_, err = v.Verify(ctx, "Bearer "+otherToken)
	assert.NoError(t, err, "revocation is per subject")
}

func TestJWTVerifier_TokenMintedInRevocationSecondIsValid(t *testing.T) {
	ctx := context.Background()
	revocations := NewStoreRevocations(docstore.NewMemoryStore())
	revokedAt := baseTime.Add(1500 * time.Millisecond)

	before, _, err := newTestIssuer(t, testJWTConfig(), baseTime.Add(900*time.Millisecond)).Issue("admin", "")
	require.NoError(t, err)

	require.NoError(t, revocations.Revoke(ctx, "admin", revokedAt))
	cutoff, ok, err := revocations.ValidAfter(ctx, "admin")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, baseTime.Add(time.Second).Equal(cutoff), "cutoff is truncated to the second")

	relogin, _, err := newTestIssuer(t, testJWTConfig(), revokedAt.Add(200*time.Millisecond)).Issue("admin", "")
	require.NoError(t, err)

	v := newTestVerifier(t, revocations, revokedAt.Add(time.Second))
	_, err = v.Verify(ctx, "Bearer "+relogin)
	assert.NoError(t, err)

	_, err = v.Verify(ctx, "Bearer "+before)
	assert.ErrorIs(t, err, ErrRevokedCredential)
}

type fixedRevocations struct{ validAfter time.Time }

func (f fixedRevocations) ValidAfter(context.Context, string) (time.Time, bool, error) {
	return f.validAfter, true, nil
}

func TestJWTVerifier_ComparesCutoffAtSecondResolution(t *testing.T) {
	token, _, err := newTestIssuer(t, testJWTConfig(), baseTime.Add(400*time.Millisecond)).Issue("admin", "")
	require.NoError(t, err)

	v := newTestVerifier(t, fixedRevocations{validAfter: baseTime.Add(300 * time.Millisecond)}, baseTime.Add(time.Second))
	_, err = v.Verify(context.Background(), "Bearer "+token)
	assert.NoError(t, err)
}

type failingRevocations struct{}

func (failingRevocations) ValidAfter(context.Context, string) (time.Time, bool, error) {
	return time.Time{}, false, errors.New("store unavailable")
}

func TestJWTVerifier_RevocationLookupFailsClosed(t *testing.T) {
	token, _, err := newTestIssuer(t, testJWTConfig(), baseTime).Issue("admin", "")
	require.NoError(t, err)

	v := newTestVerifier(t, failingRevocations{}, baseTime.Add(time.Minute))
	_, err = v.Verify(context.Background(), "Bearer "+token)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCredential)
	assert.Contains(t, err.Error(), "store unavailable")
}

func TestNewTokenIssuer_RequiresSecret(t *testing.T) {
	cfg := testJWTConfig()
	cfg.Secret = ""
	_, err := NewTokenIssuer(cfg)
	assert.Error(t, err)

	issuer := newTestIssuer(t, testJWTConfig(), baseTime)
	_, _, err = issuer.Issue("", "")
	assert.Error(t, err)
}

func TestStoreRevocations_MovesCutoffForwardOnly(t *testing.T) {
	ctx := context.Background()
	revocations := NewStoreRevocations(docstore.NewMemoryStore())

	_, ok, err := revocations.ValidAfter(ctx, "admin")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, revocations.Revoke(ctx, "admin", baseTime))
	require.NoError(t, revocations.Revoke(ctx, "admin", baseTime.Add(-time.Hour)))

	got, ok, err := revocations.ValidAfter(ctx, "admin")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, baseTime.Equal(got))

	require.NoError(t, revocations.Revoke(ctx, "admin", baseTime.Add(time.Hour)))
	got, _, err = revocations.ValidAfter(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, baseTime.Add(time.Hour).Equal(got))

	assert.Error(t, revocations.Revoke(ctx, "", baseTime))
}

package middleware

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/portfolio-api/internal/auth"
	"github.com/jonathan/portfolio-api/internal/config"
)

// testVerifier accepts a fixed set of tokens and fails others with a chosen kind.
type testVerifier struct {
	valid map[string]string
	kinds map[string]error
}

func newTestVerifier() *testVerifier {
	return &testVerifier{valid: map[string]string{}, kinds: map[string]error{}}
}

func (v *testVerifier) Verify(_ context.Context, header string) (*auth.Claims, error) {
	if subject, ok := v.valid[header]; ok {
		return &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: subject}}, nil
	}
	if kind, ok := v.kinds[header]; ok {
		return nil, &auth.CredentialError{Kind: kind}
	}
	return nil, &auth.CredentialError{Kind: auth.ErrMalformedCredential}
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	verifier := newTestVerifier()
	verifier.valid["Bearer good"] = "admin"

	var subject string
	handler := AuthMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := GetClaims(r)
		require.NoError(t, err)
		subject = claims.Subject
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin", subject)
}

func TestAuthMiddleware_FailuresLookIdentical(t *testing.T) {
	verifier := newTestVerifier()
	verifier.kinds["Bearer expired"] = auth.ErrExpiredCredential
	verifier.kinds["Bearer revoked"] = auth.ErrRevokedCredential
	verifier.kinds["Bearer forged"] = auth.ErrInvalidCredential

	handlerCalled := false
	handler := AuthMiddleware(verifier)(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		handlerCalled = true
	}))

	tests := []struct {
		name   string
		header string
		kind   string
	}{
		{name: "missing header", header: "", kind: "malformed"},
		{name: "wrong scheme", header: "Basic abc", kind: "malformed"},
		{name: "expired", header: "Bearer expired", kind: "expired"},
		{name: "revoked", header: "Bearer revoked", kind: "revoked"},
		{name: "invalid", header: "Bearer forged", kind: "invalid"},
	}

	var bodies []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := captureLog(t)

			req := httptest.NewRequest(http.MethodDelete, "/api/v1/projects/1", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
			assert.JSONEq(t, `{"error":"Invalid authentication credentials"}`, w.Body.String())
			assert.Contains(t, logs.String(), "("+tt.kind+")")
			bodies = append(bodies, w.Body.String())
		})
	}

	assert.False(t, handlerCalled)
	for _, body := range bodies {
		assert.Equal(t, bodies[0], body)
	}
}

// The real verifier behind the middleware: an expired token and a malformed
// header give the same response and differ only in the log.
func TestAuthMiddleware_ExpiredVersusMalformed(t *testing.T) {
	cfg := &config.JWTConfig{
		Secret:          "test-secret-key-for-jwt-signing-minimum-32-bytes",
		ExpirationHours: 1,
		Issuer:          config.DefaultJWTIssuer,
		Audience:        config.DefaultJWTAudience,
	}
	issued := time.Now().Add(-2 * time.Hour)
	issuer, err := auth.NewTokenIssuer(cfg)
	require.NoError(t, err)
	token, _, err := issuer.WithClock(func() time.Time { return issued }).Issue("admin", "")
	require.NoError(t, err)

	verifier, err := auth.NewJWTVerifier(cfg, nil)
	require.NoError(t, err)
	handler := AuthMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(header string) (*httptest.ResponseRecorder, string) {
		logs := captureLog(t)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/", nil)
		req.Header.Set("Authorization", header)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w, logs.String()
	}

	expiredResp, expiredLog := send("Bearer " + token)
	malformedResp, malformedLog := send("Token " + token)

	assert.Equal(t, http.StatusUnauthorized, expiredResp.Code)
	assert.Equal(t, malformedResp.Code, expiredResp.Code)
	assert.Equal(t, malformedResp.Body.String(), expiredResp.Body.String())
	assert.Equal(t, malformedResp.Header().Get("WWW-Authenticate"), expiredResp.Header().Get("WWW-Authenticate"))

	assert.Contains(t, expiredLog, "(expired)")
	assert.Contains(t, malformedLog, "(malformed)")
}

func TestGetClaims_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := GetClaims(req)
	assert.Error(t, err)

	claims := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "x"}}
	req = req.WithContext(WithClaims(req.Context(), claims))
	got, err := GetClaims(req)
	require.NoError(t, err)
	assert.Equal(t, "x", got.Subject)
}

// Package middleware provides HTTP middleware for authentication.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/jonathan/portfolio-api/internal/auth"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// claimsKey is the context key for storing the verified claims.
const claimsKey ContextKey = "claims"

// UnauthorizedMessage is the only body callers see for credential failures.
const UnauthorizedMessage = "Invalid authentication credentials"

// Verifier validates an Authorization header value.
type Verifier interface {
	Verify(ctx context.Context, header string) (*auth.Claims, error)
}

// AuthMiddleware creates middleware that verifies the bearer credential and
// adds the claims to the request context. Every failure kind produces the same
// 401 response; only the log line says which one it was.
func AuthMiddleware(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := verifier.Verify(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				log.Printf("[auth] %s %s rejected (%s): %v", r.Method, r.URL.Path, auth.KindOf(err), err)
				Unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Unauthorized writes the bearer challenge and the generic error body.
func Unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": UnauthorizedMessage})
}

// GetClaims extracts the verified claims from the request context.
func GetClaims(r *http.Request) (*auth.Claims, error) {
	claims, ok := r.Context().Value(claimsKey).(*auth.Claims)
	if !ok || claims == nil {
		return nil, fmt.Errorf("claims not found in request context")
	}
	return claims, nil
}

// WithClaims returns a context carrying claims (for testing purposes).
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/jonathan/portfolio-api/internal/config"
	"github.com/jonathan/portfolio-api/internal/schemas"
	"github.com/jonathan/portfolio-api/internal/server/middleware"
	"github.com/jonathan/portfolio-api/internal/types"
)

// adminSubject is the token subject of the configured administrator.
const adminSubject = "admin"

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	admin       config.AdminCredentials
	passwords   Authenticator
	issuer      TokenIssuer
	revocations Revoker
	now         func() time.Time
}

// NewAuthHandler creates a new AuthHandler with the given dependencies. Any
// of them may be nil, which disables the endpoint that needs it.
func NewAuthHandler(admin config.AdminCredentials, passwords Authenticator, issuer TokenIssuer, revocations Revoker) *AuthHandler {
	return &AuthHandler{
		admin:       admin,
		passwords:   passwords,
		issuer:      issuer,
		revocations: revocations,
		now:         time.Now,
	}
}

// Login exchanges the admin email and password for a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.passwords == nil || h.issuer == nil || !h.admin.Configured() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Login is not configured"})
		return
	}

	var req types.LoginRequest
	if err := decodeRequest(w, r, schemas.Login, &req); err != nil {
		writeJSON(w, HTTPStatus(err), map[string]string{"error": "Invalid request body"})
		return
	}

	if !h.passwords.Authenticate(h.admin, req.Email, req.Password) {
		log.Printf("[auth] login failed for %q", req.Email)
		err := &ErrInvalidCredentials{}
		writeJSON(w, HTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	token, expiresAt, err := h.issuer.Issue(adminSubject, h.admin.Email)
	if err != nil {
		log.Printf("[auth] failed to issue token: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to generate token"})
		return
	}

	writeJSON(w, http.StatusOK, types.LoginResponse{
		Token:     token,
		TokenType: "Bearer",
		Subject:   adminSubject,
		ExpiresAt: expiresAt,
	})
}

// Revoke invalidates every token issued to the caller's subject until now,
// including the one used for this request.
func (h *AuthHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	if h.revocations == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Revocation is not configured"})
		return
	}

	claims, err := middleware.GetClaims(r)
	if err != nil {
		middleware.Unauthorized(w)
		return
	}

	if err := h.revocations.Revoke(r.Context(), claims.Subject, h.now()); err != nil {
		log.Printf("[auth] revoke %q failed: %v", claims.Subject, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to revoke tokens"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Tokens revoked"})
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

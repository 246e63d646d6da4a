// Package auth verifies and issues bearer credentials.
package auth

import (
	"errors"
	"fmt"
)

// Credential failure kinds. Callers at the HTTP boundary collapse all of them
// into one unauthorized response and only log which one occurred.
var (
	ErrMalformedCredential = errors.New("malformed credential")
	ErrExpiredCredential   = errors.New("expired credential")
	ErrRevokedCredential   = errors.New("revoked credential")
	ErrInvalidCredential   = errors.New("invalid credential")
)

// CredentialError is returned by Verify. Kind is one of the Err*Credential
// sentinels and Cause carries the underlying diagnostic.
type CredentialError struct {
	Kind  error
	Cause error
}

func (e *CredentialError) Error() string {
	if e.Cause == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Cause)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *CredentialError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func credentialError(kind error, format string, args ...any) *CredentialError {
	return &CredentialError{Kind: kind, Cause: fmt.Errorf(format, args...)}
}

// KindOf returns a short label for the failure kind, for logging.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrMalformedCredential):
		return "malformed"
	case errors.Is(err, ErrExpiredCredential):
		return "expired"
	case errors.Is(err, ErrRevokedCredential):
		return "revoked"
	case errors.Is(err, ErrInvalidCredential):
		return "invalid"
	default:
		return "unknown"
	}
}

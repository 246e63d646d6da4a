// Package server provides the HTTP REST API for the portfolio content.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/portfolio-api/internal/auth"
	"github.com/jonathan/portfolio-api/internal/repository"
	"github.com/jonathan/portfolio-api/internal/schemas"
)

// ErrInvalidCredentials indicates invalid login credentials
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid email or password"
}

// ErrNotFound indicates an id or slug lookup miss
type ErrNotFound struct {
	Resource string
	Key      string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		missing     *ErrNotFound
		validation  *ErrValidation
		schemaErr   *schemas.ValidationError
		credentials *ErrInvalidCredentials
		credential  *auth.CredentialError
		tooLarge    *http.MaxBytesError
	)
	switch {
	case errors.As(err, &missing), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &validation), errors.As(err, &schemaErr):
		return http.StatusBadRequest
	case errors.As(err, &credentials), errors.As(err, &credential):
		return http.StatusUnauthorized
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// notFound converts a repository miss into an ErrNotFound for resource and
// leaves other errors untouched.
func notFound(err error, resource, key string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &ErrNotFound{Resource: resource, Key: key}
	}
	return err
}

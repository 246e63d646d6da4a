package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/portfolio-api/internal/auth"
	"github.com/jonathan/portfolio-api/internal/repository"
	"github.com/jonathan/portfolio-api/internal/schemas"
)

func TestErrInvalidCredentials(t *testing.T) {
	err := &ErrInvalidCredentials{}
	assert.Equal(t, "invalid email or password", err.Error())
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(err))
}

func TestErrNotFound(t *testing.T) {
	err := &ErrNotFound{Resource: "Project", Key: "x"}
	assert.Equal(t, "Project not found", err.Error())
	assert.Equal(t, http.StatusNotFound, HTTPStatus(err))
}

func TestErrValidation(t *testing.T) {
	err := &ErrValidation{Field: "email", Message: "invalid format"}
	assert.Equal(t, "validation error: email - invalid format", err.Error())
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "repository miss",
			err:      fmt.Errorf("get projects %q: %w", "1", repository.ErrNotFound),
			expected: http.StatusNotFound,
		},
		{
			name:     "schema violation",
			err:      &schemas.ValidationError{Errors: []schemas.FieldError{{Field: "title", Message: "required"}}},
			expected: http.StatusBadRequest,
		},
		{
			name:     "credential",
			err:      fmt.Errorf("verify: %w", &auth.CredentialError{Kind: auth.ErrExpiredCredential}),
			expected: http.StatusUnauthorized,
		},
		{
			name:     "generic",
			err:      errors.New("connection reset"),
			expected: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.err))
		})
	}
}

func TestNotFoundHelper(t *testing.T) {
	err := notFound(fmt.Errorf("wrapped: %w", repository.ErrNotFound), "Writing", "slug-1")
	var nf *ErrNotFound
	assert.ErrorAs(t, err, &nf)
	assert.Equal(t, "Writing", nf.Resource)

	other := errors.New("boom")
	assert.Same(t, other, notFound(other, "Writing", "x"))
}

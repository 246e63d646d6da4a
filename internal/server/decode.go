package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/portfolio-api/internal/schemas"
)

// decodeRequest reads at most maxBodyBytes, checks the raw body against the
// named schema, then decodes it into dst and runs its struct validation.
// An empty body is treated as an empty object.
func decodeRequest(w http.ResponseWriter, r *http.Request, schema string, dst any) error {
	_, err := decodeRequestBody(w, r, schema, dst)
	return err
}

// decodeRequestBody is decodeRequest that also returns the validated body.
func decodeRequestBody(w http.ResponseWriter, r *http.Request, schema string, dst any) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, tooLarge
		}
		return nil, &ErrValidation{Field: "body", Message: "failed to read request body"}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	if err := schemas.Validate(schema, body); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return nil, &ErrValidation{Field: "body", Message: "Invalid request body"}
	}

	if v, ok := dst.(validatable); ok {
		if err := v.Validate(); err != nil {
			return nil, extractValidationError(err)
		}
	}
	return body, nil
}

// extractValidationError converts validator errors to an ErrValidation.
func extractValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		// Report the first failing field
		ve := validationErrors[0]
		return &ErrValidation{Field: ve.Field(), Message: fmt.Sprintf("failed on %q", ve.Tag())}
	}
	return &ErrValidation{Field: "body", Message: "invalid request"}
}

// Package errs defines the error kinds shared by the stores, providers and
// orchestrators, and maps them to transport status codes at the boundary.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Wrap them with fmt.Errorf("...: %w", Kind) and test with errors.Is.
var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation failed")
	ErrPersistence = errors.New("persistence failure")
)

// ProviderError is returned for any transport, auth or quota failure of an AI backend.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NotFoundf returns an error wrapping ErrNotFound.
func NotFoundf(format string, a ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, a...), ErrNotFound)
}

// Validationf returns an error wrapping ErrValidation.
func Validationf(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, a...))
}

// Persistence wraps a driver error as ErrPersistence, keeping the cause in the chain.
func Persistence(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err is a Validation error.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsProvider reports whether err carries a ProviderError.
func IsProvider(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// HTTPStatus maps an error kind to an HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsNotFound(err):
		return http.StatusNotFound
	case IsValidation(err):
		return http.StatusBadRequest
	default:
		// Provider and persistence failures both surface as 500.
		return http.StatusInternalServerError
	}
}

// Package apperr defines the error taxonomy shared by the quote workflow.
// Errors are sentinel values wrapped with fmt.Errorf("...: %w", ...) so that
// callers classify with errors.Is while messages keep their context.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrUnauthenticated means no principal could be resolved for the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidArgument means the input was malformed (bad id, non-positive
	// quantity, unsupported status value, empty requirements).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound means the product, variant, or quote does not exist or is
	// soft-deleted.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the principal lacks read or mutation rights for this
	// quote or action, including self-dealing at creation.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidState means the operation is not legal for the quote's current
	// status (e.g. responding to a terminal quote).
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidTransition means the requested status change has no edge in the
	// lifecycle table.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrConflict means a concurrent writer won the conditional update and
	// bounded retries were exhausted.
	ErrConflict = errors.New("conflict")
)

// HTTPStatus maps a classified error to its transport status code. Unclassified
// errors map to 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Package repository holds the listing store and reservation ledger along
// with the error values shared by every layer above them.  Handlers
// compare against these sentinels with errors.Is to choose an HTTP status:
// ErrNotFound maps to 404, ErrForbidden to 403, ErrValidation to 400 and
// the three state errors (ErrInvalidState, ErrDuplicateRequest,
// ErrConflict) to 409.
package repository

import (
	"errors"
	"sort"
	"strings"
)

// ErrNotFound is returned when a listing or reservation request does not
// exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// listing or request they have no role in.  Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrInvalidState is returned when the listing's status does not allow the
// requested transition, e.g. requesting a reserved listing or marking an
// available one sold.
var ErrInvalidState = errors.New("invalid state")

// ErrDuplicateRequest is returned when a buyer already has a request on
// the listing.
var ErrDuplicateRequest = errors.New("duplicate request")

// ErrConflict is returned when another request on the listing is already
// confirmed.  Racing confirms resolve to exactly one winner; the others
// see this error.
var ErrConflict = errors.New("conflict")

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// ValidationError carries per-field messages for rejected input.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError wraps a field map.  It returns nil for an empty map
// so callers can write `if err := NewValidationError(p); err != nil`.
func NewValidationError(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ErrorKind returns a stable snake_case name for err's category.  It is
// used for the "error" field of HTTP error bodies and as a metrics label.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrDuplicateRequest):
		return "duplicate_request"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}

// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnknownState indicates a state name not declared by the resource.
	ErrUnknownState = errors.New("unknown state")

	// ErrUnauthorized indicates the actor lacks permission or a lock blocks the write.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPreconditionFailed indicates an expected-revision mismatch (lost update).
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrConflict indicates a duplicate version promotion or a lost replace race.
	ErrConflict = errors.New("conflict")

	// ErrLockHeld indicates another actor holds a non-expired lock slot.
	ErrLockHeld = errors.New("lock held")
)

// FieldError describes a single violated field, surfaced verbatim to callers.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError aborts a write before any mutation and carries the
// per-field descriptors produced by the schema validator.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidation wraps field descriptors into a *ValidationError.
func NewValidation(fields []FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

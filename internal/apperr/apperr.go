// Package apperr defines the structured error taxonomy used by the
// competition engine. Every rejected operation carries a Kind so callers can
// distinguish bad input from state-machine violations without string matching.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation was rejected.
type Kind string

const (
	// KindValidation — malformed or out-of-range input to a creation/edit call.
	KindValidation Kind = "VALIDATION"
	// KindPrecondition — an operation invoked when its required state isn't met.
	KindPrecondition Kind = "PRECONDITION"
	// KindInvalidState — a transition attempted from a state that doesn't permit it.
	KindInvalidState Kind = "INVALID_STATE"
	// KindConflict — a destructive operation blocked by live dependents.
	KindConflict Kind = "CONFLICT"
	// KindNotFound — the referenced entity does not exist.
	KindNotFound Kind = "NOT_FOUND"
	// KindUnavailable — an external collaborator (LLM evaluation) failed;
	// the operation is retryable once the collaborator recovers.
	KindUnavailable Kind = "UNAVAILABLE"
)

// Error is a kind-tagged error with a human-readable message. Field is set
// for validation errors to name the offending input field.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error naming the offending field.
func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// Wrap creates an Error of the given kind that preserves the underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf extracts the Kind from err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

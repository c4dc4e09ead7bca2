package models

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-readable classification of a core error.
type ErrorKind string

const (
	// KindValidation means the caller provided invalid fields.
	KindValidation ErrorKind = "validation"
	// KindNotFound means a referenced ID does not exist.
	KindNotFound ErrorKind = "not_found"
	// KindConflict means an invariant would be violated.
	KindConflict ErrorKind = "conflict"
	// KindDependency means a task dependency is unmet or cyclic.
	KindDependency ErrorKind = "dependency"
	// KindSubprocess means an external tool failed or timed out.
	KindSubprocess ErrorKind = "subprocess"
	// KindIO means a filesystem or lock failure.
	KindIO ErrorKind = "io"
	// KindSchema means persisted data could not be deserialized.
	KindSchema ErrorKind = "schema"
	// KindFatal means a runtime invariant broke.
	KindFatal ErrorKind = "fatal"
)

// Error is the distinguished error variant returned by the façade.
// It carries a kind, a short human message, and an optional remediation hint.
type Error struct {
	Kind    ErrorKind
	Message string
	Hint    string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// NewError creates an Error with the given kind and formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error wrapping a cause.
func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithHint attaches a remediation hint and returns the error.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// KindOf returns the ErrorKind of err, or KindFatal for errors that did not
// originate in the core.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindFatal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

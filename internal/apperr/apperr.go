package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a business-rule failure so the HTTP layer can pick a status
// without inspecting message text.
type Kind int

const (
	KindNotFound Kind = iota
	KindUnauthorized
	KindDenied
	KindConflict
	KindInvalid
)

// Error carries a kind, a human-readable message, and an optional cause.
type Error struct {
	kind    Kind
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.message
	}
	return fmt.Sprintf("%s: %v", e.message, e.cause)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Kind reports the classification of the error.
func (e *Error) Kind() Kind {
	return e.kind
}

// Message returns the human-readable message without the cause chain.
func (e *Error) Message() string {
	return e.message
}

func NotFound(message string) error {
	return &Error{kind: KindNotFound, message: message}
}

func Unauthorized(message string) error {
	return &Error{kind: KindUnauthorized, message: message}
}

func Denied(message string) error {
	return &Error{kind: KindDenied, message: message}
}

func Conflict(message string) error {
	return &Error{kind: KindConflict, message: message}
}

func Invalid(message string) error {
	return &Error{kind: KindInvalid, message: message}
}

// Wrap attaches a cause to a classified error.
func Wrap(kind Kind, message string, cause error) error {
	return &Error{kind: kind, message: message, cause: cause}
}

// KindOf extracts the kind from err, reporting whether err is classified.
func KindOf(err error) (Kind, bool) {
	var appError *Error
	if errors.As(err, &appError) {
		return appError.kind, true
	}
	return 0, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	found, ok := KindOf(err)
	return ok && found == kind
}

// Package apperror holds the error kinds callers of the audio service must
// tell apart. Every error produced by the service layer wraps one of the
// sentinel kinds below, so errors.Is works through any amount of wrapping.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrStorage          = errors.New("storage error")
	// ErrConflict is only produced when seeding users.
	ErrConflict = errors.New("conflict")
)

// Error is a classified failure with a message safe to show to clients.
type Error struct {
	kind    error
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Message returns the client-facing text without the underlying cause.
func (e *Error) Message() string {
	return e.message
}

func (e *Error) Kind() error {
	return e.kind
}

func (e *Error) Is(target error) bool {
	return target == e.kind
}

func (e *Error) Unwrap() error {
	return e.cause
}

func InvalidRequest(message string) error {
	return &Error{kind: ErrInvalidRequest, message: message}
}

func NotFound(message string) error {
	return &Error{kind: ErrNotFound, message: message}
}

func PermissionDenied(message string) error {
	return &Error{kind: ErrPermissionDenied, message: message}
}

func Conflict(message string) error {
	return &Error{kind: ErrConflict, message: message}
}

// Storage wraps an I/O failure under the blob root.
func Storage(message string, cause error) error {
	return &Error{kind: ErrStorage, message: message, cause: cause}
}

// MessageOf returns the client-facing message of err, or fallback when err
// is not an *Error.
func MessageOf(err error, fallback string) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.message
	}
	return fallback
}

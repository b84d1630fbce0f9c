// utils/errors.go
package utils

import (
	"errors"
	"fmt"
)

// ErrKind is the machine-readable classification of an engine error. Callers
// branch on the kind instead of matching message strings.
type ErrKind string

const (
	ErrKindInvalidInput        ErrKind = "invalid_input"
	ErrKindDuplicateSource     ErrKind = "duplicate_source"
	ErrKindInvalidTransition   ErrKind = "invalid_transition"
	ErrKindInsufficientBalance ErrKind = "insufficient_balance"
	ErrKindNotFound            ErrKind = "not_found"
	ErrKindTransientStore      ErrKind = "transient_store_error"
	ErrKindInternal            ErrKind = "internal"
)

// AppError carries an error kind across the service boundary.
type AppError struct {
	Kind    ErrKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates an AppError with the given kind and message.
func NewAppError(kind ErrKind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// NewAppErrorf creates an AppError with a formatted message.
func NewAppErrorf(kind ErrKind, format string, args ...interface{}) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps an underlying error with a kind and message.
func WrapError(kind ErrKind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or ErrKindInternal when err carries none.
func KindOf(err error) ErrKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ErrKindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrKind) bool {
	return err != nil && KindOf(err) == kind
}

package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error so transports can map it to a status
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindMismatch
	KindTemplate
	KindFieldTypeMismatch
	KindUnavailable
	KindConfig
)

// String returns a string representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindValidation:
		return "VALIDATION"
	case KindMismatch:
		return "MISMATCH"
	case KindTemplate:
		return "TEMPLATE"
	case KindFieldTypeMismatch:
		return "FIELD_TYPE_MISMATCH"
	case KindUnavailable:
		return "UNAVAILABLE"
	case KindConfig:
		return "CONFIG"
	default:
		return "INTERNAL"
	}
}

// HTTPStatus maps the kind onto the status code returned to HTTP clients.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindMismatch:
		return http.StatusConflict
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the error type returned across package boundaries
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether a caller may retry the operation unchanged.
func (e *Error) Retryable() bool {
	return e.Kind == KindUnavailable
}

// New creates an error of the given kind
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around a cause
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// NotFound is shorthand for New(KindNotFound, ...)
func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

// Validation is shorthand for New(KindValidation, ...)
func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

// Mismatch is shorthand for New(KindMismatch, ...)
func Mismatch(format string, args ...interface{}) *Error {
	return New(KindMismatch, format, args...)
}

// FieldTypeMismatch describes a value that cannot be written into a form field.
func FieldTypeMismatch(field, format string, args ...interface{}) *Error {
	e := New(KindFieldTypeMismatch, format, args...)
	e.Field = field
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether err is a transient failure.
func IsRetryable(err error) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Retryable()
}

// Message returns the client-facing message of err.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

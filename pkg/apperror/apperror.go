// Package apperror defines the error signal propagated from any layer up to
// the single HTTP error handler.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/pkg/errors"
)

// Kind is the closed set of failure categories.
type Kind string

const (
	KindValidation        Kind = "VALIDATION_FAILURE"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindForbidden         Kind = "FORBIDDEN"
	KindNotFound          Kind = "NOT_FOUND"
	KindPayloadTooLarge   Kind = "PAYLOAD_TOO_LARGE"
	KindTooManyRequests   Kind = "TOO_MANY_REQUESTS"
	KindHashingFailure    Kind = "HASHING_FAILURE"
	KindInvalidHashFormat Kind = "INVALID_HASH_FORMAT"
	KindUnexpected        Kind = "UNEXPECTED"
)

// StatusCode returns the HTTP status attached to a kind.
func (k Kind) StatusCode() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is an immutable failure carrying a status code and a human message.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Details    any
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Cause returns the wrapped error, carrying a stack trace when one was captured.
func (e *Error) Cause() error { return e.cause }

// Is matches any *Error of the same kind, so callers can test against the
// kind sentinels below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.cause == nil && t.Message == "" && t.Kind == e.Kind
}

// Sentinels usable with errors.Is.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrHashingFailure    = &Error{Kind: KindHashingFailure}
	ErrInvalidHashFormat = &Error{Kind: KindInvalidHashFormat}
	ErrUnexpected        = &Error{Kind: KindUnexpected}
)

// New builds a signal without an underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, StatusCode: kind.StatusCode(), Message: message}
}

// Wrap builds a signal around cause, capturing a stack trace at the call site.
func Wrap(cause error, kind Kind, message string) *Error {
	e := New(kind, message)
	if cause != nil {
		e.cause = pkgerrors.WithStack(cause)
	}
	return e
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

func Validation(message string, details any) *Error {
	return New(KindValidation, message).WithDetails(details)
}

func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }

func Forbidden(message string) *Error { return New(KindForbidden, message) }

func NotFound(message string) *Error { return New(KindNotFound, message) }

func NotFoundf(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func Unexpected(cause error) *Error {
	return Wrap(cause, KindUnexpected, "Internal server error")
}

// From coerces err into a signal. Untyped errors become KindUnexpected.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.StatusCode == 0 {
			cp := *e
			cp.StatusCode = e.Kind.StatusCode()
			return &cp
		}
		return e
	}
	return Unexpected(err)
}

// IsServerError reports whether the signal is a 5xx-class failure.
func (e *Error) IsServerError() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

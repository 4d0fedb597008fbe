// Package apperror defines the error kinds surfaced by every lifecycle operation.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies a failure independently of the operation that produced it.
type Kind string

const (
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindNotFound          Kind = "not_found"
	KindInvalidTransition Kind = "invalid_transition"
	KindInvalidInput      Kind = "invalid_input"
	KindConflict          Kind = "conflict"
	KindRateLimited       Kind = "rate_limited"
	KindExternal          Kind = "external_service_error"
	KindInternal          Kind = "internal_error"
)

// Error is a classified failure with a stable code and a user-visible message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same kind and code so sentinels survive wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap attaches a cause while keeping the classification.
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func Unauthorized(code, message string) *Error {
	return New(KindUnauthorized, code, message)
}

func Forbidden(code, message string) *Error {
	return New(KindForbidden, code, message)
}

func NotFound(code, message string) *Error {
	return New(KindNotFound, code, message)
}

func InvalidTransition(code, message string) *Error {
	return New(KindInvalidTransition, code, message)
}

func InvalidInput(code, message string) *Error {
	return New(KindInvalidInput, code, message)
}

func Conflict(code, message string) *Error {
	return New(KindConflict, code, message)
}

func RateLimited(code, message string) *Error {
	return New(KindRateLimited, code, message)
}

func External(code, message string, err error) *Error {
	return Wrap(KindExternal, code, message, err)
}

func Internal(err error) *Error {
	return Wrap(KindInternal, "internal_error", "internal server error", err)
}

// InvalidInputf builds an InvalidInput error with a formatted message.
func InvalidInputf(code, format string, args ...any) *Error {
	return New(KindInvalidInput, code, fmt.Sprintf(format, args...))
}

// As extracts the classified error from a chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) && appErr != nil {
		return appErr, true
	}
	return nil, false
}

// KindOf reports the kind of err; unclassified errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Package apperr defines the error taxonomy shared by the store, service and HTTP layers.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP boundary.
type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindInvalidRequest Kind = "invalid_request"
	KindStoreFailure   Kind = "store_failure"
)

// Error carries a Kind, a human readable message and the underlying cause.
type Error struct {
	Kind      Kind
	Message   string
	Retryable bool
	Err       error
}

// Sentinels for errors.Is matching; they compare by Kind only.
var (
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrInvalidRequest = &Error{Kind: KindInvalidRequest}
	ErrStoreFailure   = &Error{Kind: KindStoreFailure}
)

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a bare sentinel of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Message != "" || t.Err != nil {
		return false
	}
	return e.Kind == t.Kind
}

// NotFound builds the "<entity> not found" error.
func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

// Invalid builds an InvalidRequest error with the given message.
func Invalid(message string) *Error {
	return &Error{Kind: KindInvalidRequest, Message: message}
}

// Invalidf is Invalid with formatting.
func Invalidf(format string, args ...any) *Error {
	return Invalid(fmt.Sprintf(format, args...))
}

// Store wraps a failed store call. Deadline and cancellation failures are retryable.
func Store(op string, err error) *Error {
	return &Error{
		Kind:      KindStoreFailure,
		Message:   op,
		Retryable: errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled),
		Err:       err,
	}
}

// KindOf returns the Kind of err. Errors outside the taxonomy count as store failures.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStoreFailure
}

// IsRetryable reports whether err is a retryable store failure.
func IsRetryable(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// HTTPStatus maps err onto a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show a caller. Store failures hide their cause.
func PublicMessage(err error) string {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return "internal server error"
	}
	if appErr.Kind == KindStoreFailure {
		if appErr.Retryable {
			return "store temporarily unavailable, retry later"
		}
		return "store operation failed"
	}
	if appErr.Message == "" {
		return string(appErr.Kind)
	}
	return appErr.Message
}

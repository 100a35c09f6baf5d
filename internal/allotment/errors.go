package allotment

import (
	"errors"
	"fmt"
)

// Kind classifies every failure surfaced by the allotment core.  Callers
// switch on the kind; the message is meant for humans.
type Kind string

const (
	KindNotFound        Kind = "NOT_FOUND"
	KindInvalidState    Kind = "INVALID_STATE"
	KindInvalidArgument Kind = "INVALID_ARGUMENT"
	KindConstraint      Kind = "CONSTRAINT_VIOLATION"
	KindTransient       Kind = "TRANSIENT_FAILURE"
	KindNotification    Kind = "NOTIFICATION_FAILURE"
)

// Error carries a Kind, a caller-safe message and optionally the
// underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so errors.Is(err,
// &Error{Kind: KindNotFound}) works without comparing messages.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func NotFound(format string, args ...any) error {
	return newError(KindNotFound, nil, format, args...)
}

func InvalidState(format string, args ...any) error {
	return newError(KindInvalidState, nil, format, args...)
}

func InvalidArgument(format string, args ...any) error {
	return newError(KindInvalidArgument, nil, format, args...)
}

func Constraint(format string, args ...any) error {
	return newError(KindConstraint, nil, format, args...)
}

// Transient wraps an infrastructure failure.  The message shown to
// callers is fixed; the cause is kept for logs.
func Transient(err error, format string, args ...any) error {
	return newError(KindTransient, err, format, args...)
}

func Notification(err error, format string, args ...any) error {
	return newError(KindNotification, err, format, args...)
}

// KindOf resolves err to a Kind.  Errors that did not originate in this
// package are infrastructure failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}

// MessageOf returns the caller-safe message of err.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

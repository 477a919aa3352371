// Package apperr is the error taxonomy shared by the lending engine and the
// HTTP host. Expected business failures are *Error values; anything else is an
// infrastructure failure.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthorization  Kind = "authorization"
	KindInvalidState   Kind = "invalid_state"
	KindConflict       Kind = "conflict"
	KindNotFound       Kind = "not_found"
	KindPartialFailure Kind = "partial_failure"
)

// Error carries a Kind and a message meant for the caller. Err, when set, is
// the underlying cause and is never shown to end users.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	if e.Msg == "" {
		return string(e.Kind)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels below, so errors.Is(err, apperr.ErrConflict)
// works for any conflict regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrValidation     = &Error{Kind: KindValidation}
	ErrAuthorization  = &Error{Kind: KindAuthorization}
	ErrInvalidState   = &Error{Kind: KindInvalidState}
	ErrConflict       = &Error{Kind: KindConflict}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrPartialFailure = &Error{Kind: KindPartialFailure}
)

func newf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return newf(KindValidation, format, args...)
}

func Authorization(format string, args ...any) *Error {
	return newf(KindAuthorization, format, args...)
}

func InvalidState(format string, args ...any) *Error {
	return newf(KindInvalidState, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newf(KindConflict, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

// PartialFailure reports a multi-step operation whose effects may be only
// partly applied. cause is kept for logs.
func PartialFailure(cause error, format string, args ...any) *Error {
	e := newf(KindPartialFailure, format, args...)
	e.Err = cause
	return e
}

// KindOf returns the Kind of the first *Error in err's chain, or "" for
// infrastructure errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsBusiness reports whether err is an expected business failure.
func IsBusiness(err error) bool { return KindOf(err) != "" }

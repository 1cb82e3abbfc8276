// Package apperror carries coded errors from the data and access layers up to
// the HTTP handlers, which are the only place codes become status codes.
package apperror

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	EInvalid        = "invalid"
	EUnauthorized   = "unauthorized"
	EForbidden      = "forbidden"
	ENotFound       = "not found"
	EConflict       = "conflict"
	EBadGateway     = "bad gateway"
	EGatewayTimeout = "gateway timeout"
	EInternal       = "internal error"
)

// Error is a coded application error.
//
// Code targets automated handling. Reason is a short machine-readable
// qualifier surfaced to clients (e.g. "not_member"). Msg is safe to show to
// the caller. Op and Err chain errors for operators and never leave the
// process.
type Error struct {
	Code   string
	Reason string
	Msg    string
	Op     string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.message(), e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.message(), e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.message())
	default:
		return e.message()
	}
}

func (e *Error) message() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches errors with the same code and reason so sentinels compare
// correctly after being wrapped with an Op.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Reason == t.Reason && (t.Msg == "" || e.Msg == t.Msg)
}

// New returns an error with code and message.
func New(code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Wrap attaches an operation name and cause under code.
func Wrap(err error, code, op string) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// Invalid is shorthand for a validation failure with a caller-facing message.
func Invalid(format string, args ...any) *Error {
	return &Error{Code: EInvalid, Msg: fmt.Sprintf(format, args...)}
}

// ErrorCode returns the code of the first *Error in err's chain, EInternal
// for any other non-nil error, and "" for nil.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Code != "" {
			return e.Code
		}
		if e.Err != nil {
			return ErrorCode(e.Err)
		}
	}
	return EInternal
}

// ErrorReason returns the reason of the first *Error in err's chain.
func ErrorReason(err error) string {
	var e *Error
	for err != nil {
		if errors.As(err, &e) {
			if e.Reason != "" {
				return e.Reason
			}
			err = e.Err
			continue
		}
		return ""
	}
	return ""
}

// ErrorMessage returns the caller-safe message of err. Internal errors get a
// generic message.
func ErrorMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != EInternal {
		if e.Msg != "" {
			return e.Msg
		}
		if e.Err != nil {
			if m := ErrorMessage(e.Err); m != "" && ErrorCode(e.Err) != EInternal {
				return m
			}
		}
		return e.Code
	}
	return "internal server error"
}

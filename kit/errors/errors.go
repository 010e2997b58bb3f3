package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes shared across vistable services. The code targets automated
// handlers so that recovery can occur; Msg is for the operator or end user.
const (
	EInternal     = "internal error"
	ENotFound     = "not found"
	EConflict     = "conflict" // action cannot be performed
	EInvalid      = "invalid"  // validation failed
	EUnavailable  = "unavailable"
	EForbidden    = "forbidden"
	EUnauthorized = "unauthorized"
)

// Error is the error struct of vistable.
//
// Errors may have error codes, human-readable messages,
// and a logical stack trace.
//
// To create a simple error,
//
//	&Error{
//	    Code: ENotFound,
//	}
//
// To show where the error happens, add Op.
//
//	&Error{
//	    Code: ENotFound,
//	    Op:   "permissions.FindByDashboard",
//	}
//
// To show an error with an unpredictable value, add the value in Msg.
//
//	&Error{
//	    Code: EConflict,
//	    Msg:  fmt.Sprintf("datasource with key %s already exists", key),
//	}
//
// To show an error wrapped with another error.
//
//	&Error{
//	    Code: EInternal,
//	    Err:  err,
//	}
type Error struct {
	Code string
	Msg  string
	Op   string
	Err  error
}

// Error implements the error interface by writing out the recursive messages.
func (e *Error) Error() string {
	if e.Msg != "" && e.Err != nil {
		var b strings.Builder
		b.WriteString(e.Msg)
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
		return b.String()
	} else if e.Msg != "" {
		return e.Msg
	} else if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("<%s>", e.Code)
}

// Unwrap returns the wrapped error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode returns the code of the root error, if available; otherwise returns EInternal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	e, ok := err.(*Error)
	if !ok {
		return EInternal
	}

	if e == nil {
		return ""
	}

	if e.Code != "" {
		return e.Code
	}

	if e.Err != nil {
		return ErrorCode(e.Err)
	}

	return EInternal
}

// ErrorOp returns the op of the error, if available; otherwise returns the empty string.
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}

	e, ok := err.(*Error)
	if !ok || e == nil {
		return ""
	}

	if e.Op != "" {
		return e.Op
	}

	if e.Err != nil {
		return ErrorOp(e.Err)
	}

	return ""
}

// ErrorMessage returns the human-readable message of the error, if available.
// Otherwise returns a generic error message.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	e, ok := err.(*Error)
	if !ok || e == nil {
		return "An internal error has occurred."
	}

	if e.Msg != "" {
		return e.Msg
	}

	if e.Err != nil {
		return ErrorMessage(e.Err)
	}

	return "An internal error has occurred."
}

// As is a convenience around errors.As for *Error targets.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

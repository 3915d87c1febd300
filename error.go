package mailbus

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// Error codes
const (
	ErrInvalid      = "invalid"
	ErrUnauthorized = "unauthorized"
	ErrForbidden    = "forbidden"
	ErrNotFound     = "not_found"
	ErrConflict     = "conflict"
	ErrTooMany      = "too_many_requests"
	ErrInternal     = "internal"
)

// Error is the application error. Code is the kind, Err the optional cause.
type Error struct {
	Code    string
	Message string
	Op      string
	Err     error
}

// ErrorCode returns the code of the first Error in the chain that has one.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if !errors.As(err, &e) {
		return ErrInternal
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Err != nil {
		return ErrorCode(e.Err)
	}

	return ErrInternal
}

// ErrorMessage returns the human readable message of the first Error in the chain that has one.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if !errors.As(err, &e) {
		return "An internal error has occurred."
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return ErrorMessage(e.Err)
	}

	return "An internal error has occurred."
}

func (e *Error) Error() string {
	var buf bytes.Buffer

	if e.Op != "" {
		fmt.Fprintf(&buf, "%s: ", e.Op)
	}

	if e.Err != nil {
		buf.WriteString(e.Err.Error())
	} else {
		if e.Code != "" {
			fmt.Fprintf(&buf, "<%s> ", e.Code)
		}
		buf.WriteString(e.Message)
	}

	return buf.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf returns an Error with the given code and a formatted message.
func Errorf(code string, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorChain renders err followed by each of its causes, outermost first.
//
//	publish: resolve subscribers: connection refused
//
//	Caused by:
//		resolve subscribers: connection refused
//	Caused by:
//		connection refused
func ErrorChain(err error) string {
	if err == nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	first := true
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		if first {
			sb.WriteString("\n")
			first = false
		}
		fmt.Fprintf(&sb, "Caused by:\n\t%s\n", cause.Error())
	}

	return sb.String()
}

// Package domainerrors carries coded errors from services to the transport layer.
//
// Stores return sentinel errors (see pkg/platform/sentinel); services translate
// them into coded errors here, and httputil maps each code to a status and envelope.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error. The string value is exposed to callers.
type Code string

const (
	CodeUnauthenticated     Code = "unauthenticated"
	CodeUnauthorized        Code = "unauthorized"
	CodeNotFound            Code = "not_found"
	CodeAlreadyUsed         Code = "already_used"
	CodeExpired             Code = "expired"
	CodeBadRequest          Code = "bad_request"
	CodeValidation          Code = "validation_error"
	CodePayloadInvalid      Code = "payload_invalid"
	CodePayloadTooLarge     Code = "payload_too_large"
	CodePreconditionFailed  Code = "precondition_failed"
	CodeConflict            Code = "conflict"
	CodeRateLimited         Code = "rate_limited"
	CodeUpstreamUnavailable Code = "upstream_unavailable"
	CodeTimeout             Code = "timeout"
	CodeInvariantViolation  Code = "invariant_violation"
	CodeInternal            Code = "internal_error"
)

// Error is a coded error with a caller-safe message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Details any
	Err     error
}

// New builds a coded error without a cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// WithDetails attaches caller-visible structured details, such as the fields
// that failed validation.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code, and by message when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// As returns the outermost coded error in err's chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	de, ok := As(err)
	return ok && de.Code == code
}

// HasCode is an alias of Is kept for readability at call sites that branch on codes.
func HasCode(err error, code Code) bool {
	return Is(err, code)
}

// CodeOf returns the code of err, or CodeInternal when err is not coded.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}

package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failure independently of the transport that reports it.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalid      ErrorCode = "INVALID"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal     ErrorCode = "INTERNAL"
)

// Error is a classified failure. Message is safe to show to callers; Err
// keeps the cause for logs.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError classifies err under code with a caller-facing message.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

var (
	ErrAccountNotFound = NewError(ErrCodeNotFound, "account not found")
	ErrUnauthorized    = NewError(ErrCodeUnauthorized, "unauthorized")
)

// EmailTaken reports that another account already holds the email.
func EmailTaken(email string) *Error {
	return NewError(ErrCodeConflict, fmt.Sprintf("Email %q already exists in our system.", email))
}

// CodeOf returns the code of the outermost domain error in err's chain,
// or ErrCodeInternal for unclassified errors.
func CodeOf(err error) ErrorCode {
	var dErr *Error
	if errors.As(err, &dErr) && dErr.Code != "" {
		return dErr.Code
	}
	return ErrCodeInternal
}

// IsDomainError reports whether err is classified under code.
func IsDomainError(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// Message returns the caller-facing text of err. Causes wrapped by a domain
// error are left out.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Message
	}
	return err.Error()
}

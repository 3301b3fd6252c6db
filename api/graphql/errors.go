package graphql

import (
	"errors"

	"github.com/fastygo/ocxers/domain"
)

// Extension codes reported under errors[].extensions.code.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeBadUserInput    = "BAD_USER_INPUT"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeInternal        = "INTERNAL_SERVER_ERROR"
)

// codedError carries the user-facing message and an extension code.
type codedError struct {
	message string
	code    string
	err     error
}

func (e *codedError) Error() string { return e.message }

func (e *codedError) Unwrap() error { return e.err }

// Extensions is picked up by graphql-go when formatting errors.
func (e *codedError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.code}
}

func toGraphQLError(err error) error {
	if err == nil {
		return nil
	}
	var coded *codedError
	if errors.As(err, &coded) {
		return coded
	}
	return &codedError{message: domain.Message(err), code: extensionCodes[domain.CodeOf(err)], err: err}
}

var extensionCodes = map[domain.ErrorCode]string{
	domain.ErrCodeUnauthorized: CodeUnauthenticated,
	domain.ErrCodeInvalid:      CodeBadUserInput,
	domain.ErrCodeForbidden:    CodeForbidden,
	domain.ErrCodeNotFound:     CodeNotFound,
	domain.ErrCodeConflict:     CodeConflict,
	domain.ErrCodeInternal:     CodeInternal,
}

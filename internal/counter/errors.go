package counter

import (
	"errors"
	"net/http"
)

type ErrorCode string

const (
	CodeInvalidCategory    ErrorCode = "INVALID_CATEGORY"
	CodeInvalidDate        ErrorCode = "INVALID_DATE"
	CodeInvalidBranch      ErrorCode = "INVALID_BRANCH"
	CodePersistenceFailure ErrorCode = "COUNTER_PERSISTENCE_FAILURE"
)

// Error is returned by every Service operation that fails. Callers match it with
// errors.Is against the Err* sentinels below.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// StatusCode maps the error to the HTTP status used by the API.
func (e *Error) StatusCode() int {
	switch e.Code {
	case CodeInvalidCategory, CodeInvalidDate, CodeInvalidBranch:
		return http.StatusBadRequest
	case CodePersistenceFailure:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

var (
	ErrInvalidCategory = &Error{Code: CodeInvalidCategory, Message: "invalid category"}
	ErrInvalidDate     = &Error{Code: CodeInvalidDate, Message: "invalid date"}
	ErrInvalidBranch   = &Error{Code: CodeInvalidBranch, Message: "branch id is required"}
	ErrPersistence     = &Error{Code: CodePersistenceFailure, Message: "counter persistence failure"}
)

// ErrDuplicateKey is reported by a Store when two writers raced to create the same
// counter row. The service resolves it internally; it never reaches callers.
var ErrDuplicateKey = errors.New("counter: duplicate key")

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func persistenceFailure(message string, err error) *Error {
	return newError(CodePersistenceFailure, message, err)
}

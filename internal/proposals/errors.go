package proposals

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is a stable machine-readable error class. The transport layer
// maps codes to HTTP statuses; messages are safe to show an authenticated
// actor.
type ErrorCode string

const (
	// CodeValidation signals malformed or missing input.
	CodeValidation ErrorCode = "validation"
	// CodeNotFound signals no matching record visible to this actor/clinic.
	CodeNotFound ErrorCode = "not_found"
	// CodeInvalidState signals an operation not legal from the current status.
	CodeInvalidState ErrorCode = "invalid_state"
	// CodeDependency signals a persistence gateway failure.
	CodeDependency ErrorCode = "dependency"
)

// Error carries an error class alongside the message.
type Error struct {
	Code    ErrorCode
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus maps the error class to its transport equivalent.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeValidation, CodeInvalidState:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError reports malformed input.
func NewValidationError(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// NewNotFoundError reports a record the actor cannot see.
func NewNotFoundError(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NewInvalidStateError reports an illegal transition.
func NewInvalidStateError(msg string) *Error {
	return &Error{Code: CodeInvalidState, Message: msg}
}

// NewDependencyError wraps a persistence failure. Always propagated for the
// primary write.
func NewDependencyError(msg string, cause error) *Error {
	return &Error{Code: CodeDependency, Message: msg, cause: cause}
}

// CodeOf extracts the error class, defaulting to dependency for unclassified
// failures.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeDependency
}

// ErrStateConflict is returned by repositories when a status-guarded write
// matched no row because a competing transition moved the status first.
var ErrStateConflict = errors.New("proposals: status changed concurrently")

// ErrNotFound is the repository-level miss sentinel.
var ErrNotFound = errors.New("proposals: not found")

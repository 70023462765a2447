// Package apperr defines the error kinds shared by the service layer and the
// HTTP surface. Every failure that reaches a handler maps to exactly one kind.
package apperr

import (
	"errors"
	"net/http"
)

// Error kinds
var (
	// ErrValidation indicates malformed or missing input
	ErrValidation = errors.New("validation failed")

	// ErrConflict indicates that the resource already exists
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized indicates missing or invalid credentials or token
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates that the caller does not own the resource
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates that the resource does not exist
	ErrNotFound = errors.New("not found")

	// ErrPayloadTooLarge indicates that the uploaded body exceeds the limit
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrServiceUnavailable indicates that an external dependency is down or timed out
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrAnalysisFailed indicates that the inference call failed for any other reason
	ErrAnalysisFailed = errors.New("analysis failed")

	// ErrPersistence indicates that storing a result failed
	ErrPersistence = errors.New("persistence failed")
)

// Error carries a kind, a message that is safe to show to the caller and
// an optional underlying cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

// New creates an error of the given kind with a public message.
func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind wrapping cause.
func Wrap(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

var statusByKind = []struct {
	kind   error
	status int
}{
	{ErrValidation, http.StatusBadRequest},
	{ErrConflict, http.StatusBadRequest},
	{ErrUnauthorized, http.StatusUnauthorized},
	{ErrForbidden, http.StatusForbidden},
	{ErrNotFound, http.StatusNotFound},
	{ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
	{ErrServiceUnavailable, http.StatusServiceUnavailable},
	{ErrAnalysisFailed, http.StatusInternalServerError},
	{ErrPersistence, http.StatusInternalServerError},
}

// HTTPStatus returns the response status for err. Errors without a kind are 500.
func HTTPStatus(err error) int {
	for _, m := range statusByKind {
		if errors.Is(err, m.kind) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the message that may be sent to the caller.
// Internal details of unknown errors are never exposed.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return "internal server error"
}

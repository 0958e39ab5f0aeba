// Package apperr defines the error taxonomy shared by services and handlers.
// Services wrap these sentinels with context; handlers map them to HTTP
// statuses through response.FromError.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation     = errors.New("validation error")     // 400
	ErrAuthentication = errors.New("authentication error") // 401
	ErrAuthorization  = errors.New("authorization error")  // 403
	ErrNotFound       = errors.New("not found")            // 404
	ErrConflict       = errors.New("conflict")             // 409
	ErrTooLarge       = errors.New("payload too large")    // 413
	ErrIO             = errors.New("io error")             // 500
)

// Error carries a client-safe message alongside one of the sentinels above.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Validation returns a 400-class error with a message safe to show clients.
func Validation(msg string) error {
	return &Error{Kind: ErrValidation, Message: msg}
}

// Unauthenticated returns a 401-class error.
func Unauthenticated(msg string) error {
	return &Error{Kind: ErrAuthentication, Message: msg}
}

// Forbidden returns a 403-class error.
func Forbidden(msg string) error {
	return &Error{Kind: ErrAuthorization, Message: msg}
}

// NotFound returns a 404-class error.
func NotFound(msg string) error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

// IO wraps a storage failure. The cause is logged, never sent to clients.
func IO(msg string, err error) error {
	return &Error{Kind: ErrIO, Message: msg, Err: err}
}

// Message returns the client-safe message of err, if it carries one.
func Message(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message, true
	}
	return "", false
}

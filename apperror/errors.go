// Package apperror is the closed set of failures the portal surfaces to clients.
//
// Credential failures are deliberately merged: an unknown email and a wrong
// password are both ErrInvalidCredentials, and a missing and an expired reset
// token are both ErrInvalidOrExpiredToken. Internal errors keep their cause for
// logging but only ever expose a generic message.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindDuplicateEmail
	KindInvalidCredentials
	KindInvalidOrExpiredToken
	KindUnauthorized
	KindNotFound
	KindUnavailable
)

// Error is a classified failure. Message is safe to show to the client.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches on Kind so errors.Is(err, ErrNotFound) works for wrapped copies.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrDuplicateEmail        = &Error{Kind: KindDuplicateEmail, Message: "user with this email already exists"}
	ErrInvalidCredentials    = &Error{Kind: KindInvalidCredentials, Message: "invalid credentials"}
	ErrInvalidOrExpiredToken = &Error{Kind: KindInvalidOrExpiredToken, Message: "invalid or expired token"}
	ErrUnauthorized          = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrNotFound              = &Error{Kind: KindNotFound, Message: "not found"}
	ErrStorageUnavailable    = &Error{Kind: KindUnavailable, Message: "image storage is not configured"}
)

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

// Internal wraps an unexpected store or network error.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "an unexpected error occurred", Cause: cause}
}

// From classifies any error; unknown errors become internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// Status maps an error to its HTTP status code.
func Status(err error) int {
	switch From(err).Kind {
	case KindValidation, KindInvalidOrExpiredToken:
		return http.StatusBadRequest
	case KindDuplicateEmail:
		return http.StatusConflict
	case KindInvalidCredentials, KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

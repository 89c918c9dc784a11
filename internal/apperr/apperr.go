// Package apperr defines the error kinds returned by services. The HTTP
// layer turns a kind into a status code through Status and nowhere else.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthorized
	KindNotAuthenticated
	KindInvalidToken
	KindForbidden
	KindNoActiveCode
	KindCodeExpired
	KindInvalidCode
	KindTooManyAttempts
	KindUnavailable
)

type Error struct {
	Kind    Kind
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

// Is matches on kind so sentinel errors below can be used with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Kind == e.Kind
}

func New(k Kind, msg string) *Error {
	return &Error{Kind: k, Message: msg}
}

func Wrap(k Kind, msg string, err error) *Error {
	return &Error{Kind: k, Message: msg, Err: err}
}

var (
	ErrNoActiveCode     = New(KindNoActiveCode, "No active code. Request a new one.")
	ErrCodeExpired      = New(KindCodeExpired, "Code expired.")
	ErrInvalidCode      = New(KindInvalidCode, "Invalid code.")
	ErrTooManyAttempts  = New(KindTooManyAttempts, "Too many attempts.")
	ErrInvalidToken     = New(KindInvalidToken, "Invalid token")
	ErrNotAuthenticated = New(KindNotAuthenticated, "Not authenticated")
	ErrUserNotFound     = New(KindNotFound, "User not found.")
)

// KindOf returns the kind carried by err, or KindInternal for foreign errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindInternal
}

// Status maps an error kind to the HTTP status code presented to clients
func Status(k Kind) int {
	switch k {
	case KindValidation, KindNoActiveCode, KindCodeExpired, KindInvalidCode:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized, KindNotAuthenticated, KindInvalidToken:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindTooManyAttempts:
		return http.StatusTooManyRequests
	case KindUnavailable:
		return http.StatusBadGateway
	case KindInternal:
		return http.StatusInternalServerError
	}

	return http.StatusInternalServerError
}

// Message returns the client facing message for err. Internal errors never
// leak their cause.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}

	return "Internal server error"
}

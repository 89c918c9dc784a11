// Package validators holds the input checks shared by the auth flows
package validators

import (
	"errors"
	"net/mail"
	"strings"
)

const maxEmailLen = 254

var (
	ErrEmailEmpty   = errors.New("no email address provided")
	ErrEmailInvalid = errors.New("invalid email address provided")
)

// NormalizeEmail is applied to every address before it is stored or looked up
func NormalizeEmail(e string) string {
	return strings.TrimSpace(e)
}

// EmailValidator accepts a bare address. Display names such as
// "Reader <reader@example.com>" are rejected.
func EmailValidator(e string) error {
	if e == "" {
		return ErrEmailEmpty
	}

	if len(e) > maxEmailLen {
		return ErrEmailInvalid
	}

	a, err := mail.ParseAddress(e)
	if err != nil || a.Address != e {
		return ErrEmailInvalid
	}

	return nil
}

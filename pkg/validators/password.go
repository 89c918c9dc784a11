package validators

import (
	"errors"
	"unicode/utf8"
)

var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters long")
	ErrPasswordTooLong  = errors.New("password is too long")
	ErrPasswordEmpty    = errors.New("no password provided")
)

const (
	minPasswordLen = 8
	maxPasswordLen = 255
)

// PasswordValidator checks the length of p in characters, not bytes
func PasswordValidator(p string) error {
	if p == "" {
		return ErrPasswordEmpty
	}

	n := utf8.RuneCountInString(p)

	if n < minPasswordLen {
		return ErrPasswordTooShort
	}

	if n > maxPasswordLen {
		return ErrPasswordTooLong
	}

	return nil
}

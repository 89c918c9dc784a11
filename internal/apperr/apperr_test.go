package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("validate: %w", New(KindInvalidCode, "Invalid code."))

	assert.ErrorIs(t, err, ErrInvalidCode)
	assert.NotErrorIs(t, err, ErrCodeExpired)
	assert.Equal(t, KindInvalidCode, KindOf(err))
}

func TestStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:       http.StatusBadRequest,
		KindNotFound:         http.StatusNotFound,
		KindConflict:         http.StatusConflict,
		KindNotAuthenticated: http.StatusUnauthorized,
		KindInvalidToken:     http.StatusUnauthorized,
		KindForbidden:        http.StatusForbidden,
		KindNoActiveCode:     http.StatusBadRequest,
		KindCodeExpired:      http.StatusBadRequest,
		KindInvalidCode:      http.StatusBadRequest,
		KindTooManyAttempts:  http.StatusTooManyRequests,
		KindUnavailable:      http.StatusBadGateway,
		KindInternal:         http.StatusInternalServerError,
	}

	for k, want := range cases {
		assert.Equal(t, want, Status(k), "kind %d", k)
	}
}

func TestMessageHidesInternalCause(t *testing.T) {
	assert.Equal(t, "Internal server error", Message(errors.New("db is on fire")))
	assert.Equal(t, "Internal server error", Message(Wrap(KindInternal, "query failed", errors.New("x"))))
	assert.Equal(t, "Code expired.", Message(ErrCodeExpired))
}

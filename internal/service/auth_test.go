package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"bitwise74/smart-librarian/internal/apperr"
	"bitwise74/smart-librarian/internal/model"
	"bitwise74/smart-librarian/pkg/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "reader@example.com"
	testPassword = "correct horse"
)

type authFixture struct {
	svc    *AuthService
	users  *UserStore
	codes  *CodeEngine
	tokens *security.TokenIssuer
	mail   *outbox
	clock  *fakeClock
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	d := newTestDB(t)
	clock := newFakeClock()

	users := NewUserStore(d, testArgon())
	codes := NewCodeEngine(d, 15*time.Minute, 6)
	codes.now = clock.Now

	tokens, err := security.NewTokenIssuer("test-secret", "HS256", time.Hour, 7*24*time.Hour)
	require.NoError(t, err)

	mail := &outbox{}

	return &authFixture{
		svc:    NewAuthService(users, codes, tokens, mail, false),
		users:  users,
		codes:  codes,
		tokens: tokens,
		mail:   mail,
		clock:  clock,
	}
}

// registerVerified walks a user through registration and verification
func (f *authFixture) registerVerified(t *testing.T) {
	t.Helper()

	ctx := context.Background()

	_, err := f.svc.Register(ctx, testEmail, testPassword)
	require.NoError(t, err)

	_, err = f.svc.VerifyEmail(ctx, testEmail, f.mail.lastCode(t, testEmail))
	require.NoError(t, err)
}

func TestRegisterVerifyLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	msg, err := f.svc.Register(ctx, testEmail, testPassword)
	require.NoError(t, err)
	assert.Equal(t, "Registered. Check your email for the 6-digit code.", msg)
	assert.Equal(t, 1, f.mail.count())

	_, err = f.svc.Login(ctx, testEmail, testPassword)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	msg, err = f.svc.VerifyEmail(ctx, testEmail, f.mail.lastCode(t, testEmail))
	require.NoError(t, err)
	assert.Equal(t, "Email verified. You can log in now.", msg)

	pair, err := f.svc.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	u, err := f.svc.Authenticate(ctx, pair.Access)
	require.NoError(t, err)
	assert.Equal(t, testEmail, u.Email)
	assert.True(t, u.Verified)
}

func TestRegisterValidation(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, testEmail, "short")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.svc.Register(ctx, "nope", testPassword)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// 7 characters but 9 bytes
	_, err = f.svc.Register(ctx, "a@example.com", "pässwör")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	assert.Zero(t, f.mail.count())
}

func TestRegisterUnverifiedResendsCode(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, testEmail, testPassword)
	require.NoError(t, err)
	first := f.mail.lastCode(t, testEmail)

	msg, err := f.svc.Register(ctx, testEmail, testPassword)
	require.NoError(t, err)
	assert.Equal(t, "Code re-sent.", msg)
	assert.Equal(t, 2, f.mail.count())

	second := f.mail.lastCode(t, testEmail)
	if first != second {
		_, err = f.svc.VerifyEmail(ctx, testEmail, first)
		assert.ErrorIs(t, err, apperr.ErrInvalidCode)
	}

	_, err = f.svc.VerifyEmail(ctx, testEmail, second)
	assert.NoError(t, err)
}

func TestRegisterVerifiedConflicts(t *testing.T) {
	f := newAuthFixture(t)
	f.registerVerified(t)

	_, err := f.svc.Register(context.Background(), testEmail, testPassword)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestRegisterSurvivesMailFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.mail.err = errors.New("queue full")

	_, err := f.svc.Register(context.Background(), testEmail, testPassword)
	assert.NoError(t, err)
}

func TestVerifyUnknownEmail(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.VerifyEmail(context.Background(), "ghost@example.com", "123456")
	assert.ErrorIs(t, err, apperr.ErrUserNotFound)
}

func TestLoginFailures(t *testing.T) {
	f := newAuthFixture(t)
	f.registerVerified(t)
	ctx := context.Background()

	_, errWrong := f.svc.Login(ctx, testEmail, "wrong password")
	_, errUnknown := f.svc.Login(ctx, "ghost@example.com", testPassword)

	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(errWrong))
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(errUnknown))
	assert.Equal(t, apperr.Message(errWrong), apperr.Message(errUnknown))
}

func TestRefresh(t *testing.T) {
	f := newAuthFixture(t)
	f.registerVerified(t)
	ctx := context.Background()

	pair, err := f.svc.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, pair.Access)
	assert.ErrorIs(t, err, apperr.ErrInvalidToken)

	next, err := f.svc.Refresh(ctx, pair.Refresh)
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, next.Access)
	assert.NoError(t, err)

	// Refresh tokens are not accepted as access tokens
	_, err = f.svc.Authenticate(ctx, pair.Refresh)
	assert.ErrorIs(t, err, apperr.ErrInvalidToken)
}

func TestAuthenticateFailures(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)

	_, err = f.svc.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, apperr.ErrInvalidToken)

	pair, err := f.tokens.Issue("deleted_user_id0")
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, pair.Access)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestForgotAndResendDoNotLeak(t *testing.T) {
	f := newAuthFixture(t)
	f.registerVerified(t)
	ctx := context.Background()

	known, err := f.svc.ForgotPassword(ctx, testEmail)
	require.NoError(t, err)
	unknown, err := f.svc.ForgotPassword(ctx, "ghost@example.com")
	require.NoError(t, err)
	assert.Equal(t, known, unknown)

	verified, err := f.svc.ResendVerification(ctx, testEmail)
	require.NoError(t, err)
	missing, err := f.svc.ResendVerification(ctx, "ghost@example.com")
	require.NoError(t, err)
	assert.Equal(t, verified, missing)

	// Only the reset code for the real account went out
	assert.Equal(t, 2, f.mail.count())
}

func TestResendVerificationSendsForUnverified(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, testEmail, testPassword)
	require.NoError(t, err)

	_, err = f.svc.ResendVerification(ctx, testEmail)
	require.NoError(t, err)
	assert.Equal(t, 2, f.mail.count())

	_, err = f.svc.VerifyEmail(ctx, testEmail, f.mail.lastCode(t, testEmail))
	assert.NoError(t, err)
}

func TestResetPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.registerVerified(t)
	ctx := context.Background()

	_, err := f.svc.ForgotPassword(ctx, testEmail)
	require.NoError(t, err)
	code := f.mail.lastCode(t, testEmail)

	_, err = f.svc.ResetPassword(ctx, testEmail, code, "short")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	msg, err := f.svc.ResetPassword(ctx, testEmail, code, "brand new secret")
	require.NoError(t, err)
	assert.Equal(t, "Password updated. You can log in now.", msg)

	_, err = f.svc.Login(ctx, testEmail, testPassword)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, err = f.svc.Login(ctx, testEmail, "brand new secret")
	assert.NoError(t, err)

	// The code is spent
	_, err = f.svc.ResetPassword(ctx, testEmail, code, "another secret")
	assert.ErrorIs(t, err, apperr.ErrNoActiveCode)
}

func TestResetPasswordWithVerifyCodeFails(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, testEmail, testPassword)
	require.NoError(t, err)

	_, err = f.svc.ResetPassword(ctx, testEmail, f.mail.lastCode(t, testEmail), "brand new secret")
	assert.ErrorIs(t, err, apperr.ErrNoActiveCode)
}

func TestChangePassword(t *testing.T) {
	f := newAuthFixture(t)
	f.registerVerified(t)
	ctx := context.Background()

	u, err := f.users.ByEmail(ctx, testEmail)
	require.NoError(t, err)

	_, err = f.svc.RequestPasswordChange(ctx, u)
	require.NoError(t, err)
	code := f.mail.lastCode(t, testEmail)

	_, err = f.svc.ConfirmPasswordChange(ctx, u, code, "not my password", "brand new secret")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	msg, err := f.svc.ConfirmPasswordChange(ctx, u, code, testPassword, "brand new secret")
	require.NoError(t, err)
	assert.Equal(t, "Password changed successfully.", msg)

	_, err = f.svc.Login(ctx, testEmail, "brand new secret")
	assert.NoError(t, err)
}

func TestChangePasswordExpiredCode(t *testing.T) {
	f := newAuthFixture(t)
	f.registerVerified(t)
	ctx := context.Background()

	u, err := f.users.ByEmail(ctx, testEmail)
	require.NoError(t, err)

	_, err = f.svc.RequestPasswordChange(ctx, u)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)

	_, err = f.svc.ConfirmPasswordChange(ctx, u, f.mail.lastCode(t, testEmail), testPassword, "brand new secret")
	assert.ErrorIs(t, err, apperr.ErrCodeExpired)
}

func TestCleanupKeepsUnverifiedAccounts(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "stale@example.com", testPassword)
	require.NoError(t, err)

	f.clock.Advance(90 * 24 * time.Hour)
	runCleanup(ctx, f.codes, 30*24*time.Hour)

	u, err := f.users.ByEmail(ctx, "stale@example.com")
	require.NoError(t, err)
	assert.False(t, u.Verified)

	// The expired code is gone, a resend still works
	var left int64
	require.NoError(t, f.users.db.Model(&model.VerificationCode{}).Where("user_id = ?", u.ID).Count(&left).Error)
	assert.Zero(t, left)

	_, err = f.svc.ResendVerification(ctx, "stale@example.com")
	require.NoError(t, err)
}

func TestStartCleanupRejectsBadSchedule(t *testing.T) {
	f := newAuthFixture(t)

	_, err := StartCleanup("not a schedule", time.Hour, f.codes)
	assert.Error(t, err)

	c, err := StartCleanup("@daily", time.Hour, f.codes)
	require.NoError(t, err)
	c.Stop()
}

func TestLoginUpgradesOutdatedHash(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.registerVerified(t)

	stronger := security.New(2048, 1, 1)
	users := NewUserStore(f.users.db, stronger)
	svc := NewAuthService(users, f.codes, f.tokens, f.mail, false)

	before, err := users.ByEmail(ctx, testEmail)
	require.NoError(t, err)
	require.True(t, stronger.NeedsRehash(before.PasswordHash))

	_, err = svc.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	after, err := users.ByEmail(ctx, testEmail)
	require.NoError(t, err)
	assert.False(t, stronger.NeedsRehash(after.PasswordHash))

	_, err = svc.Login(ctx, testEmail, testPassword)
	assert.NoError(t, err)
}

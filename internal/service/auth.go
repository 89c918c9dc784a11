package service

import (
	"context"
	"errors"

	"bitwise74/smart-librarian/internal/apperr"
	"bitwise74/smart-librarian/internal/model"
	"bitwise74/smart-librarian/pkg/security"
	"bitwise74/smart-librarian/pkg/validators"

	"go.uber.org/zap"
)

const (
	msgRegistered     = "Registered. Check your email for the 6-digit code."
	msgCodeResent     = "Code re-sent."
	msgVerified       = "Email verified. You can log in now."
	msgCodeSent       = "If the email is registered, a code has been sent."
	msgPasswordReset  = "Password updated. You can log in now."
	msgChangeSent     = "A confirmation code was sent to your email."
	msgPasswordChange = "Password changed successfully."
)

// MailSender accepts messages for asynchronous delivery
type MailSender interface {
	Enqueue(to, subject, html string) error
}

// AuthService drives the account flows on top of the user store, the code
// engine and the token issuer
type AuthService struct {
	users  *UserStore
	codes  *CodeEngine
	tokens *security.TokenIssuer
	mail   MailSender

	// Logs every issued code. Never enable in production.
	debugCodes bool
}

func NewAuthService(users *UserStore, codes *CodeEngine, tokens *security.TokenIssuer, mail MailSender, debugCodes bool) *AuthService {
	return &AuthService{
		users:      users,
		codes:      codes,
		tokens:     tokens,
		mail:       mail,
		debugCodes: debugCodes,
	}
}

func validationErr(err error) error {
	return apperr.Wrap(apperr.KindValidation, err.Error(), err)
}

// Register creates an unverified account and mails a verification code.
// Registering an existing unverified email just sends a fresh code.
func (s *AuthService) Register(ctx context.Context, email, password string) (string, error) {
	email = validators.NormalizeEmail(email)

	if err := validators.EmailValidator(email); err != nil {
		return "", validationErr(err)
	}

	if err := validators.PasswordValidator(password); err != nil {
		return "", validationErr(err)
	}

	u, err := s.users.ByEmail(ctx, email)
	if err != nil && !errors.Is(err, apperr.ErrUserNotFound) {
		return "", err
	}

	if u != nil {
		return s.resendRegistration(ctx, u)
	}

	u, err = s.users.Create(ctx, email, password)
	if err != nil {
		// Lost a race with a concurrent registration of the same email
		if apperr.KindOf(err) == apperr.KindConflict {
			if u, err = s.users.ByEmail(ctx, email); err != nil {
				return "", err
			}

			return s.resendRegistration(ctx, u)
		}

		return "", err
	}

	if err := s.issueCode(ctx, u, model.PurposeVerifyEmail); err != nil {
		return "", err
	}

	return msgRegistered, nil
}

func (s *AuthService) resendRegistration(ctx context.Context, u *model.User) (string, error) {
	if u.Verified {
		return "", apperr.New(apperr.KindConflict, "Email already registered.")
	}

	if err := s.issueCode(ctx, u, model.PurposeVerifyEmail); err != nil {
		return "", err
	}

	return msgCodeResent, nil
}

// VerifyEmail consumes a verification code and marks the account verified
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) (string, error) {
	u, err := s.users.ByEmail(ctx, validators.NormalizeEmail(email))
	if err != nil {
		return "", err
	}

	if err := s.codes.Validate(ctx, u.ID, model.PurposeVerifyEmail, code); err != nil {
		return "", err
	}

	if err := s.users.SetVerified(ctx, u.ID); err != nil {
		return "", err
	}

	return msgVerified, nil
}

// Login exchanges credentials for a token pair. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*security.TokenPair, error) {
	u, err := s.users.ByEmail(ctx, validators.NormalizeEmail(email))
	if err != nil && !errors.Is(err, apperr.ErrUserNotFound) {
		return nil, err
	}

	ok, err := s.users.CheckPassword(u, password)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, apperr.New(apperr.KindUnauthorized, "Invalid credentials.")
	}

	if !u.Active {
		return nil, apperr.New(apperr.KindForbidden, "Account disabled.")
	}

	if !u.Verified {
		return nil, apperr.New(apperr.KindForbidden, "Email not verified.")
	}

	if err := s.users.Upgrade(ctx, u, password); err != nil {
		zap.L().Warn("Failed to upgrade password hash", zap.String("user_id", u.ID), zap.Error(err))
	}

	return s.tokens.Issue(u.ID)
}

// Refresh mints a new pair from a valid refresh token
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*security.TokenPair, error) {
	sub, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	u, err := s.users.ByID(ctx, sub)
	if err != nil {
		if errors.Is(err, apperr.ErrUserNotFound) {
			return nil, apperr.ErrInvalidToken
		}

		return nil, err
	}

	if !u.Active {
		return nil, apperr.ErrInvalidToken
	}

	return s.tokens.Issue(u.ID)
}

// Authenticate resolves an access token to its user
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*model.User, error) {
	if accessToken == "" {
		return nil, apperr.ErrNotAuthenticated
	}

	sub, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, err
	}

	u, err := s.users.ByID(ctx, sub)
	if err != nil {
		if errors.Is(err, apperr.ErrUserNotFound) {
			return nil, apperr.New(apperr.KindUnauthorized, "User not found")
		}

		return nil, err
	}

	if !u.Active {
		return nil, apperr.New(apperr.KindForbidden, "Account disabled.")
	}

	return u, nil
}

// ForgotPassword mails a reset code if the email is registered. The
// response is the same either way.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	u, err := s.users.ByEmail(ctx, validators.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperr.ErrUserNotFound) {
			return msgCodeSent, nil
		}

		return "", err
	}

	if err := s.issueCode(ctx, u, model.PurposeResetPassword); err != nil {
		return "", err
	}

	return msgCodeSent, nil
}

// ResetPassword sets a new password after a reset code is consumed
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) (string, error) {
	if err := validators.PasswordValidator(newPassword); err != nil {
		return "", validationErr(err)
	}

	u, err := s.users.ByEmail(ctx, validators.NormalizeEmail(email))
	if err != nil {
		return "", err
	}

	if err := s.codes.Validate(ctx, u.ID, model.PurposeResetPassword, code); err != nil {
		return "", err
	}

	if err := s.users.SetPassword(ctx, u.ID, newPassword); err != nil {
		return "", err
	}

	return msgPasswordReset, nil
}

// ResendVerification mails a fresh verification code to unverified
// accounts. The response does not reveal whether the email exists or is
// already verified.
func (s *AuthService) ResendVerification(ctx context.Context, email string) (string, error) {
	u, err := s.users.ByEmail(ctx, validators.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperr.ErrUserNotFound) {
			return msgCodeSent, nil
		}

		return "", err
	}

	if u.Verified {
		return msgCodeSent, nil
	}

	if err := s.issueCode(ctx, u, model.PurposeVerifyEmail); err != nil {
		return "", err
	}

	return msgCodeSent, nil
}

// RequestPasswordChange mails a confirmation code to a signed in user
func (s *AuthService) RequestPasswordChange(ctx context.Context, u *model.User) (string, error) {
	if err := s.issueCode(ctx, u, model.PurposeChangePassword); err != nil {
		return "", err
	}

	return msgChangeSent, nil
}

// ConfirmPasswordChange requires both the current password and a
// confirmation code before switching to newPassword
func (s *AuthService) ConfirmPasswordChange(ctx context.Context, u *model.User, code, current, newPassword string) (string, error) {
	ok, err := s.users.CheckPassword(u, current)
	if err != nil {
		return "", err
	}

	if !ok {
		return "", apperr.New(apperr.KindValidation, "Current password incorrect.")
	}

	if err := validators.PasswordValidator(newPassword); err != nil {
		return "", validationErr(err)
	}

	if err := s.codes.Validate(ctx, u.ID, model.PurposeChangePassword, code); err != nil {
		return "", err
	}

	if err := s.users.SetPassword(ctx, u.ID, newPassword); err != nil {
		return "", err
	}

	return msgPasswordChange, nil
}

// issueCode stores a new code and queues its mail. A mail failure is only
// logged since the code can always be requested again.
func (s *AuthService) issueCode(ctx context.Context, u *model.User, p model.CodePurpose) error {
	code, err := s.codes.Create(ctx, u.ID, p)
	if err != nil {
		return err
	}

	if s.debugCodes {
		zap.L().Warn("Issued verification code",
			zap.String("user_id", u.ID),
			zap.String("purpose", string(p)),
			zap.String("code", code))
	}

	subject, body, err := CodeMail(p, code, s.codes.TTL())
	if err != nil {
		return err
	}

	if err := s.mail.Enqueue(u.Email, subject, body); err != nil {
		zap.L().Error("Failed to enqueue code mail",
			zap.String("user_id", u.ID),
			zap.String("purpose", string(p)),
			zap.Error(err))
	}

	return nil
}

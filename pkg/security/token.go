package security

import (
	"errors"
	"fmt"
	"time"

	"bitwise74/smart-librarian/internal/apperr"

	"github.com/golang-jwt/jwt/v5"
)

const refreshType = "refresh"

type Claims struct {
	Type string `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	Access           string
	Refresh          string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// TokenIssuer mints and verifies stateless HMAC signed session tokens.
// Access and refresh tokens share the secret and algorithm, refresh tokens
// are told apart by their typ claim.
type TokenIssuer struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenIssuer(secret, alg string, accessTTL, refreshTTL time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("no signing secret provided")
	}

	m := jwt.GetSigningMethod(alg)
	if _, ok := m.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing method: %s", alg)
	}

	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}

	return &TokenIssuer{
		secret:     []byte(secret),
		method:     m,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

func (i *TokenIssuer) AccessTTL() time.Duration  { return i.accessTTL }
func (i *TokenIssuer) RefreshTTL() time.Duration { return i.refreshTTL }

// Issue mints an access and a refresh token for subject
func (i *TokenIssuer) Issue(subject string) (*TokenPair, error) {
	now := i.now()
	accessExp := now.Add(i.accessTTL)
	refreshExp := now.Add(i.refreshTTL)

	access, err := i.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token, %w", err)
	}

	refresh, err := i.sign(Claims{
		Type: refreshType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExp),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token, %w", err)
	}

	return &TokenPair{
		Access:           access,
		Refresh:          refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Verify checks signature and expiry of any token and returns its subject.
// Every failure collapses into apperr.ErrInvalidToken.
func (i *TokenIssuer) Verify(token string) (string, error) {
	c, err := i.parse(token)
	if err != nil {
		return "", err
	}

	return c.Subject, nil
}

// VerifyAccess is Verify but refuses refresh tokens
func (i *TokenIssuer) VerifyAccess(token string) (string, error) {
	c, err := i.parse(token)
	if err != nil {
		return "", err
	}

	if c.Type == refreshType {
		return "", apperr.ErrInvalidToken
	}

	return c.Subject, nil
}

// VerifyRefresh is Verify but only accepts refresh tokens
func (i *TokenIssuer) VerifyRefresh(token string) (string, error) {
	c, err := i.parse(token)
	if err != nil {
		return "", err
	}

	if c.Type != refreshType {
		return "", apperr.ErrInvalidToken
	}

	return c.Subject, nil
}

func (i *TokenIssuer) sign(c Claims) (string, error) {
	return jwt.NewWithClaims(i.method, c).SignedString(i.secret)
}

func (i *TokenIssuer) parse(token string) (*Claims, error) {
	if token == "" {
		return nil, apperr.ErrInvalidToken
	}

	c := &Claims{}
	t, err := jwt.ParseWithClaims(token, c, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{i.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !t.Valid {
		return nil, apperr.Wrap(apperr.KindInvalidToken, apperr.ErrInvalidToken.Message, err)
	}

	if c.Subject == "" {
		return nil, apperr.ErrInvalidToken
	}

	return c, nil
}

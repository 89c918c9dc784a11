package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bitwise74/smart-librarian/internal/apperr"
	"bitwise74/smart-librarian/internal/model"
	"bitwise74/smart-librarian/pkg/security"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/gorm"
)

const idCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// UserStore persists user identities and their password hashes
type UserStore struct {
	db    *gorm.DB
	argon *security.ArgonHash

	dummyOnce sync.Once
	dummyHash string
}

func NewUserStore(db *gorm.DB, argon *security.ArgonHash) *UserStore {
	return &UserStore{db: db, argon: argon}
}

// ByEmail looks a user up by the exact email it was registered with
func (s *UserStore) ByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.first(ctx, "email = ?", email)
}

func (s *UserStore) ByID(ctx context.Context, id string) (*model.User, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *UserStore) first(ctx context.Context, query string, arg any) (*model.User, error) {
	var u model.User

	err := s.db.WithContext(ctx).Where(query, arg).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrUserNotFound
		}

		return nil, fmt.Errorf("failed to fetch user, %w", err)
	}

	return &u, nil
}

// Create stores a new unverified user. A duplicate email yields a
// KindConflict error.
func (s *UserStore) Create(ctx context.Context, email, password string) (*model.User, error) {
	hash, err := s.argon.GenerateFromPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password, %w", err)
	}

	id, err := gonanoid.Generate(idCharset, 16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate user ID, %w", err)
	}

	u := &model.User{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		Active:       true,
		Verified:     false,
	}

	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Wrap(apperr.KindConflict, "Email already registered.", err)
		}

		return nil, fmt.Errorf("failed to create user, %w", err)
	}

	return u, nil
}

func (s *UserStore) SetVerified(ctx context.Context, id string) error {
	return s.update(ctx, id, map[string]any{"verified": true})
}

// SetPassword overwrites the stored hash with one for password
func (s *UserStore) SetPassword(ctx context.Context, id, password string) error {
	hash, err := s.argon.GenerateFromPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password, %w", err)
	}

	return s.update(ctx, id, map[string]any{"password_hash": hash})
}

func (s *UserStore) update(ctx context.Context, id string, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()

	r := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields)
	if r.Error != nil {
		return fmt.Errorf("failed to update user, %w", r.Error)
	}

	if r.RowsAffected == 0 {
		return apperr.ErrUserNotFound
	}

	return nil
}

// CheckPassword reports whether password matches the user's hash. A nil
// user still costs one hash computation so callers can't be timed.
func (s *UserStore) CheckPassword(u *model.User, password string) (bool, error) {
	if u == nil {
		s.dummyOnce.Do(func() {
			s.dummyHash, _ = s.argon.GenerateFromPassword("dummy-password")
		})
		s.argon.VerifyPasswd(password, s.dummyHash)
		return false, nil
	}

	return s.argon.VerifyPasswd(password, u.PasswordHash)
}

// Upgrade re-hashes the password of u when its stored hash uses outdated
// argon parameters. password must already be verified.
func (s *UserStore) Upgrade(ctx context.Context, u *model.User, password string) error {
	if !s.argon.NeedsRehash(u.PasswordHash) {
		return nil
	}

	return s.SetPassword(ctx, u.ID, password)
}

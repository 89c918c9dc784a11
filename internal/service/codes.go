package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitwise74/smart-librarian/internal/apperr"
	"bitwise74/smart-librarian/internal/model"
	"bitwise74/smart-librarian/pkg/security"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CodeEngine issues and validates one-time numeric codes.
//
// Only the newest unconsumed code for a (user, purpose) pair is reachable.
// Older codes are never invalidated explicitly, they just stop being
// selected. Attempts only grow, and a consumed code is inert forever.
type CodeEngine struct {
	db          *gorm.DB
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
}

func NewCodeEngine(db *gorm.DB, ttl time.Duration, maxAttempts int) *CodeEngine {
	return &CodeEngine{
		db:          db,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (e *CodeEngine) TTL() time.Duration { return e.ttl }

// Create stores a fresh code for userID and returns it in plain text for
// delivery. The plain code is never persisted.
func (e *CodeEngine) Create(ctx context.Context, userID string, purpose model.CodePurpose) (string, error) {
	if !purpose.Valid() {
		return "", fmt.Errorf("unknown code purpose %q", purpose)
	}

	code, err := security.GenerateCode()
	if err != nil {
		return "", err
	}

	now := e.now()

	vc := &model.VerificationCode{
		UserID:    userID,
		Purpose:   purpose,
		CodeHash:  security.HashCode(code),
		ExpiresAt: now.Add(e.ttl),
		CreatedAt: now,
	}

	if err := e.db.WithContext(ctx).Create(vc).Error; err != nil {
		return "", fmt.Errorf("failed to store verification code, %w", err)
	}

	return code, nil
}

// Validate checks code against the newest unconsumed code of userID for
// purpose. On success the code is consumed. The checks run in a fixed
// order: existence, expiry, attempt ceiling, then the hash itself.
func (e *CodeEngine) Validate(ctx context.Context, userID string, purpose model.CodePurpose, code string) error {
	var vc model.VerificationCode

	err := e.db.WithContext(ctx).
		Where("user_id = ? AND purpose = ? AND consumed = ?", userID, purpose, false).
		Order("created_at desc, id desc").
		First(&vc).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrNoActiveCode
		}

		return fmt.Errorf("failed to fetch verification code, %w", err)
	}

	if e.now().After(vc.ExpiresAt) {
		return apperr.ErrCodeExpired
	}

	if vc.Attempts >= e.maxAttempts {
		return apperr.ErrTooManyAttempts
	}

	if !security.CompareCode(code, vc.CodeHash) {
		if err := e.recordMiss(ctx, vc.ID); err != nil {
			return err
		}

		return apperr.ErrInvalidCode
	}

	return e.consume(ctx, vc.ID)
}

// recordMiss bumps the attempt counter with a conditional update so
// concurrent misses can't overwrite each other
func (e *CodeEngine) recordMiss(ctx context.Context, id uint) error {
	r := e.db.WithContext(ctx).
		Model(&model.VerificationCode{}).
		Where("id = ? AND consumed = ? AND attempts < ?", id, false, e.maxAttempts).
		UpdateColumn("attempts", gorm.Expr("attempts + ?", 1))
	if r.Error != nil {
		return fmt.Errorf("failed to record code attempt, %w", r.Error)
	}

	// Someone else used the last attempt or consumed the code first
	if r.RowsAffected == 0 {
		return apperr.ErrTooManyAttempts
	}

	return nil
}

// consume flips the consumed flag only if nobody else did it first
func (e *CodeEngine) consume(ctx context.Context, id uint) error {
	r := e.db.WithContext(ctx).
		Model(&model.VerificationCode{}).
		Where("id = ? AND consumed = ? AND attempts < ?", id, false, e.maxAttempts).
		UpdateColumns(map[string]any{
			"consumed":    true,
			"consumed_at": e.now(),
		})
	if r.Error != nil {
		return fmt.Errorf("failed to consume verification code, %w", r.Error)
	}

	if r.RowsAffected == 0 {
		return apperr.ErrNoActiveCode
	}

	return nil
}

// Prune deletes codes created before cutoff that can never validate again:
// consumed ones and expired ones. Superseded codes expire long before any
// sane retention window so they are covered by the expiry check.
func (e *CodeEngine) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	r := e.db.WithContext(ctx).
		Where("created_at < ? AND (consumed = ? OR expires_at < ?)", cutoff, true, e.now()).
		Delete(&model.VerificationCode{})
	if r.Error != nil {
		return 0, fmt.Errorf("failed to prune verification codes, %w", r.Error)
	}

	if r.RowsAffected > 0 {
		zap.L().Debug("Pruned verification codes", zap.Int64("count", r.RowsAffected))
	}

	return r.RowsAffected, nil
}

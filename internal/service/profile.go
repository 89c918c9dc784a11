package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitwise74/smart-librarian/internal/apperr"
	"bitwise74/smart-librarian/internal/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type badgeRule struct {
	code, name, description string
	earned                  func(searches, read int64) bool
}

var badgeRules = []badgeRule{
	{"FIRST_QUESTION", "First question", "Asked your first question.", func(s, _ int64) bool { return s >= 1 }},
	{"EXPLORER", "Explorer", "10+ searches logged.", func(s, _ int64) bool { return s >= 10 }},
	{"VORACIOUS", "Voracious reader", "Finished 5 books.", func(_, r int64) bool { return r >= 5 }},
}

var ErrShelfItemNotFound = apperr.New(apperr.KindNotFound, "Not found")

type ProfileStats struct {
	Searches int64 `json:"searches"`
	Want     int64 `json:"want"`
	Read     int64 `json:"read"`
}

type Profile struct {
	Email       string       `json:"email"`
	DisplayName string       `json:"display_name"`
	Stats       ProfileStats `json:"stats"`
}

// ProfileService manages a user's shelf, search history and badges
type ProfileService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *ProfileService) Summary(ctx context.Context, u *model.User) (*Profile, error) {
	searches, err := s.countSearches(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	want, err := s.countShelf(ctx, u.ID, model.ShelfWant)
	if err != nil {
		return nil, err
	}

	read, err := s.countShelf(ctx, u.ID, model.ShelfRead)
	if err != nil {
		return nil, err
	}

	name, _, _ := strings.Cut(u.Email, "@")

	return &Profile{
		Email:       u.Email,
		DisplayName: name,
		Stats:       ProfileStats{Searches: searches, Want: want, Read: read},
	}, nil
}

func (s *ProfileService) Badges(ctx context.Context, userID string) ([]model.UserBadge, error) {
	badges := []model.UserBadge{}

	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("awarded_at desc, id desc").
		Find(&badges).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch badges, %w", err)
	}

	return badges, nil
}

// Shelf lists shelf items newest first. An empty status lists everything.
func (s *ProfileService) Shelf(ctx context.Context, userID string, status model.ShelfStatus) ([]model.BookShelf, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.New(apperr.KindValidation, "Invalid shelf status")
	}

	items := []model.BookShelf{}

	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	if err := q.Order("added_at desc, id desc").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch shelf, %w", err)
	}

	return items, nil
}

func (s *ProfileService) AddToShelf(ctx context.Context, userID, title, author string, status model.ShelfStatus) (*model.BookShelf, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.New(apperr.KindValidation, "Title can't be empty")
	}

	if status == "" {
		status = model.ShelfWant
	}

	if !status.Valid() {
		return nil, apperr.New(apperr.KindValidation, "Invalid shelf status")
	}

	item := &model.BookShelf{
		UserID:  userID,
		Title:   title,
		Author:  strings.TrimSpace(author),
		Status:  status,
		AddedAt: s.now(),
	}

	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, fmt.Errorf("failed to add shelf item, %w", err)
	}

	s.recompute(ctx, userID)

	return item, nil
}

func (s *ProfileService) UpdateShelf(ctx context.Context, userID string, id uint, status model.ShelfStatus) error {
	if !status.Valid() {
		return apperr.New(apperr.KindValidation, "Invalid shelf status")
	}

	r := s.db.WithContext(ctx).
		Model(&model.BookShelf{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("status", status)
	if r.Error != nil {
		return fmt.Errorf("failed to update shelf item, %w", r.Error)
	}

	if r.RowsAffected == 0 {
		// Setting the same status again affects no rows on some drivers
		var n int64
		if err := s.db.WithContext(ctx).Model(&model.BookShelf{}).Where("id = ? AND user_id = ?", id, userID).Count(&n).Error; err != nil {
			return fmt.Errorf("failed to check shelf item, %w", err)
		}

		if n == 0 {
			return ErrShelfItemNotFound
		}
	}

	s.recompute(ctx, userID)

	return nil
}

func (s *ProfileService) RemoveFromShelf(ctx context.Context, userID string, id uint) error {
	r := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.BookShelf{})
	if r.Error != nil {
		return fmt.Errorf("failed to delete shelf item, %w", r.Error)
	}

	if r.RowsAffected == 0 {
		return ErrShelfItemNotFound
	}

	return nil
}

// TrackSearch records a query. Blank queries are skipped and reported as
// such through the boolean.
func (s *ProfileService) TrackSearch(ctx context.Context, userID, query string) (bool, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return false, nil
	}

	ev := &model.SearchEvent{UserID: userID, Query: query, CreatedAt: s.now()}
	if err := s.db.WithContext(ctx).Create(ev).Error; err != nil {
		return false, fmt.Errorf("failed to track search, %w", err)
	}

	s.recompute(ctx, userID)

	return true, nil
}

// recompute awards any newly earned badges. Failures are logged, a missing
// badge is picked up on the next change.
func (s *ProfileService) recompute(ctx context.Context, userID string) {
	if err := s.RecomputeBadges(ctx, userID); err != nil {
		zap.L().Error("Failed to recompute badges", zap.String("user_id", userID), zap.Error(err))
	}
}

// RecomputeBadges awards every badge whose rule is met. Awarding is
// idempotent, each badge exists at most once per user.
func (s *ProfileService) RecomputeBadges(ctx context.Context, userID string) error {
	searches, err := s.countSearches(ctx, userID)
	if err != nil {
		return err
	}

	read, err := s.countShelf(ctx, userID, model.ShelfRead)
	if err != nil {
		return err
	}

	for _, rule := range badgeRules {
		if !rule.earned(searches, read) {
			continue
		}

		err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.UserBadge{
				UserID:      userID,
				Code:        rule.code,
				Name:        rule.name,
				Description: rule.description,
				AwardedAt:   s.now(),
			}).Error
		if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("failed to award badge %s, %w", rule.code, err)
		}
	}

	return nil
}

func (s *ProfileService) countSearches(ctx context.Context, userID string) (int64, error) {
	var n int64

	err := s.db.WithContext(ctx).Model(&model.SearchEvent{}).Where("user_id = ?", userID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count searches, %w", err)
	}

	return n, nil
}

func (s *ProfileService) countShelf(ctx context.Context, userID string, status model.ShelfStatus) (int64, error) {
	var n int64

	err := s.db.WithContext(ctx).
		Model(&model.BookShelf{}).
		Where("user_id = ? AND status = ?", userID, status).
		Count(&n).
		Error
	if err != nil {
		return 0, fmt.Errorf("failed to count shelf items, %w", err)
	}

	return n, nil
}

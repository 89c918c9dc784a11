package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bitwise74/smart-librarian/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// PGStore is the book index backed by Postgres with pgvector
type PGStore struct {
	db *gorm.DB
}

func NewPGStore(db *gorm.DB) *PGStore {
	return &PGStore{db: db}
}

// Search returns the k books closest to vec by cosine distance
func (s *PGStore) Search(ctx context.Context, vec []float32, k int) ([]Candidate, error) {
	var rows []Candidate

	err := s.db.WithContext(ctx).
		Model(&model.Book{}).
		Select("title, author, difficulty, short_summary, full_summary, embedding <=> ? AS distance", pgvector.NewVector(vec)).
		Order("distance").
		Limit(k).
		Scan(&rows).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to search book index, %w", err)
	}

	return rows, nil
}

// LookupTitle finds a book by exact title, then case-insensitively
func (s *PGStore) LookupTitle(ctx context.Context, title string) (*BookDetail, error) {
	t := cleanTitle(title)
	if t == "" {
		return nil, ErrBookNotFound
	}

	var b model.Book

	q := s.db.WithContext(ctx).Select("title", "author", "difficulty", "full_summary")

	err := q.Where("title = ?", t).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = s.db.WithContext(ctx).
			Select("title", "author", "difficulty", "full_summary").
			Where("LOWER(TRIM(title)) = LOWER(?)", t).
			First(&b).
			Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}

		return nil, fmt.Errorf("failed to look up book, %w", err)
	}

	return &BookDetail{
		Title:       b.Title,
		Author:      b.Author,
		Difficulty:  b.Difficulty,
		FullSummary: b.FullSummary,
	}, nil
}

// Replace swaps the whole catalogue for books in one transaction
func (s *PGStore) Replace(ctx context.Context, books []model.Book) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Book{}).Error; err != nil {
			return fmt.Errorf("failed to clear book index, %w", err)
		}

		if len(books) == 0 {
			return nil
		}

		if err := tx.CreateInBatches(books, 100).Error; err != nil {
			return fmt.Errorf("failed to insert books, %w", err)
		}

		return nil
	})
}

// cleanTitle strips whitespace and wrapping quotes the model sometimes adds
func cleanTitle(t string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(t), `"'`))
}

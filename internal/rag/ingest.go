package rag

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"bitwise74/smart-librarian/internal/model"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

const defaultDifficulty = "Intermediate"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type bookLine struct {
	Title        string  `json:"title"`
	Author       string  `json:"author"`
	Difficulty   string  `json:"difficulty"`
	ShortSummary string  `json:"short_summary"`
	FullSummary  *string `json:"full_summary"`
}

// LoadBooks parses a JSONL catalogue. Blank lines and lines starting with
// # or // are skipped. Errors carry the 1-based line number.
func LoadBooks(r io.Reader) ([]model.Book, error) {
	var books []model.Book

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for ln := 1; sc.Scan(); ln++ {
		raw := sc.Bytes()
		if ln == 1 {
			raw = bytes.TrimPrefix(raw, utf8BOM)
		}

		s := strings.TrimSpace(string(raw))
		if s == "" || strings.HasPrefix(s, "#") || strings.HasPrefix(s, "//") {
			continue
		}

		var l bookLine
		if err := json.Unmarshal([]byte(s), &l); err != nil {
			return nil, fmt.Errorf("line %d: %w", ln, err)
		}

		title := strings.TrimSpace(l.Title)
		if title == "" {
			return nil, fmt.Errorf("line %d: missing title", ln)
		}

		difficulty := strings.TrimSpace(l.Difficulty)
		if difficulty == "" {
			difficulty = defaultDifficulty
		}

		short := strings.TrimSpace(l.ShortSummary)
		full := short
		if l.FullSummary != nil {
			full = strings.TrimSpace(*l.FullSummary)
		}

		books = append(books, model.Book{
			Title:        title,
			Author:       strings.TrimSpace(l.Author),
			Difficulty:   difficulty,
			ShortSummary: short,
			FullSummary:  full,
		})
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read catalogue, %w", err)
	}

	return books, nil
}

// EmbedText is the text a book is indexed under
func EmbedText(b model.Book) string {
	return b.Title + "\n" + b.Author + "\n" + b.ShortSummary + "\n" + b.Difficulty
}

// EmbedBooks fills in the embedding of every book, batch texts at a time
func EmbedBooks(ctx context.Context, e Embedder, books []model.Book, batch int) error {
	if batch <= 0 {
		return errors.New("batch size must be positive")
	}

	for start := 0; start < len(books); start += batch {
		end := min(start+batch, len(books))

		texts := make([]string, 0, end-start)
		for _, b := range books[start:end] {
			texts = append(texts, EmbedText(b))
		}

		vecs, err := e.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed books %d-%d, %w", start, end-1, err)
		}

		for i, v := range vecs {
			books[start+i].Embedding = pgvector.NewVector(v)
		}

		zap.L().Debug("Embedded batch", zap.Int("from", start), zap.Int("to", end-1))
	}

	return nil
}

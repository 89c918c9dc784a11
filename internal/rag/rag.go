// Package rag implements book recommendations: query embedding, nearest
// neighbour retrieval over the book index and a tool calling chat model
// that picks one title.
package rag

import (
	"context"

	"bitwise74/smart-librarian/internal/apperr"
)

var ErrBookNotFound = apperr.New(apperr.KindNotFound, "Book not found")

// Candidate is a retrieved book together with its cosine distance to the
// query. Lower is closer.
type Candidate struct {
	Title        string
	Author       string
	Difficulty   string
	ShortSummary string
	FullSummary  string
	Distance     float64
}

// BookDetail is what the title lookup tool returns
type BookDetail struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Difficulty  string `json:"difficulty"`
	FullSummary string `json:"full_summary"`
}

// Choice is the chat model's answer. Title is set only when the model
// called the lookup tool.
type Choice struct {
	ToolCalled bool
	Title      string
	Text       string
}

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

type ChatModel interface {
	Choose(ctx context.Context, query string, candidates []Candidate) (*Choice, error)
}

// Store is the vector index holding the catalogue
type Store interface {
	Search(ctx context.Context, vec []float32, k int) ([]Candidate, error)
	LookupTitle(ctx context.Context, title string) (*BookDetail, error)
}

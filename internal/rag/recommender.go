package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bitwise74/smart-librarian/internal/apperr"

	"go.uber.org/zap"
)

const redirectMessage = "I'm your book recommender and your request doesn't look like a book question. " +
	"Try something like:\n" +
	"• Recommend me a dystopian novel about surveillance\n" +
	"• A beginner-friendly fantasy adventure\n" +
	"• A classic romance with sharp social commentary"

const maxAlternatives = 3

type AnswerKind int

const (
	// The model picked a title, detail fields are set
	AnswerRecommendation AnswerKind = iota
	// The model replied in prose
	AnswerMessage
	// The query was off topic or rejected by the content filter, only
	// Message is set
	AnswerRedirect
)

type Alternative struct {
	Title      string `json:"title"`
	Author     string `json:"author"`
	Difficulty string `json:"difficulty"`
}

type Answer struct {
	Kind         AnswerKind
	Book         *BookDetail
	Message      string
	Alternatives []Alternative
}

// Recommender answers free text questions with one book from the index
type Recommender struct {
	embedder    QueryEmbedder
	store       Store
	chat        ChatModel
	filter      ContentFilter
	topK        int
	maxDistance float64
}

func NewRecommender(e QueryEmbedder, s Store, c ChatModel, topK int, maxDistance float64) *Recommender {
	return &Recommender{
		embedder:    e,
		store:       s,
		chat:        c,
		filter:      NewProfanityFilter(),
		topK:        topK,
		maxDistance: maxDistance,
	}
}

func (r *Recommender) Ask(ctx context.Context, query string) (*Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.New(apperr.KindValidation, "Query can't be empty")
	}

	if r.filter.IsProfane(query) {
		return &Answer{Kind: AnswerRedirect, Message: rephraseMessage}, nil
	}

	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "Recommendation service unavailable", err)
	}

	candidates, err := r.store.Search(ctx, vec, r.topK)
	if err != nil {
		return nil, err
	}

	best := 1.0
	if len(candidates) > 0 {
		best = candidates[0].Distance
	}

	if !LooksLikeBookQuery(query) && best > r.maxDistance {
		zap.L().Debug("Query rejected by intent gate", zap.Float64("best_distance", best))
		return &Answer{Kind: AnswerRedirect, Message: redirectMessage}, nil
	}

	if len(candidates) == 0 {
		return nil, apperr.New(apperr.KindNotFound, "No matches found")
	}

	choice, err := r.chat.Choose(ctx, query, candidates)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "Recommendation service unavailable", err)
	}

	alts := alternatives(candidates)

	if !choice.ToolCalled {
		msg := choice.Text
		if msg == "" {
			msg = fmt.Sprintf("I recommend %s.", candidates[0].Title)
		}

		return &Answer{Kind: AnswerMessage, Message: msg, Alternatives: alts}, nil
	}

	book, err := r.store.LookupTitle(ctx, choice.Title)
	if err != nil {
		if !errors.Is(err, ErrBookNotFound) {
			return nil, err
		}

		zap.L().Debug("Model picked an unknown title, using best match", zap.String("title", choice.Title))

		top := candidates[0]
		book = &BookDetail{
			Title:       top.Title,
			Author:      top.Author,
			Difficulty:  top.Difficulty,
			FullSummary: top.FullSummary,
		}
	}

	return &Answer{Kind: AnswerRecommendation, Book: book, Alternatives: alts}, nil
}

// Lookup exposes the title lookup tool directly
func (r *Recommender) Lookup(ctx context.Context, title string) (*BookDetail, error) {
	return r.store.LookupTitle(ctx, title)
}

// alternatives are the runners up after the best candidate
func alternatives(c []Candidate) []Alternative {
	out := []Alternative{}

	for i := 1; i < len(c) && len(out) < maxAlternatives; i++ {
		out = append(out, Alternative{
			Title:      c[i].Title,
			Author:     c[i].Author,
			Difficulty: c[i].Difficulty,
		})
	}

	return out
}

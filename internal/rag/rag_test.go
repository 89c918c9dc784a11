package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bitwise74/smart-librarian/internal/apperr"
	"bitwise74/smart-librarian/internal/model"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	err   error
	calls [][]string
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, q string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}

	return []float32{float32(len(q))}, nil
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}

	f.calls = append(f.calls, texts)

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}

	return out, nil
}

type fakeStore struct {
	candidates []Candidate
	books      map[string]BookDetail
}

func (f *fakeStore) Search(_ context.Context, _ []float32, k int) ([]Candidate, error) {
	return f.candidates[:min(k, len(f.candidates))], nil
}

func (f *fakeStore) LookupTitle(_ context.Context, title string) (*BookDetail, error) {
	t := cleanTitle(title)

	if b, ok := f.books[t]; ok {
		return &b, nil
	}

	for k, b := range f.books {
		if strings.EqualFold(k, t) {
			return &b, nil
		}
	}

	return nil, ErrBookNotFound
}

type fakeChat struct {
	choice *Choice
	err    error
	called bool
}

func (f *fakeChat) Choose(context.Context, string, []Candidate) (*Choice, error) {
	f.called = true
	return f.choice, f.err
}

func catalogue() *fakeStore {
	return &fakeStore{
		candidates: []Candidate{
			{Title: "1984", Author: "George Orwell", Difficulty: "Intermediate", FullSummary: "Big Brother.", Distance: 0.2},
			{Title: "Brave New World", Author: "Aldous Huxley", Difficulty: "Intermediate", Distance: 0.3},
			{Title: "Fahrenheit 451", Author: "Ray Bradbury", Difficulty: "Beginner", Distance: 0.35},
			{Title: "We", Author: "Yevgeny Zamyatin", Difficulty: "Advanced", Distance: 0.4},
			{Title: "The Handmaid's Tale", Author: "Margaret Atwood", Difficulty: "Intermediate", Distance: 0.5},
		},
		books: map[string]BookDetail{
			"1984":            {Title: "1984", Author: "George Orwell", Difficulty: "Intermediate", FullSummary: "Winston Smith rebels."},
			"Brave New World": {Title: "Brave New World", Author: "Aldous Huxley", Difficulty: "Intermediate", FullSummary: "Conditioning."},
		},
	}
}

func TestLooksLikeBookQuery(t *testing.T) {
	assert.True(t, LooksLikeBookQuery("Recommend me a NOVEL"))
	assert.True(t, LooksLikeBookQuery("something with science fiction vibes"))
	assert.False(t, LooksLikeBookQuery("what's the weather tomorrow"))
	assert.False(t, LooksLikeBookQuery(""))
}

func TestAskRecommendation(t *testing.T) {
	chat := &fakeChat{choice: &Choice{ToolCalled: true, Title: "brave new world"}}
	r := NewRecommender(&fakeEmbedder{}, catalogue(), chat, 5, 0.45)

	a, err := r.Ask(context.Background(), "a dystopian novel about control")
	require.NoError(t, err)

	assert.Equal(t, AnswerRecommendation, a.Kind)
	assert.Equal(t, "Brave New World", a.Book.Title)
	assert.Equal(t, "Conditioning.", a.Book.FullSummary)

	require.Len(t, a.Alternatives, 3)
	assert.Equal(t, "Brave New World", a.Alternatives[0].Title)
	assert.Equal(t, "We", a.Alternatives[2].Title)
}

func TestAskUnknownTitleFallsBack(t *testing.T) {
	chat := &fakeChat{choice: &Choice{ToolCalled: true, Title: "A Book That Does Not Exist"}}
	r := NewRecommender(&fakeEmbedder{}, catalogue(), chat, 5, 0.45)

	a, err := r.Ask(context.Background(), "a dystopian novel")
	require.NoError(t, err)

	assert.Equal(t, AnswerRecommendation, a.Kind)
	assert.Equal(t, "1984", a.Book.Title)
	assert.Equal(t, "Big Brother.", a.Book.FullSummary)
}

func TestAskWithoutToolCall(t *testing.T) {
	r := NewRecommender(&fakeEmbedder{}, catalogue(), &fakeChat{choice: &Choice{}}, 5, 0.45)

	a, err := r.Ask(context.Background(), "a dystopian novel")
	require.NoError(t, err)

	assert.Equal(t, AnswerMessage, a.Kind)
	assert.Equal(t, "I recommend 1984.", a.Message)
	assert.Len(t, a.Alternatives, 3)

	r = NewRecommender(&fakeEmbedder{}, catalogue(), &fakeChat{choice: &Choice{Text: "Try 1984!"}}, 5, 0.45)

	a, err = r.Ask(context.Background(), "a dystopian novel")
	require.NoError(t, err)
	assert.Equal(t, "Try 1984!", a.Message)
}

func TestAskIntentGate(t *testing.T) {
	store := catalogue()
	store.candidates[0].Distance = 0.9
	chat := &fakeChat{}

	r := NewRecommender(&fakeEmbedder{}, store, chat, 5, 0.45)

	a, err := r.Ask(context.Background(), "what's the weather like")
	require.NoError(t, err)
	assert.Equal(t, AnswerRedirect, a.Kind)
	assert.Contains(t, a.Message, "doesn't look like a book question")
	assert.False(t, chat.called)
}

func TestAskGatePassesCloseMatches(t *testing.T) {
	chat := &fakeChat{choice: &Choice{ToolCalled: true, Title: "1984"}}
	r := NewRecommender(&fakeEmbedder{}, catalogue(), chat, 5, 0.45)

	// Not worded like a book query but the index has a close hit
	a, err := r.Ask(context.Background(), "surveillance state")
	require.NoError(t, err)
	assert.Equal(t, AnswerRecommendation, a.Kind)
}

func TestAskNoCandidates(t *testing.T) {
	r := NewRecommender(&fakeEmbedder{}, &fakeStore{}, &fakeChat{}, 5, 0.45)

	_, err := r.Ask(context.Background(), "recommend a book")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	// An empty index with an off topic query is a redirect, not a 404
	a, err := r.Ask(context.Background(), "hello there")
	require.NoError(t, err)
	assert.Equal(t, AnswerRedirect, a.Kind)
}

type wordFilter string

func (w wordFilter) IsProfane(s string) bool {
	return strings.Contains(strings.ToLower(s), string(w))
}

func TestAskRejectsProfanity(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("must not be called")}
	chat := &fakeChat{}

	r := NewRecommender(emb, catalogue(), chat, 5, 0.45)
	r.filter = wordFilter("darn")

	a, err := r.Ask(context.Background(), "a DARN good fantasy novel")
	require.NoError(t, err)
	assert.Equal(t, AnswerRedirect, a.Kind)
	assert.Equal(t, "Please rephrase without inappropriate language.", a.Message)
	assert.False(t, chat.called)
}

func TestProfanityFilter(t *testing.T) {
	f := NewProfanityFilter()

	assert.True(t, f.IsProfane("a fucking good thriller"))
	assert.True(t, f.IsProfane("a sh1t book"))
	assert.False(t, f.IsProfane("a cozy mystery set in a small village"))
	assert.False(t, f.IsProfane("a dystopian novel about control"))
}

func TestAskErrors(t *testing.T) {
	r := NewRecommender(&fakeEmbedder{}, catalogue(), &fakeChat{}, 5, 0.45)
	_, err := r.Ask(context.Background(), "   ")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	r = NewRecommender(&fakeEmbedder{err: errors.New("down")}, catalogue(), &fakeChat{}, 5, 0.45)
	_, err = r.Ask(context.Background(), "a novel")
	assert.Equal(t, apperr.KindUnavailable, apperr.KindOf(err))

	r = NewRecommender(&fakeEmbedder{}, catalogue(), &fakeChat{err: errors.New("down")}, 5, 0.45)
	_, err = r.Ask(context.Background(), "a novel")
	assert.Equal(t, apperr.KindUnavailable, apperr.KindOf(err))
}

func TestAlternativesCap(t *testing.T) {
	assert.Empty(t, alternatives(nil))
	assert.Empty(t, alternatives([]Candidate{{Title: "Only"}}))
	assert.Len(t, alternatives(catalogue().candidates), 3)
}

func TestParseChoice(t *testing.T) {
	ch := parseChoice(openai.ChatCompletionMessage{
		ToolCalls: []openai.ToolCall{{
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: lookupTool, Arguments: `{"title":" 1984 "}`},
		}},
	})
	assert.True(t, ch.ToolCalled)
	assert.Equal(t, "1984", ch.Title)

	ch = parseChoice(openai.ChatCompletionMessage{
		ToolCalls: []openai.ToolCall{{Function: openai.FunctionCall{Name: lookupTool, Arguments: `{not json`}}},
	})
	assert.True(t, ch.ToolCalled)
	assert.Empty(t, ch.Title)

	ch = parseChoice(openai.ChatCompletionMessage{Content: " Read Emma. "})
	assert.False(t, ch.ToolCalled)
	assert.Equal(t, "Read Emma.", ch.Text)
}

func TestContextPrompt(t *testing.T) {
	p := contextPrompt(catalogue().candidates[:2])

	assert.Contains(t, p, "1984 by George Orwell [Intermediate]")
	assert.Contains(t, p, "Brave New World")
}

func TestCleanTitle(t *testing.T) {
	assert.Equal(t, "Dune", cleanTitle(` "Dune" `))
	assert.Equal(t, "Dune", cleanTitle(`'Dune'`))
}

func TestLoadBooks(t *testing.T) {
	in := "\xEF\xBB\xBF" + `{"title":" Dune ","author":"Frank Herbert","short_summary":"Spice."}

# comment
// another comment
{"title":"Emma","difficulty":"Beginner","short_summary":"Matchmaking.","full_summary":"Long."}
`

	books, err := LoadBooks(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, books, 2)

	assert.Equal(t, "Dune", books[0].Title)
	assert.Equal(t, "Intermediate", books[0].Difficulty)
	assert.Equal(t, "Spice.", books[0].FullSummary)

	assert.Equal(t, "Beginner", books[1].Difficulty)
	assert.Equal(t, "Long.", books[1].FullSummary)
}

func TestLoadBooksReportsLine(t *testing.T) {
	in := `{"title":"Dune"}
# fine
{"title":`

	_, err := LoadBooks(strings.NewReader(in))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")

	_, err = LoadBooks(strings.NewReader(`{"author":"Nobody"}`))
	assert.ErrorContains(t, err, "line 1: missing title")
}

func TestEmbedBooks(t *testing.T) {
	books := []model.Book{{Title: "A"}, {Title: "B"}, {Title: "C"}}
	e := &fakeEmbedder{}

	require.NoError(t, EmbedBooks(context.Background(), e, books, 2))

	require.Len(t, e.calls, 2)
	assert.Len(t, e.calls[0], 2)
	assert.Len(t, e.calls[1], 1)
	assert.Equal(t, "A\n\n\n", e.calls[0][0])

	for _, b := range books {
		assert.Len(t, b.Embedding.Slice(), 2)
	}

	assert.Error(t, EmbedBooks(context.Background(), e, books, 0))
}

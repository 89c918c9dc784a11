package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitwise74/smart-librarian/config"

	"github.com/jellydator/ttlcache/v2"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	lookupTool = "get_summary_by_title"

	systemPrompt = "You are a helpful librarian. From the retrieved context (a list of book " +
		"titles with authors, difficulties, and short summaries), choose exactly ONE best title " +
		"for the user's request. Then CALL the tool " + lookupTool + " with that exact title. " +
		"If the user mentions an easier or harder read, consider the difficulty labels " +
		"(Beginner / Intermediate / Advanced). Always answer in English."
)

// OpenAI talks to an OpenAI compatible API. Every call goes through a
// circuit breaker and query embeddings are cached for a short while.
type OpenAI struct {
	client     *openai.Client
	chatModel  string
	embedModel string
	dimensions int
	cb         *gobreaker.CircuitBreaker
	cache      *ttlcache.Cache
}

func NewOpenAI(cfg config.OpenAIConfig, dimensions int, cacheTTL time.Duration) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("no OpenAI API key provided")
	}

	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}

	cache := ttlcache.NewCache()
	if err := cache.SetTTL(cacheTTL); err != nil {
		return nil, fmt.Errorf("failed to configure embedding cache, %w", err)
	}
	cache.SetCacheSizeLimit(1024)
	cache.SkipTTLExtensionOnHit(true)

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zap.L().Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &OpenAI{
		client:     openai.NewClientWithConfig(c),
		chatModel:  cfg.ChatModel,
		embedModel: cfg.EmbedModel,
		dimensions: dimensions,
		cb:         cb,
		cache:      cache,
	}, nil
}

func (o *OpenAI) Close() error {
	return o.cache.Close()
}

// Embed returns one vector per input text, in input order
func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	res, err := o.cb.Execute(func() (any, error) {
		return o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input:      texts,
			Model:      openai.EmbeddingModel(o.embedModel),
			Dimensions: o.dimensions,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings, %w", err)
	}

	resp := res.(openai.EmbeddingResponse)
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}

	return out, nil
}

func (o *OpenAI) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if v, err := o.cache.Get(query); err == nil {
		return v.([]float32), nil
	}

	vecs, err := o.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	if err := o.cache.Set(query, vecs[0]); err != nil {
		zap.L().Warn("Failed to cache query embedding", zap.Error(err))
	}

	return vecs[0], nil
}

// Choose asks the model to pick one of candidates and call the lookup tool
func (o *OpenAI) Choose(ctx context.Context, query string, candidates []Candidate) (*Choice, error) {
	req := openai.ChatCompletionRequest{
		Model: o.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: query},
			{Role: openai.ChatMessageRoleSystem, Content: contextPrompt(candidates)},
		},
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        lookupTool,
				Description: "Return full details of a book by exact title.",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"title": {Type: jsonschema.String},
					},
					Required: []string{"title"},
				},
			},
		}},
		ToolChoice:  "auto",
		Temperature: 0.3,
		MaxTokens:   500,
	}

	res, err := o.cb.Execute(func() (any, error) {
		return o.client.CreateChatCompletion(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion, %w", err)
	}

	resp := res.(openai.ChatCompletionResponse)
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	return parseChoice(resp.Choices[0].Message), nil
}

func contextPrompt(candidates []Candidate) string {
	var b strings.Builder

	b.WriteString("Context (top matches):\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "\n- %s by %s [%s]: %s\n", c.Title, c.Author, c.Difficulty, c.ShortSummary)
	}
	b.WriteString("\nPick one title and call the tool with that exact title.")

	return b.String()
}

func parseChoice(msg openai.ChatCompletionMessage) *Choice {
	ch := &Choice{Text: strings.TrimSpace(msg.Content)}

	for _, tc := range msg.ToolCalls {
		if tc.Function.Name != lookupTool {
			continue
		}

		var args struct {
			Title string `json:"title"`
		}

		// Malformed arguments still count as a tool call, the caller falls
		// back to the best candidate
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			zap.L().Debug("Malformed tool arguments", zap.String("arguments", tc.Function.Arguments), zap.Error(err))
		}

		ch.ToolCalled = true
		ch.Title = strings.TrimSpace(args.Title)
		break
	}

	return ch
}

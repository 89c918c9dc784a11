package rag

import goaway "github.com/TwiN/go-away"

const rephraseMessage = "Please rephrase without inappropriate language."

// ContentFilter decides whether a query is fit to be answered
type ContentFilter interface {
	IsProfane(s string) bool
}

// NewProfanityFilter returns the filter used by default. Leetspeak and
// accents are normalised before matching.
func NewProfanityFilter() ContentFilter {
	return goaway.NewProfanityDetector().
		WithSanitizeLeetSpeak(true).
		WithSanitizeSpecialCharacters(true).
		WithSanitizeAccents(true)
}

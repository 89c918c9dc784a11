package rag

import "strings"

var bookKeywords = []string{
	"book", "novel", "read", "reading", "author", "recommend", "suggest",
	"fantasy", "sci-fi", "science fiction", "romance", "mystery", "thriller",
	"history", "biography", "literature", "story", "stories", "series",
}

// LooksLikeBookQuery is a cheap intent check. Substring matching is
// deliberate so "reader" or "bookish" count too.
func LooksLikeBookQuery(q string) bool {
	q = strings.ToLower(q)

	for _, k := range bookKeywords {
		if strings.Contains(q, k) {
			return true
		}
	}

	return false
}

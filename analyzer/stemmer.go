package analyzer

import (
	"strings"
	"sync"

	"github.com/kljensen/snowball"
)

// EnglishStemmer implements stemming for English column headers using
// the Snowball algorithm, with an internal cache for repeated tokens
type EnglishStemmer struct {
	cache map[string]string
	mu    sync.RWMutex
}

// NewEnglishStemmer creates a new English language stemmer
func NewEnglishStemmer() *EnglishStemmer {
	return &EnglishStemmer{
		cache: make(map[string]string),
	}
}

// Stem returns the stemmed version of a word.
// Example: "quantities" -> "quantiti", "regions" -> "region"
func (s *EnglishStemmer) Stem(word string) string {
	normalized := strings.ToLower(strings.TrimSpace(word))
	if normalized == "" {
		return ""
	}

	s.mu.RLock()
	if cached, ok := s.cache[normalized]; ok {
		s.mu.RUnlock()
		return cached
	}
	s.mu.RUnlock()

	stemmed, err := snowball.Stem(normalized, "english", true)
	if err != nil {
		// Snowball rejects non-ASCII input; fall back to the raw token
		stemmed = normalized
	}

	s.mu.Lock()
	s.cache[normalized] = stemmed
	s.mu.Unlock()

	return stemmed
}

// StemTokens returns stemmed versions of multiple tokens
func (s *EnglishStemmer) StemTokens(tokens []string) []string {
	result := make([]string, len(tokens))
	for i, token := range tokens {
		result[i] = s.Stem(token)
	}
	return result
}

// StemPhrase stems every underscore-separated token of a normalized header
func (s *EnglishStemmer) StemPhrase(header string) string {
	tokens := strings.Split(header, "_")
	return strings.Join(s.StemTokens(tokens), "_")
}

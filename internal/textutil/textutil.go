// Package textutil holds the tokenizer shared by retrieval, summaries and
// the terminal highlighter.
package textutil

import (
	"math"
	"regexp"
	"strings"
)

var (
	// WordPattern matches words in any script, keeping inner apostrophes.
	WordPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	// SentencePattern matches a run of text ending in sentence punctuation.
	SentencePattern = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// Stopwords are ignored by TF-IDF vectors, summaries and topic extraction.
var Stopwords = []string{
	"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	"what", "which", "who", "how", "why", "when", "where", "do", "does", "did", "has", "have", "had", "not", "no", "its", "their", "our", "we", "you", "they", "he", "she", "i", "me", "my",
}

// Tokens lower-cases text and returns its words.
func Tokens(text string) []string {
	return WordPattern.FindAllString(strings.ToLower(text), -1)
}

// TokenSet returns the distinct words of text.
func TokenSet(text string) map[string]struct{} {
	tokens := Tokens(text)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// Overlap counts distinct words of text that appear in query.
func Overlap(query map[string]struct{}, text string) int {
	score := 0
	for t := range TokenSet(text) {
		if _, ok := query[t]; ok {
			score++
		}
	}
	return score
}

// Ochiai is |A∩B| / sqrt(|A||B|) over the word sets of query and text.
func Ochiai(query map[string]struct{}, text string) float64 {
	words := TokenSet(text)
	if len(query) == 0 || len(words) == 0 {
		return 0
	}
	inter := 0
	for t := range words {
		if _, ok := query[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(query))*float64(len(words)))
}

// BestSentence returns the index of the sentence sharing most words with query.
func BestSentence(sentences []string, query string) int {
	q := TokenSet(query)
	best, bestScore := 0, -1
	for i, s := range sentences {
		if score := Overlap(q, s); score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	if n <= 1 {
		return string(r[:n])
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}

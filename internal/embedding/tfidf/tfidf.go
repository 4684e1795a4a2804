package tfidf

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"deepnotes/internal/textutil"
)

// Embedder is a TF-IDF vectorizer over the chunks of every ingested document.
// Vectors depend on the corpus, so Prepare must run again whenever it changes.
type Embedder struct {
	mu         sync.RWMutex
	vocabulary map[string]int
	idf        []float64
	dimension  int
	prepared   bool
	stopwords  map[string]struct{}
}

var (
	ErrEmptyCorpus = errors.New("empty corpus for TF-IDF prepare")
	ErrNoTokens    = errors.New("no tokens found in corpus; ensure tokenizer supports your language")
	ErrNotPrepared = errors.New("tfidf embedder not prepared")
)

// NewEmbedder creates an unprepared TF-IDF embedder.
func NewEmbedder() *Embedder {
	return &Embedder{
		vocabulary: make(map[string]int),
		stopwords:  defaultStopwords(),
	}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "tfidf" }

// Prepare builds the vocabulary and IDF values from the provided corpus.
func (e *Embedder) Prepare(_ context.Context, corpus []string) error {
	if len(corpus) == 0 {
		return ErrEmptyCorpus
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	// Build vocabulary and document frequencies
	df := make(map[string]int)
	for _, text := range corpus {
		tokens := e.tokenize(text)
		seen := make(map[string]struct{})
		for _, tok := range tokens {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	// Create stable ordering for vocabulary
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	if len(terms) == 0 {
		return ErrNoTokens
	}
	e.vocabulary = make(map[string]int, len(terms))
	e.idf = make([]float64, len(terms))
	N := float64(len(corpus))
	for i, term := range terms {
		e.vocabulary[term] = i
		// Smoothed IDF
		e.idf[i] = math.Log((1+N)/(1+float64(df[term]))) + 1.0
	}
	e.dimension = len(terms)
	e.prepared = true
	return nil
}

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimension
}

// Embed computes the TF-IDF embedding for the given text.
func (e *Embedder) Embed(_ context.Context, text string) ([]float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.prepared {
		return nil, ErrNotPrepared
	}
	vec := make([]float64, e.dimension)
	counts := make(map[int]int)
	for _, tok := range e.tokenize(text) {
		if idx, ok := e.vocabulary[tok]; ok {
			counts[idx]++
		}
	}
	// sublinear term frequency keeps long pages from drowning short ones
	for idx, n := range counts {
		vec[idx] = (1 + math.Log(float64(n))) * e.idf[idx]
	}
	normalize(vec)
	return vec, nil
}

// normalize scales v to unit length in place. Zero vectors stay zero.
func normalize(v []float64) {
	norm := 0.0
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] /= norm
	}
}

func (e *Embedder) tokenize(text string) []string {
	raw := textutil.Tokens(text)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	m := make(map[string]struct{}, len(textutil.Stopwords))
	for _, w := range textutil.Stopwords {
		m[w] = struct{}{}
	}
	return m
}

package summarizer

import (
	"math"
	"sort"
	"strings"

	"deepnotes/internal/chunker"
	"deepnotes/internal/domain"
	"deepnotes/internal/textutil"
)

// FrequencySummarizer ranks sentences by word frequency (stopwords filtered).
type FrequencySummarizer struct {
	stopwords map[string]struct{}
}

// NewFrequencySummarizer creates a frequency-based sentence ranker summarizer.
func NewFrequencySummarizer() *FrequencySummarizer {
	m := make(map[string]struct{}, len(textutil.Stopwords))
	for _, w := range textutil.Stopwords {
		m[w] = struct{}{}
	}
	return &FrequencySummarizer{stopwords: m}
}

// Summarize returns the top sentences joined in their original order.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	ranked, err := s.Highlights(text, maxSentences)
	if err != nil {
		return "", err
	}
	if len(ranked) == 0 {
		return strings.TrimSpace(text), nil
	}
	sentences := chunker.Sentences(textutil.SentencePattern, text)
	keep := make(map[string]struct{}, len(ranked))
	for _, h := range ranked {
		keep[h.Sentence] = struct{}{}
	}
	var out []string
	for _, sent := range sentences {
		if _, ok := keep[sent]; ok {
			out = append(out, sent)
			delete(keep, sent)
		}
	}
	return strings.Join(out, " "), nil
}

// Highlights returns up to maxSentences sentences, best first.
func (s *FrequencySummarizer) Highlights(text string, maxSentences int) ([]domain.Highlight, error) {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	sentences := chunker.Sentences(textutil.SentencePattern, text)
	if len(sentences) == 0 {
		return nil, nil
	}
	freq := s.normalizedFrequencies(sentences)
	scores := make([]domain.Highlight, len(sentences))
	for i, sent := range sentences {
		sscore := 0.0
		tokens := textutil.Tokens(sent)
		for _, tok := range tokens {
			sscore += freq[tok]
		}
		// Normalize by sentence length to avoid bias
		if l := float64(len(tokens)); l > 0 {
			sscore /= math.Sqrt(l)
		}
		scores[i] = domain.Highlight{Sentence: sent, Score: sscore}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	return dedupe(scores, maxSentences), nil
}

// Topics returns the most frequent non-stopword terms.
func (s *FrequencySummarizer) Topics(text string, maxTopics int) []domain.Topic {
	if maxTopics <= 0 {
		maxTopics = 5
	}
	counts := map[string]int{}
	for _, tok := range textutil.Tokens(text) {
		if _, stop := s.stopwords[tok]; stop || len([]rune(tok)) < 3 {
			continue
		}
		counts[tok]++
	}
	topics := make([]domain.Topic, 0, len(counts))
	for term, n := range counts {
		topics = append(topics, domain.Topic{Term: term, Occurrences: n})
	}
	sort.Slice(topics, func(i, j int) bool {
		if topics[i].Occurrences != topics[j].Occurrences {
			return topics[i].Occurrences > topics[j].Occurrences
		}
		return topics[i].Term < topics[j].Term
	})
	if len(topics) > maxTopics {
		topics = topics[:maxTopics]
	}
	return topics
}

func (s *FrequencySummarizer) normalizedFrequencies(sentences []string) map[string]float64 {
	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range textutil.Tokens(sent) {
			if _, ok := s.stopwords[tok]; ok {
				continue
			}
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}
	return freq
}

func dedupe(ranked []domain.Highlight, limit int) []domain.Highlight {
	seen := map[string]struct{}{}
	out := make([]domain.Highlight, 0, limit)
	for _, h := range ranked {
		if _, ok := seen[h.Sentence]; ok {
			continue
		}
		seen[h.Sentence] = struct{}{}
		out = append(out, h)
		if len(out) == limit {
			break
		}
	}
	return out
}

package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"deepnotes/internal/domain"
)

// SentenceChunker splits page text into sentence-based chunks with overlap.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
	splitter          *regexp.Regexp
}

func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 || overlapSentences >= sentencesPerChunk {
		overlapSentences = 0
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
		splitter:          regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
	}
}

// Chunk splits one page. Chunk ids are unique per document and page.
func (c *SentenceChunker) Chunk(documentID string, page int, text string) ([]domain.Chunk, error) {
	sentences := Sentences(c.splitter, text)
	if len(sentences) == 0 {
		return nil, nil
	}
	var chunks []domain.Chunk
	i := 0
	idx := 0
	for i < len(sentences) {
		end := min(i+c.sentencesPerChunk, len(sentences))
		chunks = append(chunks, domain.Chunk{
			DocumentID: documentID,
			ChunkID:    fmt.Sprintf("%s:%d:%d", documentID, page, idx),
			Text:       strings.Join(sentences[i:end], " "),
			Index:      idx,
			Page:       page,
		})
		if end == len(sentences) {
			break
		}
		i = max(end-c.overlapSentences, 0)
		idx++
	}
	return chunks, nil
}

// Sentences returns the trimmed sentences of text. Text without sentence
// punctuation is returned as a single sentence.
func Sentences(splitter *regexp.Regexp, text string) []string {
	raw := splitter.FindAllString(text, -1)
	var out []string
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			out = []string{trimmed}
		}
	}
	return out
}

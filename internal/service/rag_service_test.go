package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"deepnotes/internal/chunker"
	"deepnotes/internal/domain"
	"deepnotes/internal/embedding/tfidf"
	"deepnotes/internal/summarizer"
	"deepnotes/internal/vectorstore/memory"
)

var (
	reportDoc = domain.Document{ID: "r", Name: "report.pdf", Kind: domain.KindPDF}
	tripDoc   = domain.Document{ID: "t", Name: "trip.eml", Kind: domain.KindEmail}
)

func newService(t *testing.T) *RAGService {
	t.Helper()
	s := NewRAGService(chunker.NewSentenceChunker(5, 1), tfidf.NewEmbedder(), memory.NewStorage(),
		summarizer.NewFrequencySummarizer(), Options{}, zaptest.NewLogger(t))
	require.NoError(t, s.Put(context.Background(), reportDoc, domain.Content{Pages: []string{
		"Welcome to the annual report.",
		"Revenue increased by 23% year over year. Margins improved.",
	}}))
	require.NoError(t, s.Put(context.Background(), tripDoc, domain.Content{Pages: []string{"The team flew to Lisbon for the offsite."}}))
	return s
}

func TestAnswerCitesPageOfSelectedDocument(t *testing.T) {
	s := newService(t)
	resp, err := s.Answer(context.Background(), domain.AnswerRequest{Question: "How did revenue change?", DocumentIDs: []string{"r"}})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Citations)
	c := resp.Citations[0]
	assert.Equal(t, "report.pdf", c.SourceName)
	assert.Equal(t, 2, c.Page)
	assert.Contains(t, c.Label, "Revenue increased")
	assert.Contains(t, resp.Text, "Revenue increased")
	assert.NotEqual(t, domain.ConfidenceNone, resp.Confidence)
}

func TestAnswerIgnoresUnselectedDocuments(t *testing.T) {
	s := newService(t)
	resp, err := s.Answer(context.Background(), domain.AnswerRequest{Question: "How did revenue change?", DocumentIDs: []string{"t"}})
	require.NoError(t, err)
	assert.Equal(t, NoMatchMessage, resp.Text)
	assert.Empty(t, resp.Citations)
	assert.Equal(t, domain.ConfidenceLow, resp.Confidence)
}

func TestRetrieveRanksSelectedPassages(t *testing.T) {
	s := newService(t)
	ps, err := s.Retrieve(context.Background(), "Lisbon", []string{"r", "t"})
	require.NoError(t, err)
	require.NotEmpty(t, ps)
	assert.Equal(t, "t", ps[0].Document.ID)

	// words outside the vocabulary embed to a zero vector
	ps, err = s.Retrieve(context.Background(), "zzz qqq", []string{"r", "t"})
	require.NoError(t, err)
	assert.Empty(t, ps)
}

func TestPutWithEndedContextKeepsContentSearchable(t *testing.T) {
	s := NewRAGService(chunker.NewSentenceChunker(5, 1), tfidf.NewEmbedder(), memory.NewStorage(),
		summarizer.NewFrequencySummarizer(), Options{}, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Put(ctx, tripDoc, domain.Content{Pages: []string{"The team flew to Lisbon for the offsite."}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, s.Len())

	ps, err := s.Retrieve(context.Background(), "Lisbon", []string{"t"})
	require.NoError(t, err)
	require.NotEmpty(t, ps)
	assert.Equal(t, "t", ps[0].Document.ID)
}

func TestDropRemovesContent(t *testing.T) {
	s := newService(t)
	s.Drop("r")
	s.Drop("missing")
	assert.Equal(t, 1, s.Len())

	ps, err := s.Retrieve(context.Background(), "revenue", []string{"r"})
	require.NoError(t, err)
	assert.Empty(t, ps)

	_, err = s.Insights("r")
	assert.ErrorIs(t, err, ErrUnknownDocument)
}

func TestInsightsLocatePages(t *testing.T) {
	s := newService(t)
	in, err := s.Insights("r")
	require.NoError(t, err)
	assert.Equal(t, reportDoc, in.Document)
	require.NotEmpty(t, in.Highlights)
	top := in.Highlights[0]
	assert.Equal(t, "Revenue increased by 23% year over year.", top.Sentence)
	assert.Equal(t, 2, top.Page)
	assert.Equal(t, domain.ConfidenceHigh, top.Confidence)
	assert.NotEmpty(t, in.Topics)
	assert.NotEmpty(t, in.Summary)
}

func TestGrade(t *testing.T) {
	assert.Equal(t, domain.ConfidenceHigh, Grade(0.5))
	assert.Equal(t, domain.ConfidenceMedium, Grade(0.2))
	assert.Equal(t, domain.ConfidenceLow, Grade(0.01))
}

package answerer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"deepnotes/internal/domain"
	"deepnotes/internal/service"
)

func TestSimulatedEchoesQuestion(t *testing.T) {
	resp, err := NewSimulated(0).Answer(context.Background(), domain.AnswerRequest{Question: "What is the margin?", DocumentIDs: []string{"a"}})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, `"What is the margin?"`)
	assert.Equal(t, domain.ConfidenceHigh, resp.Confidence)
	require.Len(t, resp.Citations, 2)
	assert.Equal(t, domain.Citation{Label: "Section 2.1", SourceName: "Document Analysis", Page: 15}, resp.Citations[0])
	assert.Equal(t, domain.Citation{Label: "Executive Summary", SourceName: "Key Findings", Page: 3}, resp.Citations[1])
}

func TestSimulatedHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := NewSimulated(time.Hour).Answer(ctx, domain.AnswerRequest{Question: "q"})
	assert.ErrorIs(t, err, context.Canceled)
}

type stubRetriever struct {
	passages []service.Passage
	err      error
}

func (s stubRetriever) Retrieve(context.Context, string, []string) ([]service.Passage, error) {
	return s.passages, s.err
}

var revenuePassage = service.Passage{
	Document: domain.Document{ID: "r", Name: "report.pdf"},
	Chunk:    domain.Chunk{DocumentID: "r", Page: 2, Text: "Revenue increased by 23%. Margins improved."},
	Score:    0.6,
}

func newOpenAI(t *testing.T, url string, r Retriever) *OpenAI {
	t.Helper()
	t.Setenv("DEEPNOTES_TEST_KEY", "sk-test")
	a, err := NewOpenAI(OpenAIConfig{BaseURL: url, APIKeyEnv: "DEEPNOTES_TEST_KEY"}, r, zaptest.NewLogger(t))
	require.NoError(t, err)
	return a
}

func TestOpenAIAnswersFromPassages(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": " Revenue rose 23% [1]. "},
				"finish_reason": "stop",
			}},
		})
	}))
	defer srv.Close()

	a := newOpenAI(t, srv.URL, stubRetriever{passages: []service.Passage{revenuePassage}})
	resp, err := a.Answer(context.Background(), domain.AnswerRequest{Question: "How did revenue change?", DocumentIDs: []string{"r"}})
	require.NoError(t, err)
	assert.Equal(t, "Revenue rose 23% [1].", resp.Text)
	assert.Equal(t, domain.ConfidenceHigh, resp.Confidence)
	require.Len(t, resp.Citations, 1)
	assert.Equal(t, domain.Citation{Label: "Revenue increased by 23%.", SourceName: "report.pdf", Page: 2}, resp.Citations[0])

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[1].Content, "[1] report.pdf, page 2:")
	assert.Contains(t, got.Messages[1].Content, "Question: How did revenue change?")
}

func TestOpenAISkipsModelWithoutPassages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("model must not be called")
	}))
	defer srv.Close()

	a := newOpenAI(t, srv.URL, stubRetriever{})
	resp, err := a.Answer(context.Background(), domain.AnswerRequest{Question: "q", DocumentIDs: []string{"r"}})
	require.NoError(t, err)
	assert.Equal(t, service.NoMatchMessage, resp.Text)
	assert.Equal(t, domain.ConfidenceLow, resp.Confidence)
}

func TestOpenAIPropagatesFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer srv.Close()

	a := newOpenAI(t, srv.URL, stubRetriever{passages: []service.Passage{revenuePassage}})
	_, err := a.Answer(context.Background(), domain.AnswerRequest{Question: "q", DocumentIDs: []string{"r"}})
	assert.Error(t, err)

	boom := errors.New("index unavailable")
	a = newOpenAI(t, srv.URL, stubRetriever{err: boom})
	_, err = a.Answer(context.Background(), domain.AnswerRequest{Question: "q", DocumentIDs: []string{"r"}})
	assert.ErrorIs(t, err, boom)
}

package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientNeedsKey(t *testing.T) {
	t.Setenv("DEEPNOTES_TEST_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "DEEPNOTES_TEST_KEY"})
	assert.Error(t, err)
}

func TestEmbedRetriesRateLimits(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": []float32{0.5, 0.25, 0.25}}},
			"model":  "text-embedding-3-small",
		})
	}))
	defer srv.Close()

	t.Setenv("DEEPNOTES_TEST_KEY", "sk-test")
	c, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "DEEPNOTES_TEST_KEY"})
	require.NoError(t, err)
	c.sleep = func(time.Duration) {}

	vec, err := c.Embed(context.Background(), "revenue")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.25, 0.25}, vec)
	assert.Equal(t, 3, c.Dimension())
	assert.EqualValues(t, 2, calls.Load())
}

func TestRetryDelayIsCapped(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, retryDelay(0))
	assert.Equal(t, 400*time.Millisecond, retryDelay(1))
	assert.Equal(t, 5*time.Second, retryDelay(10))
}

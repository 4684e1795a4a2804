package qdrant

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"deepnotes/internal/domain"
)

// Storage keeps chunk vectors in a Qdrant collection over its REST API.
// Clear drops the collection and Init creates it again.
type Storage struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if cfg.Collection == "" {
		cfg.Collection = "deepnotes"
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

type payload struct {
	DocumentID string `json:"document_id"`
	ChunkID    string `json:"chunk_id"`
	Index      int    `json:"index"`
	Page       int    `json:"page"`
	Text       string `json:"text"`
}

func payloadOf(ch domain.Chunk) payload {
	return payload{DocumentID: ch.DocumentID, ChunkID: ch.ChunkID, Index: ch.Index, Page: ch.Page, Text: ch.Text}
}

func (p payload) chunk() domain.Chunk {
	return domain.Chunk{DocumentID: p.DocumentID, ChunkID: p.ChunkID, Index: p.Index, Page: p.Page, Text: p.Text}
}

type point struct {
	ID      string    `json:"id"`
	Vector  []float64 `json:"vector"`
	Payload payload   `json:"payload"`
}

type matchAny struct {
	Key   string `json:"key"`
	Match struct {
		Any []string `json:"any"`
	} `json:"match"`
}

type filter struct {
	Must []matchAny `json:"must"`
}

type searchRequest struct {
	Vector      []float64 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
	Filter      *filter   `json:"filter,omitempty"`
}

type searchResponse struct {
	Result []struct {
		Score   float64 `json:"score"`
		Payload payload `json:"payload"`
	} `json:"result"`
}

// pointID derives a stable UUID from a chunk id; Qdrant accepts only UUIDs
// or unsigned integers.
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

// Init creates the collection with cosine distance. An existing collection
// with the same vector size is accepted as is.
func (s *Storage) Init(dimension int) error {
	if dimension <= 0 {
		return domain.ErrInvalidDimension
	}
	s.dimension = dimension
	body := map[string]any{"vectors": map[string]any{"size": dimension, "distance": "Cosine"}}
	return s.do(http.MethodPut, s.collectionURL(""), body, nil)
}

func (s *Storage) Upsert(chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return domain.ErrVectorMismatch
	}
	if len(chunks) == 0 {
		return nil
	}
	points := make([]point, len(chunks))
	for i, ch := range chunks {
		points[i] = point{ID: pointID(ch.ChunkID), Vector: vectors[i], Payload: payloadOf(ch)}
	}
	return s.do(http.MethodPut, s.collectionURL("/points?wait=true"), map[string]any{"points": points}, nil)
}

// Search queries the collection, restricted to documentIDs when given.
func (s *Storage) Search(vector []float64, topK int, documentIDs []string) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	req := searchRequest{Vector: vector, Limit: topK, WithPayload: true}
	if len(documentIDs) > 0 {
		m := matchAny{Key: "document_id"}
		m.Match.Any = documentIDs
		req.Filter = &filter{Must: []matchAny{m}}
	}
	var resp searchResponse
	if err := s.do(http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, len(resp.Result))
	for i, r := range resp.Result {
		results[i] = domain.SearchResult{Chunk: r.Payload.chunk(), Score: r.Score}
	}
	return results, nil
}

// Clear drops the collection. A missing collection is not an error.
func (s *Storage) Clear() error {
	err := s.do(http.MethodDelete, s.collectionURL(""), nil, nil)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		return nil
	}
	return err
}

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

type statusError struct {
	method, url, status string
	code                int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant %s %s failed: %s", e.method, e.url, e.status)
}

func (s *Storage) do(method, url string, body, out any) error {
	var rd io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("qdrant: encode request: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &statusError{method: method, url: url, status: resp.Status, code: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("qdrant: decode response: %w", err)
	}
	return nil
}

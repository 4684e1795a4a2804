package memory

import (
	"sort"
	"sync"

	"deepnotes/internal/domain"
)

type record struct {
	chunk domain.Chunk
	vec   []float64
}

// Storage keeps chunk vectors in process and ranks them by brute-force
// cosine similarity. Vectors are expected to be L2-normalized.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	records   []record
}

func NewStorage() *Storage { return &Storage{} }

// Init sets the vector dimension and drops every stored record.
func (s *Storage) Init(dimension int) error {
	if dimension <= 0 {
		return domain.ErrInvalidDimension
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.records = nil
	return nil
}

func (s *Storage) Upsert(chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return domain.ErrVectorMismatch
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := make([]record, len(chunks))
	for i := range chunks {
		if len(vectors[i]) != s.dimension {
			return domain.ErrVectorMismatch
		}
		batch[i] = record{chunk: chunks[i], vec: vectors[i]}
	}
	s.records = append(s.records, batch...)
	return nil
}

// Search ranks records of the given documents against vector. An empty id
// list searches every document.
func (s *Storage) Search(vector []float64, topK int, documentIDs []string) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	keep := func(string) bool { return true }
	if len(documentIDs) > 0 {
		ids := make(map[string]bool, len(documentIDs))
		for _, id := range documentIDs {
			ids[id] = true
		}
		keep = func(id string) bool { return ids[id] }
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var results []domain.SearchResult
	for _, r := range s.records {
		if keep(r.chunk.DocumentID) {
			results = append(results, domain.SearchResult{Chunk: r.chunk, Score: dot(r.vec, vector)})
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *Storage) Clear() error {
	s.mu.Lock()
	s.records = nil
	s.mu.Unlock()
	return nil
}

func dot(a, b []float64) float64 {
	var sum float64
	for i, n := 0, min(len(a), len(b)); i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

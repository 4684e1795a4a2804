package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"deepnotes/internal/domain"
)

// DocumentStore is the in-memory, insertion-ordered set of committed documents.
type DocumentStore struct {
	mu    sync.RWMutex
	docs  []domain.Document
	index map[string]int
	now   func() time.Time
}

// New returns an empty store.
func New() *DocumentStore {
	return &DocumentStore{index: make(map[string]int), now: time.Now}
}

// Add commits a single document and returns its id.
func (s *DocumentStore) Add(doc domain.Document) string {
	return s.AddBatch([]domain.Document{doc})[0].ID
}

// AddBatch commits every document under a single lock so readers see either
// none or all of the batch. Missing ids and timestamps are assigned here.
func (s *DocumentStore) AddBatch(docs []domain.Document) []domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	committed := make([]domain.Document, 0, len(docs))
	at := s.now()
	for _, d := range docs {
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		if _, dup := s.index[d.ID]; dup {
			d.ID = uuid.NewString()
		}
		if d.UploadedAt.IsZero() {
			d.UploadedAt = at
		}
		s.index[d.ID] = len(s.docs)
		s.docs = append(s.docs, d)
		committed = append(committed, d)
	}
	return committed
}

// Remove deletes a document. Unknown ids are ignored.
func (s *DocumentStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return
	}
	s.docs = append(s.docs[:i], s.docs[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.docs); j++ {
		s.index[s.docs[j].ID] = j
	}
}

// List returns a copy of all documents in insertion order.
func (s *DocumentStore) List() []domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Document, len(s.docs))
	copy(out, s.docs)
	return out
}

func (s *DocumentStore) Get(id string) (domain.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return domain.Document{}, false
	}
	return s.docs[i], true
}

func (s *DocumentStore) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[id]
	return ok
}

// IDs returns the ids of all documents in insertion order.
func (s *DocumentStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.docs))
	for i, d := range s.docs {
		ids[i] = d.ID
	}
	return ids
}

func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

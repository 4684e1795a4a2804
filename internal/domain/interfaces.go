package domain

import (
	"context"
	"errors"
)

// Vector store validation errors.
var (
	ErrInvalidDimension = errors.New("vector store: dimension must be positive")
	ErrVectorMismatch   = errors.New("vector store: chunk, vector or dimension count mismatch")
)

// AnswerRequest is what the conversation engine sends to the answering collaborator.
type AnswerRequest struct {
	Question    string
	DocumentIDs []string
}

// AnswerResponse is a graded, cited reply from the answering collaborator.
type AnswerResponse struct {
	Text       string
	Citations  []Citation
	Confidence Confidence
}

// Answerer answers a question against a set of selected documents.
type Answerer interface {
	Answer(ctx context.Context, req AnswerRequest) (AnswerResponse, error)
}

// Extractor is the ingestion collaborator: it turns raw bytes or a link into text.
type Extractor interface {
	ExtractFile(ctx context.Context, blob Blob) (Content, error)
	ExtractLink(ctx context.Context, rawURL string) (Content, error)
}

// ContentSink receives the content of committed documents. Put honours ctx
// cancellation; the document stays committed either way.
type ContentSink interface {
	Put(ctx context.Context, doc Document, content Content) error
	Drop(id string)
}

// Chunk is a part of a document page used for retrieval indexing.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Text       string
	Index      int
	Page       int
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(ctx context.Context, corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Chunker splits a single page of a document into chunks.
type Chunker interface {
	Chunk(documentID string, page int, text string) ([]Chunk, error)
}

// VectorStore persists vectors and supports similarity search. Search is
// restricted to documentIDs unless the slice is empty.
type VectorStore interface {
	Init(dimension int) error
	Upsert(chunks []Chunk, vectors [][]float64) error
	Search(vector []float64, topK int, documentIDs []string) ([]SearchResult, error)
	Clear() error
}

// Summarizer ranks the most representative sentences of a text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
	Highlights(text string, maxSentences int) ([]Highlight, error)
	Topics(text string, maxTopics int) []Topic
}

// Highlight is a ranked sentence from a document.
type Highlight struct {
	Sentence string
	Score    float64
}

// Topic is a frequent term and how often it occurs.
type Topic struct {
	Term        string
	Occurrences int
}

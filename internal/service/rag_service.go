package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"deepnotes/internal/chunker"
	"deepnotes/internal/domain"
	"deepnotes/internal/textutil"
)

// ErrUnknownDocument is returned for ids the index holds no content for.
var ErrUnknownDocument = errors.New("document content not indexed")

// NoMatchMessage is the local reply when retrieval finds nothing relevant.
const NoMatchMessage = "I couldn't find anything about that in the selected documents."

// Options tune retrieval and insights.
type Options struct {
	TopK                int
	SummaryMaxSentences int
	Highlights          int
	Topics              int
}

// Passage is a retrieved chunk together with the document it came from.
type Passage struct {
	Document domain.Document
	Chunk    domain.Chunk
	Score    float64
}

type entry struct {
	doc     domain.Document
	content domain.Content
}

// RAGService indexes committed document content and answers questions from
// it. It is the content sink of the ingestion pipeline.
type RAGService struct {
	mu         sync.RWMutex
	chunker    domain.Chunker
	embedder   domain.Embedder
	store      domain.VectorStore
	summarizer domain.Summarizer
	opts       Options
	log        *zap.Logger

	order  []string
	docs   map[string]entry
	chunks []domain.Chunk
	// indexed is false while the vector store lags behind chunks
	indexed bool
}

func NewRAGService(chunker domain.Chunker, embedder domain.Embedder, store domain.VectorStore, summarizer domain.Summarizer, opts Options, log *zap.Logger) *RAGService {
	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	if opts.SummaryMaxSentences <= 0 {
		opts.SummaryMaxSentences = 3
	}
	if opts.Highlights <= 0 {
		opts.Highlights = 5
	}
	if opts.Topics <= 0 {
		opts.Topics = 8
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RAGService{
		chunker:    chunker,
		embedder:   embedder,
		store:      store,
		summarizer: summarizer,
		opts:       opts,
		log:        log.Named("rag"),
		docs:       map[string]entry{},
	}
}

// Put indexes the content of a committed document. When ctx ends before the
// vectors are rebuilt the content is still held and searched lexically.
func (s *RAGService) Put(ctx context.Context, doc domain.Document, content domain.Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; !ok {
		s.order = append(s.order, doc.ID)
	}
	s.docs[doc.ID] = entry{doc: doc, content: content}
	return s.reindex(ctx)
}

// Drop forgets a removed document. Index errors are logged only since the
// document is already gone from the workspace.
func (s *RAGService) Drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return
	}
	delete(s.docs, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if err := s.reindex(context.Background()); err != nil {
		s.log.Warn("reindex after drop failed", zap.String("document_id", id), zap.Error(err))
	}
}

// Len returns the number of indexed documents.
func (s *RAGService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// reindex rebuilds the vector store from every held document. The embedder
// vocabulary depends on the whole corpus, so partial updates are not possible.
func (s *RAGService) reindex(ctx context.Context) error {
	var (
		chunks []domain.Chunk
		texts  []string
	)
	for _, id := range s.order {
		e := s.docs[id]
		for i, page := range e.content.Pages {
			cs, err := s.chunker.Chunk(id, i+1, page)
			if err != nil {
				return fmt.Errorf("chunk %s: %w", e.doc.Name, err)
			}
			for _, ch := range cs {
				chunks = append(chunks, ch)
				texts = append(texts, ch.Text)
			}
		}
	}
	s.chunks = chunks
	s.indexed = false
	if err := s.store.Clear(); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	if err := s.embedder.Prepare(ctx, texts); err != nil {
		// lexical search still works over s.chunks
		s.log.Warn("embedder prepare failed", zap.Error(err))
		return nil
	}
	if err := s.store.Init(s.embedder.Dimension()); err != nil {
		return err
	}
	vectors := make([][]float64, len(chunks))
	for i := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		vec, err := s.embedder.Embed(ctx, chunks[i].Text)
		if err != nil {
			return err
		}
		vectors[i] = vec
	}
	if err := s.store.Upsert(chunks, vectors); err != nil {
		return err
	}
	s.indexed = true
	s.log.Debug("index rebuilt",
		zap.String("embedder", s.embedder.Name()),
		zap.Int("documents", len(s.order)),
		zap.Int("chunks", len(chunks)))
	return nil
}

// Retrieve returns the passages of the given documents most relevant to the
// question, best first. An empty id list yields nothing.
func (s *RAGService) Retrieve(ctx context.Context, question string, documentIDs []string) ([]Passage, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.chunks) == 0 {
		return nil, nil
	}
	res, err := s.vectorSearch(ctx, question, documentIDs)
	if err != nil {
		s.log.Warn("vector search failed, using lexical ranking", zap.Error(err))
		res = nil
	}
	if res == nil {
		res = s.lexicalSearch(question, documentIDs)
	}
	out := make([]Passage, 0, len(res))
	for _, r := range res {
		e, ok := s.docs[r.Chunk.DocumentID]
		if !ok {
			continue
		}
		out = append(out, Passage{Document: e.doc, Chunk: r.Chunk, Score: r.Score})
	}
	return out, nil
}

// vectorSearch returns nil when the vector ranking carries no signal.
func (s *RAGService) vectorSearch(ctx context.Context, question string, ids []string) ([]domain.SearchResult, error) {
	if !s.indexed {
		return nil, nil
	}
	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	// Detect zero vector (no tokens)
	zero := true
	for _, v := range vec {
		if v != 0 {
			zero = false
			break
		}
	}
	if zero {
		return nil, nil
	}
	res, err := s.store.Search(vec, s.opts.TopK, ids)
	if err != nil {
		return nil, err
	}
	for _, r := range res {
		if r.Score > 1e-9 {
			return res, nil
		}
	}
	return nil, nil
}

func (s *RAGService) lexicalSearch(question string, ids []string) []domain.SearchResult {
	allowed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		allowed[id] = struct{}{}
	}
	qset := textutil.TokenSet(question)
	var out []domain.SearchResult
	for _, ch := range s.chunks {
		if _, ok := allowed[ch.DocumentID]; !ok {
			continue
		}
		if score := textutil.Ochiai(qset, ch.Text); score > 0 {
			out = append(out, domain.SearchResult{Chunk: ch, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > s.opts.TopK {
		out = out[:s.opts.TopK]
	}
	return out
}

// Answer replies from the best matching sentences of the retrieved passages.
func (s *RAGService) Answer(ctx context.Context, req domain.AnswerRequest) (domain.AnswerResponse, error) {
	passages, err := s.Retrieve(ctx, req.Question, req.DocumentIDs)
	if err != nil {
		return domain.AnswerResponse{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.AnswerResponse{}, err
	}
	if len(passages) == 0 {
		return domain.AnswerResponse{Text: NoMatchMessage, Confidence: domain.ConfidenceLow}, nil
	}
	var b strings.Builder
	b.WriteString("Based on the selected documents:")
	citations := make([]domain.Citation, 0, len(passages))
	for _, p := range passages {
		sentence := BestSentence(p.Chunk.Text, req.Question)
		fmt.Fprintf(&b, "\n\n%s", sentence)
		citations = append(citations, CitationFor(p, sentence))
	}
	return domain.AnswerResponse{
		Text:       b.String(),
		Citations:  citations,
		Confidence: Grade(passages[0].Score),
	}, nil
}

// Insights ranks the highlights and topics of one indexed document.
func (s *RAGService) Insights(id string) (domain.Insights, error) {
	s.mu.RLock()
	e, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return domain.Insights{}, ErrUnknownDocument
	}
	text := e.content.Text()
	summary, err := s.summarizer.Summarize(text, s.opts.SummaryMaxSentences)
	if err != nil {
		return domain.Insights{}, err
	}
	ranked, err := s.summarizer.Highlights(text, s.opts.Highlights)
	if err != nil {
		return domain.Insights{}, err
	}
	out := domain.Insights{
		Document: e.doc,
		Summary:  summary,
		Topics:   s.summarizer.Topics(text, s.opts.Topics),
	}
	for _, h := range ranked {
		rel := 0.0
		if top := ranked[0].Score; top > 0 {
			rel = h.Score / top
		}
		out.Highlights = append(out.Highlights, domain.PageHighlight{
			Sentence:   h.Sentence,
			Page:       pageOf(e.content, h.Sentence),
			Confidence: relativeGrade(rel),
		})
	}
	return out, nil
}

// Grade maps a retrieval score to a confidence level.
func Grade(score float64) domain.Confidence {
	switch {
	case score >= 0.35:
		return domain.ConfidenceHigh
	case score >= 0.15:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

func relativeGrade(rel float64) domain.Confidence {
	switch {
	case rel >= 0.75:
		return domain.ConfidenceHigh
	case rel >= 0.4:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// CitationFor cites the sentence of a passage on its page.
func CitationFor(p Passage, sentence string) domain.Citation {
	return domain.Citation{
		Label:      textutil.Truncate(sentence, 80),
		SourceName: p.Document.Name,
		Page:       p.Chunk.Page,
	}
}

// BestSentence picks the sentence of text sharing most words with question.
func BestSentence(text, question string) string {
	sentences := chunker.Sentences(textutil.SentencePattern, text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}
	return sentences[textutil.BestSentence(sentences, question)]
}

func pageOf(c domain.Content, sentence string) int {
	for i, p := range c.Pages {
		if strings.Contains(p, sentence) {
			return i + 1
		}
	}
	return 0
}

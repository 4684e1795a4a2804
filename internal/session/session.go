// Package session is the composition root of a document workspace. All
// mutation of documents, selection, uploads and conversation goes through
// the Controller.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"deepnotes/internal/conversation"
	"deepnotes/internal/domain"
	"deepnotes/internal/ingest"
	"deepnotes/internal/selection"
	"deepnotes/internal/store"
)

const (
	StatusReady     = "Ready to analyze your documents"
	StatusAnalyzing = "Analyzing..."
)

var (
	ErrUnknownDocument     = errors.New("unknown document")
	ErrInsightsUnavailable = errors.New("insights need the local document index")
)

// InsightSource ranks highlights and topics of an indexed document.
type InsightSource interface {
	Insights(id string) (domain.Insights, error)
}

// Deps are the collaborators of a session.
type Deps struct {
	Extractor domain.Extractor
	Answerer  domain.Answerer
	// Sink receives committed content. Optional.
	Sink   domain.ContentSink
	Ingest ingest.Options
}

type Options struct {
	// AutoSelect selects documents as soon as they are committed.
	AutoSelect bool
}

type Controller struct {
	mu        sync.Mutex
	docs      *store.DocumentStore
	selection *selection.Model
	uploads   *ingest.Pipeline
	chat      *conversation.Engine
	sink      domain.ContentSink
	opts      Options
	log       *zap.Logger
	now       func() time.Time
}

func New(deps Deps, opts Options, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	sink := deps.Sink
	if sink == nil {
		sink = discard{}
	}
	docs := store.New()
	return &Controller{
		docs:      docs,
		selection: selection.New(docs),
		uploads:   ingest.New(docs, deps.Extractor, sink, deps.Ingest, log),
		chat:      conversation.New(deps.Answerer, log),
		sink:      sink,
		opts:      opts,
		log:       log.Named("session"),
		now:       time.Now,
	}
}

// UploadFiles ingests a batch of files as one job.
func (c *Controller) UploadFiles(ctx context.Context, blobs []domain.Blob) (ingest.Result, error) {
	res, err := c.uploads.UploadFiles(ctx, blobs)
	if err != nil {
		return res, err
	}
	c.afterUpload(res)
	return res, nil
}

// UploadLink ingests the document behind a link.
func (c *Controller) UploadLink(ctx context.Context, rawURL string) (ingest.Result, error) {
	res, err := c.uploads.UploadLink(ctx, rawURL)
	if err != nil {
		return res, err
	}
	c.afterUpload(res)
	return res, nil
}

func (c *Controller) afterUpload(res ingest.Result) {
	if !res.Succeeded() {
		c.log.Info("upload failed", zap.String("job_id", res.Job.ID), zap.Error(res.Err))
		return
	}
	if !c.opts.AutoSelect {
		return
	}
	ids := make([]string, len(res.Documents))
	for i, d := range res.Documents {
		ids[i] = d.ID
	}
	c.selection.Select(ids...)
}

// ObserveUploads registers fn for every upload job snapshot.
func (c *Controller) ObserveUploads(fn ingest.Observer) { c.uploads.Observe(fn) }

func (c *Controller) ToggleDocument(id string) { c.selection.Toggle(id) }
func (c *Controller) ToggleAll() { c.selection.ToggleAll() }
func (c *Controller) SelectAll() { c.selection.SelectAll() }
func (c *Controller) ClearSelection() { c.selection.Clear() }

// Ask submits a question against the selection at call time and waits.
func (c *Controller) Ask(ctx context.Context, question string) (conversation.Outcome, error) {
	return c.chat.Submit(ctx, question, c.selection.Selected())
}

// BeginAsk appends the question and returns the exchange to resolve.
func (c *Controller) BeginAsk(question string) (*conversation.Exchange, error) {
	return c.chat.Begin(question, c.selection.Selected())
}

// RemoveDocument deletes a document, its selection and its indexed content.
// Past citations are left as they were.
func (c *Controller) RemoveDocument(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.docs.Has(id) {
		return
	}
	c.docs.Remove(id)
	c.selection.Purge(id)
	c.sink.Drop(id)
	c.log.Info("document removed", zap.String("document_id", id))
}

func (c *Controller) Documents() []domain.Document { return c.docs.List() }

func (c *Controller) Document(id string) (domain.Document, bool) { return c.docs.Get(id) }

func (c *Controller) Selected() []string { return c.selection.Selected() }

func (c *Controller) IsSelected(id string) bool { return c.selection.IsSelected(id) }

func (c *Controller) History() []domain.Turn { return c.chat.History() }

func (c *Controller) Upload() domain.UploadJob { return c.uploads.Job() }

func (c *Controller) InFlight() bool { return c.chat.InFlight() }

func (c *Controller) ConversationState() conversation.State { return c.chat.State() }

// Status is the header line of the workspace.
func (c *Controller) Status() string {
	if c.chat.InFlight() {
		return StatusAnalyzing
	}
	return StatusReady
}

// Insights returns highlights and topics of a document when the content
// sink keeps an index.
func (c *Controller) Insights(id string) (domain.Insights, error) {
	if !c.docs.Has(id) {
		return domain.Insights{}, ErrUnknownDocument
	}
	src, ok := c.sink.(InsightSource)
	if !ok {
		return domain.Insights{}, ErrInsightsUnavailable
	}
	return src.Insights(id)
}

type discard struct{}

func (discard) Put(context.Context, domain.Document, domain.Content) error { return nil }
func (discard) Drop(string) {}

package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"deepnotes/internal/domain"
)

// ProgressCap is the highest progress reported while extraction is outstanding.
const ProgressCap = 90

var (
	ErrUploadInProgress = errors.New("an upload is already running")
	ErrNoFiles          = errors.New("no files to upload")
	ErrFileTooLarge     = errors.New("file exceeds the upload size limit")
)

// Committer commits a batch of documents atomically.
type Committer interface {
	AddBatch(docs []domain.Document) []domain.Document
}

// Options tunes the progress ticker and upload guardrails.
type Options struct {
	TickInterval time.Duration
	Step         int
	// Hold keeps a finished job visible before it is cleared.
	Hold         time.Duration
	MaxFileBytes int64
}

// Observer receives every job snapshot in order.
type Observer func(domain.UploadJob)

// Result is the terminal outcome of an upload. Failures are reported in Err.
type Result struct {
	Job       domain.UploadJob
	Documents []domain.Document
	Err       error
}

func (r Result) Succeeded() bool { return r.Job.Status == domain.UploadSucceeded }

type pending struct {
	doc     domain.Document
	content domain.Content
}

// Pipeline turns uploads into committed documents, one job at a time.
type Pipeline struct {
	mu        sync.Mutex
	emitMu    sync.Mutex
	store     Committer
	extractor domain.Extractor
	sink      domain.ContentSink
	opts      Options
	log       *zap.Logger
	job       domain.UploadJob
	observers []Observer
}

func New(store Committer, extractor domain.Extractor, sink domain.ContentSink, opts Options, log *zap.Logger) *Pipeline {
	if opts.TickInterval <= 0 {
		opts.TickInterval = 200 * time.Millisecond
	}
	if opts.Step <= 0 {
		opts.Step = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		store:     store,
		extractor: extractor,
		sink:      sink,
		opts:      opts,
		log:       log.Named("ingest"),
		job:       domain.UploadJob{Status: domain.UploadIdle},
	}
}

// Observe registers fn for job snapshots. Observers must not block for long.
func (p *Pipeline) Observe(fn Observer) {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()
	p.observers = append(p.observers, fn)
}

// Job returns the current job snapshot.
func (p *Pipeline) Job() domain.UploadJob {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.job
}

// UploadFiles ingests blobs as one all-or-nothing batch. The error is non-nil
// only when another upload is running; every other failure is in the Result.
func (p *Pipeline) UploadFiles(ctx context.Context, blobs []domain.Blob) (Result, error) {
	jobID, err := p.begin()
	if err != nil {
		return Result{}, err
	}
	p.log.Info("upload started", zap.String("job", jobID), zap.Int("files", len(blobs)))
	return p.run(ctx, jobID, func(ctx context.Context) ([]pending, error) {
		if len(blobs) == 0 {
			return nil, ErrNoFiles
		}
		out := make([]pending, 0, len(blobs))
		for _, b := range blobs {
			size := int64(len(b.Data))
			if p.opts.MaxFileBytes > 0 && size > p.opts.MaxFileBytes {
				return nil, fmt.Errorf("%s: %w", b.Name, ErrFileTooLarge)
			}
			content, err := p.extractor.ExtractFile(ctx, b)
			if err != nil {
				return nil, fmt.Errorf("extract %s: %w", b.Name, err)
			}
			out = append(out, pending{
				doc:     domain.Document{Name: b.Name, Kind: InferKind(b.Name), SizeBytes: size},
				content: content,
			})
		}
		return out, nil
	}), nil
}

// UploadLink ingests a single link. Link documents are always reported as
// PDFs of unknown size.
func (p *Pipeline) UploadLink(ctx context.Context, rawURL string) (Result, error) {
	jobID, err := p.begin()
	if err != nil {
		return Result{}, err
	}
	p.log.Info("link upload started", zap.String("job", jobID), zap.String("url", rawURL))
	return p.run(ctx, jobID, func(ctx context.Context) ([]pending, error) {
		name, err := LinkName(rawURL)
		if err != nil {
			return nil, err
		}
		content, err := p.extractor.ExtractLink(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
		}
		return []pending{{
			doc:     domain.Document{Name: name, Kind: domain.KindPDF},
			content: content,
		}}, nil
	}), nil
}

func (p *Pipeline) begin() (string, error) {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()
	p.mu.Lock()
	if p.job.Status == domain.UploadRunning {
		p.mu.Unlock()
		return "", ErrUploadInProgress
	}
	p.job = domain.UploadJob{ID: uuid.NewString(), Status: domain.UploadRunning}
	snap := p.job
	p.mu.Unlock()
	p.emit(snap)
	return snap.ID, nil
}

func (p *Pipeline) run(ctx context.Context, jobID string, work func(context.Context) ([]pending, error)) Result {
	type outcome struct {
		items []pending
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		items, err := work(ctx)
		done <- outcome{items, err}
	}()

	ticker := time.NewTicker(p.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.advance(jobID)
		case <-ctx.Done():
			return p.fail(jobID, ctx.Err())
		case o := <-done:
			if o.err != nil {
				return p.fail(jobID, o.err)
			}
			return p.commit(ctx, jobID, o.items)
		}
	}
}

func (p *Pipeline) advance(jobID string) {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()
	p.mu.Lock()
	if p.job.ID != jobID || p.job.Status != domain.UploadRunning || p.job.Progress >= ProgressCap {
		p.mu.Unlock()
		return
	}
	p.job.Progress = min(p.job.Progress+p.opts.Step, ProgressCap)
	snap := p.job
	p.mu.Unlock()
	p.emit(snap)
}

func (p *Pipeline) commit(ctx context.Context, jobID string, items []pending) Result {
	p.emitMu.Lock()
	p.mu.Lock()
	// cancellation observed before the batch lands wins
	if err := ctx.Err(); err != nil {
		p.mu.Unlock()
		p.emitMu.Unlock()
		return p.fail(jobID, err)
	}
	docs := make([]domain.Document, len(items))
	for i, it := range items {
		docs[i] = it.doc
	}
	committed := p.store.AddBatch(docs)
	p.mu.Unlock()
	p.emitMu.Unlock()

	// Job reports the running snapshot while indexing, so begin keeps rejecting
	if p.sink != nil {
		for i, d := range committed {
			if err := p.sink.Put(ctx, d, items[i].content); err != nil {
				p.log.Warn("content not indexed", zap.String("document", d.ID), zap.Error(err))
			}
		}
	}
	p.emitMu.Lock()
	p.mu.Lock()
	p.job = domain.UploadJob{ID: jobID, Progress: 100, Status: domain.UploadSucceeded}
	snap := p.job
	p.mu.Unlock()
	p.emit(snap)
	p.emitMu.Unlock()

	p.log.Info("upload committed", zap.String("job", jobID), zap.Int("documents", len(committed)))
	if p.opts.Hold <= 0 {
		p.clear(jobID)
	} else {
		time.AfterFunc(p.opts.Hold, func() { p.clear(jobID) })
	}
	return Result{Job: snap, Documents: committed}
}

func (p *Pipeline) fail(jobID string, err error) Result {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()
	p.mu.Lock()
	p.job = domain.UploadJob{ID: jobID, Status: domain.UploadFailed, Err: err}
	snap := p.job
	p.mu.Unlock()
	p.emit(snap)
	p.log.Warn("upload failed", zap.String("job", jobID), zap.Error(err))
	return Result{Job: snap, Err: err}
}

// clear hides a succeeded job once its hold period ends, unless a newer job
// has replaced it.
func (p *Pipeline) clear(jobID string) {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()
	p.mu.Lock()
	if p.job.ID != jobID || p.job.Status != domain.UploadSucceeded {
		p.mu.Unlock()
		return
	}
	p.job = domain.UploadJob{Status: domain.UploadIdle}
	snap := p.job
	p.mu.Unlock()
	p.emit(snap)
}

// emit must be called with emitMu held.
func (p *Pipeline) emit(job domain.UploadJob) {
	for _, fn := range p.observers {
		fn(job)
	}
}

package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"deepnotes/internal/domain"
	"deepnotes/internal/store"
)

type fakeExtractor struct {
	release chan struct{}
	err     error
	links   []string
}

func (f *fakeExtractor) wait(ctx context.Context) error {
	if f.release == nil {
		return nil
	}
	select {
	case <-f.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeExtractor) ExtractFile(ctx context.Context, blob domain.Blob) (domain.Content, error) {
	if err := f.wait(ctx); err != nil {
		return domain.Content{}, err
	}
	if f.err != nil {
		return domain.Content{}, f.err
	}
	return domain.Content{Title: blob.Name, Pages: []string{string(blob.Data)}}, nil
}

func (f *fakeExtractor) ExtractLink(ctx context.Context, rawURL string) (domain.Content, error) {
	if err := f.wait(ctx); err != nil {
		return domain.Content{}, err
	}
	if f.err != nil {
		return domain.Content{}, f.err
	}
	f.links = append(f.links, rawURL)
	return domain.Content{Pages: []string{"linked text"}}, nil
}

type recordingSink struct {
	mu  sync.Mutex
	put map[string]domain.Content
}

func (s *recordingSink) Put(_ context.Context, doc domain.Document, content domain.Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.put == nil {
		s.put = map[string]domain.Content{}
	}
	s.put[doc.ID] = content
	return nil
}

func (s *recordingSink) Drop(id string) {}

type recorder struct {
	mu   sync.Mutex
	jobs []domain.UploadJob
}

func (r *recorder) observe(j domain.UploadJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, j)
}

func (r *recorder) snapshot() []domain.UploadJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.UploadJob(nil), r.jobs...)
}

func newPipeline(t *testing.T, ex domain.Extractor, opts Options) (*Pipeline, *store.DocumentStore, *recorder, *recordingSink) {
	t.Helper()
	st := store.New()
	sink := &recordingSink{}
	p := New(st, ex, sink, opts, zaptest.NewLogger(t))
	rec := &recorder{}
	p.Observe(rec.observe)
	return p, st, rec, sink
}

func TestUploadFilesInfersKinds(t *testing.T) {
	p, st, _, sink := newPipeline(t, &fakeExtractor{}, Options{TickInterval: time.Millisecond})

	res, err := p.UploadFiles(context.Background(), []domain.Blob{
		{Name: "report.pdf", Data: []byte("pdf")},
		{Name: "notes.docx", Data: []byte("docx!")},
		{Name: "memo.txt", Data: nil},
	})
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	require.NoError(t, res.Err)

	docs := st.List()
	require.Len(t, docs, 3)
	assert.Equal(t, domain.KindPDF, docs[0].Kind)
	assert.Equal(t, domain.KindWordDocument, docs[1].Kind)
	assert.Equal(t, domain.KindEmail, docs[2].Kind)
	assert.EqualValues(t, 3, docs[0].SizeBytes)
	assert.EqualValues(t, 5, docs[1].SizeBytes)
	assert.EqualValues(t, 0, docs[2].SizeBytes)
	assert.Equal(t, res.Documents, docs)
	assert.Len(t, sink.put, 3)
}

func TestProgressIsMonotonicAndEndsAtHundred(t *testing.T) {
	ex := &fakeExtractor{release: make(chan struct{})}
	p, st, rec, _ := newPipeline(t, ex, Options{TickInterval: time.Millisecond, Step: 7})

	go func() {
		// let the ticker hit the cap before completing
		assert.Eventually(t, func() bool { return p.Job().Progress == ProgressCap }, time.Second, time.Millisecond)
		close(ex.release)
	}()
	res, err := p.UploadFiles(context.Background(), []domain.Blob{{Name: "report.pdf", Data: []byte("x")}})
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	assert.Equal(t, 100, res.Job.Progress)
	assert.Equal(t, 1, st.Len())

	jobs := rec.snapshot()
	require.NotEmpty(t, jobs)
	last := -1
	sawTerminal := false
	for _, j := range jobs {
		switch j.Status {
		case domain.UploadRunning:
			assert.False(t, sawTerminal)
			assert.GreaterOrEqual(t, j.Progress, last)
			assert.LessOrEqual(t, j.Progress, ProgressCap)
			last = j.Progress
		case domain.UploadSucceeded:
			assert.Equal(t, 100, j.Progress)
			sawTerminal = true
		case domain.UploadIdle:
			// hold of zero clears inline
			assert.True(t, sawTerminal)
			assert.Equal(t, 0, j.Progress)
		}
	}
	assert.True(t, sawTerminal)
	assert.Equal(t, domain.UploadIdle, jobs[len(jobs)-1].Status)
	assert.False(t, p.Job().Active())
}

func TestFailedUploadCommitsNothing(t *testing.T) {
	boom := errors.New("backend unavailable")
	p, st, rec, sink := newPipeline(t, &fakeExtractor{err: boom}, Options{TickInterval: time.Millisecond})

	res, err := p.UploadFiles(context.Background(), []domain.Blob{
		{Name: "a.pdf", Data: []byte("a")},
		{Name: "b.pdf", Data: []byte("b")},
	})
	require.NoError(t, err)
	assert.False(t, res.Succeeded())
	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, domain.UploadFailed, res.Job.Status)
	assert.Equal(t, 0, res.Job.Progress)
	assert.Equal(t, 0, st.Len())
	assert.Empty(t, sink.put)

	jobs := rec.snapshot()
	assert.Equal(t, domain.UploadFailed, jobs[len(jobs)-1].Status)
	assert.Equal(t, 0, jobs[len(jobs)-1].Progress)
}

func TestEmptyBatchFails(t *testing.T) {
	p, st, _, _ := newPipeline(t, &fakeExtractor{}, Options{})
	res, err := p.UploadFiles(context.Background(), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, ErrNoFiles)
	assert.Equal(t, 0, st.Len())
}

func TestOversizeFileFailsWholeBatch(t *testing.T) {
	p, st, _, _ := newPipeline(t, &fakeExtractor{}, Options{MaxFileBytes: 4})
	res, err := p.UploadFiles(context.Background(), []domain.Blob{
		{Name: "small.pdf", Data: []byte("ok")},
		{Name: "big.pdf", Data: []byte("too large")},
	})
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, ErrFileTooLarge)
	assert.Equal(t, 0, st.Len())
}

func TestSecondUploadIsRejectedWhileRunning(t *testing.T) {
	ex := &fakeExtractor{release: make(chan struct{})}
	p, st, _, _ := newPipeline(t, ex, Options{TickInterval: time.Millisecond})

	done := make(chan Result)
	go func() {
		res, _ := p.UploadFiles(context.Background(), []domain.Blob{{Name: "a.pdf"}})
		done <- res
	}()
	require.Eventually(t, func() bool { return p.Job().Status == domain.UploadRunning }, time.Second, time.Millisecond)

	_, err := p.UploadLink(context.Background(), "https://example.com/b.pdf")
	assert.ErrorIs(t, err, ErrUploadInProgress)

	close(ex.release)
	res := <-done
	assert.True(t, res.Succeeded())
	assert.Equal(t, 1, st.Len())
}

// slowSink holds Put until release is closed.
type slowSink struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *slowSink) Put(ctx context.Context, _ domain.Document, _ domain.Content) error {
	s.once.Do(func() { close(s.entered) })
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *slowSink) Drop(string) {}

func TestSecondUploadIsRejectedWhileIndexing(t *testing.T) {
	st := store.New()
	sink := &slowSink{entered: make(chan struct{}), release: make(chan struct{})}
	p := New(st, &fakeExtractor{}, sink, Options{TickInterval: time.Millisecond}, zaptest.NewLogger(t))

	done := make(chan Result, 1)
	go func() {
		res, _ := p.UploadFiles(context.Background(), []domain.Blob{{Name: "a.pdf"}})
		done <- res
	}()
	select {
	case <-sink.entered:
	case <-time.After(time.Second):
		t.Fatal("indexing did not start")
	}
	assert.Equal(t, domain.UploadRunning, p.Job().Status)

	second := make(chan error, 1)
	go func() {
		_, err := p.UploadLink(context.Background(), "https://example.com/b.pdf")
		second <- err
	}()
	select {
	case err := <-second:
		assert.ErrorIs(t, err, ErrUploadInProgress)
	case <-time.After(time.Second):
		t.Fatal("second upload waited for indexing instead of being rejected")
	}

	observed := make(chan struct{})
	go func() {
		p.Observe(func(domain.UploadJob) {})
		close(observed)
	}()
	select {
	case <-observed:
	case <-time.After(time.Second):
		t.Fatal("Observe blocked while indexing")
	}

	close(sink.release)
	res := <-done
	assert.True(t, res.Succeeded())
	assert.Equal(t, 1, st.Len())
}

func TestCancelledUploadCommitsNothing(t *testing.T) {
	ex := &fakeExtractor{release: make(chan struct{})}
	p, st, _, _ := newPipeline(t, ex, Options{TickInterval: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		assert.Eventually(t, func() bool { return p.Job().Progress > 0 }, time.Second, time.Millisecond)
		cancel()
	}()
	res, err := p.UploadFiles(ctx, []domain.Blob{{Name: "a.pdf"}})
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, domain.UploadFailed, p.Job().Status)

	close(ex.release)
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 0, st.Len())
}

func TestUploadLinkUsesLastSegment(t *testing.T) {
	ex := &fakeExtractor{}
	p, st, _, _ := newPipeline(t, ex, Options{})

	res, err := p.UploadLink(context.Background(), "https://example.com/papers/annual-report.html")
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	doc := st.List()[0]
	assert.Equal(t, "annual-report.html", doc.Name)
	assert.Equal(t, domain.KindPDF, doc.Kind)
	assert.EqualValues(t, 0, doc.SizeBytes)
	assert.Equal(t, []string{"https://example.com/papers/annual-report.html"}, ex.links)
}

func TestUploadInvalidLinkFails(t *testing.T) {
	p, st, _, _ := newPipeline(t, &fakeExtractor{}, Options{})
	res, err := p.UploadLink(context.Background(), "not a link")
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, ErrInvalidLink)
	assert.Equal(t, 0, st.Len())
}

func TestHoldKeepsSucceededJobVisible(t *testing.T) {
	p, _, rec, _ := newPipeline(t, &fakeExtractor{}, Options{Hold: 20 * time.Millisecond})
	res, err := p.UploadFiles(context.Background(), []domain.Blob{{Name: "a.pdf"}})
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	assert.Equal(t, domain.UploadSucceeded, p.Job().Status)
	require.Eventually(t, func() bool { return p.Job().Status == domain.UploadIdle }, time.Second, time.Millisecond)
	jobs := rec.snapshot()
	assert.Equal(t, 0, jobs[len(jobs)-1].Progress)
}

package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aluiziolira/go-flickfinder/flickr"
	"github.com/aluiziolira/go-flickfinder/models"
)

type mockWriter struct {
	mu       sync.Mutex
	results  []*models.Result
	writeErr error
	written  chan struct{}
}

func newMockWriter() *mockWriter {
	return &mockWriter{written: make(chan struct{}, 16)}
}

func (mw *mockWriter) Write(results []*models.Result) error {
	mw.mu.Lock()
	defer func() {
		mw.mu.Unlock()
		mw.written <- struct{}{}
	}()
	if mw.writeErr != nil {
		return mw.writeErr
	}
	mw.results = append(mw.results, results...)
	return nil
}

func (mw *mockWriter) Close() error    { return nil }
func (mw *mockWriter) Validate() error { return nil }

func (mw *mockWriter) all() []*models.Result {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	out := make([]*models.Result, len(mw.results))
	copy(out, mw.results)
	return out
}

func (mw *mockWriter) waitWrite(t *testing.T) {
	t.Helper()
	select {
	case <-mw.written:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a displayed result")
	}
}

type mockRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *mockRecorder) IncOperation(operation, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	r.counts[operation+"/"+outcome]++
}

func newTestPipeline(t *testing.T, writer OutputWriter, opts Options) *Pipeline {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	p, err := NewPipeline(writer, opts)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

func photoOp(title, imageURL string) Op {
	return func(ctx context.Context) (*models.Result, error) {
		return &models.Result{Photo: &models.Photo{Title: title, ImageURL: imageURL, FetchedAt: time.Now()}}, nil
	}
}

func TestPipelineDisplaysResult(t *testing.T) {
	writer := newMockWriter()
	recorder := &mockRecorder{}
	p := newTestPipeline(t, writer, Options{Metrics: recorder})

	id, err := p.Submit(context.Background(), "phrase", photoOp("Bridge", "https://img.test/1.jpg"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	results := writer.all()
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	got := results[0]
	if got.OperationID != id || got.Operation != "phrase" || got.Status != StatusOK {
		t.Fatalf("unexpected result %+v", got)
	}
	if got.CompletedAt.IsZero() {
		t.Fatalf("completed_at not set")
	}

	surface := p.Surface()
	if !surface.UIEnabled || surface.Photo == nil || surface.Photo.Title != "Bridge" || surface.Message != "" {
		t.Fatalf("unexpected surface %+v", surface)
	}
	if recorder.counts["phrase/ok"] != 1 {
		t.Fatalf("recorded operations %v", recorder.counts)
	}
}

func TestPipelineSupersedesInFlight(t *testing.T) {
	writer := newMockWriter()
	p := newTestPipeline(t, writer, Options{})

	started := make(chan struct{})
	cancelled := make(chan error, 1)
	slow := func(ctx context.Context) (*models.Result, error) {
		close(started)
		<-ctx.Done()
		cancelled <- ctx.Err()
		return &models.Result{Photo: &models.Photo{Title: "stale", ImageURL: "https://img.test/stale.jpg"}}, nil
	}

	if _, err := p.Submit(context.Background(), "phrase", slow); err != nil {
		t.Fatalf("submit slow: %v", err)
	}
	<-started

	if _, err := p.Submit(context.Background(), "gallery", photoOp("fresh", "https://img.test/fresh.jpg")); err != nil {
		t.Fatalf("submit fresh: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := <-cancelled; !errors.Is(err, context.Canceled) {
		t.Fatalf("in-flight op ctx err = %v, want context.Canceled", err)
	}
	results := writer.all()
	if len(results) != 1 || results[0].Photo.Title != "fresh" {
		t.Fatalf("results = %+v, want only the fresh photo", results)
	}
	if p.Surface().Photo.Title != "fresh" {
		t.Fatalf("surface shows %q", p.Surface().Photo.Title)
	}
	if dropped := p.GetMetrics()["dropped"].(int64); dropped != 1 {
		t.Fatalf("dropped = %d, want 1", dropped)
	}
}

func TestPipelineDisablesSurfaceWhileRunning(t *testing.T) {
	writer := newMockWriter()
	p := newTestPipeline(t, writer, Options{})

	release := make(chan struct{})
	if _, err := p.Submit(context.Background(), "login", func(ctx context.Context) (*models.Result, error) {
		<-release
		return &models.Result{Session: &models.Session{SessionID: "xyz", UserID: 42}}, nil
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for p.Surface().UIEnabled {
		if time.Now().After(deadline) {
			t.Fatalf("surface never disabled")
		}
		time.Sleep(5 * time.Millisecond)
	}

	close(release)
	writer.waitWrite(t)
	surface := p.Surface()
	if !surface.UIEnabled || surface.Session == nil || surface.Session.UserID != 42 {
		t.Fatalf("unexpected surface %+v", surface)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestPipelineErrorReEnablesSurface(t *testing.T) {
	writer := newMockWriter()
	p := newTestPipeline(t, writer, Options{})

	if _, err := p.Submit(context.Background(), "phrase", func(ctx context.Context) (*models.Result, error) {
		return nil, flickr.ErrEmptyPhrase
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	results := writer.all()
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	got := results[0]
	if got.Status != StatusError || got.Message != "Phrase Empty." || got.ErrorType != "invalid_input" {
		t.Fatalf("unexpected result %+v", got)
	}
	surface := p.Surface()
	if !surface.UIEnabled || surface.Message != "Phrase Empty." {
		t.Fatalf("unexpected surface %+v", surface)
	}
	outcomes := p.GetMetrics()["outcomes"].(map[string]int)
	if outcomes[StatusError] != 1 {
		t.Fatalf("outcomes = %v", outcomes)
	}
}

func TestPipelineFlagsRepeatsAndKeepsHistory(t *testing.T) {
	writer := newMockWriter()
	p := newTestPipeline(t, writer, Options{RecentSize: 2})

	submit := func(title, imageURL string) {
		t.Helper()
		if _, err := p.Submit(context.Background(), "gallery", photoOp(title, imageURL)); err != nil {
			t.Fatalf("submit: %v", err)
		}
		writer.waitWrite(t)
	}

	submit("a", "https://img.test/a.jpg")
	submit("b", "https://img.test/b.jpg")
	submit("a again", "https://img.test/a.jpg")
	submit("c", "https://img.test/c.jpg")
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	results := writer.all()
	wantRepeat := []bool{false, false, true, false}
	for i, want := range wantRepeat {
		if results[i].Repeat != want {
			t.Fatalf("result %d repeat = %v, want %v", i, results[i].Repeat, want)
		}
	}

	recent := p.Recent()
	if len(recent) != 2 || recent[0].Title != "a again" || recent[1].Title != "c" {
		t.Fatalf("recent = %+v, want [a again, c]", recent)
	}
	if repeats := p.GetMetrics()["repeats"].(int64); repeats != 1 {
		t.Fatalf("repeats = %d, want 1", repeats)
	}
}

func TestPipelineSubmitAfterClose(t *testing.T) {
	p := newTestPipeline(t, nil, Options{})
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := p.Submit(context.Background(), "phrase", photoOp("x", "https://img.test/x.jpg")); !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("expected ErrPipelineClosed, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestPipelineWriterErrorStopsSubmissions(t *testing.T) {
	writer := newMockWriter()
	writer.writeErr = errors.New("disk full")
	p := newTestPipeline(t, writer, Options{})

	if _, err := p.Submit(context.Background(), "gallery", photoOp("x", "https://img.test/x.jpg")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	writer.waitWrite(t)

	deadline := time.Now().Add(2 * time.Second)
	for p.Err() == nil {
		if time.Now().After(deadline) {
			t.Fatalf("writer error never recorded")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := p.Submit(context.Background(), "gallery", photoOp("y", "https://img.test/y.jpg")); err == nil {
		t.Fatalf("expected submit to fail after writer error")
	}
	if err := p.Close(); err == nil {
		t.Fatalf("expected close to report the writer error")
	}
}

func TestPipelineCloseTimeout(t *testing.T) {
	block := make(chan struct{})
	writer := newMockWriter()
	p := newTestPipeline(t, writer, Options{})

	if _, err := p.Submit(context.Background(), "phrase", func(ctx context.Context) (*models.Result, error) {
		<-block
		return &models.Result{Photo: &models.Photo{Title: "late", ImageURL: "https://img.test/late.jpg"}}, nil
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	previousTimeout := drainTimeout
	drainTimeout = 25 * time.Millisecond
	t.Cleanup(func() { drainTimeout = previousTimeout })

	if err := p.Close(); !errors.Is(err, ErrPipelineCloseTimeout) {
		t.Fatalf("expected close timeout error, got %v", err)
	}

	// The late outcome must not reach the writer, and the worker must exit.
	close(block)
	select {
	case <-p.workerDone:
	case <-time.After(2 * time.Second):
		t.Fatalf("display worker still running after the late operation returned")
	}
	if got := len(writer.all()); got != 0 {
		t.Fatalf("writes after close timeout = %d, want 0", got)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

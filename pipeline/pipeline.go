// Package pipeline runs one user action at a time and delivers its outcome to a
// single display worker, which owns the on-screen state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-flickfinder/models"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	// ErrPipelineClosed is returned when Submit is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
	// ErrPipelineCloseTimeout is returned when in-flight work outlives the drain timeout.
	ErrPipelineCloseTimeout = errors.New("pipeline: close timed out waiting for in-flight work")
)

// drainTimeout bounds how long Close waits for a cancelled operation to return.
var drainTimeout = 30 * time.Second

// OutputWriter defines the interface for result output.
type OutputWriter interface {
	Write(results []*models.Result) error
	Close() error
	Validate() error
}

// OperationRecorder counts finished actions; *fetcher.Metrics implements it.
type OperationRecorder interface {
	IncOperation(operation, outcome string)
}

// Op is one user action. It must return promptly once ctx is cancelled.
type Op func(ctx context.Context) (*models.Result, error)

// Surface is the display state: whether input is enabled and what is shown.
type Surface struct {
	UIEnabled   bool
	OperationID string
	Operation   string
	Photo       *models.Photo
	Session     *models.Session
	Message     string
}

type eventKind int

const (
	eventStarted eventKind = iota
	eventFinished
)

type event struct {
	kind      eventKind
	gen       uint64
	id        string
	operation string
	result    *models.Result
	err       error
}

// Options tunes a pipeline. Zero values fall back to defaults.
type Options struct {
	RecentSize int
	Metrics    OperationRecorder
	Logger     *slog.Logger
}

// Pipeline serialises user actions. Submitting a new action cancels the one in
// flight, and outcomes of superseded actions never reach the display.
type Pipeline struct {
	writer   OutputWriter
	logger   *slog.Logger
	recorder OperationRecorder
	recent   *lru.Cache[string, models.Photo]
	newID    func() string
	now      func() time.Time

	events     chan event
	workerDone chan struct{}
	ops        sync.WaitGroup

	gen atomic.Uint64

	mu     sync.Mutex // guards closed/cancel
	closed bool
	cancel context.CancelFunc

	errMu sync.Mutex
	err   error

	// writeMu guards detached; once detached the writer belongs to the caller.
	writeMu  sync.Mutex
	detached bool

	surfaceMu sync.RWMutex
	surface   Surface

	metrics metrics
}

// NewPipeline starts the display worker. writer may be nil.
func NewPipeline(writer OutputWriter, opts Options) (*Pipeline, error) {
	if opts.RecentSize <= 0 {
		opts.RecentSize = 32
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	recent, err := lru.New[string, models.Photo](opts.RecentSize)
	if err != nil {
		return nil, fmt.Errorf("create recent history: %w", err)
	}

	p := &Pipeline{
		writer:     writer,
		logger:     opts.Logger.With(slog.String("component", "pipeline")),
		recorder:   opts.Metrics,
		recent:     recent,
		newID:      uuid.NewString,
		now:        time.Now,
		events:     make(chan event, 64),
		workerDone: make(chan struct{}),
		surface:    Surface{UIEnabled: true},
		metrics:    newMetrics(),
	}
	go p.worker()
	return p, nil
}

// Submit starts op under name, cancelling any action still in flight, and
// returns the operation id used in logs and output rows.
func (p *Pipeline) Submit(parent context.Context, name string, op Op) (string, error) {
	if parent == nil {
		parent = context.Background()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", ErrPipelineClosed
	}
	if err := p.Err(); err != nil {
		return "", err
	}

	// Bump the generation before cancelling so the superseded outcome is
	// already stale when it reaches the worker.
	gen := p.gen.Add(1)
	if p.cancel != nil {
		p.cancel()
		p.metrics.incrementSuperseded()
	}
	ctx, cancel := context.WithCancel(parent)
	p.cancel = cancel

	id := p.newID()
	p.metrics.incrementSubmitted()
	p.logger.Debug("operation submitted",
		slog.String("operation", name),
		slog.String("operation_id", id),
	)

	// Sent under mu so that Close cannot close the channel in between.
	p.events <- event{kind: eventStarted, gen: gen, id: id, operation: name}

	p.ops.Add(1)
	go func() {
		defer p.ops.Done()
		defer cancel()
		result, err := op(ctx)
		p.events <- event{kind: eventFinished, gen: gen, id: id, operation: name, result: result, err: err}
	}()
	return id, nil
}

// Cancel aborts the action in flight, if any. Its outcome is still displayed.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

// Close waits for the action in flight and the display worker to finish and
// prevents more submissions. On ErrPipelineCloseTimeout the writer is detached
// and late outcomes are no longer written.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return p.Err()
	}
	p.closed = true
	p.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		p.ops.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(drainTimeout):
		p.writeMu.Lock()
		p.detached = true
		p.writeMu.Unlock()
		p.Cancel()
		go func() {
			<-drained
			close(p.events)
		}()
		return ErrPipelineCloseTimeout
	}

	close(p.events)
	<-p.workerDone
	return p.Err()
}

// Err returns the first output error encountered by the display worker.
func (p *Pipeline) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

// Surface returns a copy of the current display state.
func (p *Pipeline) Surface() Surface {
	p.surfaceMu.RLock()
	defer p.surfaceMu.RUnlock()
	return p.surface
}

// Recent returns the displayed photos, least recently shown first.
func (p *Pipeline) Recent() []models.Photo {
	keys := p.recent.Keys()
	out := make([]models.Photo, 0, len(keys))
	for _, key := range keys {
		if photo, ok := p.recent.Peek(key); ok {
			out = append(out, photo)
		}
	}
	return out
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

func (p *Pipeline) worker() {
	defer close(p.workerDone)

	for ev := range p.events {
		if ev.gen != p.gen.Load() {
			if ev.kind == eventFinished {
				p.metrics.incrementDropped()
				p.logger.Debug("dropping superseded outcome",
					slog.String("operation", ev.operation),
					slog.String("operation_id", ev.id),
				)
			}
			continue
		}

		switch ev.kind {
		case eventStarted:
			p.surfaceMu.Lock()
			p.surface.UIEnabled = false
			p.surface.OperationID = ev.id
			p.surface.Operation = ev.operation
			p.surface.Message = ""
			p.surfaceMu.Unlock()
		case eventFinished:
			p.display(ev)
		}
	}
}

// display turns one outcome into a result row and the new surface state.
func (p *Pipeline) display(ev event) {
	result := p.resultFor(ev)

	p.surfaceMu.Lock()
	p.surface.UIEnabled = true
	p.surface.Message = result.Message
	if result.Photo != nil {
		p.surface.Photo = result.Photo
	}
	if result.Session != nil {
		p.surface.Session = result.Session
	}
	p.surfaceMu.Unlock()

	p.metrics.addOutcome(result.Status, result.ErrorType)
	if p.recorder != nil {
		p.recorder.IncOperation(ev.operation, result.Status)
	}

	if result.Status == StatusError {
		p.logger.Warn("operation failed",
			slog.String("operation", ev.operation),
			slog.String("operation_id", ev.id),
			slog.String("error_type", result.ErrorType),
			slog.Any("error", ev.err),
		)
	} else {
		p.logger.Info("operation completed",
			slog.String("operation", ev.operation),
			slog.String("operation_id", ev.id),
		)
	}

	if p.writer == nil {
		return
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if p.detached {
		p.logger.Debug("writer detached, result not written",
			slog.String("operation_id", ev.id),
		)
		return
	}
	if err := p.writer.Write([]*models.Result{result}); err != nil {
		p.setErr(fmt.Errorf("write result: %w", err))
	}
}

func (p *Pipeline) resultFor(ev event) *models.Result {
	result := ev.result
	if result == nil {
		result = &models.Result{}
	}
	result.OperationID = ev.id
	result.Operation = ev.operation
	result.CompletedAt = p.now()

	if ev.err != nil {
		result.Status = StatusError
		result.Photo = nil
		result.Session = nil
		result.Message = UserMessage(ev.err)
		result.ErrorType = ErrorType(ev.err)
		return result
	}

	result.Status = StatusOK
	if result.Photo != nil {
		_, seen := p.recent.Get(result.Photo.ImageURL)
		result.Repeat = seen
		p.recent.Add(result.Photo.ImageURL, *result.Photo)
		if seen {
			p.metrics.incrementRepeats()
		}
	}
	return result
}

func (p *Pipeline) setErr(err error) {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	if p.err == nil {
		p.err = err
		p.logger.Error("output failed", slog.Any("error", err))
	}
}

// Result statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

type metrics struct {
	mu         sync.Mutex
	submitted  int64
	superseded int64
	dropped    int64
	repeats    int64
	outcomes   map[string]int
	errors     map[string]int
}

func newMetrics() metrics {
	return metrics{
		outcomes: make(map[string]int),
		errors:   make(map[string]int),
	}
}

func (m *metrics) incrementSubmitted() {
	m.mu.Lock()
	m.submitted++
	m.mu.Unlock()
}

func (m *metrics) incrementSuperseded() {
	m.mu.Lock()
	m.superseded++
	m.mu.Unlock()
}

func (m *metrics) incrementDropped() {
	m.mu.Lock()
	m.dropped++
	m.mu.Unlock()
}

func (m *metrics) incrementRepeats() {
	m.mu.Lock()
	m.repeats++
	m.mu.Unlock()
}

func (m *metrics) addOutcome(status, errorType string) {
	m.mu.Lock()
	m.outcomes[status]++
	if errorType != "" {
		m.errors[errorType]++
	}
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	outcomes := make(map[string]int, len(m.outcomes))
	for k, v := range m.outcomes {
		outcomes[k] = v
	}
	errs := make(map[string]int, len(m.errors))
	for k, v := range m.errors {
		errs[k] = v
	}

	return map[string]interface{}{
		"submitted":  m.submitted,
		"superseded": m.superseded,
		"dropped":    m.dropped,
		"repeats":    m.repeats,
		"outcomes":   outcomes,
		"errors":     errs,
	}
}

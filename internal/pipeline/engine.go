// Package pipeline drives clothing items through the image processing stages
// on a bounded worker pool.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wardrobe/internal/domain"
	"wardrobe/internal/providers/stage"
)

var (
	// ErrQueueFull is returned when admission would exceed the queue capacity.
	ErrQueueFull = errors.New("pipeline: queue is full")
	// ErrShuttingDown is returned once Shutdown has begun.
	ErrShuttingDown = errors.New("pipeline: shutting down")
)

const (
	defaultStoreTimeout = 10 * time.Second
	deadlineSlack       = 30 * time.Second
)

// Options tunes the worker pool.
type Options struct {
	Workers      int
	QueueSize    int
	StageTimeout time.Duration
	BatchPacing  time.Duration
	StoreTimeout time.Duration
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Workers  int `json:"workers"`
	Capacity int `json:"capacity"`
	Queued   int `json:"queued"`
	Reserved int `json:"reserved"`
	InFlight int `json:"inFlight"`
}

type job struct {
	id      uuid.UUID
	enhance bool
}

// Engine owns the worker pool and the per-item state machine.
type Engine struct {
	repo     domain.ClothingRepository
	enhancer stage.Stage
	remover  stage.Stage
	opts     Options
	logger   zerolog.Logger

	jobs chan job
	stop chan struct{}

	mu       sync.Mutex
	reserved int
	pending  map[uuid.UUID]struct{}
	// rerun holds at most one follow-up job per id that arrived while the id
	// was queued or running. Its slot stays reserved until it is sent.
	rerun  map[uuid.UUID]job
	closed bool

	running atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc

	workers     sync.WaitGroup
	dispatchers sync.WaitGroup
}

// NewEngine starts opts.Workers workers reading a queue of opts.QueueSize slots.
func NewEngine(repo domain.ClothingRepository, enhancer, remover stage.Stage, opts Options, logger zerolog.Logger) *Engine {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < opts.Workers {
		opts.QueueSize = opts.Workers
	}
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = 120 * time.Second
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}
	if enhancer == nil {
		enhancer = stage.Noop{StageName: stage.NameEnhancer}
	}
	if remover == nil {
		remover = stage.Noop{StageName: stage.NameRemover}
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		repo:     repo,
		enhancer: enhancer,
		remover:  remover,
		opts:     opts,
		logger:   logger.With().Str("component", "pipeline").Logger(),
		jobs:     make(chan job, opts.QueueSize),
		stop:     make(chan struct{}),
		pending:  make(map[uuid.UUID]struct{}),
		rerun:    make(map[uuid.UUID]job),
		ctx:      ctx,
		cancel:   cancel,
	}

	for i := 0; i < opts.Workers; i++ {
		e.workers.Add(1)
		go e.worker(i)
	}
	e.logger.Info().
		Int("workers", opts.Workers).
		Int("queue_size", opts.QueueSize).
		Dur("stage_timeout", opts.StageTimeout).
		Msg("pipeline started")
	return e
}

// Reserve claims n queue slots. It fails without side effects when fewer
// than n slots are free.
func (e *Engine) Reserve(n int) error {
	if n <= 0 {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrShuttingDown
	}
	if e.reserved+n > e.opts.QueueSize {
		return ErrQueueFull
	}
	e.reserved += n
	return nil
}

// Release returns n unused slots.
func (e *Engine) Release(n int) {
	if n <= 0 {
		return
	}
	e.mu.Lock()
	e.releaseLocked(n)
	e.mu.Unlock()
}

func (e *Engine) releaseLocked(n int) {
	e.reserved -= n
	if e.reserved < 0 {
		e.reserved = 0
	}
}

// Dispatch enqueues ids against slots already taken with Reserve. Batches are
// paced by Options.BatchPacing on a separate goroutine.
func (e *Engine) Dispatch(ids []uuid.UUID, enhance bool) {
	if len(ids) == 0 {
		return
	}
	if e.opts.BatchPacing <= 0 || len(ids) == 1 {
		for _, id := range ids {
			e.enqueue(job{id: id, enhance: enhance})
		}
		return
	}

	e.mu.Lock()
	if e.closed {
		e.releaseLocked(len(ids))
		e.mu.Unlock()
		e.logger.Warn().Int("dropped", len(ids)).Msg("pipeline: dropped batch after shutdown")
		return
	}
	e.dispatchers.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.dispatchers.Done()
		for i, id := range ids {
			if i > 0 && !e.pace() {
				e.Release(len(ids) - i)
				e.logger.Warn().Int("dropped", len(ids)-i).Msg("pipeline: batch dispatch interrupted by shutdown")
				return
			}
			e.enqueue(job{id: id, enhance: enhance})
		}
	}()
}

// pace waits one pacing interval. It reports false if shutdown began.
func (e *Engine) pace() bool {
	timer := time.NewTimer(e.opts.BatchPacing)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-e.stop:
		return false
	}
}

// Process reserves a slot for one item and schedules it.
func (e *Engine) Process(id uuid.UUID, enhance bool) error {
	if err := e.Reserve(1); err != nil {
		return err
	}
	e.Dispatch([]uuid.UUID{id}, enhance)
	return nil
}

// ProcessBatch reserves len(ids) slots and schedules every id.
func (e *Engine) ProcessBatch(ids []uuid.UUID, enhance bool) error {
	if err := e.Reserve(len(ids)); err != nil {
		return err
	}
	e.Dispatch(ids, enhance)
	return nil
}

func (e *Engine) enqueue(j job) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		e.releaseLocked(1)
		e.logger.Warn().Str("item_id", j.id.String()).Msg("pipeline: dropped job after shutdown")
		return
	}
	if _, busy := e.pending[j.id]; busy {
		if prev, queued := e.rerun[j.id]; queued {
			// One follow-up run covers any number of repeats.
			j.enhance = j.enhance || prev.enhance
			e.releaseLocked(1)
		}
		e.rerun[j.id] = j
		e.logger.Info().Str("item_id", j.id.String()).Msg("pipeline: item in flight, rerun queued")
		return
	}
	e.pending[j.id] = struct{}{}
	// Reserved slots never exceed the buffer, so this send does not block.
	e.jobs <- j
}

func (e *Engine) worker(workerID int) {
	defer e.workers.Done()
	log := e.logger.With().Int("worker_id", workerID).Logger()
	log.Debug().Msg("worker started")

	for j := range e.jobs {
		e.Release(1)
		if e.ctx.Err() != nil {
			e.done(j.id)
			continue
		}
		e.running.Add(1)
		start := time.Now()
		e.safeRun(log, j)
		e.running.Add(-1)
		e.done(j.id)
		log.Debug().Str("item_id", j.id.String()).Dur("duration", time.Since(start)).Msg("item finished")
	}
	log.Debug().Msg("worker stopping")
}

// done clears the in-flight mark for id, or hands the id straight back to the
// queue when a rerun was requested while it ran.
func (e *Engine) done(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	next, ok := e.rerun[id]
	if !ok {
		delete(e.pending, id)
		return
	}
	delete(e.rerun, id)
	if e.closed {
		delete(e.pending, id)
		e.releaseLocked(1)
		e.logger.Warn().Str("item_id", id.String()).Msg("pipeline: dropped rerun after shutdown")
		return
	}
	// The rerun kept its reservation, so the buffer has room for it.
	e.jobs <- next
}

// Stats reports current pool occupancy.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	reserved := e.reserved
	e.mu.Unlock()
	return Stats{
		Workers:  e.opts.Workers,
		Capacity: e.opts.QueueSize,
		Queued:   len(e.jobs),
		Reserved: reserved,
		InFlight: int(e.running.Load()),
	}
}

// Shutdown stops admissions and waits for queued work to drain. When ctx
// expires first the running pipelines are cancelled and their items are left
// for the recovery sweep.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.stop)
	e.mu.Unlock()

	e.dispatchers.Wait()
	e.mu.Lock()
	close(e.jobs)
	e.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		e.workers.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		e.cancel()
		e.logger.Info().Msg("pipeline drained")
		return nil
	case <-ctx.Done():
		e.cancel()
		<-drained
		e.logger.Warn().Msg("pipeline shutdown deadline exceeded, in-flight items abandoned")
		return ctx.Err()
	}
}

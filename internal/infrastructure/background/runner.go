// Package background runs detached tasks: work started by a request that the
// request never waits for and whose failures never reach the caller.
package background

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dailynoats/planner/internal/ports/outbound"
	"go.uber.org/zap"
)

// ErrStopped is returned by Stop when the runner was already stopped
var ErrStopped = errors.New("runner already stopped")

// Task outcomes reported to the FailureSink and metrics
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeDropped   = "dropped"
)

// OutcomeRecorder receives one observation per task
type OutcomeRecorder interface {
	SyncTask(task, outcome string)
}

// Config holds runner settings
type Config struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
}

type job struct {
	name string
	task outbound.Task
}

// Runner is a fixed pool of workers fed by a bounded queue. Submit never
// blocks: when the queue is full the task is dropped and logged.
type Runner struct {
	cfg     Config
	queue   chan job
	logger  *zap.Logger
	metrics OutcomeRecorder

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool
}

var _ outbound.TaskRunner = (*Runner)(nil)

// NewRunner creates a runner. Call Start before submitting.
func NewRunner(cfg Config, metrics OutcomeRecorder, logger *zap.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cfg:     cfg,
		queue:   make(chan job, cfg.QueueSize),
		logger:  logger.Named("background"),
		metrics: metrics,
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Start launches the workers
func (r *Runner) Start(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	r.started = true

	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.work()
	}

	r.logger.Info("Background runner started",
		zap.Int("workers", r.cfg.Workers),
		zap.Int("queue_size", r.cfg.QueueSize),
	)
	return nil
}

// Submit enqueues a task. It returns false when the task was dropped.
func (r *Runner) Submit(name string, task outbound.Task) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.stopped {
		r.drop(name, "runner stopped")
		return false
	}

	select {
	case r.queue <- job{name: name, task: task}:
		return true
	default:
		r.drop(name, "queue full")
		return false
	}
}

// Stop stops accepting tasks and waits for queued ones to finish. When ctx
// expires first, running tasks are cancelled.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return ErrStopped
	}
	r.stopped = true
	close(r.queue)
	started := r.started
	r.mu.Unlock()

	if !started {
		r.cancel()
		return nil
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		r.logger.Info("Background runner drained")
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return fmt.Errorf("background runner stop: %w", ctx.Err())
	}
}

func (r *Runner) work() {
	defer r.wg.Done()
	for j := range r.queue {
		r.run(j)
	}
}

func (r *Runner) run(j job) {
	ctx, cancel := context.WithTimeout(r.baseCtx, r.cfg.TaskTimeout)
	defer cancel()

	start := time.Now()
	err := safeCall(ctx, j.task)
	if err != nil {
		r.logger.Warn("Background task failed",
			zap.String("task", j.name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		r.record(j.name, OutcomeFailed)
		return
	}

	r.logger.Debug("Background task finished",
		zap.String("task", j.name),
		zap.Duration("duration", time.Since(start)),
	)
	r.record(j.name, OutcomeSucceeded)
}

func (r *Runner) drop(name, reason string) {
	r.logger.Warn("Background task dropped", zap.String("task", name), zap.String("reason", reason))
	r.record(name, OutcomeDropped)
}

func (r *Runner) record(name, outcome string) {
	if r.metrics != nil {
		r.metrics.SyncTask(name, outcome)
	}
}

// safeCall turns a panicking task into an error
func safeCall(ctx context.Context, task outbound.Task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task panicked: %v", rec)
		}
	}()
	return task(ctx)
}

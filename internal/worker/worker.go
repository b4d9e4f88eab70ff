// Package worker runs the single background consumer that drives queued
// tasks through their lifecycle: load dataset, filter, materialize records,
// and record the terminal status.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/martin/carsight/internal/dataset"
	"github.com/martin/carsight/internal/domain"
	"github.com/martin/carsight/internal/logger"
	"github.com/martin/carsight/internal/queue"
	"github.com/martin/carsight/internal/repository"
)

const (
	defaultDequeueTimeout = time.Second
	defaultProcessTimeout = 30 * time.Second
)

// Config holds worker loop timing options.
type Config struct {
	// DequeueTimeout bounds each wait on the queue so the loop stays
	// responsive to Stop.
	DequeueTimeout time.Duration

	// ProcessTimeout bounds a single task's processing (dataset load, filter,
	// record writes) so a stuck task cannot starve the loop.
	ProcessTimeout time.Duration
}

// Worker is the single consumer of the work queue. Exactly one loop
// goroutine ever runs per Worker, so no task is processed twice and no
// locking is needed around an individual task's pipeline.
type Worker struct {
	tasks   *repository.TaskRepository
	records *repository.RecordRepository
	source  dataset.Source
	queue   *queue.Queue
	logger  *logger.Logger

	dequeueTimeout time.Duration
	processTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	alive  atomic.Bool
}

// New creates a Worker consuming q. Zero-valued config fields fall back to
// defaults.
func New(
	tasks *repository.TaskRepository,
	records *repository.RecordRepository,
	source dataset.Source,
	q *queue.Queue,
	log *logger.Logger,
	cfg *Config,
) *Worker {
	if cfg == nil {
		cfg = &Config{}
	}
	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = defaultDequeueTimeout
	}
	processTimeout := cfg.ProcessTimeout
	if processTimeout <= 0 {
		processTimeout = defaultProcessTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		tasks:          tasks,
		records:        records,
		source:         source,
		queue:          q,
		logger:         log,
		dequeueTimeout: dequeueTimeout,
		processTimeout: processTimeout,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Start launches the consumer goroutine. Calling Start on a running or
// stopped worker is a no-op; the lifecycle is one-shot.
func (w *Worker) Start() {
	if w.ctx.Err() != nil {
		return
	}
	if !w.alive.CompareAndSwap(false, true) {
		return
	}
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the loop to exit and waits for it. In-flight task processing
// runs to its terminal state before the loop observes the signal.
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
}

// Alive reports whether the consumer loop is running.
func (w *Worker) Alive() bool {
	return w.alive.Load()
}

func (w *Worker) loop() {
	defer w.wg.Done()
	defer w.alive.Store(false)

	w.logger.Info("Worker loop started")
	for {
		select {
		case <-w.ctx.Done():
			w.logger.Info("Worker loop stopped")
			return
		default:
		}

		id, ok := w.queue.Dequeue(w.dequeueTimeout)
		if !ok {
			continue
		}
		w.processTask(id)
	}
}

// processTask drives one dequeued task reference through the state machine.
// Every processing-stage failure is captured onto the task; nothing here is
// allowed to crash the loop.
func (w *Worker) processTask(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), w.processTimeout)
	defer cancel()
	ctx = w.logger.WithContext(ctx)
	ctx = logger.SetComponent(ctx, "worker")
	ctx = logger.SetTaskID(ctx, id)
	start := time.Now()

	task, err := w.tasks.GetByID(ctx, id)
	if err != nil {
		// A reference the store does not know is stale by construction; the
		// queue only ever carries ids the store assigned. Drop, no retry.
		logger.FromContext(ctx).WithError(err).Error("Dropping unknown task reference")
		return
	}

	if err := w.tasks.UpdateStatus(ctx, id, domain.TaskStatusInProgress, ""); err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to mark task in progress")
		return
	}
	logger.CtxInfo(ctx, "Processing task")

	rows, err := w.loadDataset(ctx)
	if err != nil {
		w.fail(ctx, id, err)
		return
	}
	logger.With(logger.Fields{logger.FieldCount: len(rows)}).
		Debug(ctx, "Loaded raw dataset")

	spec, err := domain.ParseFilterSpec(task.Filters)
	if err != nil {
		w.fail(ctx, id, err)
		return
	}

	filtered, err := dataset.ApplyFilter(rows, spec)
	if err != nil {
		w.fail(ctx, id, err)
		return
	}

	for i := range filtered {
		filtered[i].ID = 0
		filtered[i].TaskID = id
	}
	if err := w.records.CreateBatch(ctx, filtered); err != nil {
		w.fail(ctx, id, fmt.Errorf("failed to materialize records: %w", err))
		return
	}

	if err := w.tasks.UpdateStatus(ctx, id, domain.TaskStatusCompleted, ""); err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to mark task completed")
		return
	}

	logger.With(logger.Fields{
		logger.FieldCount:      len(filtered),
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Info(ctx, "Task completed")
}

// fail records a terminal failure with the causing message captured verbatim.
func (w *Worker) fail(ctx context.Context, id string, cause error) {
	logger.CtxError(ctx, "Task processing failed: %v", cause)

	// The processing context may already be expired (that can be what failed
	// the task); the terminal write gets its own deadline so the failure is
	// still recorded.
	wctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.tasks.UpdateStatus(wctx, id, domain.TaskStatusFailed, cause.Error()); err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to mark task failed")
	}
}

func (w *Worker) loadDataset(ctx context.Context) ([]domain.Record, error) {
	rc, err := w.source.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset from %s: %w", w.source.Location(), err)
	}
	defer rc.Close()

	rows, err := dataset.DecodeCSV(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode dataset from %s: %w", w.source.Location(), err)
	}
	return rows, nil
}

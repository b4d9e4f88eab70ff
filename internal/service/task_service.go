// Package service exposes the task pipeline to the API boundary: submission
// with validation and backpressure, task fetch with materialized data, and
// the health view over the queue and worker.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/martin/carsight/internal/domain"
	"github.com/martin/carsight/internal/logger"
	"github.com/martin/carsight/internal/queue"
	"github.com/martin/carsight/internal/repository"
)

// queueFullMessage is the error recorded on tasks rejected by a full queue.
const queueFullMessage = "work queue is full, please try again later"

// WorkerStatus reports background consumer liveness for the health view.
type WorkerStatus interface {
	Alive() bool
}

// HealthStatus is the client-visible health snapshot.
type HealthStatus struct {
	QueueDepth    int  `json:"queue_depth"`
	QueueCapacity int  `json:"queue_capacity"`
	WorkerAlive   bool `json:"worker_alive"`
}

// TaskService is the API-facing facade over the task pipeline.
type TaskService struct {
	tasks   *repository.TaskRepository
	records *repository.RecordRepository
	queue   *queue.Queue
	worker  WorkerStatus
	logger  *logger.Logger
}

// NewTaskService creates the facade.
func NewTaskService(
	tasks *repository.TaskRepository,
	records *repository.RecordRepository,
	q *queue.Queue,
	worker WorkerStatus,
	log *logger.Logger,
) *TaskService {
	return &TaskService{
		tasks:   tasks,
		records: records,
		queue:   q,
		worker:  worker,
		logger:  log,
	}
}

// SubmitTask validates the filter document, creates a pending task, and
// enqueues it for processing. The returned task is always in status pending
// or, when the queue rejected it, failed — never in_progress or completed.
// A full queue returns the failed task together with ErrQueueBusy so the
// caller can surface backpressure.
func (s *TaskService) SubmitTask(ctx context.Context, rawFilters json.RawMessage) (*domain.Task, error) {
	stored := "null"
	if len(rawFilters) > 0 {
		stored = strings.TrimSpace(string(rawFilters))
	}

	// Validate shape before touching the store; date values inside a
	// well-formed object are checked when the filter is applied.
	if _, err := domain.ParseFilterSpec(stored); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilters, err)
	}

	task, err := s.tasks.Create(ctx, stored)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	logger.CtxInfo(ctx, "Created task %s", task.ID)

	if err := s.queue.Enqueue(task.ID); err != nil {
		if !errors.Is(err, queue.ErrQueueFull) {
			return nil, err
		}
		// Reflect the rejection into the task's terminal state so it never
		// sits pending forever.
		if ferr := s.tasks.UpdateStatus(ctx, task.ID, domain.TaskStatusFailed, queueFullMessage); ferr != nil {
			return nil, ferr
		}
		logger.CtxWarn(ctx, "Queue full, task %s marked failed", task.ID)

		failed, gerr := s.tasks.GetByID(ctx, task.ID)
		if gerr != nil {
			return nil, gerr
		}
		return failed, ErrQueueBusy
	}

	return task, nil
}

// FetchTask returns the current task state, attaching owned records only
// when the task has completed. Unknown ids yield ErrTaskNotFound, distinct
// from every status.
func (s *TaskService) FetchTask(ctx context.Context, id string) (*domain.Task, []domain.Record, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, nil, ErrTaskNotFound
		}
		return nil, nil, err
	}

	if task.Status != domain.TaskStatusCompleted {
		return task, nil, nil
	}

	records, err := s.records.ListByTask(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load task records: %w", err)
	}
	logger.CtxDebug(ctx, "Attached %d records to task %s", len(records), id)
	return task, records, nil
}

// Health reports queue depth and worker liveness.
func (s *TaskService) Health() HealthStatus {
	return HealthStatus{
		QueueDepth:    s.queue.Depth(),
		QueueCapacity: s.queue.Capacity(),
		WorkerAlive:   s.worker.Alive(),
	}
}

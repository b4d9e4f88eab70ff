package service

import "errors"

var (
	// ErrInvalidFilters rejects a submission whose filter document is not a
	// JSON object. The task is never created.
	ErrInvalidFilters = errors.New("invalid filters format")

	// ErrTaskNotFound is returned on fetch of an unknown task id.
	ErrTaskNotFound = errors.New("task not found")

	// ErrQueueBusy signals backpressure: the work queue is at capacity and
	// the created task was marked failed. Callers should retry later.
	ErrQueueBusy = errors.New("queue is full, try again later")
)

// Package queue implements the bounded FIFO buffering task ids between the
// submission path and the worker loop.
package queue

import (
	"errors"
	"fmt"
	"time"
)

// ErrQueueFull is returned by Enqueue when the queue is at capacity. The
// submission path surfaces this as backpressure instead of blocking.
var ErrQueueFull = errors.New("work queue is full")

const defaultCapacity = 100

// Queue is a bounded FIFO of pending task ids. The producer side never
// blocks; the single consumer blocks with a timeout so it stays responsive
// to shutdown without busy-spinning.
type Queue struct {
	ch chan string
}

// New creates a queue with the given capacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Queue{ch: make(chan string, capacity)}
}

// Enqueue adds a task id without blocking. Returns ErrQueueFull at capacity.
func (q *Queue) Enqueue(taskID string) error {
	select {
	case q.ch <- taskID:
		return nil
	default:
		return fmt.Errorf("%w: capacity %d reached", ErrQueueFull, cap(q.ch))
	}
}

// Dequeue waits up to timeout for the next task id. The second return value
// is false when the wait timed out.
func (q *Queue) Dequeue(timeout time.Duration) (string, bool) {
	select {
	case id := <-q.ch:
		return id, true
	case <-time.After(timeout):
		return "", false
	}
}

// Depth returns the number of queued task ids.
func (q *Queue) Depth() int {
	return len(q.ch)
}

// Capacity returns the queue's fixed capacity.
func (q *Queue) Capacity() int {
	return cap(q.ch)
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/martin/carsight/internal/domain"
	"gorm.io/gorm"
)

var (
	// ErrTaskNotFound is returned when the requested task does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidTransition is returned when a status update would move a task
	// backwards in its lifecycle or out of a terminal state.
	ErrInvalidTransition = errors.New("invalid task status transition")
)

// validPredecessors enumerates the legal prior statuses for every transition
// target. Anything not listed here (including a move back to pending) is
// rejected, which keeps the lifecycle monotonic at the persistence layer.
var validPredecessors = map[domain.TaskStatus][]domain.TaskStatus{
	domain.TaskStatusInProgress: {domain.TaskStatusPending},
	domain.TaskStatusCompleted:  {domain.TaskStatusInProgress},
	domain.TaskStatusFailed:     {domain.TaskStatusPending, domain.TaskStatusInProgress},
}

// TaskRepository handles task persistence.
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository bound to db.
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts a new pending task with the given verbatim filter document.
func (r *TaskRepository) Create(ctx context.Context, filters string) (*domain.Task, error) {
	task := &domain.Task{
		ID:        uuid.New().String(),
		Filters:   filters,
		Status:    domain.TaskStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, err
	}
	return task, nil
}

// GetByID retrieves a task by its ID.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	var task domain.Task
	if err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

// UpdateStatus applies a guarded status transition. The new status and its
// terminal metadata (completed_at or error_message) land in a single UPDATE,
// so a concurrent reader never observes a half-written transition. The WHERE
// clause restricts the update to legal predecessor statuses.
func (r *TaskRepository) UpdateStatus(ctx context.Context, id string, status domain.TaskStatus, errMsg string) error {
	from, ok := validPredecessors[status]
	if !ok {
		return ErrInvalidTransition
	}

	updates := map[string]interface{}{"status": status}
	switch status {
	case domain.TaskStatusCompleted:
		updates["completed_at"] = time.Now().UTC()
	case domain.TaskStatusFailed:
		updates["error_message"] = errMsg
	}

	res := r.db.WithContext(ctx).
		Model(&domain.Task{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}

// Delete removes a task. Owned records go with it through the cascade
// constraint; the core never calls this, it exists for administrative use.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&domain.Task{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// CountByStatus counts tasks in the given status.
func (r *TaskRepository) CountByStatus(ctx context.Context, status domain.TaskStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.Task{}).
		Where("status = ?", status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

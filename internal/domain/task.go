package domain

import (
	"encoding/json"
	"time"
)

// TaskStatus represents the lifecycle state of a processing task.
// Transitions are monotonic: pending -> in_progress -> completed|failed.
// A task rejected by a full work queue goes pending -> failed directly.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Terminal reports whether the status is an end state of the lifecycle.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Task represents one filtered-ingestion request and its lifecycle metadata.
// Filters holds the submitted criteria verbatim as JSON text ("null" when the
// client sent none). CompletedAt and ErrorMessage are mutually exclusive: a
// completed task has the former, a failed task has the latter, never both.
type Task struct {
	ID           string     `gorm:"type:text;primaryKey" json:"id"`
	Filters      string     `gorm:"type:text" json:"-"`
	Status       TaskStatus `gorm:"type:text;index:idx_tasks_status;default:pending" json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	ErrorMessage *string    `json:"error_message"`

	Records []Record `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the database table name for Task.
func (Task) TableName() string {
	return "tasks"
}

// FilterJSON returns the stored filter document for API responses.
func (t *Task) FilterJSON() json.RawMessage {
	if t.Filters == "" || t.Filters == "null" {
		return json.RawMessage("null")
	}
	return json.RawMessage(t.Filters)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/martin/carsight/internal/config"
	"github.com/martin/carsight/internal/domain"
	"github.com/martin/carsight/internal/logger"
	"github.com/martin/carsight/internal/queue"
	"github.com/martin/carsight/internal/repository"
	"gorm.io/gorm"
)

type stubWorker struct{ alive bool }

func (s *stubWorker) Alive() bool { return s.alive }

func newServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:          "sqlite",
		Path:            fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		MaxIdleConns:    1,
		MaxOpenConns:    1,
		ConnMaxLifetime: time.Minute,
		AutoMigrate:     true,
	})
	if err != nil {
		t.Fatalf("failed to init test database: %v", err)
	}
	return db
}

func newService(t *testing.T, queueCapacity int) (*TaskService, *repository.RecordRepository) {
	t.Helper()

	db := newServiceTestDB(t)
	tasks := repository.NewTaskRepository(db)
	records := repository.NewRecordRepository(db, 0)
	q := queue.New(queueCapacity)

	svc := NewTaskService(tasks, records, q, &stubWorker{alive: true}, logger.NewDefault())
	return svc, records
}

func TestTaskService_SubmitTask(t *testing.T) {
	svc, _ := newService(t, 10)
	ctx := context.Background()

	tests := []struct {
		name        string
		filters     json.RawMessage
		wantFilters string
	}{
		{name: "no filters defaults to null", filters: nil, wantFilters: "null"},
		{name: "explicit null", filters: json.RawMessage("null"), wantFilters: "null"},
		{name: "object stored verbatim", filters: json.RawMessage(`{"carBrands":["Toyota"]}`), wantFilters: `{"carBrands":["Toyota"]}`},
		{name: "unknown keys accepted", filters: json.RawMessage(`{"minPrice":20000}`), wantFilters: `{"minPrice":20000}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, err := svc.SubmitTask(ctx, tt.filters)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if task.Status != domain.TaskStatusPending {
				t.Errorf("expected pending, got %s", task.Status)
			}
			if task.Filters != tt.wantFilters {
				t.Errorf("expected stored filters %q, got %q", tt.wantFilters, task.Filters)
			}
		})
	}
}

func TestTaskService_SubmitTask_InvalidFilters(t *testing.T) {
	svc, _ := newService(t, 10)
	ctx := context.Background()

	tests := []struct {
		name    string
		filters json.RawMessage
	}{
		{name: "array", filters: json.RawMessage(`["Toyota"]`)},
		{name: "string", filters: json.RawMessage(`"Toyota"`)},
		{name: "number", filters: json.RawMessage("42")},
		{name: "malformed", filters: json.RawMessage(`{"carBrands":`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SubmitTask(ctx, tt.filters)
			if !errors.Is(err, ErrInvalidFilters) {
				t.Fatalf("expected ErrInvalidFilters, got %v", err)
			}
		})
	}
}

func TestTaskService_SubmitTask_QueueFull(t *testing.T) {
	svc, _ := newService(t, 1)
	ctx := context.Background()

	first, err := svc.SubmitTask(ctx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Status != domain.TaskStatusPending {
		t.Fatalf("expected pending, got %s", first.Status)
	}

	// No worker is draining, so the second submission hits a full queue
	second, err := svc.SubmitTask(ctx, nil)
	if !errors.Is(err, ErrQueueBusy) {
		t.Fatalf("expected ErrQueueBusy, got %v", err)
	}
	if second == nil {
		t.Fatal("expected the rejected task to be returned")
	}
	if second.Status != domain.TaskStatusFailed {
		t.Errorf("expected failed, got %s", second.Status)
	}
	if second.ErrorMessage == nil || *second.ErrorMessage != queueFullMessage {
		t.Errorf("expected queue-full message, got %v", second.ErrorMessage)
	}

	// The first task is untouched by the rejection
	kept, _, err := svc.FetchTask(ctx, first.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kept.Status != domain.TaskStatusPending {
		t.Errorf("expected first task still pending, got %s", kept.Status)
	}
}

func TestTaskService_FetchTask_NotFound(t *testing.T) {
	svc, _ := newService(t, 10)

	_, _, err := svc.FetchTask(context.Background(), "no-such-task")
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestTaskService_FetchTask_RecordsOnlyWhenCompleted(t *testing.T) {
	svc, records := newService(t, 10)
	ctx := context.Background()

	task, err := svc.SubmitTask(ctx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Simulate the worker materializing rows before completion is recorded
	company := "Toyota"
	if err := records.CreateBatch(ctx, []domain.Record{
		{TaskID: task.ID, Company: &company},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Pending task exposes no data even though rows exist
	fetched, data, err := svc.FetchTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetched.Status != domain.TaskStatusPending {
		t.Fatalf("expected pending, got %s", fetched.Status)
	}
	if data != nil {
		t.Errorf("expected no records before completion, got %d", len(data))
	}

	// Drive the task to completed through the repository guards
	if err := svc.tasks.UpdateStatus(ctx, task.ID, domain.TaskStatusInProgress, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.tasks.UpdateStatus(ctx, task.ID, domain.TaskStatusCompleted, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fetched, data, err = svc.FetchTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetched.Status != domain.TaskStatusCompleted {
		t.Fatalf("expected completed, got %s", fetched.Status)
	}
	if len(data) != 1 {
		t.Fatalf("expected 1 record, got %d", len(data))
	}
	if data[0].Company == nil || *data[0].Company != "Toyota" {
		t.Errorf("expected company Toyota, got %v", data[0].Company)
	}
}

func TestTaskService_Health(t *testing.T) {
	db := newServiceTestDB(t)
	tasks := repository.NewTaskRepository(db)
	records := repository.NewRecordRepository(db, 0)
	q := queue.New(5)
	worker := &stubWorker{alive: true}
	svc := NewTaskService(tasks, records, q, worker, logger.NewDefault())

	if _, err := svc.SubmitTask(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	health := svc.Health()
	if health.QueueDepth != 1 {
		t.Errorf("expected queue depth 1, got %d", health.QueueDepth)
	}
	if health.QueueCapacity != 5 {
		t.Errorf("expected queue capacity 5, got %d", health.QueueCapacity)
	}
	if !health.WorkerAlive {
		t.Error("expected worker alive")
	}

	worker.alive = false
	if svc.Health().WorkerAlive {
		t.Error("expected worker dead")
	}
}

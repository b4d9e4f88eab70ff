package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/martin/carsight/internal/config"
	"github.com/martin/carsight/internal/dataset"
	"github.com/martin/carsight/internal/domain"
	"github.com/martin/carsight/internal/logger"
	"github.com/martin/carsight/internal/queue"
	"github.com/martin/carsight/internal/repository"
	"gorm.io/gorm"
)

// 3 Toyota rows and 5 non-Toyota rows spanning 1973-1976.
const testCSV = `company,name,mpg,cylinders,displacement,horsepower,weight,acceleration,sale_date,price,origin
Toyota,toyota corolla,31.0,4,76.0,52.0,1649.0,16.5,1974-03-01,21040,Japan
Ford,ford pinto,25.0,4,98.0,,2046.0,19.0,1975-06-15,18200,USA
Toyota,toyota corona,24.0,4,113.0,95.0,2372.0,15.0,1975-12-31,27830,Japan
Honda,honda civic,33.0,4,91.0,53.0,1795.0,17.4,1976-01-01,19750,Japan
Toyota,toyota mark ii,19.0,6,156.0,108.0,2930.0,15.5,1973-10-01,30125,Japan
Chevrolet,chevrolet nova,15.0,6,250.0,100.0,3336.0,17.0,1974-07-01,24410,USA
Datsun,datsun 710,32.0,4,83.0,61.0,2003.0,19.0,1976-03-01,17630,Japan
Volkswagen,volkswagen rabbit,29.0,4,90.0,70.0,1937.0,14.2,1975-02-10,22960,Europe
`

type fixture struct {
	tasks   *repository.TaskRepository
	records *repository.RecordRepository
	queue   *queue.Queue
	worker  *Worker
}

func newFixture(t *testing.T, csv string) *fixture {
	t.Helper()

	db := newWorkerTestDB(t)
	tasks := repository.NewTaskRepository(db)
	records := repository.NewRecordRepository(db, 0)

	path := filepath.Join(t.TempDir(), "unified_cars.csv")
	if csv != "" {
		if err := os.WriteFile(path, []byte(csv), 0644); err != nil {
			t.Fatalf("failed to write dataset fixture: %v", err)
		}
	}

	q := queue.New(10)
	w := New(tasks, records, dataset.NewLocalSource(path), q, logger.NewDefault(), &Config{
		DequeueTimeout: 10 * time.Millisecond,
		ProcessTimeout: 5 * time.Second,
	})

	return &fixture{tasks: tasks, records: records, queue: q, worker: w}
}

func newWorkerTestDB(t *testing.T) *gorm.DB {
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

// waitTerminal polls until the task reaches a terminal status or the wait
// budget runs out.
func waitTerminal(t *testing.T, tasks *repository.TaskRepository, id string) *domain.Task {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, err := tasks.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if task.Status.Terminal() {
			return task
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("task never reached a terminal status")
	return nil
}

func TestWorker_ProcessesTaskToCompletion(t *testing.T) {
	f := newFixture(t, testCSV)
	ctx := context.Background()

	task, err := f.tasks.Create(ctx, "null")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.queue.Enqueue(task.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.worker.Start()
	defer f.worker.Stop()

	final := waitTerminal(t, f.tasks, task.ID)
	if final.Status != domain.TaskStatusCompleted {
		t.Fatalf("expected completed, got %s (error=%v)", final.Status, final.ErrorMessage)
	}
	if final.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}
	if final.ErrorMessage != nil {
		t.Errorf("expected nil error_message, got %q", *final.ErrorMessage)
	}

	records, err := f.records.ListByTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 8 {
		t.Errorf("expected all 8 dataset rows materialized, got %d", len(records))
	}
	for _, rec := range records {
		if rec.TaskID != task.ID {
			t.Errorf("record %d owned by %q, want %q", rec.ID, rec.TaskID, task.ID)
		}
	}
}

func TestWorker_BrandFilter(t *testing.T) {
	f := newFixture(t, testCSV)
	ctx := context.Background()

	task, err := f.tasks.Create(ctx, `{"carBrands":["Toyota"]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.queue.Enqueue(task.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.worker.Start()
	defer f.worker.Stop()

	final := waitTerminal(t, f.tasks, task.ID)
	if final.Status != domain.TaskStatusCompleted {
		t.Fatalf("expected completed, got %s (error=%v)", final.Status, final.ErrorMessage)
	}

	records, err := f.records.ListByTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected exactly the 3 Toyota rows, got %d", len(records))
	}
	for _, rec := range records {
		if rec.Company == nil || *rec.Company != "Toyota" {
			t.Errorf("expected company Toyota, got %v", rec.Company)
		}
	}
}

func TestWorker_DateRangeFilter(t *testing.T) {
	f := newFixture(t, testCSV)
	ctx := context.Background()

	task, err := f.tasks.Create(ctx, `{"startDate":"1975-01-01","endDate":"1975-12-31"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.queue.Enqueue(task.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.worker.Start()
	defer f.worker.Stop()

	final := waitTerminal(t, f.tasks, task.ID)
	if final.Status != domain.TaskStatusCompleted {
		t.Fatalf("expected completed, got %s (error=%v)", final.Status, final.ErrorMessage)
	}

	records, err := f.records.ListByTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected the 3 rows dated 1975, got %d", len(records))
	}
	for _, rec := range records {
		if rec.SaleDate == nil || rec.SaleDate.Year() != 1975 {
			t.Errorf("expected a 1975 sale date, got %v", rec.SaleDate)
		}
	}
}

func TestWorker_AppliesFilters(t *testing.T) {
	f := newFixture(t, testCSV)
	ctx := context.Background()

	task, err := f.tasks.Create(ctx, `{"startDate":"1975-01-01","endDate":"1975-12-31","carBrands":["Toyota"]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.queue.Enqueue(task.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.worker.Start()
	defer f.worker.Stop()

	final := waitTerminal(t, f.tasks, task.ID)
	if final.Status != domain.TaskStatusCompleted {
		t.Fatalf("expected completed, got %s (error=%v)", final.Status, final.ErrorMessage)
	}

	records, err := f.records.ListByTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 matching record, got %d", len(records))
	}
	if records[0].Name == nil || *records[0].Name != "toyota corona" {
		t.Errorf("expected toyota corona, got %v", records[0].Name)
	}
}

func TestWorker_MissingDatasetFailsTask(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	task, err := f.tasks.Create(ctx, "null")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.queue.Enqueue(task.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.worker.Start()
	defer f.worker.Stop()

	final := waitTerminal(t, f.tasks, task.ID)
	if final.Status != domain.TaskStatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.ErrorMessage == nil {
		t.Fatal("expected error_message to be set")
	}
	// The message names the source so the failure is diagnosable from the task
	if !strings.Contains(*final.ErrorMessage, "unified_cars.csv") {
		t.Errorf("expected error message to name the dataset source, got %q", *final.ErrorMessage)
	}
	if final.CompletedAt != nil {
		t.Error("expected nil completed_at on a failed task")
	}

	count, err := f.records.CountByTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no records for a failed task, got %d", count)
	}
}

func TestWorker_InvalidDateBoundFailsTask(t *testing.T) {
	f := newFixture(t, testCSV)
	ctx := context.Background()

	task, err := f.tasks.Create(ctx, `{"startDate":"not-a-date"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.queue.Enqueue(task.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.worker.Start()
	defer f.worker.Stop()

	final := waitTerminal(t, f.tasks, task.ID)
	if final.Status != domain.TaskStatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.ErrorMessage == nil || !strings.Contains(*final.ErrorMessage, "startDate") {
		t.Errorf("expected error message to name the bad filter field, got %v", final.ErrorMessage)
	}
}

func TestWorker_DropsStaleReference(t *testing.T) {
	f := newFixture(t, testCSV)
	ctx := context.Background()

	// Reference no task ever owned, then a real task behind it; the loop has
	// to survive the former and still process the latter.
	if err := f.queue.Enqueue("no-such-task"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	task, err := f.tasks.Create(ctx, "null")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.queue.Enqueue(task.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.worker.Start()
	defer f.worker.Stop()

	final := waitTerminal(t, f.tasks, task.ID)
	if final.Status != domain.TaskStatusCompleted {
		t.Errorf("expected completed, got %s (error=%v)", final.Status, final.ErrorMessage)
	}
}

func TestWorker_Lifecycle(t *testing.T) {
	f := newFixture(t, testCSV)

	if f.worker.Alive() {
		t.Error("expected worker to start not alive")
	}

	f.worker.Start()
	if !f.worker.Alive() {
		t.Error("expected worker to be alive after Start")
	}

	// Second Start is a no-op, not a second loop
	f.worker.Start()

	f.worker.Stop()
	if f.worker.Alive() {
		t.Error("expected worker to be dead after Stop")
	}

	// The lifecycle is one-shot
	f.worker.Start()
	if f.worker.Alive() {
		t.Error("expected Start after Stop to be a no-op")
	}
}

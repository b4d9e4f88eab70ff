package repository

import (
	"context"

	"github.com/martin/carsight/internal/domain"
	"gorm.io/gorm"
)

const defaultBatchSize = 1000

// RecordRepository handles materialized record persistence.
type RecordRepository struct {
	db        *gorm.DB
	batchSize int
}

// NewRecordRepository creates a new RecordRepository. batchSize bounds the
// number of rows per INSERT when materializing a task's output.
func NewRecordRepository(db *gorm.DB, batchSize int) *RecordRepository {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &RecordRepository{db: db, batchSize: batchSize}
}

// CreateBatch inserts records in batches to bound per-statement size.
func (r *RecordRepository) CreateBatch(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(records, r.batchSize).Error
}

// ListByTask retrieves all records owned by the given task in insertion order.
func (r *RecordRepository) ListByTask(ctx context.Context, taskID string) ([]domain.Record, error) {
	records := make([]domain.Record, 0)
	if err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("id").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// CountByTask counts records owned by the given task.
func (r *RecordRepository) CountByTask(ctx context.Context, taskID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.Record{}).
		Where("task_id = ?", taskID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

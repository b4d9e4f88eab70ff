package domain

import "time"

// Record is one materialized vehicle-sale row owned by exactly one task.
// Every attribute except the owning task is independently nullable, because
// the raw dataset is a union of sources with different column coverage.
// Records are written once by the worker and never mutated afterwards.
type Record struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	TaskID       string     `gorm:"type:text;not null;index:idx_records_task" json:"task_id"`
	Company      *string    `gorm:"type:text;index:idx_records_company" json:"company"`
	Name         *string    `gorm:"type:text" json:"name"`
	Mpg          *float64   `json:"mpg"`
	Cylinders    *int       `json:"cylinders"`
	Displacement *float64   `json:"displacement"`
	Horsepower   *float64   `json:"horsepower"`
	Weight       *float64   `json:"weight"`
	Acceleration *float64   `json:"acceleration"`
	SaleDate     *time.Time `gorm:"index:idx_records_sale_date" json:"sale_date"`
	Price        *int64     `json:"price"`
	Origin       *string    `gorm:"type:text" json:"origin"`
}

// TableName returns the database table name for Record.
func (Record) TableName() string {
	return "records"
}

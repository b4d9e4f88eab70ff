package dataset

import (
	"fmt"
	"time"

	"github.com/martin/carsight/internal/domain"
)

// boundLayout is the accepted format for filter date bounds.
const boundLayout = "2006-01-02"

// FilterError reports an unusable filter value. Its message becomes the
// failed task's error_message, so it names the offending field and value.
type FilterError struct {
	Field string
	Value string
	Err   error
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("invalid filter %s=%q: %v", e.Field, e.Value, e.Err)
}

func (e *FilterError) Unwrap() error {
	return e.Err
}

// ApplyFilter returns the subset of rows satisfying every constraint in
// spec, ANDed together. It is a pure transform: rows are never mutated and
// the result preserves input order. A nil spec keeps all rows.
//
// Date bounds are inclusive. A row without a sale date cannot satisfy a date
// bound, so it is dropped once either bound is present but kept when no date
// constraint applies. Brands match the company field by exact, case-sensitive
// equality; an absent or empty brand list applies no constraint.
func ApplyFilter(rows []domain.Record, spec *domain.FilterSpec) ([]domain.Record, error) {
	if spec.Empty() {
		return rows, nil
	}

	start, err := parseBound("startDate", spec.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseBound("endDate", spec.EndDate)
	if err != nil {
		return nil, err
	}

	var brands map[string]struct{}
	if len(spec.CarBrands) > 0 {
		brands = make(map[string]struct{}, len(spec.CarBrands))
		for _, b := range spec.CarBrands {
			brands[b] = struct{}{}
		}
	}

	out := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		if !matchesDate(&row, start, end) {
			continue
		}
		if !matchesBrand(&row, brands) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func parseBound(field string, value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	t, err := time.Parse(boundLayout, *value)
	if err != nil {
		return nil, &FilterError{Field: field, Value: *value, Err: err}
	}
	return &t, nil
}

func matchesDate(row *domain.Record, start, end *time.Time) bool {
	if start == nil && end == nil {
		return true
	}
	if row.SaleDate == nil {
		return false
	}
	if start != nil && row.SaleDate.Before(*start) {
		return false
	}
	if end != nil && row.SaleDate.After(*end) {
		return false
	}
	return true
}

func matchesBrand(row *domain.Record, brands map[string]struct{}) bool {
	if brands == nil {
		return true
	}
	if row.Company == nil {
		return false
	}
	_, ok := brands[*row.Company]
	return ok
}

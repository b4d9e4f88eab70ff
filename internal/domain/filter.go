package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidFilters is returned when a submitted filter document is present
// but is not a JSON object.
var ErrInvalidFilters = errors.New("filters must be a JSON object")

// FilterSpec is the structured filter criteria accepted on task submission.
// A nil StartDate/EndDate means the dimension is unconstrained; dates are
// inclusive "YYYY-MM-DD" bounds. CarBrands distinguishes unset (nil) from
// set-to-empty — neither applies a constraint, matching a brand list that
// never excludes everything. Keys outside the recognized set are ignored.
type FilterSpec struct {
	StartDate *string  `json:"startDate"`
	EndDate   *string  `json:"endDate"`
	CarBrands []string `json:"carBrands"`
}

// Empty reports whether the spec carries no constraint on any dimension.
func (f *FilterSpec) Empty() bool {
	return f == nil || (f.StartDate == nil && f.EndDate == nil && len(f.CarBrands) == 0)
}

// ParseFilterSpec decodes a verbatim filter document into a FilterSpec.
// Absent or null input yields a nil spec. Non-object input is rejected with
// ErrInvalidFilters; unknown keys inside an object are tolerated.
func ParseFilterSpec(raw string) (*FilterSpec, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	if !strings.HasPrefix(trimmed, "{") {
		return nil, ErrInvalidFilters
	}

	var spec FilterSpec
	if err := json.Unmarshal([]byte(trimmed), &spec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilters, err)
	}
	return &spec, nil
}

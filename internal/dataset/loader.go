package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/martin/carsight/internal/domain"
)

// dateLayouts are tried in order when parsing sale_date cells. The unified
// dataset writes plain dates, but timestamped variants occur in older dumps.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// DecodeCSV reads the unified vehicle-sale dataset into records. Columns are
// resolved by header name so column order does not matter; cells that are
// empty or fail to parse become nil fields rather than aborting the decode,
// mirroring how the dataset itself treats missing values.
func DecodeCSV(r io.Reader) ([]domain.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("dataset is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}

	var rows []domain.Record
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read dataset row %d: %w", line, err)
		}

		rows = append(rows, domain.Record{
			Company:      cellString(rec, idx, "company"),
			Name:         cellString(rec, idx, "name"),
			Mpg:          cellFloat(rec, idx, "mpg"),
			Cylinders:    cellInt(rec, idx, "cylinders"),
			Displacement: cellFloat(rec, idx, "displacement"),
			Horsepower:   cellFloat(rec, idx, "horsepower"),
			Weight:       cellFloat(rec, idx, "weight"),
			Acceleration: cellFloat(rec, idx, "acceleration"),
			SaleDate:     cellDate(rec, idx, "sale_date"),
			Price:        cellPrice(rec, idx, "price"),
			Origin:       cellString(rec, idx, "origin"),
		})
	}
	return rows, nil
}

func cell(rec []string, idx map[string]int, name string) (string, bool) {
	i, ok := idx[name]
	if !ok || i >= len(rec) {
		return "", false
	}
	v := strings.TrimSpace(rec[i])
	if v == "" {
		return "", false
	}
	return v, true
}

func cellString(rec []string, idx map[string]int, name string) *string {
	v, ok := cell(rec, idx, name)
	if !ok {
		return nil
	}
	return &v
}

func cellFloat(rec []string, idx map[string]int, name string) *float64 {
	v, ok := cell(rec, idx, name)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}

func cellInt(rec []string, idx map[string]int, name string) *int {
	// Some exports write integral columns as floats ("8.0")
	f := cellFloat(rec, idx, name)
	if f == nil {
		return nil
	}
	i := int(*f)
	return &i
}

func cellPrice(rec []string, idx map[string]int, name string) *int64 {
	f := cellFloat(rec, idx, name)
	if f == nil {
		return nil
	}
	p := int64(*f)
	return &p
}

func cellDate(rec []string, idx map[string]int, name string) *time.Time {
	v, ok := cell(rec, idx, name)
	if !ok {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	return nil
}

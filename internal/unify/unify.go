// Package unify merges the two raw car datasets (cars.json and mpg.csv)
// into the single unified_cars.csv the API serves filters against.
package unify

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	priceLow  = 10000
	priceHigh = 50000

	dateLayout = "2006-01-02"
)

// Row is one unified vehicle sale row. Pointer fields are nullable and
// written as empty CSV cells when absent.
type Row struct {
	Company      *string
	Name         *string
	Mpg          *float64
	Cylinders    *int
	Displacement *float64
	Horsepower   *float64
	Weight       *float64
	Acceleration *float64
	SaleDate     *time.Time
	Price        int64
	Origin       *string
}

// Columns is the unified CSV header, in output order.
var Columns = []string{
	"company", "name", "mpg", "cylinders", "displacement", "horsepower",
	"weight", "acceleration", "sale_date", "price", "origin",
}

// carJSON mirrors one object of cars.json.
type carJSON struct {
	Name           *string  `json:"Name"`
	MilesPerGallon *float64 `json:"Miles_per_Gallon"`
	Cylinders      *int     `json:"Cylinders"`
	Displacement   *float64 `json:"Displacement"`
	Horsepower     *float64 `json:"Horsepower"`
	WeightInLbs    *float64 `json:"Weight_in_lbs"`
	Acceleration   *float64 `json:"Acceleration"`
	Year           *string  `json:"Year"`
	Origin         *string  `json:"Origin"`
}

// ParseCarsJSON reads the cars.json document and converts each object into a
// unified row. Prices are drawn from rng, matching one row per draw.
func ParseCarsJSON(r io.Reader, rng *rand.Rand) ([]Row, error) {
	var cars []carJSON
	if err := json.NewDecoder(r).Decode(&cars); err != nil {
		return nil, fmt.Errorf("failed to decode cars JSON: %w", err)
	}

	rows := make([]Row, 0, len(cars))
	for _, c := range cars {
		row := Row{
			Name:         c.Name,
			Mpg:          c.MilesPerGallon,
			Cylinders:    c.Cylinders,
			Displacement: c.Displacement,
			Horsepower:   c.Horsepower,
			Weight:       c.WeightInLbs,
			Acceleration: c.Acceleration,
			Origin:       c.Origin,
			Price:        simulatePrice(rng),
		}
		if c.Year != nil {
			if t, err := parseDate(*c.Year); err == nil {
				row.SaleDate = &t
			}
		}
		row.Company = companyFromName(c.Name)
		rows = append(rows, row)
	}
	return rows, nil
}

// ParseMpgCSV reads the mpg.csv document. The model_year column carries a
// two-digit year (70 means 1970) and becomes January 1st of that year.
func ParseMpgCSV(r io.Reader, rng *rand.Rand) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read mpg CSV header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(strings.ToLower(name))] = i
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read mpg CSV row: %w", err)
		}

		cell := func(name string) string {
			i, ok := idx[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		row := Row{
			Name:         optString(cell("name")),
			Mpg:          optFloat(cell("mpg")),
			Cylinders:    optInt(cell("cylinders")),
			Displacement: optFloat(cell("displacement")),
			Horsepower:   optFloat(cell("horsepower")),
			Weight:       optFloat(cell("weight")),
			Acceleration: optFloat(cell("acceleration")),
			Origin:       optString(cell("origin")),
			Price:        simulatePrice(rng),
		}
		if year := cell("model_year"); year != "" {
			if y, err := strconv.Atoi(year); err == nil {
				t := time.Date(1900+y, time.January, 1, 0, 0, 0, 0, time.UTC)
				row.SaleDate = &t
			}
		}
		row.Company = companyFromName(row.Name)
		rows = append(rows, row)
	}
	return rows, nil
}

// Merge concatenates the row sets and sorts by sale date ascending, rows
// without a date last. The sort is stable so same-date rows keep input order.
func Merge(sets ...[]Row) []Row {
	var merged []Row
	for _, set := range sets {
		merged = append(merged, set...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i].SaleDate, merged[j].SaleDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return merged
}

// WriteCSV writes the unified rows with the standard header.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range rows {
		rec := []string{
			stringCell(row.Company),
			stringCell(row.Name),
			floatCell(row.Mpg),
			intCell(row.Cylinders),
			floatCell(row.Displacement),
			floatCell(row.Horsepower),
			floatCell(row.Weight),
			floatCell(row.Acceleration),
			dateCell(row.SaleDate),
			strconv.FormatInt(row.Price, 10),
			stringCell(row.Origin),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Run executes the full unification: parse both inputs, merge, write the
// output file. Prices are deterministic for a given seed.
func Run(carsPath, mpgPath, outPath string, seed int64) (int, error) {
	rng := rand.New(rand.NewSource(seed))

	carsFile, err := os.Open(carsPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open cars file: %w", err)
	}
	defer carsFile.Close()

	carRows, err := ParseCarsJSON(carsFile, rng)
	if err != nil {
		return 0, err
	}

	mpgFile, err := os.Open(mpgPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open mpg file: %w", err)
	}
	defer mpgFile.Close()

	mpgRows, err := ParseMpgCSV(mpgFile, rng)
	if err != nil {
		return 0, err
	}

	merged := Merge(carRows, mpgRows)

	out, err := os.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	if err := WriteCSV(out, merged); err != nil {
		return 0, err
	}
	return len(merged), nil
}

func simulatePrice(rng *rand.Rand) int64 {
	return int64(priceLow + rng.Intn(priceHigh-priceLow))
}

// companyFromName takes the first whitespace-separated word of the vehicle
// name, title-cased ("chevrolet chevelle" yields "Chevrolet").
func companyFromName(name *string) *string {
	if name == nil {
		return nil
	}
	fields := strings.Fields(*name)
	if len(fields) == 0 {
		return nil
	}
	company := titleCase(fields[0])
	return &company
}

func titleCase(s string) string {
	runes := []rune(strings.ToLower(s))
	if len(runes) > 0 {
		runes[0] = unicode.ToUpper(runes[0])
	}
	return string(runes)
}

var dateLayouts = []string{dateLayout, "2006-01-02 15:04:05", time.RFC3339}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func optInt(s string) *int {
	if s == "" {
		return nil
	}
	// Some exports carry integer columns as "8.0"
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	n := int(f)
	return &n
}

func stringCell(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatCell(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func intCell(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func dateCell(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

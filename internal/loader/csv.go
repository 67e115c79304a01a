package loader

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"bikeshare-dashboard/internal/rentals"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Source column names.
const (
	ColumnDate       = "dteday"
	ColumnTotal      = "cnt"
	ColumnRegistered = "registered"
	ColumnCasual     = "casual"
	ColumnTemp       = "temp_actual"
	ColumnFeelsLike  = "atemp_actual"
)

var RequiredColumns = []string{
	ColumnDate,
	ColumnTotal,
	ColumnRegistered,
	ColumnCasual,
	ColumnTemp,
	ColumnFeelsLike,
}

var ErrMalformedInput = errors.New("malformed input")

// MalformedInputError points at the column (and row, when known) that could
// not be read. Row is 1-based and counts data rows only.
type MalformedInputError struct {
	Column string
	Row    int
	Value  string
	Err    error
}

func (e *MalformedInputError) Error() string {
	var b strings.Builder
	b.WriteString(ErrMalformedInput.Error())
	if e.Column != "" {
		fmt.Fprintf(&b, ": column %q", e.Column)
	}
	if e.Row > 0 {
		fmt.Fprintf(&b, " row %d", e.Row)
	}
	if e.Value != "" {
		fmt.Fprintf(&b, " value %q", e.Value)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedInput
}

var dateLayouts = []string{
	rentals.DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
}

func LoadFile(path string) (rentals.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load reads a CSV with a header row. Extra columns are ignored.
func Load(r io.Reader) (rentals.Table, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, &MalformedInputError{Err: df.Err}
	}

	present := make(map[string]bool, df.Ncol())
	for _, name := range df.Names() {
		present[strings.TrimSpace(name)] = true
	}
	for _, name := range RequiredColumns {
		if !present[name] {
			return nil, &MalformedInputError{Column: name, Err: errors.New("column missing")}
		}
	}

	columns := make(map[string][]string, len(RequiredColumns))
	for _, name := range RequiredColumns {
		col := df.Col(name)
		if col.Err != nil {
			return nil, &MalformedInputError{Column: name, Err: col.Err}
		}
		columns[name] = col.Records()
	}

	table := make(rentals.Table, df.Nrow())
	for i := range table {
		rec, err := parseRow(columns, i)
		if err != nil {
			return nil, err
		}
		table[i] = rec
	}
	return table, nil
}

func parseRow(columns map[string][]string, i int) (rentals.Record, error) {
	var (
		rec rentals.Record
		err error
	)

	if rec.Date, err = parseDate(columns[ColumnDate][i]); err != nil {
		return rec, cellError(ColumnDate, i, columns[ColumnDate][i], err)
	}
	if rec.TotalCount, err = parseCount(columns[ColumnTotal][i]); err != nil {
		return rec, cellError(ColumnTotal, i, columns[ColumnTotal][i], err)
	}
	if rec.RegisteredCount, err = parseCount(columns[ColumnRegistered][i]); err != nil {
		return rec, cellError(ColumnRegistered, i, columns[ColumnRegistered][i], err)
	}
	if rec.CasualCount, err = parseCount(columns[ColumnCasual][i]); err != nil {
		return rec, cellError(ColumnCasual, i, columns[ColumnCasual][i], err)
	}
	if rec.Temperature, err = parseReal(columns[ColumnTemp][i]); err != nil {
		return rec, cellError(ColumnTemp, i, columns[ColumnTemp][i], err)
	}
	if rec.FeelsLikeTemperature, err = parseReal(columns[ColumnFeelsLike][i]); err != nil {
		return rec, cellError(ColumnFeelsLike, i, columns[ColumnFeelsLike][i], err)
	}
	return rec, nil
}

func cellError(column string, i int, value string, err error) error {
	return &MalformedInputError{Column: column, Row: i + 1, Value: value, Err: err}
}

var errEmptyCell = errors.New("empty value")

func missing(value string) bool {
	return value == "" || value == "NaN"
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if missing(value) {
		return time.Time{}, errEmptyCell
	}

	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return rentals.Day(t), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func parseCount(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if missing(value) {
		return 0, errEmptyCell
	}

	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		// pandas exports integer columns with NaNs as floats
		f, ferr := strconv.ParseFloat(value, 64)
		if ferr != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
			return 0, err
		}
		n = int64(f)
	}
	if n < 0 {
		return 0, errors.New("negative count")
	}
	return n, nil
}

func parseReal(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if missing(value) {
		return 0, errEmptyCell
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("not a finite number")
	}
	return f, nil
}

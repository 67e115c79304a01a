package rentals

import (
	"time"
)

const DateLayout = "2006-01-02"

// Record is one day of the aggregated rental dataset.
type Record struct {
	Date                 time.Time `json:"date"`
	TotalCount           int64     `json:"cnt"`
	RegisteredCount      int64     `json:"registered"`
	CasualCount          int64     `json:"casual"`
	Temperature          float64   `json:"temp_actual"`
	FeelsLikeTemperature float64   `json:"atemp_actual"`
}

// Table keeps records in source order. It is never sorted.
type Table []Record

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func ParseDay(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: Day(start), End: Day(end)}
}

func (r DateRange) Contains(date time.Time) bool {
	d := Day(date)
	return !d.Before(Day(r.Start)) && !d.After(Day(r.End))
}

// Empty reports whether no date can satisfy the range.
func (r DateRange) Empty() bool {
	return Day(r.Start).After(Day(r.End))
}

// Clamp moves both ends into bounds. The order of Start and End is kept,
// so an inverted range stays inverted.
func (r DateRange) Clamp(bounds DateRange) DateRange {
	return DateRange{
		Start: clampDay(r.Start, bounds),
		End:   clampDay(r.End, bounds),
	}
}

func clampDay(t time.Time, bounds DateRange) time.Time {
	d := Day(t)
	if d.Before(Day(bounds.Start)) {
		return Day(bounds.Start)
	}
	if d.After(Day(bounds.End)) {
		return Day(bounds.End)
	}
	return d
}

func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

// Bounds returns the earliest and latest dates in the table.
func (t Table) Bounds() (DateRange, bool) {
	if len(t) == 0 {
		return DateRange{}, false
	}

	minDate := Day(t[0].Date)
	maxDate := minDate
	for _, rec := range t[1:] {
		d := Day(rec.Date)
		if d.Before(minDate) {
			minDate = d
		}
		if d.After(maxDate) {
			maxDate = d
		}
	}
	return DateRange{Start: minDate, End: maxDate}, true
}

// Resolve builds the range a caller asked for. A zero start or end falls
// back to the table bounds and both ends are clamped into them.
func (t Table) Resolve(start, end time.Time) DateRange {
	bounds, ok := t.Bounds()
	if !ok {
		return NewDateRange(start, end)
	}

	r := bounds
	if !start.IsZero() {
		r.Start = Day(start)
	}
	if !end.IsZero() {
		r.End = Day(end)
	}
	return r.Clamp(bounds)
}

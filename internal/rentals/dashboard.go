package rentals

import (
	"errors"
	"fmt"
)

type Predictor string

const (
	PredictorTemperature Predictor = "temp_actual"
	PredictorFeelsLike   Predictor = "atemp_actual"
)

// Predictors lists the scatter plots of the dashboard, in display order.
var Predictors = []Predictor{PredictorTemperature, PredictorFeelsLike}

var ErrUnknownPredictor = errors.New("unknown predictor")

func ParsePredictor(name string) (Predictor, error) {
	for _, p := range Predictors {
		if string(p) == name {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPredictor, name)
}

func (p Predictor) Label() string {
	switch p {
	case PredictorTemperature:
		return "Temperature (°C)"
	case PredictorFeelsLike:
		return "Feels-Like Temperature (°C)"
	default:
		return string(p)
	}
}

// Values extracts the predictor column from the table.
func (p Predictor) Values(table Table) []float64 {
	out := make([]float64, len(table))
	for i, rec := range table {
		switch p {
		case PredictorTemperature:
			out[i] = rec.Temperature
		case PredictorFeelsLike:
			out[i] = rec.FeelsLikeTemperature
		}
	}
	return out
}

// TotalCounts extracts the response column (cnt) as floats.
func TotalCounts(table Table) []float64 {
	out := make([]float64, len(table))
	for i, rec := range table {
		out[i] = float64(rec.TotalCount)
	}
	return out
}

// Series holds the daily time series charts.
type Series struct {
	Dates      []string `json:"dates"`
	Total      []int64  `json:"total"`
	Registered []int64  `json:"registered"`
	Casual     []int64  `json:"casual"`
}

func NewSeries(table Table) Series {
	s := Series{
		Dates:      make([]string, len(table)),
		Total:      make([]int64, len(table)),
		Registered: make([]int64, len(table)),
		Casual:     make([]int64, len(table)),
	}
	for i, rec := range table {
		s.Dates[i] = rec.Date.Format(DateLayout)
		s.Total[i] = rec.TotalCount
		s.Registered[i] = rec.RegisteredCount
		s.Casual[i] = rec.CasualCount
	}
	return s
}

// Trend is one scatter plot with its regression line. When the fit is
// undefined Fit and Line are nil and Error explains why.
type Trend struct {
	Predictor Predictor `json:"predictor"`
	Label     string    `json:"label"`
	X         []float64 `json:"x"`
	Y         []float64 `json:"y"`
	Fit       *Fit      `json:"fit,omitempty"`
	Line      []float64 `json:"line,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func NewTrend(table Table, p Predictor) (Trend, error) {
	trend := Trend{
		Predictor: p,
		Label:     p.Label(),
		X:         p.Values(table),
		Y:         TotalCounts(table),
	}

	fit, err := Regress(trend.X, trend.Y)
	if err != nil {
		trend.Error = err.Error()
		return trend, err
	}

	trend.Fit = &fit
	trend.Line = fit.Line(trend.X)
	return trend, nil
}

// Dashboard is everything the charts need for one date range.
type Dashboard struct {
	Range      DateRange       `json:"range"`
	Rows       Table           `json:"rows"`
	Totals     Totals          `json:"totals"`
	Categories []CategoryTotal `json:"categories"`
	Series     Series          `json:"series"`
	Trends     []Trend         `json:"trends"`
}

// Build runs filter, sums and both regressions over table for r. Degenerate
// regressions are recorded on their Trend and do not fail the build.
func Build(table Table, r DateRange) Dashboard {
	rows := Filter(table, r)
	totals := Sum(rows)

	d := Dashboard{
		Range:      r,
		Rows:       rows,
		Totals:     totals,
		Categories: totals.Categories(),
		Series:     NewSeries(rows),
		Trends:     make([]Trend, 0, len(Predictors)),
	}

	for _, p := range Predictors {
		trend, _ := NewTrend(rows, p)
		d.Trends = append(d.Trends, trend)
	}
	return d
}

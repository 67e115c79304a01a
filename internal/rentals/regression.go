package rentals

import (
	"math"
)

// Fit holds the least squares line y = Slope*x + Intercept.
type Fit struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	R         float64 `json:"r"`
	R2        float64 `json:"r2"`
	StdErr    float64 `json:"std_err"`
	N         int     `json:"n"`
}

// Regress fits y against x by ordinary least squares.
//
// The slope is undefined for fewer than two points or when every x is the
// same; both cases return a *DegenerateInputError instead of NaN.
func Regress(x, y []float64) (Fit, error) {
	n := len(x)
	if len(y) != n {
		return Fit{}, &DegenerateInputError{N: n, Reason: "x and y lengths differ"}
	}
	if n < 2 {
		return Fit{}, &DegenerateInputError{N: n, Reason: "at least 2 points are required"}
	}

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var sxx, syy, sxy float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}

	if sxx == 0 {
		return Fit{}, &DegenerateInputError{N: n, Reason: "predictor has zero variance"}
	}

	slope := sxy / sxx
	fit := Fit{
		Slope:     slope,
		Intercept: meanY - slope*meanX,
		N:         n,
	}

	// A constant response has no correlation to report.
	if syy > 0 {
		r := sxy / math.Sqrt(sxx*syy)
		// rounding can push |r| a hair past 1
		r = math.Max(-1, math.Min(1, r))
		fit.R = r
		fit.R2 = r * r
	}

	if n > 2 {
		residual := syy - slope*sxy
		if residual < 0 {
			residual = 0
		}
		fit.StdErr = math.Sqrt(residual/float64(n-2)) / math.Sqrt(sxx)
	}

	return fit, nil
}

func (f Fit) Predict(x float64) float64 {
	return f.Slope*x + f.Intercept
}

// Line evaluates the fit at every x, for drawing the trend line over a
// scatter plot.
func (f Fit) Line(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = f.Predict(v)
	}
	return out
}

package common

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Numeric helpers shared by the baseline, peak and deconvolution stages.
// gonum does the heavy lifting where it offers an equivalent.

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// Median returns the median of data without modifying it
func Median(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2.0
	}
	return sorted[mid]
}

// Diff returns successive differences data[i+1]-data[i]
func Diff(data []float64) []float64 {
	if len(data) < 2 {
		return nil
	}
	d := make([]float64, len(data)-1)
	for i := range d {
		d[i] = data[i+1] - data[i]
	}
	return d
}

// Round rounds value to the given number of decimals (half away from zero)
func Round(value float64, decimals int) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return value
	}
	scale := math.Pow(10, float64(decimals))
	r := math.Round(value*scale) / scale
	if math.IsInf(r, 0) || math.IsNaN(r) {
		return value
	}
	return r
}

// RoundAll rounds every element of data in place and returns it
func RoundAll(data []float64, decimals int) []float64 {
	for i, v := range data {
		data[i] = Round(v, decimals)
	}
	return data
}

// DecimalsFor returns the number of decimals needed to resolve step,
// i.e. |ceil(log10(step))|. A step of 0.01 gives 2, 0.015 gives 1.
// Steps within floating point noise of a power of ten count as that power,
// so a mean timestep of 0.010000000000000002 still gives 2.
func DecimalsFor(step float64) int {
	if step <= 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		return 0
	}
	return int(math.Abs(math.Ceil(math.Log10(step) - decadeTolerance)))
}

const decadeTolerance = 1e-9

// Arange returns start, start+step, ... for values strictly below stop
func Arange(start, stop, step float64) []float64 {
	if step <= 0 || stop <= start {
		return nil
	}
	n := int(math.Ceil((stop - start) / step))
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		v := start + float64(i)*step
		if v >= stop {
			break
		}
		out = append(out, v)
	}
	return out
}

// Trapezoid integrates y over x with the trapezoidal rule
func Trapezoid(y, x []float64) float64 {
	if len(y) != len(x) || len(y) < 2 {
		return 0.0
	}
	area := 0.0
	for i := 1; i < len(y); i++ {
		area += (x[i] - x[i-1]) * (y[i] + y[i-1]) / 2.0
	}
	return area
}

// SignNormalize scales data by its min-max range while keeping the sign of
// every sample: sign(x) * (x-min)/(max-min). Constant data yields zeros.
func SignNormalize(data []float64) []float64 {
	normalized := make([]float64, len(data))
	if len(data) == 0 {
		return normalized
	}

	lo := floats.Min(data)
	hi := floats.Max(data)
	span := hi - lo
	if span == 0 || math.IsNaN(span) {
		return normalized
	}

	for i, v := range data {
		normalized[i] = sign(v) * (v - lo) / span
	}
	return normalized
}

// Negate returns -data as a new slice
func Negate(data []float64) []float64 {
	out := make([]float64, len(data))
	floats.ScaleTo(out, -1, data)
	return out
}

// AllFinite reports whether data contains no NaN or Inf
func AllFinite(data []float64) bool {
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Clamp constrains a value to a range
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ClampInt constrains an integer to [min, max]
func ClampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

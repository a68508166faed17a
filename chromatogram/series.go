package chromatogram

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/ionome/algorithms/common"
)

// Series is an intensity trace sampled on a strictly increasing time axis
// (retention time, usually minutes).
type Series struct {
	Time      []float64 `json:"retention_time"`
	Intensity []float64 `json:"intensity"`
}

// NewSeries copies time and intensity into a new Series.
func NewSeries(time, intensity []float64) Series {
	return Series{
		Time:      append([]float64(nil), time...),
		Intensity: append([]float64(nil), intensity...),
	}
}

// Len returns the number of samples.
func (s Series) Len() int {
	return len(s.Time)
}

// Validate checks the invariants every stage relies on.
func (s Series) Validate() error {
	if len(s.Time) != len(s.Intensity) {
		return fmt.Errorf("%w: time has %d samples but intensity has %d",
			ErrConfiguration, len(s.Time), len(s.Intensity))
	}
	if len(s.Time) < 3 {
		return fmt.Errorf("%w: series needs at least 3 samples, got %d", ErrConfiguration, len(s.Time))
	}
	for i := range s.Time {
		if math.IsNaN(s.Time[i]) || math.IsInf(s.Time[i], 0) {
			return fmt.Errorf("%w: non-finite time at index %d", ErrConfiguration, i)
		}
		if math.IsNaN(s.Intensity[i]) || math.IsInf(s.Intensity[i], 0) {
			return fmt.Errorf("%w: non-finite intensity at index %d", ErrConfiguration, i)
		}
		if i > 0 && s.Time[i] <= s.Time[i-1] {
			return fmt.Errorf("%w: retention time must be strictly increasing (index %d)", ErrConfiguration, i)
		}
	}
	return nil
}

// Timestep returns the mean sampling interval.
func (s Series) Timestep() float64 {
	d := common.Diff(s.Time)
	if len(d) == 0 {
		return 0
	}
	return common.Mean(d)
}

// MedianTimestep returns the median sampling interval.
func (s Series) MedianTimestep() float64 {
	return common.Median(common.Diff(s.Time))
}

// TimePrecision is the number of decimals retention times are rounded to.
func (s Series) TimePrecision() int {
	return common.DecimalsFor(s.Timestep())
}

// Span returns the first and last sample times.
func (s Series) Span() (float64, float64) {
	if len(s.Time) == 0 {
		return 0, 0
	}
	return s.Time[0], s.Time[len(s.Time)-1]
}

// Range returns min and max intensity.
func (s Series) Range() (float64, float64) {
	if len(s.Intensity) == 0 {
		return 0, 0
	}
	return floats.Min(s.Intensity), floats.Max(s.Intensity)
}

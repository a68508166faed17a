package peaks

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/ionome/algorithms/common"
	"github.com/RyanBlaney/ionome/chromatogram"
)

const minQuickWidth = 3

// QuickConfig tunes the single-trace detector used for targeted XICs
type QuickConfig struct {
	HeightFactor     float64 `json:"height_factor"`     // noise floor multiple of the median intensity
	ProminenceFactor float64 `json:"prominence_factor"` // minimum prominence as a fraction of the maximum
}

// DefaultQuickConfig returns height_factor=3, prominence_factor=0.01
func DefaultQuickConfig() QuickConfig {
	return QuickConfig{
		HeightFactor:     3,
		ProminenceFactor: 0.01,
	}
}

// Validate checks parameter ranges
func (c QuickConfig) Validate() error {
	if c.HeightFactor < 0 {
		return fmt.Errorf("%w: height_factor must be non-negative, got %v", chromatogram.ErrConfiguration, c.HeightFactor)
	}
	if c.ProminenceFactor < 0 {
		return fmt.Errorf("%w: prominence_factor must be non-negative, got %v", chromatogram.ErrConfiguration, c.ProminenceFactor)
	}
	return nil
}

// MainPeak describes the dominant peak of a trace
type MainPeak struct {
	RetentionTime float64 `json:"rt"`
	Height        float64 `json:"height"`
	Area          float64 `json:"area"`
	Width         float64 `json:"width_rt"` // half-prominence width in time units
	LeftTime      float64 `json:"left_rt"`
	RightTime     float64 `json:"right_rt"`
}

// DetectMain finds the most intense peak in an already baseline-corrected
// trace. Candidates must stand HeightFactor times above the median and
// carry ProminenceFactor of the trace maximum as prominence. The boolean
// is false when nothing qualifies, which is not an error.
func DetectMain(s chromatogram.Series, cfg QuickConfig) (MainPeak, bool, error) {
	if err := cfg.Validate(); err != nil {
		return MainPeak{}, false, err
	}
	if err := s.Validate(); err != nil {
		return MainPeak{}, false, err
	}

	y := s.Intensity
	floor := cfg.HeightFactor * common.Median(y)
	minProminence := cfg.ProminenceFactor * floats.Max(y)

	main := -1
	for _, pk := range FindPeaks(y, minProminence) {
		if pk.Height < floor {
			continue
		}
		if main < 0 || pk.Height > y[main] {
			main = pk.Index
		}
	}
	if main < 0 {
		return MainPeak{}, false, nil
	}

	w := WidthsAt(y, []int{main}, 0.5)[0]
	left, right := int(w.Left), int(w.Right)
	if right-left < minQuickWidth {
		left = max(0, main-2)
		right = min(len(y)-1, main+2)
	}

	return MainPeak{
		RetentionTime: s.Time[main],
		Height:        y[main],
		Area:          common.Trapezoid(y[left:right+1], s.Time[left:right+1]),
		Width:         w.Width * s.MedianTimestep(),
		LeftTime:      s.Time[left],
		RightTime:     s.Time[right],
	}, true, nil
}

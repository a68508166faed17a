package peaks

import (
	"fmt"
	"sort"

	"github.com/RyanBlaney/ionome/algorithms/common"
	"github.com/RyanBlaney/ionome/algorithms/filters"
	"github.com/RyanBlaney/ionome/chromatogram"
	"github.com/RyanBlaney/ionome/logging"
)

// LocatorConfig controls apex detection on the sign-normalised signal
type LocatorConfig struct {
	Prominence     float64 `json:"prominence"`      // minimum prominence on the [0, 1] normalised scale
	RelHeight      float64 `json:"rel_height"`      // relative height of the boundary width, [0, 1]
	SmoothingSigma float64 `json:"smoothing_sigma"` // optional Gaussian pre-smoothing in samples, 0 disables
}

// Validate checks parameter ranges
func (c LocatorConfig) Validate() error {
	if !(c.Prominence > 0) {
		return fmt.Errorf("%w: prominence must be positive, got %v", chromatogram.ErrConfiguration, c.Prominence)
	}
	if !(c.RelHeight >= 0 && c.RelHeight <= 1) {
		return fmt.Errorf("%w: rel_height must be between 0 and 1, got %v", chromatogram.ErrConfiguration, c.RelHeight)
	}
	if c.SmoothingSigma < 0 {
		return fmt.Errorf("%w: smoothing_sigma must be non-negative, got %v", chromatogram.ErrConfiguration, c.SmoothingSigma)
	}
	return nil
}

// Candidate is one detected apex with the widths the window builder needs
type Candidate struct {
	Index     int     // apex sample index
	Polarity  int     // +1 for a positive peak, -1 for a negative one
	HalfWidth float64 // width at half prominence, in samples
	Left      int     // boundary at RelHeight, truncated to a whole sample
	Right     int
}

// Locations holds the candidates of both polarity passes sorted by index
type Locations struct {
	Candidates []Candidate
}

// Apexes returns the apex indices in ascending order
func (l *Locations) Apexes() []int {
	out := make([]int, len(l.Candidates))
	for i, c := range l.Candidates {
		out[i] = c.Index
	}
	return out
}

// Len returns the number of candidates
func (l *Locations) Len() int {
	return len(l.Candidates)
}

// Locator finds candidate apexes in a baseline-corrected signal
type Locator struct {
	config LocatorConfig
	logger logging.Logger
}

// NewLocator creates a locator
func NewLocator(config LocatorConfig, logger logging.Logger) *Locator {
	if logger == nil {
		logger = logging.WithFields(logging.Fields{"component": "peak_locator"})
	}
	return &Locator{config: config, logger: logger}
}

// Locate is a convenience wrapper around NewLocator(cfg, nil).Locate
func Locate(corrected []float64, cfg LocatorConfig) (*Locations, error) {
	return NewLocator(cfg, nil).Locate(corrected)
}

// Locate normalises corrected as sign(x)*(x-min)/(max-min) and runs the
// same detection on the normalised signal and on its negation. Widths are
// measured on the corrected signal carrying the pass's polarity.
func (l *Locator) Locate(corrected []float64) (*Locations, error) {
	if err := l.config.Validate(); err != nil {
		return nil, err
	}
	if len(corrected) < 3 {
		return nil, fmt.Errorf("%w: peak detection needs at least 3 samples, got %d",
			chromatogram.ErrConfiguration, len(corrected))
	}
	if !common.AllFinite(corrected) {
		return nil, fmt.Errorf("%w: corrected signal must be finite", chromatogram.ErrConfiguration)
	}

	normalized := common.SignNormalize(corrected)

	var smoother *filters.GaussianSmoother
	if l.config.SmoothingSigma > 0 {
		var err error
		smoother, err = filters.NewGaussianSmoother(l.config.SmoothingSigma)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", chromatogram.ErrConfiguration, err)
		}
	}

	var candidates []Candidate
	for _, polarity := range []int{1, -1} {
		found := l.locatePolarity(corrected, normalized, polarity, smoother)
		candidates = append(candidates, found...)
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no apex reaches prominence %v", chromatogram.ErrNoPeaksDetected, l.config.Prominence)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Index < candidates[j].Index
	})

	fields := logging.Fields{
		"candidates": len(candidates),
		"prominence": l.config.Prominence,
		"rel_height": l.config.RelHeight,
	}
	if smoother != nil {
		fields["smoothing_sigma"] = smoother.Sigma()
	}
	l.logger.Debug("Peak candidates located", fields)
	return &Locations{Candidates: candidates}, nil
}

func (l *Locator) locatePolarity(corrected, normalized []float64, polarity int, smoother *filters.GaussianSmoother) []Candidate {
	sign := float64(polarity)

	search := normalized
	if polarity < 0 {
		search = common.Negate(normalized)
	}
	if smoother != nil {
		search = smoother.Process(search)
	}

	var apexes []int
	for _, pk := range FindPeaks(search, l.config.Prominence) {
		if sign*normalized[pk.Index] > 0 {
			apexes = append(apexes, pk.Index)
		}
	}
	if len(apexes) == 0 {
		return nil
	}

	signal := corrected
	if polarity < 0 {
		signal = common.Negate(corrected)
	}
	half := WidthsAt(signal, apexes, 0.5)
	bounds := WidthsAt(signal, apexes, l.config.RelHeight)

	out := make([]Candidate, len(apexes))
	for i, idx := range apexes {
		out[i] = Candidate{
			Index:     idx,
			Polarity:  polarity,
			HalfWidth: half[i].Width,
			Left:      int(bounds[i].Left),
			Right:     int(bounds[i].Right),
		}
	}
	return out
}

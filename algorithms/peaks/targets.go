package peaks

import (
	"fmt"
	"math"
	"sort"

	"github.com/RyanBlaney/ionome/chromatogram"
)

// Target is a named m/z to extract and screen
type Target struct {
	Name string  `json:"name"`
	MZ   float64 `json:"mz"`
}

// TargetConfig lists the targets of a screening run
type TargetConfig struct {
	Tolerance float64            `json:"tol"` // absolute m/z half-width of the extraction
	MZ        map[string]float64 `json:"mz"`  // target name -> m/z
}

// DefaultTargetConfig returns tol=0.005 and no targets
func DefaultTargetConfig() TargetConfig {
	return TargetConfig{Tolerance: 0.005}
}

// Validate checks the tolerance and every target m/z
func (c TargetConfig) Validate() error {
	if !(c.Tolerance >= 0) || math.IsInf(c.Tolerance, 0) {
		return fmt.Errorf("%w: target tol must be non-negative and finite, got %v", chromatogram.ErrConfiguration, c.Tolerance)
	}
	for name, mz := range c.MZ {
		if !(mz > 0) || math.IsInf(mz, 0) {
			return fmt.Errorf("%w: target %q has invalid mz %v", chromatogram.ErrConfiguration, name, mz)
		}
	}
	return nil
}

// Targets returns the configured targets sorted by name
func (c TargetConfig) Targets() []Target {
	out := make([]Target, 0, len(c.MZ))
	for name, mz := range c.MZ {
		out = append(out, Target{Name: name, MZ: mz})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TargetReport is one row of a screening table. The peak fields are
// present only when PeakFound is true.
type TargetReport struct {
	Sample     string  `json:"sample"`
	Metabolite string  `json:"metabolite"`
	MZ         float64 `json:"mz"`
	PeakFound  bool    `json:"peak_found"`
	*MainPeak
}

// DetectTargets extracts the XIC of every target from one sample's scan
// data and runs DetectMain on it. Rows follow the order of targets.
func DetectTargets(sample string, points []chromatogram.Point, targets []Target, tol float64, cfg QuickConfig) ([]TargetReport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reports := make([]TargetReport, 0, len(targets))
	for _, target := range targets {
		xic, err := chromatogram.ExtractXIC(points, target.MZ, tol)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", target.Name, err)
		}
		peak, found, err := DetectMain(xic, cfg)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", target.Name, err)
		}

		report := TargetReport{Sample: sample, Metabolite: target.Name, MZ: target.MZ, PeakFound: found}
		if found {
			report.MainPeak = &peak
		}
		reports = append(reports, report)
	}
	return reports, nil
}

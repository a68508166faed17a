package config

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/RyanBlaney/ionome/algorithms/baseline"
	"github.com/RyanBlaney/ionome/algorithms/peaks"
	"github.com/RyanBlaney/ionome/chromatogram"
)

// WindowConfig controls apex detection and window partitioning
type WindowConfig struct {
	Prominence float64 `json:"prominence"` // on the sign-normalised [0, 1] scale
	RelHeight  float64 `json:"rel_height"` // boundary width relative height, [0, 1]
	Buffer     int     `json:"buffer"`     // samples added on both sides of each boundary

	// Union overlapping or touching ranges instead of only dropping subsets
	MergeOverlapping bool `json:"merge_overlapping"`
	// Shortest background run kept as an interpeak window
	MinBackgroundRun int `json:"min_background_run"`
	// Gaussian pre-smoothing for apex detection, in samples; 0 disables
	SmoothingSigma float64 `json:"smoothing_sigma,omitempty"`
}

// DefaultWindowConfig returns the windowing defaults
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		Prominence:       0.01,
		RelHeight:        0.95,
		Buffer:           10,
		MergeOverlapping: true,
		MinBackgroundRun: 10,
	}
}

// Locator returns the peak locator settings embedded in c
func (c WindowConfig) Locator() peaks.LocatorConfig {
	return peaks.LocatorConfig{
		Prominence:     c.Prominence,
		RelHeight:      c.RelHeight,
		SmoothingSigma: c.SmoothingSigma,
	}
}

// Validate checks parameter ranges
func (c WindowConfig) Validate() error {
	if err := c.Locator().Validate(); err != nil {
		return err
	}
	if c.Buffer < 0 {
		return fmt.Errorf("%w: buffer must be non-negative, got %d", chromatogram.ErrConfiguration, c.Buffer)
	}
	if c.MinBackgroundRun < 1 {
		return fmt.Errorf("%w: min_background_run must be at least 1, got %d", chromatogram.ErrConfiguration, c.MinBackgroundRun)
	}
	return nil
}

// DeconvolutionConfig controls the per-window skew-normal fit
type DeconvolutionConfig struct {
	MaxIterations int `json:"max_iterations"` // solver residual evaluations per window
	Precision     int `json:"precision"`      // decimals of the unmixed matrix

	// Empty evaluates reconstructions on the series time axis, otherwise
	// exactly [start, stop] sampled at the series timestep.
	IntegrationWindow []float64 `json:"integration_window,omitempty"`

	// Windows fitted concurrently
	Workers int `json:"workers"`
}

// DefaultDeconvolutionConfig returns max_iterations=5000, precision=9
func DefaultDeconvolutionConfig() DeconvolutionConfig {
	return DeconvolutionConfig{
		MaxIterations: 5000,
		Precision:     9,
		Workers:       1,
	}
}

// Validate checks parameter ranges
func (c DeconvolutionConfig) Validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("%w: max_iterations must be at least 1, got %d", chromatogram.ErrConfiguration, c.MaxIterations)
	}
	if c.Precision < 0 {
		return fmt.Errorf("%w: precision must be non-negative, got %d", chromatogram.ErrConfiguration, c.Precision)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", chromatogram.ErrConfiguration, c.Workers)
	}
	switch len(c.IntegrationWindow) {
	case 0:
	case 2:
		start, stop := c.IntegrationWindow[0], c.IntegrationWindow[1]
		if math.IsNaN(start) || math.IsNaN(stop) || !(start < stop) {
			return fmt.Errorf("%w: integration window [%v, %v] must satisfy start < stop",
				chromatogram.ErrConfiguration, start, stop)
		}
	default:
		return fmt.Errorf("%w: integration window must be empty or [start, stop], got %d values",
			chromatogram.ErrConfiguration, len(c.IntegrationWindow))
	}
	return nil
}

// Config is everything one deconvolution run needs
type Config struct {
	Baseline      baseline.Config     `json:"baseline"`
	Windowing     WindowConfig        `json:"windowing"`
	Deconvolution DeconvolutionConfig `json:"deconvolution"`
	Quick         peaks.QuickConfig   `json:"quick"`
	Targets       peaks.TargetConfig  `json:"targets"`
}

// Default returns a Config with every stage at its defaults
func Default() *Config {
	return &Config{
		Baseline:      baseline.DefaultConfig(),
		Windowing:     DefaultWindowConfig(),
		Deconvolution: DefaultDeconvolutionConfig(),
		Quick:         peaks.DefaultQuickConfig(),
		Targets:       peaks.DefaultTargetConfig(),
	}
}

// Validate checks every stage
func (c *Config) Validate() error {
	if err := c.Baseline.Validate(); err != nil {
		return err
	}
	if err := c.Windowing.Validate(); err != nil {
		return err
	}
	if err := c.Deconvolution.Validate(); err != nil {
		return err
	}
	if err := c.Quick.Validate(); err != nil {
		return err
	}
	return c.Targets.Validate()
}

// Load decodes a JSON document over the defaults, so a file only needs
// the values it changes. Unknown keys are rejected.
func Load(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: decoding config: %v", chromatogram.ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Package deconvolution turns a raw chromatogram into a table of fitted
// skew-normal peaks and the matrix of their individual signals.
package deconvolution

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/ionome/algorithms/baseline"
	"github.com/RyanBlaney/ionome/algorithms/peaks"
	"github.com/RyanBlaney/ionome/chromatogram"
	"github.com/RyanBlaney/ionome/deconvolution/config"
	"github.com/RyanBlaney/ionome/logging"
)

// Result of a full run
type Result struct {
	Baseline   *baseline.Result   `json:"baseline"`
	Candidates *peaks.Locations   `json:"-"`
	Windows    []*Window          `json:"windows"`
	Fits       map[int]*WindowFit `json:"fits"`
	Peaks      []Peak             `json:"peaks"`
	Unmixed    *mat.Dense         `json:"-"`
	EvalTimes  []float64          `json:"-"`
	Warnings   []string           `json:"warnings,omitempty"`
}

// Pipeline runs baseline correction, peak location, windowing, fitting
// and aggregation in that order
type Pipeline struct {
	config *config.Config
	logger logging.Logger
}

// NewPipeline creates a pipeline. A nil config means config.Default().
func NewPipeline(cfg *config.Config) *Pipeline {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Pipeline{
		config: cfg,
		logger: logging.WithFields(logging.Fields{"component": "pipeline"}),
	}
}

// WithLogger replaces the pipeline logger
func (p *Pipeline) WithLogger(logger logging.Logger) *Pipeline {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// Config returns the configuration the pipeline runs with
func (p *Pipeline) Config() *config.Config {
	return p.config
}

// Run processes one series. Any fatal condition aborts the whole run and
// no partial result is returned.
func (p *Pipeline) Run(s chromatogram.Series) (*Result, error) {
	if err := p.config.Validate(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	evalTimes, err := EvaluationTimes(s, p.config.Deconvolution.IntegrationWindow)
	if err != nil {
		return nil, err
	}

	res := &Result{EvalTimes: evalTimes}

	res.Baseline, err = baseline.Correct(s, p.config.Baseline, p.logger.WithFields(logging.Fields{"stage": "baseline"}))
	if err != nil {
		return nil, fmt.Errorf("baseline: %w", err)
	}
	res.Warnings = append(res.Warnings, res.Baseline.Warnings...)

	locator := peaks.NewLocator(p.config.Windowing.Locator(), p.logger.WithFields(logging.Fields{"stage": "locate"}))
	res.Candidates, err = locator.Locate(res.Baseline.Corrected)
	if err != nil {
		return nil, fmt.Errorf("locating peaks: %w", err)
	}

	res.Windows, err = BuildWindows(s, res.Baseline.Corrected, res.Candidates, p.config.Windowing)
	if err != nil {
		return nil, fmt.Errorf("building windows: %w", err)
	}

	deconvolver := NewDeconvolver(p.config.Deconvolution, p.logger.WithFields(logging.Fields{"stage": "fit"}))
	res.Fits, err = deconvolver.FitAll(res.Windows, evalTimes, s)
	if err != nil {
		return nil, err
	}
	for _, w := range res.Windows {
		if fit := res.Fits[w.ID]; fit != nil {
			res.Warnings = append(res.Warnings, fit.Warnings...)
		}
	}

	res.Peaks, res.Unmixed, err = Aggregate(res.Fits, s, p.config.Deconvolution.Precision)
	if err != nil {
		return nil, err
	}

	p.logger.Info("Deconvolution complete", logging.Fields{
		"samples":    s.Len(),
		"candidates": res.Candidates.Len(),
		"windows":    len(res.Windows),
		"peaks":      len(res.Peaks),
	})
	return res, nil
}

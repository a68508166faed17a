// Package baseline separates slowly varying background from analyte
// signal in chromatogram intensity traces.
package baseline

import (
	"fmt"

	"github.com/RyanBlaney/ionome/chromatogram"
	"github.com/RyanBlaney/ionome/logging"
)

// Method selects the baseline algorithm
type Method string

const (
	MethodAsLS Method = "asls"
	MethodSNIP Method = "snip"
	MethodNone Method = "none"
)

// Result holds the estimated background and the corrected signal. Both
// slices have the length of the input.
type Result struct {
	Baseline   []float64 `json:"baseline"`
	Corrected  []float64 `json:"corrected"`
	Iterations int       `json:"iterations"`
	Converged  bool      `json:"converged"`
	Warnings   []string  `json:"warnings,omitempty"`
}

// Config selects a method and carries the parameters of both
type Config struct {
	Method Method     `json:"method"`
	AsLS   AsLSConfig `json:"asls"`
	SNIP   SNIPConfig `json:"snip"`
}

// DefaultConfig returns AsLS with its default parameters
func DefaultConfig() Config {
	return Config{
		Method: MethodAsLS,
		AsLS:   DefaultAsLSConfig(),
		SNIP:   DefaultSNIPConfig(),
	}
}

// Validate checks the parameters of the selected method
func (c Config) Validate() error {
	switch c.Method {
	case MethodAsLS, "":
		return c.AsLS.Validate()
	case MethodSNIP:
		return c.SNIP.Validate()
	case MethodNone:
		return nil
	default:
		return fmt.Errorf("%w: unknown baseline method %q", chromatogram.ErrConfiguration, c.Method)
	}
}

// Correct runs the configured method over s. MethodNone keeps the raw
// intensity and only clamps negatives.
func Correct(s chromatogram.Series, cfg Config, logger logging.Logger) (*Result, error) {
	if logger == nil {
		logger = logging.WithFields(logging.Fields{"component": "baseline"})
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Method {
	case MethodSNIP:
		return NewSNIP(cfg.SNIP, logger).Correct(s)
	case MethodNone:
		return passthrough(s.Intensity), nil
	default:
		return NewAsLS(cfg.AsLS, logger).Correct(s.Intensity)
	}
}

func passthrough(y []float64) *Result {
	res := &Result{
		Baseline:  make([]float64, len(y)),
		Corrected: make([]float64, len(y)),
		Converged: true,
	}
	for i, v := range y {
		res.Corrected[i] = max(v, 0)
	}
	return res
}

// finalize derives the corrected signal from raw and baseline. A raw
// sample of exactly zero always yields zero.
func finalize(raw, base []float64, clip bool) []float64 {
	corrected := make([]float64, len(raw))
	for i := range raw {
		c := raw[i] - base[i]
		if clip && c < 0 {
			c = 0
		}
		if raw[i] == 0 {
			c = 0
		}
		corrected[i] = c
	}
	return corrected
}

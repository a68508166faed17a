package deconvolution

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/ionome/algorithms/common"
	"github.com/RyanBlaney/ionome/algorithms/models"
	"github.com/RyanBlaney/ionome/algorithms/optimize"
	"github.com/RyanBlaney/ionome/chromatogram"
	"github.com/RyanBlaney/ionome/deconvolution/config"
	"github.com/RyanBlaney/ionome/logging"
)

const (
	minAmplitude      = 1e-6
	minSkewBound      = 5.0
	crowdedWindowSize = 10
)

// FittedPeak is one skew-normal component recovered from a window
type FittedPeak struct {
	Label         string            `json:"label"`
	Model         models.SkewNormal `json:"model"`
	RetentionTime float64           `json:"retention_time"` // Model.Location rounded to the time precision
	Reconstructed []float64         `json:"reconstructed_signal"`
	Area          float64           `json:"area"`
	SignalMax     float64           `json:"signal_max"`
}

// WindowFit is everything one window fit consumed and produced
type WindowFit struct {
	WindowID    int          `json:"window_id"`
	Peaks       []FittedPeak `json:"peaks"`
	Initial     []float64    `json:"initial"`
	Lower       []float64    `json:"lower"`
	Upper       []float64    `json:"upper"`
	Cost        float64      `json:"cost"`
	Evaluations int          `json:"evaluations"`
	Warnings    []string     `json:"warnings,omitempty"`
}

// MarshalJSON writes unbounded limits as null, since JSON has no infinity
func (f WindowFit) MarshalJSON() ([]byte, error) {
	type plain WindowFit
	return json.Marshal(struct {
		plain
		Lower []*float64 `json:"lower"`
		Upper []*float64 `json:"upper"`
	}{plain(f), finiteOrNull(f.Lower), finiteOrNull(f.Upper)})
}

func finiteOrNull(values []float64) []*float64 {
	if values == nil {
		return nil
	}
	out := make([]*float64, len(values))
	for i := range values {
		if !math.IsInf(values[i], 0) && !math.IsNaN(values[i]) {
			out[i] = &values[i]
		}
	}
	return out
}

// Deconvolver fits sums of skew-normal peaks to peak windows
type Deconvolver struct {
	config config.DeconvolutionConfig
	logger logging.Logger
}

// NewDeconvolver creates a deconvolver
func NewDeconvolver(cfg config.DeconvolutionConfig, logger logging.Logger) *Deconvolver {
	if logger == nil {
		logger = logging.WithFields(logging.Fields{"component": "deconvolver"})
	}
	return &Deconvolver{config: cfg, logger: logger}
}

// FitWindow is NewDeconvolver(cfg, nil).FitWindow
func FitWindow(w *Window, evalTimes []float64, s chromatogram.Series, cfg config.DeconvolutionConfig) (*WindowFit, error) {
	return NewDeconvolver(cfg, nil).FitWindow(w, evalTimes, s)
}

// EvaluationTimes returns the axis reconstructions are sampled on: the
// series time axis, or [start, stop) stepped at the series timestep.
func EvaluationTimes(s chromatogram.Series, integrationWindow []float64) ([]float64, error) {
	switch len(integrationWindow) {
	case 0:
		return append([]float64(nil), s.Time...), nil
	case 2:
		start, stop := integrationWindow[0], integrationWindow[1]
		if !(start < stop) {
			return nil, fmt.Errorf("%w: integration window [%v, %v] must satisfy start < stop",
				chromatogram.ErrConfiguration, start, stop)
		}
		return common.Arange(start, stop, s.Timestep()), nil
	default:
		return nil, fmt.Errorf("%w: integration window must be empty or [start, stop], got %d values",
			chromatogram.ErrConfiguration, len(integrationWindow))
	}
}

// FitWindow jointly fits one skew-normal per apex of w and reconstructs
// each component over evalTimes. Windows without apexes give nil, nil.
// Running out of solver evaluations is ErrConvergence.
func (d *Deconvolver) FitWindow(w *Window, evalTimes []float64, s chromatogram.Series) (*WindowFit, error) {
	if err := d.config.Validate(); err != nil {
		return nil, err
	}
	if w == nil || w.NumPeaks == 0 {
		return nil, nil
	}
	if w.Len() < 2 {
		return nil, fmt.Errorf("%w: window %d has %d samples, need at least 2",
			chromatogram.ErrConfiguration, w.ID, w.Len())
	}
	if len(w.Amplitude) != w.NumPeaks || len(w.Location) != w.NumPeaks || len(w.Width) != w.NumPeaks {
		return nil, fmt.Errorf("%w: window %d guesses do not match its %d peaks",
			chromatogram.ErrConfiguration, w.ID, w.NumPeaks)
	}

	logger := d.logger.WithFields(logging.Fields{"window_id": w.ID, "num_peaks": w.NumPeaks})
	fit := &WindowFit{WindowID: w.ID}

	if w.NumPeaks >= crowdedWindowSize {
		msg := fmt.Sprintf("too many peaks (%d) detected between %v-%v; the fit may take some time",
			w.NumPeaks, floats.Min(w.Time), floats.Max(w.Time))
		fit.Warnings = append(fit.Warnings, msg)
		logger.Warn(msg)
	}

	fit.Initial, fit.Lower, fit.Upper = initialGuess(w, s.Timestep())

	problem := optimize.Problem{
		Residual: func(dst, x []float64) {
			models.Sum(dst, w.Time, x)
			floats.Sub(dst, w.Signal)
		},
		Jacobian: func(dst *mat.Dense, x []float64) {
			models.SumJacobian(dst, w.Time, x)
		},
		M:     w.Len(),
		Lower: fit.Lower,
		Upper: fit.Upper,
	}
	settings := optimize.DefaultSettings()
	settings.MaxEvaluations = d.config.MaxIterations

	res, err := optimize.Minimize(problem, fit.Initial, &settings)
	if err != nil {
		if errors.Is(err, optimize.ErrNotConverged) {
			return nil, fmt.Errorf("%w: window %d: %w", chromatogram.ErrConvergence, w.ID, err)
		}
		return nil, fmt.Errorf("fitting window %d: %w", w.ID, err)
	}
	fit.Cost = res.Cost
	fit.Evaluations = res.Evaluations

	components, err := models.Unpack(res.X)
	if err != nil {
		return nil, err
	}
	precision := s.TimePrecision()
	for i, m := range components {
		recon := m.Evaluate(evalTimes)
		fp := FittedPeak{
			Label:         fmt.Sprintf("peak_%d", i+1),
			Model:         m,
			RetentionTime: common.Round(m.Location, precision),
			Reconstructed: recon,
			Area:          floats.Sum(recon),
		}
		if len(recon) > 0 {
			fp.SignalMax = floats.Max(recon)
		}
		fit.Peaks = append(fit.Peaks, fp)
	}

	logger.Debug("Window fitted", logging.Fields{
		"cost":        res.Cost,
		"evaluations": res.Evaluations,
		"status":      res.Status.String(),
	})
	return fit, nil
}

// initialGuess packs [amplitude, location, scale, skew] per apex together
// with bounds that keep the zero-skew start strictly feasible.
func initialGuess(w *Window, timestep float64) (x0, lower, upper []float64) {
	tMin, tMax := floats.Min(w.Time), floats.Max(w.Time)
	for i := 0; i < w.NumPeaks; i++ {
		amp := math.Max(w.Amplitude[i], minAmplitude)
		loc := common.Clamp(w.Location[i], tMin, tMax)
		scale := math.Max(w.Width[i]/2, timestep)

		lo := []float64{math.Min(0.01*amp, 100*amp), tMin, 0, math.Inf(-1)}
		hi := []float64{math.Max(0.01*amp, 100*amp), tMax, (tMax - tMin) / 2, math.Inf(1)}
		lo[3] = math.Min(lo[3], -minSkewBound)
		hi[3] = math.Max(hi[3], minSkewBound)

		guess := []float64{amp, loc, scale, 0}
		for k := range guess {
			guess[k] = common.Clamp(guess[k], lo[k], hi[k])
		}

		x0 = append(x0, guess...)
		lower = append(lower, lo...)
		upper = append(upper, hi...)
	}
	return x0, lower, upper
}

// FitAll fits every window with apexes, Workers at a time. Fits are keyed
// by window id; when several windows fail the one with the lowest id is
// reported, so the outcome does not depend on scheduling.
func (d *Deconvolver) FitAll(windows []*Window, evalTimes []float64, s chromatogram.Series) (map[int]*WindowFit, error) {
	if err := d.config.Validate(); err != nil {
		return nil, err
	}

	var todo []*Window
	for _, w := range windows {
		if w.NumPeaks > 0 {
			todo = append(todo, w)
		}
	}

	type outcome struct {
		id  int
		fit *WindowFit
		err error
	}
	results := make([]outcome, len(todo))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for n := min(d.config.Workers, max(len(todo), 1)); n > 0; n-- {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				fit, err := d.FitWindow(todo[j], evalTimes, s)
				results[j] = outcome{id: todo[j].ID, fit: fit, err: err}
			}
		}()
	}
	for j := range todo {
		jobs <- j
	}
	close(jobs)
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].id < results[j].id })
	fits := make(map[int]*WindowFit, len(results))
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		if r.fit != nil {
			fits[r.id] = r.fit
		}
	}
	return fits, nil
}

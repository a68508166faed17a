package baseline

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/ionome/algorithms/common"
	"github.com/RyanBlaney/ionome/chromatogram"
	"github.com/RyanBlaney/ionome/logging"
)

// AsLSConfig parameterises asymmetric least squares smoothing
type AsLSConfig struct {
	Lambda        float64 `json:"lam"`   // smoothness, typically 1e4-1e6
	Asymmetry     float64 `json:"p"`     // weight for points above the baseline, (0, 1)
	MaxIterations int     `json:"niter"` // reweighting passes
	Tolerance     float64 `json:"tol"`   // relative change that stops the iteration
}

// DefaultAsLSConfig returns lam=1e5, p=0.01, niter=10, tol=1e-6
func DefaultAsLSConfig() AsLSConfig {
	return AsLSConfig{
		Lambda:        1e5,
		Asymmetry:     0.01,
		MaxIterations: 10,
		Tolerance:     1e-6,
	}
}

// Validate checks parameter ranges
func (c AsLSConfig) Validate() error {
	if !(c.Lambda > 0) {
		return fmt.Errorf("%w: asls lam must be positive, got %v", chromatogram.ErrConfiguration, c.Lambda)
	}
	if !(c.Asymmetry > 0 && c.Asymmetry < 1) {
		return fmt.Errorf("%w: asls p must be in (0, 1), got %v", chromatogram.ErrConfiguration, c.Asymmetry)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("%w: asls niter must be at least 1, got %d", chromatogram.ErrConfiguration, c.MaxIterations)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("%w: asls tol must be non-negative, got %v", chromatogram.ErrConfiguration, c.Tolerance)
	}
	return nil
}

// AsLS estimates a baseline b by minimising
//
//	Σ w_i (y_i - b_i)² + λ Σ (Δ²b_i)²
//
// with weights w_i = p above the current baseline and 1-p at or below it.
//
// Reference:
//   - P. H. C. Eilers & H. F. M. Boelens, "Baseline Correction with
//     Asymmetric Least Squares Smoothing", 2005.
//
// The normal equations (W + λDᵀD) b = W y are pentadiagonal, so every pass
// is a banded Cholesky solve in O(n).
type AsLS struct {
	config AsLSConfig
	logger logging.Logger
}

// NewAsLS creates an AsLS estimator
func NewAsLS(config AsLSConfig, logger logging.Logger) *AsLS {
	if logger == nil {
		logger = logging.WithFields(logging.Fields{"component": "baseline", "method": "asls"})
	}
	return &AsLS{config: config, logger: logger}
}

// Correct computes baseline and corrected signal for y. y is not modified.
func (a *AsLS) Correct(y []float64) (*Result, error) {
	if err := a.config.Validate(); err != nil {
		return nil, err
	}
	n := len(y)
	if n < 3 {
		return nil, fmt.Errorf("%w: asls needs at least 3 samples, got %d", chromatogram.ErrConfiguration, n)
	}
	if !common.AllFinite(y) {
		return nil, fmt.Errorf("%w: asls input must be finite", chromatogram.ErrConfiguration)
	}

	penalty := secondDifferencePenalty(n, a.config.Lambda)

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1
	}
	baseline := make([]float64, n)
	previous := make([]float64, n)
	diff := make([]float64, n)
	rhs := mat.NewVecDense(n, nil)
	solution := mat.NewVecDense(n, nil)
	system := mat.NewSymBandDense(n, 2, nil)
	var chol mat.BandCholesky

	result := &Result{}
	for iter := 0; iter < a.config.MaxIterations; iter++ {
		for i := 0; i < n; i++ {
			for j := i; j <= i+2 && j < n; j++ {
				v := penalty.At(i, j)
				if i == j {
					v += weights[i]
				}
				system.SetSymBand(i, j, v)
			}
			rhs.SetVec(i, weights[i]*y[i])
		}

		if ok := chol.Factorize(system); !ok {
			return nil, fmt.Errorf("%w: asls system is not positive definite", chromatogram.ErrConfiguration)
		}
		if err := chol.SolveVecTo(solution, rhs); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) {
				return nil, fmt.Errorf("asls solve failed: %w", err)
			}
			a.logger.Debug("AsLS system is ill-conditioned", logging.Fields{"condition": float64(cond)})
		}

		copy(previous, baseline)
		for i := range baseline {
			baseline[i] = solution.AtVec(i)
		}
		result.Iterations = iter + 1

		floats.SubTo(diff, baseline, previous)
		change := floats.Norm(diff, 2) / (floats.Norm(previous, 2) + 1e-8)
		if change < a.config.Tolerance {
			result.Converged = true
			break
		}

		for i := range weights {
			if y[i]-baseline[i] > 0 {
				weights[i] = a.config.Asymmetry
			} else {
				weights[i] = 1 - a.config.Asymmetry
			}
		}
	}

	if !result.Converged {
		a.logger.Debug("AsLS stopped at iteration limit", logging.Fields{
			"iterations": result.Iterations,
		})
	}

	result.Baseline = baseline
	result.Corrected = finalize(y, baseline, true)
	return result, nil
}

// secondDifferencePenalty returns λ·DᵀD for the (n-2)×n second-order
// difference operator D with rows [1 -2 1].
func secondDifferencePenalty(n int, lambda float64) *mat.SymBandDense {
	p := mat.NewSymBandDense(n, 2, nil)
	coef := [3]float64{1, -2, 1}
	for r := 0; r+2 < n; r++ {
		for a := 0; a < 3; a++ {
			for b := a; b < 3; b++ {
				i, j := r+a, r+b
				p.SetSymBand(i, j, p.At(i, j)+lambda*coef[a]*coef[b])
			}
		}
	}
	return p
}

// Package optimize solves small bound-constrained nonlinear least squares
// problems, min ½‖r(x)‖² subject to lower ≤ x ≤ upper.
package optimize

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrNotConverged is returned when the evaluation budget runs out before
// any tolerance is met. The returned Result still holds the last iterate.
var ErrNotConverged = errors.New("optimize: evaluation budget exhausted before convergence")

const (
	initialDamping   = 1e-3
	feasibleMargin   = 1e-10
	minGainReduction = 0.25
)

// Problem describes the residual vector r(x) of length M
type Problem struct {
	// Residual stores r(x) into dst.
	Residual func(dst, x []float64)
	// Jacobian stores ∂r/∂x into the M×len(x) matrix dst. When nil a
	// central finite-difference Jacobian is used.
	Jacobian func(dst *mat.Dense, x []float64)
	M        int

	// Lower and Upper bound each parameter. Either may be nil; infinities
	// are allowed.
	Lower []float64
	Upper []float64
}

// Settings control termination
type Settings struct {
	MaxEvaluations int     // residual evaluations after the initial one
	FTol           float64 // relative cost reduction
	XTol           float64 // relative step size
	GTol           float64 // scaled gradient infinity norm
}

// DefaultSettings returns the tolerances used by most curve fitting tools
func DefaultSettings() Settings {
	return Settings{
		MaxEvaluations: 1000,
		FTol:           1e-8,
		XTol:           1e-8,
		GTol:           1e-8,
	}
}

// Status tells which test stopped the solver
type Status int

const (
	NotConverged Status = iota
	GradientConverged
	CostConverged
	StepConverged
	ZeroCost
)

func (s Status) String() string {
	switch s {
	case GradientConverged:
		return "gradient tolerance met"
	case CostConverged:
		return "cost tolerance met"
	case StepConverged:
		return "step tolerance met"
	case ZeroCost:
		return "zero residual"
	default:
		return "not converged"
	}
}

// Result of a Minimize call
type Result struct {
	X           []float64
	Cost        float64 // ½‖r(X)‖²
	Evaluations int
	Status      Status
}

// Converged reports whether any termination test was met
func (r *Result) Converged() bool {
	return r.Status != NotConverged
}

// Minimize runs a projected Levenberg-Marquardt iteration from x0.
//
// Every step solves (JᵀJ + μD²)h = -Jᵀr with D the running maximum of the
// Jacobian column norms, then projects x+h back into the box. Iterates are
// kept strictly inside the bounds so densities with a scale bounded at
// zero are never evaluated at the boundary. μ follows Nielsen's gain-ratio
// update.
//
// Convergence follows the usual trust-region tests: the gradient scaled by
// the distance to the bound it points at, the relative cost reduction of
// an accepted step, and the relative step length.
func Minimize(p Problem, x0 []float64, settings *Settings) (*Result, error) {
	s := DefaultSettings()
	if settings != nil {
		s = *settings
	}
	n := len(x0)
	if err := validate(p, n, s); err != nil {
		return nil, err
	}

	lower, upper := interiorBounds(p.Lower, p.Upper, n)
	x := make([]float64, n)
	for i := range x {
		x[i] = project(x0[i], lower[i], upper[i])
	}

	jacobian := p.Jacobian
	if jacobian == nil {
		jacobian = func(dst *mat.Dense, x []float64) {
			fd.Jacobian(dst, p.Residual, x, &fd.JacobianSettings{Formula: fd.Central})
		}
	}

	r := make([]float64, p.M)
	p.Residual(r, x)
	cost := 0.5 * floats.Dot(r, r)
	if !isFinite(cost) {
		return nil, fmt.Errorf("optimize: residual is not finite at the initial point")
	}

	res := &Result{X: x, Cost: cost}
	if cost == 0 {
		res.Status = ZeroCost
		return res, nil
	}

	J := mat.NewDense(p.M, n, nil)
	jacobian(J, x)
	scale := make([]float64, n)
	updateScale(scale, J)

	var (
		jtj     mat.SymDense
		system  = mat.NewSymDense(n, nil)
		chol    mat.Cholesky
		grad    = mat.NewVecDense(n, nil)
		step    = mat.NewVecDense(n, nil)
		jStep   = mat.NewVecDense(p.M, nil)
		trial   = make([]float64, n)
		taken   = make([]float64, n)
		rTrial  = make([]float64, p.M)
		rVec    = mat.NewVecDense(p.M, r)
		damping = initialDamping
		growth  = 2.0
	)

	fresh := true
	for {
		if fresh {
			grad.MulVec(J.T(), rVec)
			jtj.SymOuterK(1, J.T())
			if scaledGradientNorm(grad.RawVector().Data, x, p.Lower, p.Upper) < s.GTol {
				res.Status = GradientConverged
				break
			}
			fresh = false
		}
		if res.Evaluations >= s.MaxEvaluations {
			break
		}

		system.CopySym(&jtj)
		for i := 0; i < n; i++ {
			system.SetSym(i, i, jtj.At(i, i)+damping*scale[i]*scale[i])
		}
		if ok := chol.Factorize(system); !ok {
			damping *= growth
			growth *= 2
			if math.IsInf(damping, 0) {
				break
			}
			continue
		}
		if err := chol.SolveVecTo(step, grad); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) {
				return nil, fmt.Errorf("optimize: solving damped system: %w", err)
			}
		}

		for i := range trial {
			trial[i] = project(x[i]-step.AtVec(i), lower[i], upper[i])
			taken[i] = trial[i] - x[i]
		}
		p.Residual(rTrial, trial)
		res.Evaluations++
		trialCost := 0.5 * floats.Dot(rTrial, rTrial)

		jStep.MulVec(J, mat.NewVecDense(n, taken))
		predicted := -floats.Dot(grad.RawVector().Data, taken) - 0.5*floats.Dot(jStep.RawVector().Data, jStep.RawVector().Data)
		actual := cost - trialCost
		if !isFinite(trialCost) {
			actual = math.Inf(-1)
		}

		ratio := -1.0
		if predicted > 0 {
			ratio = actual / predicted
		}

		stepNorm := floats.Norm(taken, 2)
		stepSmall := stepNorm < s.XTol*(s.XTol+floats.Norm(x, 2))

		if ratio > 0 && actual > 0 {
			costSmall := actual < s.FTol*cost && ratio > minGainReduction
			copy(x, trial)
			copy(r, rTrial)
			cost = trialCost
			res.Cost = cost

			damping *= math.Max(1.0/3, 1-math.Pow(2*ratio-1, 3))
			growth = 2

			switch {
			case cost == 0:
				res.Status = ZeroCost
			case costSmall:
				res.Status = CostConverged
			case stepSmall:
				res.Status = StepConverged
			}
			if res.Status != NotConverged {
				break
			}

			jacobian(J, x)
			updateScale(scale, J)
			fresh = true
			continue
		}

		if stepSmall {
			res.Status = StepConverged
			break
		}
		damping *= growth
		growth *= 2
		if math.IsInf(damping, 0) {
			break
		}
	}

	if !res.Converged() {
		return res, fmt.Errorf("%w after %d evaluations (cost %g)", ErrNotConverged, res.Evaluations, res.Cost)
	}
	return res, nil
}

func validate(p Problem, n int, s Settings) error {
	if n == 0 {
		return errors.New("optimize: empty parameter vector")
	}
	if p.Residual == nil {
		return errors.New("optimize: nil residual function")
	}
	if p.M < 1 {
		return fmt.Errorf("optimize: residual length must be positive, got %d", p.M)
	}
	if p.Lower != nil && len(p.Lower) != n {
		return fmt.Errorf("optimize: %d lower bounds for %d parameters", len(p.Lower), n)
	}
	if p.Upper != nil && len(p.Upper) != n {
		return fmt.Errorf("optimize: %d upper bounds for %d parameters", len(p.Upper), n)
	}
	for i := 0; i < n; i++ {
		lo, hi := bound(p.Lower, i, math.Inf(-1)), bound(p.Upper, i, math.Inf(1))
		if math.IsNaN(lo) || math.IsNaN(hi) || lo >= hi {
			return fmt.Errorf("optimize: invalid bounds [%v, %v] for parameter %d", lo, hi, i)
		}
	}
	if s.MaxEvaluations < 1 {
		return fmt.Errorf("optimize: evaluation budget must be positive, got %d", s.MaxEvaluations)
	}
	return nil
}

func bound(b []float64, i int, def float64) float64 {
	if b == nil {
		return def
	}
	return b[i]
}

// interiorBounds shrinks every finite bound by a relative margin so that
// projected iterates stay strictly feasible.
func interiorBounds(lower, upper []float64, n int) ([]float64, []float64) {
	lo := make([]float64, n)
	hi := make([]float64, n)
	for i := 0; i < n; i++ {
		l, u := bound(lower, i, math.Inf(-1)), bound(upper, i, math.Inf(1))
		lo[i], hi[i] = l, u
		if !math.IsInf(l, 0) {
			lo[i] = l + feasibleMargin*math.Max(1, math.Abs(l))
		}
		if !math.IsInf(u, 0) {
			hi[i] = u - feasibleMargin*math.Max(1, math.Abs(u))
		}
		if lo[i] > hi[i] {
			mid := l + (u-l)/2
			lo[i], hi[i] = mid, mid
		}
	}
	return lo, hi
}

func project(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// scaledGradientNorm is ‖v·g‖∞ where v is the distance to the bound the
// descent direction -g points at, or 1 when that bound is infinite.
func scaledGradientNorm(g, x, lower, upper []float64) float64 {
	norm := 0.0
	for i, gi := range g {
		v := 1.0
		switch {
		case gi < 0:
			if u := bound(upper, i, math.Inf(1)); !math.IsInf(u, 1) {
				v = u - x[i]
			}
		case gi > 0:
			if l := bound(lower, i, math.Inf(-1)); !math.IsInf(l, -1) {
				v = x[i] - l
			}
		}
		norm = math.Max(norm, math.Abs(gi*v))
	}
	return norm
}

func updateScale(scale []float64, J *mat.Dense) {
	m, _ := J.Dims()
	col := make([]float64, m)
	for j := range scale {
		mat.Col(col, j, J)
		scale[j] = math.Max(scale[j], floats.Norm(col, 2))
		if scale[j] == 0 {
			scale[j] = 1
		}
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

package optimize

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func rosenbrock() Problem {
	return Problem{
		Residual: func(dst, x []float64) {
			dst[0] = 10 * (x[1] - x[0]*x[0])
			dst[1] = 1 - x[0]
		},
		M: 2,
	}
}

func TestMinimizeRosenbrockFiniteDifference(t *testing.T) {
	res, err := Minimize(rosenbrock(), []float64{-1.2, 1}, nil)
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	if math.Abs(res.X[0]-1) > 1e-6 || math.Abs(res.X[1]-1) > 1e-6 {
		t.Fatalf("X = %v, want [1 1] (%v)", res.X, res.Status)
	}
	if !res.Converged() {
		t.Fatalf("status = %v", res.Status)
	}
}

func TestMinimizeLinear(t *testing.T) {
	// overdetermined line fit y = 2t + 1
	ts := []float64{0, 1, 2, 3, 4}
	p := Problem{
		Residual: func(dst, x []float64) {
			for i, t := range ts {
				dst[i] = x[0]*t + x[1] - (2*t + 1)
			}
		},
		Jacobian: func(dst *mat.Dense, x []float64) {
			for i, t := range ts {
				dst.Set(i, 0, t)
				dst.Set(i, 1, 1)
			}
		},
		M: len(ts),
	}
	res, err := Minimize(p, []float64{0, 0}, nil)
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	if math.Abs(res.X[0]-2) > 1e-8 || math.Abs(res.X[1]-1) > 1e-8 {
		t.Fatalf("X = %v, want [2 1]", res.X)
	}
}

func TestMinimizeActiveBound(t *testing.T) {
	ts := []float64{0, 0.5, 1, 1.5, 2, 3, 4}
	p := Problem{
		Residual: func(dst, x []float64) {
			for i, t := range ts {
				dst[i] = x[0]*math.Exp(-x[1]*t) - 2*math.Exp(-0.5*t)
			}
		},
		Jacobian: func(dst *mat.Dense, x []float64) {
			for i, t := range ts {
				e := math.Exp(-x[1] * t)
				dst.Set(i, 0, e)
				dst.Set(i, 1, -x[0]*t*e)
			}
		},
		M:     len(ts),
		Lower: []float64{0, 0},
		Upper: []float64{1.5, 10},
	}
	res, err := Minimize(p, []float64{1, 1}, nil)
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	if res.X[0] >= 1.5 || 1.5-res.X[0] > 1e-6 {
		t.Fatalf("amplitude = %v, want just below the 1.5 bound", res.X[0])
	}
}

func TestMinimizeStaysStrictlyFeasible(t *testing.T) {
	var touched bool
	p := Problem{
		Residual: func(dst, x []float64) {
			if x[0] <= 0 {
				touched = true
			}
			dst[0] = x[0] + 1
		},
		Jacobian: func(dst *mat.Dense, x []float64) {
			dst.Set(0, 0, 1)
		},
		M:     1,
		Lower: []float64{0},
		Upper: []float64{math.Inf(1)},
	}
	res, err := Minimize(p, []float64{0}, nil)
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	if touched {
		t.Fatal("residual evaluated on the bound")
	}
	if res.X[0] <= 0 || res.X[0] > 1e-6 {
		t.Fatalf("X = %v, want just above 0", res.X[0])
	}
}

func TestMinimizeBudgetExhausted(t *testing.T) {
	settings := DefaultSettings()
	settings.MaxEvaluations = 1
	res, err := Minimize(rosenbrock(), []float64{-1.2, 1}, &settings)
	if !errors.Is(err, ErrNotConverged) {
		t.Fatalf("err = %v, want ErrNotConverged", err)
	}
	if res == nil || res.Evaluations != 1 || res.Converged() {
		t.Fatalf("result = %+v", res)
	}
}

func TestMinimizeZeroCostStart(t *testing.T) {
	res, err := Minimize(rosenbrock(), []float64{1, 1}, nil)
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	if res.Status != ZeroCost || res.Evaluations != 0 {
		t.Fatalf("status = %v after %d evaluations", res.Status, res.Evaluations)
	}
}

func TestMinimizeValidation(t *testing.T) {
	base := rosenbrock()
	tests := []struct {
		name string
		mod  func(p *Problem)
		x0   []float64
	}{
		{"empty x0", func(p *Problem) {}, nil},
		{"nil residual", func(p *Problem) { p.Residual = nil }, []float64{0, 0}},
		{"lower length", func(p *Problem) { p.Lower = []float64{0} }, []float64{0, 0}},
		{"inverted bounds", func(p *Problem) {
			p.Lower = []float64{1, 0}
			p.Upper = []float64{0, 1}
		}, []float64{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mod(&p)
			if _, err := Minimize(p, tt.x0, nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

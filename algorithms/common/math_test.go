package common

import (
	"math"
	"testing"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want float64
	}{
		{"empty", nil, 0},
		{"odd", []float64{3, 1, 2}, 2},
		{"even", []float64{4, 1, 3, 2}, 2.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Median(tt.in); got != tt.want {
				t.Fatalf("Median(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMedianDoesNotMutate(t *testing.T) {
	in := []float64{3, 1, 2}
	Median(in)
	if in[0] != 3 || in[1] != 1 || in[2] != 2 {
		t.Fatalf("input mutated: %v", in)
	}
}

func TestDecimalsFor(t *testing.T) {
	tests := []struct {
		step float64
		want int
	}{
		{0.01, 2},
		{0.010000000000000002, 2},
		{0.009999999999999998, 2},
		{0.015, 1},
		{0.001, 3},
		{0.5, 0},
		{0, 0},
	}
	for _, tt := range tests {
		if got := DecimalsFor(tt.step); got != tt.want {
			t.Errorf("DecimalsFor(%v) = %d, want %d", tt.step, got, tt.want)
		}
	}
}

func TestRound(t *testing.T) {
	if got := Round(1.23456, 2); got != 1.23 {
		t.Fatalf("Round = %v, want 1.23", got)
	}
	if got := Round(-1.235, 0); got != -1 {
		t.Fatalf("Round = %v, want -1", got)
	}
	if got := Round(math.Inf(1), 3); !math.IsInf(got, 1) {
		t.Fatalf("Round(+Inf) = %v", got)
	}
}

func TestArange(t *testing.T) {
	got := Arange(1, 2, 0.25)
	want := []float64{1, 1.25, 1.5, 1.75}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Fatalf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if Arange(2, 1, 0.1) != nil {
		t.Fatal("expected nil for stop <= start")
	}
}

func TestTrapezoid(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	y := []float64{0, 1, 2, 3}
	if got := Trapezoid(y, x); math.Abs(got-4.5) > 1e-12 {
		t.Fatalf("Trapezoid = %v, want 4.5", got)
	}
}

func TestSignNormalize(t *testing.T) {
	got := SignNormalize([]float64{-2, 0, 2})
	want := []float64{-0, 0, 1}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Fatalf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	got = SignNormalize([]float64{-4, -1, 0, 4})
	// (x - min)/range keeps the sign of the raw sample.
	if got[1] >= 0 {
		t.Fatalf("negative sample should stay negative, got %v", got[1])
	}
	if got[3] != 1 {
		t.Fatalf("max should normalise to 1, got %v", got[3])
	}

	flat := SignNormalize([]float64{3, 3, 3})
	for i, v := range flat {
		if v != 0 {
			t.Fatalf("flat[%d] = %v, want 0", i, v)
		}
	}
}

package models

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ParamsPerPeak is the length of one peak's slice in a packed parameter
// vector: amplitude, location, scale, skew.
const ParamsPerPeak = 4

// SkewNormal is the elution profile of a single analyte
//
//	f(t) = A · (2/σ) · φ(z) · Φ(αz),  z = (t-μ)/σ
//
// i.e. a skew-normal density scaled by its area A. With α = 0 it reduces
// to a Gaussian of area A.
type SkewNormal struct {
	Amplitude float64 `json:"amplitude"`
	Location  float64 `json:"retention_time"`
	Scale     float64 `json:"scale"`
	Skew      float64 `json:"skew"`
}

// At evaluates the profile at t. A non-positive scale yields 0.
func (p SkewNormal) At(t float64) float64 {
	if p.Scale <= 0 {
		return 0
	}
	z := (t - p.Location) / p.Scale
	return p.Amplitude * 2 / p.Scale * distuv.UnitNormal.Prob(z) * distuv.UnitNormal.CDF(p.Skew*z)
}

// Evaluate returns the profile sampled at times
func (p SkewNormal) Evaluate(times []float64) []float64 {
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = p.At(t)
	}
	return out
}

// Gradient stores ∂f/∂(A, μ, σ, α) at t into dst, which must have length
// ParamsPerPeak.
func (p SkewNormal) Gradient(t float64, dst []float64) {
	if len(dst) != ParamsPerPeak {
		panic("models: gradient length mismatch")
	}
	if p.Scale <= 0 {
		for i := range dst {
			dst[i] = 0
		}
		return
	}

	s := p.Scale
	z := (t - p.Location) / s
	pdf := distuv.UnitNormal.Prob(z)
	az := p.Skew * z
	cdfSkew := distuv.UnitNormal.CDF(az)
	pdfSkew := distuv.UnitNormal.Prob(az)

	k := p.Amplitude * 2 / (s * s) * pdf
	dst[0] = 2 / s * pdf * cdfSkew
	dst[1] = k * (z*cdfSkew - p.Skew*pdfSkew)
	dst[2] = k * ((z*z-1)*cdfSkew - p.Skew*z*pdfSkew)
	dst[3] = p.Amplitude * 2 / s * pdf * pdfSkew * z
}

// Params returns the peak as [amplitude, location, scale, skew]
func (p SkewNormal) Params() []float64 {
	return []float64{p.Amplitude, p.Location, p.Scale, p.Skew}
}

// Pack concatenates the parameters of every peak
func Pack(peaks []SkewNormal) []float64 {
	out := make([]float64, 0, len(peaks)*ParamsPerPeak)
	for _, p := range peaks {
		out = append(out, p.Params()...)
	}
	return out
}

// Unpack splits a packed parameter vector back into peaks
func Unpack(params []float64) ([]SkewNormal, error) {
	if len(params)%ParamsPerPeak != 0 {
		return nil, fmt.Errorf("packed parameter length %d is not a multiple of %d", len(params), ParamsPerPeak)
	}
	peaks := make([]SkewNormal, len(params)/ParamsPerPeak)
	for i := range peaks {
		o := i * ParamsPerPeak
		peaks[i] = SkewNormal{
			Amplitude: params[o],
			Location:  params[o+1],
			Scale:     params[o+2],
			Skew:      params[o+3],
		}
	}
	return peaks, nil
}

// Sum stores the summed response of every packed peak at times into dst.
// len(params) must be a multiple of ParamsPerPeak.
func Sum(dst, times, params []float64) {
	for i := range dst {
		dst[i] = 0
	}
	for o := 0; o+ParamsPerPeak <= len(params); o += ParamsPerPeak {
		p := SkewNormal{params[o], params[o+1], params[o+2], params[o+3]}
		for i, t := range times {
			dst[i] += p.At(t)
		}
	}
}

// SumJacobian stores ∂Sum/∂params into dst, a len(times)×len(params)
// matrix. Each peak only touches its own four columns.
func SumJacobian(dst *mat.Dense, times, params []float64) {
	grad := make([]float64, ParamsPerPeak)
	for o := 0; o+ParamsPerPeak <= len(params); o += ParamsPerPeak {
		p := SkewNormal{params[o], params[o+1], params[o+2], params[o+3]}
		for i, t := range times {
			p.Gradient(t, grad)
			for k, g := range grad {
				dst.Set(i, o+k, g)
			}
		}
	}
}

package filters

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/dsputils"
	"github.com/mjibson/go-dsp/fft"
)

// GaussianSmoother convolves a signal with a normalised Gaussian kernel.
// The convolution runs in the frequency domain through mjibson/go-dsp, so
// wide kernels over long traces stay O(n log n).
//
// Edges are extended with the first and last sample, which keeps a flat
// baseline flat instead of pulling it toward zero.
type GaussianSmoother struct {
	sigma  float64 // kernel standard deviation in samples
	kernel []float64
}

// NewGaussianSmoother creates a smoother with the given sigma in samples.
// The kernel is truncated at 4 sigma.
func NewGaussianSmoother(sigma float64) (*GaussianSmoother, error) {
	if !(sigma > 0) || math.IsInf(sigma, 0) {
		return nil, fmt.Errorf("gaussian sigma must be positive and finite, got %v", sigma)
	}

	half := int(math.Ceil(4 * sigma))
	kernel := make([]float64, 2*half+1)
	sum := 0.0
	for i := range kernel {
		d := float64(i - half)
		kernel[i] = math.Exp(-0.5 * d * d / (sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	return &GaussianSmoother{sigma: sigma, kernel: kernel}, nil
}

// Sigma returns the kernel standard deviation in samples
func (g *GaussianSmoother) Sigma() float64 {
	return g.sigma
}

// Process returns a smoothed copy of signal
func (g *GaussianSmoother) Process(signal []float64) []float64 {
	n := len(signal)
	if n == 0 {
		return []float64{}
	}

	half := len(g.kernel) / 2
	padded := make([]float64, n+2*half)
	for i := range padded {
		j := i - half
		switch {
		case j < 0:
			padded[i] = signal[0]
		case j >= n:
			padded[i] = signal[n-1]
		default:
			padded[i] = signal[j]
		}
	}

	// Linear convolution through a circular one: pad both operands past
	// the full output length so nothing wraps.
	size := dsputils.NextPowerOf2(len(padded) + len(g.kernel) - 1)
	x := dsputils.ZeroPad(dsputils.ToComplex(padded), size)
	k := dsputils.ZeroPad(dsputils.ToComplex(g.kernel), size)
	conv := fft.Convolve(x, k)

	out := make([]float64, n)
	for i := range out {
		out[i] = real(conv[i+2*half])
	}
	return out
}

package amd

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// MaxTransformSize bounds the cost of a single spectral transform
const MaxTransformSize = 1024

// SpectralTransform returns the one-sided magnitude spectrum |X[k]|, k < N/2,
// of the unnormalised DFT of the first min(len(x), MaxTransformSize) samples.
func SpectralTransform(x []float64) []float64 {
	n := len(x)
	if n > MaxTransformSize {
		n = MaxTransformSize
	}
	if n < 2 {
		return []float64{}
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, x[:n])

	mags := make([]float64, n/2)
	for k := range mags {
		mags[k] = cmplx.Abs(coeffs[k])
	}
	return mags
}

// transformLength is the number of samples SpectralTransform actually uses
func transformLength(n int) int {
	if n > MaxTransformSize {
		return MaxTransformSize
	}
	return n
}

// Package spectrum computes magnitude spectra from sample series using a
// real-input discrete Fourier transform. Non-power-of-two lengths are
// transformed directly (no zero padding), so magnitudes are normalized by the
// plain sample count and stay comparable across lengths. The window is
// rectangular.
package spectrum

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Scale selects magnitude presentation.
type Scale int

const (
	// Linear presents raw normalized magnitudes.
	Linear Scale = iota
	// Log presents magnitudes in dB: 20*log10(m).
	Log
)

// String returns the display name of the scale.
func (s Scale) String() string {
	if s == Log {
		return "log"
	}
	return "linear"
}

// logFloor keeps zero bins finite under log scale: 20*log10(1e-12) = -240 dB.
const logFloor = 1e-12

// Result is a computed magnitude spectrum.
type Result struct {
	// Magnitudes holds the non-negative-frequency half: N/2+1 bins for
	// input length N, DC and Nyquist included without doubling.
	Magnitudes []float64
	Scale      Scale
}

// Compute returns the magnitude spectrum of the series. The mean is removed
// before the transform so a large DC offset does not dominate the display;
// the DC bin is still present. An empty series yields an empty result, and
// the output never contains NaN or infinities.
func Compute(series []float64, scale Scale) Result {
	n := len(series)
	if n == 0 {
		return Result{Scale: scale}
	}

	mean := 0.0
	for _, s := range series {
		if !math.IsNaN(s) && !math.IsInf(s, 0) {
			mean += s
		}
	}
	mean /= float64(n)

	seq := make([]float64, n)
	for i, s := range series {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			seq[i] = 0
			continue
		}
		seq[i] = s - mean
	}

	fft := fourier.NewFFT(n)
	coeff := fft.Coefficients(nil, seq)

	inv := 1 / float64(n)
	mags := make([]float64, len(coeff))
	for i, c := range coeff {
		m := math.Hypot(real(c), imag(c)) * inv
		if scale == Log {
			mags[i] = 20 * math.Log10(math.Max(m, logFloor))
		} else {
			mags[i] = m
		}
	}

	return Result{Magnitudes: mags, Scale: scale}
}

// PeakBin returns the index of the largest magnitude, ignoring the DC bin,
// and false for spectra too short to carry one.
func PeakBin(r Result) (int, bool) {
	if len(r.Magnitudes) < 2 {
		return 0, false
	}
	best := 1
	for i := 2; i < len(r.Magnitudes); i++ {
		if r.Magnitudes[i] > r.Magnitudes[best] {
			best = i
		}
	}
	return best, true
}

package modem

import (
	"math"
	"math/cmplx"
)

// Frame synchronization: a Schmidl-Cox style autocorrelator exploiting
// the short training symbol's repeating 16-sample period, a windowed
// peak detector over the resulting metric, coarse carrier frequency
// offset estimation from the same correlation, and downconversion from
// the real audio passband to complex baseband.

// stsPeriod is the repetition period (in samples) of the short training
// symbol: a quarter of the 64-point FFT, since its spectrum is nonzero
// only every fourth subcarrier.
const stsPeriod = FFTSize / 4

// Autocorrelate computes, for every valid start offset d in samples, the
// Schmidl-Cox metric |P(d)| / R(d) where P(d) correlates one STS period
// against the next and R(d) is the energy of the second period. The
// metric approaches 1 while the window straddles the repeating STS and
// falls away elsewhere.
func Autocorrelate(samples []complex128) []float64 {
	span := 2 * stsPeriod
	if len(samples) < span {
		return nil
	}
	metrics := make([]float64, len(samples)-span+1)
	for d := range metrics {
		var p complex128
		var r float64
		for m := 0; m < stsPeriod; m++ {
			a := samples[d+m]
			b := samples[d+m+stsPeriod]
			p += a * cmplx.Conj(b)
			r += real(b)*real(b) + imag(b)*imag(b)
		}
		if r > 0 {
			metrics[d] = cmplx.Abs(p) / r
		}
	}
	return metrics
}

// PeakDetector finds confirmed local maxima of a streamed metric
// sequence above a threshold, each one a candidate frame start. A
// candidate is confirmed once halfWidth further samples on both sides
// are available and none of them exceed it, so detection lags real
// time by halfWidth samples.
type PeakDetector struct {
	halfWidth int
	threshold float64

	history  []float64
	base     int // absolute index represented by history[0]
	nextScan int // absolute index not yet scanned for a peak
}

// NewPeakDetector creates a detector with the given metric threshold
// and a half-width of 25 samples, as used throughout this package's
// frame acquisition.
func NewPeakDetector(threshold float64) *PeakDetector {
	return &PeakDetector{halfWidth: 25, threshold: threshold}
}

// Feed appends new metric samples (continuing the same absolute
// sequence as previous calls) and returns the absolute indices of any
// newly confirmed peaks.
func (pd *PeakDetector) Feed(metrics []float64) []int {
	pd.history = append(pd.history, metrics...)
	w := pd.halfWidth

	start := pd.nextScan - pd.base
	if start < w {
		start = w
	}
	end := len(pd.history) - w

	var peaks []int
	for i := start; i < end; i++ {
		v := pd.history[i]
		if v < pd.threshold {
			continue
		}
		isMax := true
		for k := i - w; k <= i+w; k++ {
			if k != i && pd.history[k] > v {
				isMax = false
				break
			}
		}
		if isMax {
			peaks = append(peaks, pd.base+i)
		}
	}
	if end > start {
		pd.nextScan = pd.base + end
	}

	keepFrom := end - w
	if keepFrom > 0 {
		pd.history = pd.history[keepFrom:]
		pd.base += keepFrom
	}
	return peaks
}

// EstimateCFO derives the normalized carrier frequency offset (cycles
// per sample) from the correlation phase at a detected peak.
func EstimateCFO(samples []complex128, peak int) float64 {
	var p complex128
	for m := 0; m < stsPeriod; m++ {
		a := samples[peak+m]
		b := samples[peak+m+stsPeriod]
		p += cmplx.Conj(a) * b
	}
	return cmplx.Phase(p) / (2 * math.Pi * float64(stsPeriod))
}

// RemoveCFO derotates samples by a normalized frequency offset
// (cycles/sample), with the phase accumulator referenced to
// startIndex so callers can correct arbitrary sub-slices consistently.
func RemoveCFO(samples []complex128, cyclesPerSample float64, startIndex int) []complex128 {
	out := make([]complex128, len(samples))
	w := -2 * math.Pi * cyclesPerSample
	for i, s := range samples {
		out[i] = s * cmplx.Exp(complex(0, w*float64(startIndex+i)))
	}
	return out
}

// Downconvert mixes a real audio-rate passband signal to complex
// baseband at carrier frequency fc against sample rate fs.
func Downconvert(passband []float64, fc, fs float64) []complex128 {
	out := make([]complex128, len(passband))
	w := 2 * math.Pi * fc / fs
	for i, s := range passband {
		out[i] = complex(s, 0) * cmplx.Exp(complex(0, -w*float64(i)))
	}
	return out
}

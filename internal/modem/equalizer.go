package modem

import (
	"math"
	"math/cmplx"
)

// ChannelEstimator derives a per-subcarrier channel gain estimate from
// the two received long training symbols and divides it out of
// subsequent data symbols (zero-forcing, with no noise weighting). It
// also estimates the per-subcarrier noise variance ("dispersion") from
// the disagreement between the two LTS repetitions, reported by
// Dispersion and SNRdB; FrameDecoder does not feed this estimate to the
// PilotTracker or the soft demapper.
type ChannelEstimator struct {
	gain       [FFTSize]complex128
	dispersion float64
}

// EstimateFromLTS builds the channel estimate from two received
// long-training-symbol spectra (already FFT'd, cyclic prefix removed)
// against the known long training spectrum. Averaging the two
// repetitions is the Wiener estimate: it reduces the estimate's
// variance by half relative to using either repetition alone, and the
// residual disagreement between them measures the noise floor.
func (c *ChannelEstimator) EstimateFromLTS(lts1, lts2 [FFTSize]complex128) {
	known := LongTrainingSpectrum()
	var noiseAcc float64
	count := 0
	for _, k := range append(DataSubcarriers(), PilotSubcarriers()...) {
		bin := binIndex(k)
		x := known[bin]
		if x == 0 {
			continue
		}
		h1 := lts1[bin] / x
		h2 := lts2[bin] / x
		c.gain[bin] = (h1 + h2) / 2
		diff := h1 - h2
		noiseAcc += real(diff)*real(diff) + imag(diff)*imag(diff)
		count++
	}
	if count > 0 {
		// Each repetition's estimate has variance sigma^2; their
		// difference has variance 2*sigma^2.
		c.dispersion = noiseAcc / float64(count) / 2
	}
	if c.dispersion < 1e-6 {
		c.dispersion = 1e-6
	}
}

// Dispersion returns the estimated per-subcarrier noise variance.
func (c *ChannelEstimator) Dispersion() float64 { return c.dispersion }

// Equalize divides the estimated channel gain out of a received
// spectrum's data and pilot subcarriers (zero-forcing).
func (c *ChannelEstimator) Equalize(spec [FFTSize]complex128) [FFTSize]complex128 {
	out := spec
	for _, k := range append(DataSubcarriers(), PilotSubcarriers()...) {
		bin := binIndex(k)
		h := c.gain[bin]
		if cmplx.Abs(h) > 1e-12 {
			out[bin] = spec[bin] / h
		}
	}
	return out
}

// InitialGain returns the average complex channel gain over the data
// subcarriers, used to seed a PilotTracker's starting state.
func (c *ChannelEstimator) InitialGain() (float64, float64) {
	var sum complex128
	count := 0
	for _, k := range DataSubcarriers() {
		sum += c.gain[binIndex(k)]
		count++
	}
	if count == 0 {
		return 1, 0
	}
	avg := sum / complex(float64(count), 0)
	return real(avg), imag(avg)
}

// SNRdB estimates the per-subcarrier SNR in decibels from the ratio of
// signal power (|h|^2, averaged over data subcarriers) to the
// estimated noise dispersion.
func (c *ChannelEstimator) SNRdB() float64 {
	var sigPower float64
	count := 0
	for _, k := range DataSubcarriers() {
		h := c.gain[binIndex(k)]
		sigPower += real(h)*real(h) + imag(h)*imag(h)
		count++
	}
	if count == 0 || c.dispersion <= 0 {
		return 0
	}
	sigPower /= float64(count)
	ratio := sigPower / c.dispersion
	if ratio <= 0 {
		return -100
	}
	return 10 * math.Log10(ratio)
}

package modem

import "math"

// The 802.11a Legacy (non-HT) OFDM parameters: a 64-point FFT, 16-sample
// (quarter-symbol) cyclic prefix, 48 data and 4 pilot subcarriers drawn
// from the 52 used subcarriers in [-26, 26] (DC excluded).
const (
	FFTSize   = 64
	CPLen     = 16
	SymbolLen = FFTSize + CPLen // 80 samples per OFDM symbol

	NumDataSubcarriers = 48
	NumPilots          = 4
)

// binIndex maps a signed subcarrier index k in [-26, 26] to its bin in
// the 64-point FFT/IFFT array.
func binIndex(k int) int {
	if k < 0 {
		return k + FFTSize
	}
	return k
}

var pilotIndices = [NumPilots]int{-21, -7, 7, 21}

func isPilotIndex(k int) bool {
	for _, p := range pilotIndices {
		if p == k {
			return true
		}
	}
	return false
}

// DataSubcarriers returns the 48 signed subcarrier indices, in ascending
// order, carrying data symbols.
func DataSubcarriers() []int {
	out := make([]int, 0, NumDataSubcarriers)
	for k := -26; k <= 26; k++ {
		if k == 0 || isPilotIndex(k) {
			continue
		}
		out = append(out, k)
	}
	return out
}

// PilotSubcarriers returns the 4 signed pilot subcarrier indices.
func PilotSubcarriers() []int {
	return pilotIndices[:]
}

// pilotTemplate is the fixed {1, 1, 1, -1} pattern multiplied each
// symbol by the pilot polarity sequence value.
var pilotTemplate = [NumPilots]float64{1, 1, 1, -1}

// shortTrainingTones holds the 802.11a short training sequence's nonzero
// frequency-domain tones, keyed by signed subcarrier index, before the
// sqrt(13/6) normalization.
var shortTrainingTones = map[int]complex128{
	-24: complex(1, 1), -20: complex(-1, -1), -16: complex(1, 1), -12: complex(-1, -1),
	-8: complex(-1, -1), -4: complex(1, 1),
	4: complex(-1, -1), 8: complex(-1, -1), 12: complex(1, 1), 16: complex(1, 1),
	20: complex(1, 1), 24: complex(1, 1),
}

// longTrainingSeq holds the 802.11a long training sequence values for
// k = -26..26 (k=0 is 0).
var longTrainingSeq = [53]float64{
	1, 1, -1, -1, 1, 1, -1, 1, -1, 1, 1, 1, 1, 1, 1, -1, -1, 1, 1, -1, 1, -1, 1, 1, 1, 1,
	0,
	1, -1, -1, 1, 1, -1, 1, -1, 1, -1, -1, -1, -1, -1, 1, 1, -1, -1, 1, -1, 1, -1, 1, 1, 1, 1,
}

// ShortTrainingSpectrum returns the 64-bin frequency-domain short
// training symbol.
func ShortTrainingSpectrum() [FFTSize]complex128 {
	var spec [FFTSize]complex128
	scale := math.Sqrt(13.0 / 6.0)
	for k, v := range shortTrainingTones {
		spec[binIndex(k)] = v * complex(scale, 0)
	}
	return spec
}

// LongTrainingSpectrum returns the 64-bin frequency-domain long
// training symbol.
func LongTrainingSpectrum() [FFTSize]complex128 {
	var spec [FFTSize]complex128
	for i, v := range longTrainingSeq {
		k := i - 26
		spec[binIndex(k)] = complex(v, 0)
	}
	return spec
}

// ShortTrainingTime returns the 16-sample repeating period of the time
// domain short training symbol (one quarter of the 64-sample IFFT
// output, since the STS spectrum is nonzero only every 4th tone).
func ShortTrainingTime() []complex128 {
	spec := ShortTrainingSpectrum()
	full := IFFT(spec[:])
	return full[:FFTSize/4]
}

// LongTrainingTime returns the 64-sample time domain long training
// symbol.
func LongTrainingTime() []complex128 {
	spec := LongTrainingSpectrum()
	return IFFT(spec[:])
}

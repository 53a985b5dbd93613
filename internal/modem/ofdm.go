package modem

// OFDM symbol construction and parsing: placing data/pilot symbols onto
// the 64 subcarrier bins, the IFFT/FFT round trip, cyclic prefix
// handling, and the overlap-add blending used to soften spectral
// splatter between consecutive symbols. The transmitter in
// internal/phy drives these to build a complex baseband waveform; it
// alone is responsible for upsampling, mixing onto the audio passband,
// and normalizing to real samples.

// dataSubcarrierBins and pilotSubcarrierBins cache the FFT bin indices
// (rather than signed subcarrier indices) so hot-path symbol
// construction avoids repeated binIndex lookups.
var (
	dataSubcarrierBins  [NumDataSubcarriers]int
	pilotSubcarrierBins [NumPilots]int
)

func init() {
	for i, k := range DataSubcarriers() {
		dataSubcarrierBins[i] = binIndex(k)
	}
	for i, k := range PilotSubcarriers() {
		pilotSubcarrierBins[i] = binIndex(k)
	}
}

// InsertSymbol places 48 data symbols and the 4 pilot tones (scaled by
// polarity, the frame-wide pilot polarity sequence value for this
// OFDM symbol index) onto the 64-bin spectrum.
func InsertSymbol(data []complex128, polarity float64) [FFTSize]complex128 {
	var spec [FFTSize]complex128
	for i, v := range data {
		spec[dataSubcarrierBins[i]] = v
	}
	for i, tmpl := range pilotTemplate {
		spec[pilotSubcarrierBins[i]] = complex(tmpl*polarity, 0)
	}
	return spec
}

// ExtractData reads the 48 data-subcarrier values out of a 64-bin
// spectrum, in DataSubcarriers order.
func ExtractData(spec [FFTSize]complex128) []complex128 {
	out := make([]complex128, NumDataSubcarriers)
	for i, bin := range dataSubcarrierBins {
		out[i] = spec[bin]
	}
	return out
}

// ExtractPilots reads the 4 pilot-subcarrier values out of a 64-bin
// spectrum, in PilotSubcarriers order.
func ExtractPilots(spec [FFTSize]complex128) []complex128 {
	out := make([]complex128, NumPilots)
	for i, bin := range pilotSubcarrierBins {
		out[i] = spec[bin]
	}
	return out
}

// EncodeSymbol builds one time-domain OFDM symbol (with cyclic prefix)
// from 48 data subcarrier values and this symbol's pilot polarity.
func EncodeSymbol(data []complex128, polarity float64) []complex128 {
	spec := InsertSymbol(data, polarity)
	time := IFFT(spec[:])
	return addCyclicPrefixComplex(time, CPLen)
}

// DecodeSymbol strips the cyclic prefix from one received time-domain
// OFDM symbol and returns its 64-bin spectrum.
func DecodeSymbol(samples []complex128) [FFTSize]complex128 {
	body := samples[CPLen:]
	spectrum := FFT(body)
	var out [FFTSize]complex128
	copy(out[:], spectrum)
	return out
}

func addCyclicPrefixComplex(time []complex128, cpLen int) []complex128 {
	n := len(time)
	out := make([]complex128, cpLen+n)
	copy(out[:cpLen], time[n-cpLen:])
	copy(out[cpLen:], time)
	return out
}

// BlendSymbols concatenates consecutive encoded OFDM symbols (each
// SymbolLen samples, cyclic prefix first) into one waveform, ramping
// each symbol's cyclic prefix in against the tail of the previous
// symbol's body rather than switching abruptly. This softens the
// spectral splatter an instantaneous symbol boundary would otherwise
// introduce.
func BlendSymbols(symbols [][]complex128) []complex128 {
	if len(symbols) == 0 {
		return nil
	}
	total := len(symbols)*FFTSize + CPLen
	out := make([]complex128, total)
	ramp := make([]float64, CPLen)
	for i := range ramp {
		ramp[i] = float64(i+1) / float64(CPLen+1)
	}

	pos := 0
	for si, sym := range symbols {
		if si == 0 {
			copy(out[pos:pos+len(sym)], sym)
			pos += len(sym)
			continue
		}
		// Overlap this symbol's cyclic prefix with the tail of the
		// previous body using a linear crossfade.
		overlapStart := pos - CPLen
		for i := 0; i < CPLen; i++ {
			w := complex(ramp[i], 0)
			out[overlapStart+i] = out[overlapStart+i]*(1-w) + sym[i]*w
		}
		copy(out[pos:pos+FFTSize], sym[CPLen:])
		pos += FFTSize
	}
	return out[:pos]
}

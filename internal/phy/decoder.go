package phy

import (
	"math"

	"github.com/sdrmodem/blurt80211/internal/bits"
	"github.com/sdrmodem/blurt80211/internal/modem"
)

// Frame is one successfully decoded PHY frame: the recovered PSDU
// payload (FCS already verified and stripped) and the estimated SNR
// in decibels.
type Frame struct {
	Payload []byte
	SNRdB   float64
}

type decodeOutcome int

const (
	pending decodeOutcome = iota
	discarded
	succeeded
)

// trainingSamples is the fixed preamble length every decoder waits for
// before attempting to train.
const trainingSamples = preambleLen

// FrameDecoder is a per-candidate-preamble state machine: accumulate
// samples, train on the STS/LTS preamble, decode SIGNAL to learn rate
// and length, then decode exactly that many DATA symbols. It never
// returns an error upward; Feed just advances d.outcome, and a
// discarded or succeeded decoder is inert thereafter.
type FrameDecoder struct {
	start int
	buf   []complex128

	trained  bool
	signalOK bool

	estimator  modem.ChannelEstimator
	tracker    *modem.PilotTracker
	cfo        float64
	dispersion float64

	rate       *bits.Rate
	psduLen    int
	numSymbols int

	outcome decodeOutcome
	frame   Frame
}

// NewFrameDecoder constructs a decoder anchored at absolute sample
// index start, preallocating the largest buffer an mtu-octet PSDU
// could need at the most robust (lowest-throughput) rate — the worst
// case for total symbol count.
func NewFrameDecoder(start, mtu int) *FrameDecoder {
	worst := computeFrameLayout(bits.Rates[0xb], mtu+4)
	max := trainingSamples + dataSpan(worst.NumSymbols)
	return &FrameDecoder{start: start, buf: make([]complex128, 0, max)}
}

// dataSpan is the number of baseband samples BlendSymbols produces for
// 1+numSymbols OFDM symbols (SIGNAL plus numSymbols DATA symbols): the
// first symbol contributes its full SymbolLen (cyclic prefix and
// body), and every subsequent symbol contributes only FFTSize new
// samples since its cyclic prefix is crossfaded into the tail of the
// previous symbol's body rather than appended.
func dataSpan(numSymbols int) int {
	return modem.SymbolLen + numSymbols*modem.FFTSize
}

// Feed appends newly available samples (whose absolute first index is
// k) and advances decode state as far as the accumulated buffer
// allows. A no-op once the decoder has reached a terminal outcome.
func (d *FrameDecoder) Feed(samples []complex128, k int) {
	if d.outcome != pending {
		return
	}
	if k < d.start {
		skip := d.start - k
		if skip >= len(samples) {
			return
		}
		samples = samples[skip:]
		k = d.start
	}
	room := cap(d.buf) - len(d.buf)
	if room <= 0 {
		d.outcome = discarded
		return
	}
	if len(samples) > room {
		samples = samples[:room]
	}
	d.buf = append(d.buf, samples...)

	if !d.trained && len(d.buf) >= trainingSamples {
		d.train()
	}
	if d.trained && !d.signalOK && len(d.buf) >= trainingSamples+modem.SymbolLen {
		d.decodeSignal()
	}
	if d.signalOK && len(d.buf) >= trainingSamples+dataSpan(d.numSymbols) {
		d.decodeData()
	}
	if d.outcome == pending && len(d.buf) == cap(d.buf) {
		d.outcome = discarded
	}
}

// Result reports the decoder's current outcome and, if succeeded, the
// decoded frame.
func (d *FrameDecoder) Result() (decodeOutcome, *Frame) {
	if d.outcome == succeeded {
		return succeeded, &d.frame
	}
	return d.outcome, nil
}

func (d *FrameDecoder) train() {
	sts := d.buf[:2*modem.SymbolLen]
	d.cfo = modem.EstimateCFO(sts, 0)

	ltsStart := 2*modem.SymbolLen + 2*modem.CPLen
	lts1Raw := d.buf[ltsStart : ltsStart+modem.FFTSize]
	lts2Raw := d.buf[ltsStart+modem.FFTSize : ltsStart+2*modem.FFTSize]

	lts1 := modem.RemoveCFO(lts1Raw, d.cfo, ltsStart)
	lts2 := modem.RemoveCFO(lts2Raw, d.cfo, ltsStart+modem.FFTSize)

	var s1, s2 [modem.FFTSize]complex128
	copy(s1[:], modem.FFT(lts1))
	copy(s2[:], modem.FFT(lts2))
	d.estimator.EstimateFromLTS(s1, s2)

	gr, gi := d.estimator.InitialGain()
	d.tracker = modem.NewPilotTracker(gr, gi)
	d.trained = true
}

// symbolAt returns the equalization-ready 64-bin spectrum of the
// ordinal-th OFDM symbol after the preamble (ordinal 0 is SIGNAL).
//
// BlendSymbols lays the first symbol down whole (cyclic prefix plus
// body) but crossfades every later symbol's cyclic prefix into the
// tail of the previous symbol's body instead of appending it, so
// consecutive symbol bodies are FFTSize samples apart, not SymbolLen —
// trainingSamples+FFTSize*ordinal lands a SymbolLen-wide window whose
// last FFTSize samples are exactly that symbol's body for every
// ordinal, including 0.
func (d *FrameDecoder) symbolAt(ordinal int) [modem.FFTSize]complex128 {
	start := trainingSamples + ordinal*modem.FFTSize
	raw := d.buf[start : start+modem.SymbolLen]
	derot := modem.RemoveCFO(raw, d.cfo, start)
	return modem.DecodeSymbol(derot)
}

func (d *FrameDecoder) decodeSignal() {
	eq := d.estimator.Equalize(d.symbolAt(0))
	data := modem.ExtractData(eq)

	llr := make([]int, len(data))
	hard := make([]complex128, len(data))
	var noise float64
	for i, v := range data {
		if real(v) >= 0 {
			llr[i] = 1
			hard[i] = 1
		} else {
			llr[i] = -1
			hard[i] = -1
		}
		diff := v - hard[i]
		noise += real(diff)*real(diff) + imag(diff)*imag(diff)
	}
	if len(data) > 0 {
		noise /= float64(len(data))
	}
	if noise < 1e-6 {
		noise = 1e-6
	}

	deinterleaved := bits.Permute(llr, bits.ReversePermutation(48, 1))
	decoded := bits.Decode(deinterleaved)
	fields, err := parseSignalBits(decoded)
	if err != nil {
		d.outcome = discarded
		return
	}
	r, ok := bits.Rates[fields.Rate]
	if !ok || fields.Length < 4 {
		d.outcome = discarded
		return
	}

	layout := computeFrameLayout(r, fields.Length)
	need := trainingSamples + dataSpan(layout.NumSymbols)
	if need > cap(d.buf) {
		d.outcome = discarded
		return
	}

	d.rate = r
	d.psduLen = fields.Length
	d.numSymbols = layout.NumSymbols
	d.dispersion = noise
	d.signalOK = true
}

func (d *FrameDecoder) decodeData() {
	perSymbol := ncbps(d.rate)
	reverse := bits.ReversePermutation(perSymbol, d.rate.Nbpsc)

	llr := make([]int, 0, perSymbol*d.numSymbols)
	for s := 0; s < d.numSymbols; s++ {
		eq := d.estimator.Equalize(d.symbolAt(1 + s))

		d.tracker.Predict(1e-5, 1e-7)
		d.tracker.UpdatePilots(modem.ExtractPilots(eq), bits.PilotPolarity(1+s), d.dispersion)

		derot := d.tracker.DerotateData(modem.ExtractData(eq))
		soft := d.rate.Demap(derot, d.dispersion)
		llr = append(llr, bits.Permute(soft, reverse)...)
	}

	depunctured := bits.Depuncture(llr, d.rate.PunctureNum, d.rate.PunctureDen)
	decoded := bits.Decode(depunctured)
	descrambled := bits.Scramble(decoded, 0x5d)

	dataLen := serviceBits + 8*d.psduLen
	if dataLen > len(descrambled) {
		d.outcome = discarded
		return
	}
	if !bits.CheckFCS(descrambled[:dataLen]) {
		d.outcome = discarded
		return
	}

	payload := bitsToBytes(descrambled[serviceBits : dataLen-32])
	d.frame = Frame{Payload: payload, SNRdB: 10 * math.Log10(1/d.dispersion)}
	d.outcome = succeeded
}

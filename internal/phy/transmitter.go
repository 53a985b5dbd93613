package phy

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/sdrmodem/blurt80211/internal/bits"
	"github.com/sdrmodem/blurt80211/internal/config"
	"github.com/sdrmodem/blurt80211/internal/modem"
)

// interChannelDelaySec and interFrameGapSec are the fixed stereo timing
// constants spec.md's transmit step 10 calls for; the delay's acoustic
// rationale isn't given, so it's carried verbatim rather than derived.
const (
	interChannelDelaySec = 0.005
	interFrameGapSec     = 0.050
)

// Transmitter turns PSDU octets into a stereo passband waveform. It
// holds the carrier mixing phase so consecutive Transmit calls mix up
// with a phase-continuous carrier, matching spec.md's "continuous
// across successive transmit calls" requirement.
type Transmitter struct {
	channel config.Channel
	phase   float64
}

// NewTransmitter builds a Transmitter for the given channel.
func NewTransmitter(ch config.Channel) *Transmitter {
	return &Transmitter{channel: ch}
}

// Transmit encodes payload as one PHY frame at rate and returns the
// two-channel real passband waveform (left, right), each including the
// inter-channel delay and the trailing inter-frame silence gap.
func (tx *Transmitter) Transmit(payload []byte, rate byte) (left, right []float32, err error) {
	r, ok := bits.Rates[rate]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %#x", ErrUnknownRate, rate)
	}

	baseband := tx.buildBaseband(payload, r)
	passband := tx.upconvert(baseband)
	left, right = tx.stereoize(passband)
	return left, right, nil
}

// buildBaseband assembles the complex baseband waveform for one frame:
// preamble, SIGNAL symbol, and the DATA symbols.
func (tx *Transmitter) buildBaseband(payload []byte, r *bits.Rate) []complex128 {
	psduLen := len(payload) + 4 // PSDU length includes the FCS octets
	signalBits := buildSignalBits(r.SignalBits, psduLen)
	signalCoded := bits.Encode(signalBits)
	signalInterleaved := bits.Permute(signalCoded, bits.ForwardPermutation(48, 1))
	signalSymbolData := bits.Rates[0xb].MapBits(signalInterleaved)
	signalSymbol := modem.EncodeSymbol(signalSymbolData, bits.PilotPolarity(0))

	layout := computeFrameLayout(r, psduLen)

	payloadBits := bytesToBits(payload)
	withService := append(make([]byte, serviceBits), payloadBits...)
	withFCS := bits.AppendFCS(withService)
	full := append(withFCS, make([]byte, tailBits+layout.PadBits)...)

	scrambled := bits.Scramble(full, 0x5d)
	for i := 0; i < tailBits; i++ {
		scrambled[len(withFCS)+i] = 0
	}

	coded := bits.Encode(scrambled)
	punctured := r.Puncture(coded)

	symbols := make([][]complex128, 0, 1+layout.NumSymbols)
	symbols = append(symbols, signalSymbol)

	perSymbol := ncbps(r)
	forward := bits.ForwardPermutation(perSymbol, r.Nbpsc)
	for s := 0; s < layout.NumSymbols; s++ {
		chunk := punctured[s*perSymbol : (s+1)*perSymbol]
		interleaved := bits.Permute(chunk, forward)
		mapped := r.MapBits(interleaved)
		symbols = append(symbols, modem.EncodeSymbol(mapped, bits.PilotPolarity(s+1)))
	}

	data := modem.BlendSymbols(symbols)

	baseband := make([]complex128, 0, preambleLen+len(data))
	baseband = append(baseband, buildPreamble()...)
	baseband = append(baseband, data...)
	return baseband
}

// upconvert upsamples baseband by zero-insertion, lowpass-filters the
// images away (twice, per spec.md step 7), mixes up to the carrier
// with a phase-continuous oscillator, and normalizes peak amplitude to
// 1.
func (tx *Transmitter) upconvert(baseband []complex128) []float32 {
	u := tx.channel.UpsampleFactor
	if u < 1 {
		u = 1
	}
	passbandRate := tx.channel.PassbandRate()

	upReal := make([]float64, len(baseband)*u)
	upImag := make([]float64, len(baseband)*u)
	for i, s := range baseband {
		upReal[i*u] = real(s) * float64(u)
		upImag[i*u] = imag(s) * float64(u)
	}

	numUsed := float64(modem.NumDataSubcarriers + modem.NumPilots)
	cutoff := (numUsed/2 + 0.5) / modem.FFTSize / float64(u)
	upReal = cascadeLowpass(upReal, cutoff)
	upImag = cascadeLowpass(upImag, cutoff)

	w := 2 * math.Pi * tx.channel.Fc / passbandRate
	out := make([]float32, len(upReal))
	peak := 0.0
	for i := range out {
		osc := cmplx.Exp(complex(0, tx.phase+w*float64(i)))
		v := complex(upReal[i], upImag[i]) * osc
		out[i] = float32(real(v))
		if a := math.Abs(real(v)); a > peak {
			peak = a
		}
	}
	tx.phase = math.Mod(tx.phase+w*float64(len(out)), 2*math.Pi)

	if peak > 0 {
		scale := float32(1 / peak)
		for i := range out {
			out[i] *= scale
		}
	}
	return out
}

// stereoize builds the two-channel frame: left is delayed by
// interChannelDelaySec relative to right, and both are padded with
// interFrameGapSec of trailing silence.
func (tx *Transmitter) stereoize(mono []float32) (left, right []float32) {
	passbandRate := tx.channel.PassbandRate()
	delay := int(interChannelDelaySec * passbandRate)
	gap := int(interFrameGapSec * passbandRate)

	left = make([]float32, delay+len(mono)+gap)
	right = make([]float32, len(mono)+delay+gap)
	copy(left[delay:], mono)
	copy(right, mono)
	return left, right
}

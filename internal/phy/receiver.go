package phy

import (
	"math"
	"math/cmplx"
	"time"

	"github.com/sdrmodem/blurt80211/internal/config"
	"github.com/sdrmodem/blurt80211/internal/modem"
)

// corrSpan is the autocorrelation window width (two STS periods); it
// governs how many trailing samples must be carried from one Feed
// call to the next so the autocorrelation metric sequence has no gap
// at buffer boundaries.
const corrSpan = modem.FFTSize / 2

// lookbackChunk is one retained downconverted buffer plus the
// absolute sample index of its first sample.
type lookbackChunk struct {
	start   int
	samples []complex128
}

// Receiver owns the lookback ring, the streaming peak detector, and
// the set of live per-frame decoders, per spec.md's streaming driver
// (4.6): single-threaded, synchronous per Feed call.
type Receiver struct {
	channel config.Channel
	mtu     int

	peaks *modem.PeakDetector

	lookback []lookbackChunk
	live     []*FrameDecoder
	kCurrent int

	downPhase  float64
	decimPhase int
	corrTail   []complex128

	lastAccepted int
}

// peakDebounce is the minimum sample gap enforced between two accepted
// preamble peaks. The short training field's autocorrelation metric is
// near 1.0 across its whole repeating body, not just at one sample, so
// a plain local-maximum test can confirm several neighboring peaks for
// the same preamble; debouncing by more than one STS period (but far
// less than the inter-frame gap) collapses those to one decoder per
// frame.
const peakDebounce = 2 * modem.SymbolLen

// retentionWindow is the minimum number of trailing samples the
// lookback keeps behind the newest sample, per spec.md's invariant
// that no live decoder's addressable range is ever discarded.
const retentionWindow = 1024

// NewReceiver builds a Receiver for the given channel and MTU
// (bounding each per-frame decoder's preallocated buffer).
func NewReceiver(ch config.Channel, mtu int) *Receiver {
	return &Receiver{channel: ch, mtu: mtu, peaks: modem.NewPeakDetector(0.5), lastAccepted: math.MinInt64 / 2}
}

// Feed downconverts and decimates one real passband buffer (tagged
// with hostTime for diagnostics only — no timing metadata survives to
// Frame), locates new preamble candidates, advances every live
// decoder, and returns whichever frames completed this call.
func (rx *Receiver) Feed(passband []float32, hostTime time.Time) []Frame {
	_ = hostTime
	baseband := rx.frontEnd(passband)
	if len(baseband) == 0 {
		return nil
	}
	start := rx.kCurrent

	// extended carries the unconsumed tail of the previous call's
	// buffer so the autocorrelation lag sequence has no gap at the
	// boundary; its first corrSpan-1 samples precede this call's
	// absolute start, so metric index i still lines up with absolute
	// baseband sample index start+i-len(rx.corrTail)+... in effect the
	// lag sequence is simply continuous, which is all PeakDetector
	// requires — its returned indices are already in the same
	// per-sample numbering as rx.kCurrent.
	extended := append(append([]complex128{}, rx.corrTail...), baseband...)
	metrics := modem.Autocorrelate(extended)
	if len(extended) >= corrSpan-1 {
		tailFrom := len(extended) - (corrSpan - 1)
		if tailFrom < 0 {
			tailFrom = 0
		}
		rx.corrTail = append([]complex128{}, extended[tailFrom:]...)
	}

	peaks := rx.peaks.Feed(metrics)
	for _, p := range peaks {
		if p-rx.lastAccepted < peakDebounce {
			continue
		}
		rx.lastAccepted = p
		d := NewFrameDecoder(p+modem.FFTSize/4, rx.mtu)
		for _, chunk := range rx.lookback {
			if chunk.start+len(chunk.samples) > d.start {
				d.Feed(chunk.samples, chunk.start)
			}
		}
		rx.live = append(rx.live, d)
	}

	rx.lookback = append(rx.lookback, lookbackChunk{start: start, samples: baseband})

	var out []Frame
	stillLive := rx.live[:0]
	for _, d := range rx.live {
		if d.outcome == pending {
			d.Feed(baseband, start)
		}
		switch outcome, frame := d.Result(); outcome {
		case succeeded:
			out = append(out, *frame)
		case discarded:
		default:
			stillLive = append(stillLive, d)
		}
	}
	rx.live = stillLive

	rx.kCurrent += len(baseband)
	keep := rx.lookback[:0]
	for _, chunk := range rx.lookback {
		if chunk.start+len(chunk.samples) >= rx.kCurrent-retentionWindow {
			keep = append(keep, chunk)
		}
	}
	rx.lookback = keep

	return out
}

// frontEnd downconverts a real passband buffer to complex baseband
// (phase-continuous carrier mixing across calls), lowpass-filters the
// mixing images, and decimates by the channel's upsample factor with
// a phase-continuous decimation offset.
func (rx *Receiver) frontEnd(passband []float32) []complex128 {
	u := rx.channel.UpsampleFactor
	if u < 1 {
		u = 1
	}
	passbandRate := rx.channel.PassbandRate()
	w := 2 * math.Pi * rx.channel.Fc / passbandRate

	re := make([]float64, len(passband))
	im := make([]float64, len(passband))
	for i, s := range passband {
		osc := cmplx.Exp(complex(0, -(rx.downPhase + w*float64(i))))
		v := complex(float64(s), 0) * osc
		re[i] = real(v)
		im[i] = imag(v)
	}
	rx.downPhase = math.Mod(rx.downPhase+w*float64(len(passband)), 2*math.Pi)

	cutoff := 0.45 / float64(u)
	re = cascadeLowpass(re, cutoff)
	im = cascadeLowpass(im, cutoff)

	var out []complex128
	for i := rx.decimPhase; i < len(passband); i += u {
		out = append(out, complex(re[i], im[i]))
	}
	next := rx.decimPhase
	for next < len(passband) {
		next += u
	}
	rx.decimPhase = next - len(passband)

	return out
}

package phy

import "github.com/sdrmodem/blurt80211/internal/modem"

// buildPreamble assembles the STS+LTS training preamble: ten repeats
// of the 16-sample short training period (2*(CPLen+FFTSize) samples),
// followed by a long cyclic prefix (2*CPLen samples, the standard's
// ts_reps=2) and two repeats of the 64-sample long training symbol.
func buildPreamble() []complex128 {
	sts := modem.ShortTrainingTime()
	stsSection := make([]complex128, 0, 2*modem.SymbolLen)
	for len(stsSection) < 2*modem.SymbolLen {
		stsSection = append(stsSection, sts...)
	}
	stsSection = stsSection[:2*modem.SymbolLen]

	lts := modem.LongTrainingTime()
	longPrefix := lts[modem.FFTSize-2*modem.CPLen:]

	out := make([]complex128, 0, len(stsSection)+len(longPrefix)+2*len(lts))
	out = append(out, stsSection...)
	out = append(out, longPrefix...)
	out = append(out, lts...)
	out = append(out, lts...)
	return out
}

// preambleLen is the fixed sample count buildPreamble always produces:
// 2*(CPLen+FFTSize) STS samples + 2*CPLen long prefix + 2*FFTSize LTS.
const preambleLen = 2*(modem.CPLen+modem.FFTSize) + 2*modem.CPLen + 2*modem.FFTSize

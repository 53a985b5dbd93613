package bits

import "math"

// Rate describes one of the eight 802.11a PLCP signaling rates: its
// Gray-coded constellation, bits per subcarrier, and puncturing pattern
// relative to the mother rate-1/2 convolutional code.
type Rate struct {
	SignalBits      byte // the 4-bit RATE field value from the SIGNAL symbol
	Nbpsc           int  // coded bits per subcarrier
	PunctureNum     int
	PunctureDen     int
	Constellation   []complex128
	DataRateMbits10 int // data rate in units of 0.1 Mbit/s, for diagnostics
}

// Rates maps the 4-bit SIGNAL RATE field to its Rate descriptor, per
// the 802.11a rate table.
var Rates = map[byte]*Rate{
	0xb: newRate(0xb, 1, 1, 2, 60),
	0xf: newRate(0xf, 2, 1, 2, 90),
	0xa: newRate(0xa, 2, 3, 4, 120),
	0xe: newRate(0xe, 4, 1, 2, 180),
	0x9: newRate(0x9, 4, 3, 4, 240),
	0xd: newRate(0xd, 6, 2, 3, 360),
	0x8: newRate(0x8, 6, 3, 4, 480),
	0xc: newRate(0xc, 6, 5, 6, 540),
}

func newRate(signal byte, nbpsc, pnum, pden, rate10 int) *Rate {
	return &Rate{
		SignalBits:      signal,
		Nbpsc:           nbpsc,
		PunctureNum:     pnum,
		PunctureDen:     pden,
		Constellation:   NewConstellation(nbpsc),
		DataRateMbits10: rate10,
	}
}

// Puncture punctures coded bits for this rate.
func (r *Rate) Puncture(coded []byte) []byte {
	return Puncture(coded, r.PunctureNum, r.PunctureDen)
}

// Depuncture restores erasures in soft LLRs for this rate.
func (r *Rate) Depuncture(llr []int) []int {
	return Depuncture(llr, r.PunctureNum, r.PunctureDen)
}

func bitReverseN(x, n int) int {
	r := 0
	for i := 0; i < n; i++ {
		r |= ((x >> uint(i)) & 1) << uint(n-1-i)
	}
	return r
}

// grayDecode undoes a reflected binary (Gray) code for values up to 4
// bits wide, which is all NewConstellation ever needs (64-QAM uses 3
// bits per axis).
func grayDecode(g int) int {
	g ^= g >> 1
	g ^= g >> 2
	return g
}

// pamLevels builds the n-bit-per-axis Gray-coded, unit-average-power
// pulse-amplitude-modulation levels used to build square QAM
// constellations.
func pamLevels(n int) []float64 {
	size := 1 << uint(n)
	scale := math.Sqrt(1.5 / float64(size*size-1))
	levels := make([]float64, size)
	for i := 0; i < size; i++ {
		g := grayDecode(bitReverseN(i, n))
		levels[i] = float64(2*g+1-size) * scale
	}
	return levels
}

// NewConstellation builds the Gray-coded, unit-average-power
// constellation for nbpsc coded bits per subcarrier (1 => BPSK, 2 =>
// QPSK, 4 => 16-QAM, 6 => 64-QAM). Symbol index k is formed by reading
// the nbpsc group bits with bit 0 given the lowest weight.
func NewConstellation(nbpsc int) []complex128 {
	if nbpsc == 1 {
		return []complex128{-1, 1}
	}
	n := nbpsc / 2
	levels := pamLevels(n)
	size := len(levels)
	out := make([]complex128, size*size)
	for k := range out {
		out[k] = complex(levels[k%size], levels[k/size])
	}
	return out
}

// MapBits groups bits into nbpsc-wide chunks (bit 0 lowest weight) and
// maps each chunk to a constellation point.
func (r *Rate) MapBits(bitsIn []byte) []complex128 {
	n := r.Nbpsc
	out := make([]complex128, len(bitsIn)/n)
	for i := range out {
		idx := 0
		for b := 0; b < n; b++ {
			idx |= int(bitsIn[i*n+b]) << uint(b)
		}
		out[i] = r.Constellation[idx]
	}
	return out
}

func logSumExp(xs []float64) float64 {
	max := math.Inf(-1)
	for _, x := range xs {
		if x > max {
			max = x
		}
	}
	if math.IsInf(max, -1) {
		return max
	}
	var sum float64
	for _, x := range xs {
		sum += math.Exp(x - max)
	}
	return max + math.Log(sum)
}

// Demap produces soft bit log-likelihood ratios for each received
// symbol, scaled by 10 and clipped to +/-10000 as insurance against
// Viterbi metric overflow. dispersion is the estimated per-subcarrier
// noise variance (sigma^2).
func (r *Rate) Demap(samples []complex128, dispersion float64) []int {
	n := r.Nbpsc
	size := len(r.Constellation)
	out := make([]int, len(samples)*n)
	ll := make([]float64, size)
	ones := make([]float64, 0, size)
	zeros := make([]float64, 0, size)
	for si, y := range samples {
		for s := 0; s < size; s++ {
			d := y - r.Constellation[s]
			sq := real(d)*real(d) + imag(d)*imag(d)
			// The -log(pi*dispersion) normalization term is common to
			// every candidate s and cancels in the per-bit difference
			// below, so it is omitted.
			ll[s] = -sq / dispersion
		}
		for b := 0; b < n; b++ {
			ones = ones[:0]
			zeros = zeros[:0]
			for s := 0; s < size; s++ {
				if (s>>uint(b))&1 == 1 {
					ones = append(ones, ll[s])
				} else {
					zeros = append(zeros, ll[s])
				}
			}
			llr := 10 * (logSumExp(ones) - logSumExp(zeros))
			switch {
			case llr > 10000:
				llr = 10000
			case llr < -10000:
				llr = -10000
			}
			out[si*n+b] = int(llr)
		}
	}
	return out
}

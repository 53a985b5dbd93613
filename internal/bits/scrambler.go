// Package bits implements the bit-level building blocks of the 802.11a
// PLCP: the frame scrambler, the rate-1/2 convolutional code and its
// Viterbi decoder, puncturing, the block interleaver, the frame check
// sequence, and the per-rate QAM constellations with a soft demapper.
package bits

// scramblerPeriod is the period of the length-127 maximal LFSR sequence
// (x^7 + x^4 + 1) used to scramble/descramble PLCP bits.
const scramblerPeriod = 127

// scramblerTable[seed][i] is the i-th output bit of the scrambler
// sequence started from the given 7-bit seed (0..127). Seed 0 always
// produces the all-zero sequence, which is how the SIGNAL field is
// transmitted "unscrambled".
var scramblerTable [128][scramblerPeriod]byte

func init() {
	state := make([]uint8, 128)
	for i := range state {
		state[i] = uint8(i)
	}
	for i := 0; i < scramblerPeriod; i++ {
		for seed := 0; seed < 128; seed++ {
			cur := state[seed]
			fb := (cur>>3 ^ cur>>6) & 1
			next := (cur << 1) ^ fb
			state[seed] = next
			scramblerTable[seed][i] = next & 1
		}
	}
}

// Scramble XORs bits with the scrambler sequence for seed, cycling the
// 127-bit sequence as needed. Calling Scramble twice with the same seed
// recovers the original bits.
func Scramble(in []byte, seed int) []byte {
	out := make([]byte, len(in))
	row := &scramblerTable[seed&0x7f]
	for i, b := range in {
		out[i] = b ^ row[i%scramblerPeriod]
	}
	return out
}

// pilotPolaritySeed is the all-ones scrambler seed (1111111) that
// generates the pilot polarity sequence shared by every OFDM symbol in
// a frame.
const pilotPolaritySeed = 0x7f

// PilotPolarity returns the +1/-1 polarity of the pilot tones for the
// n-th OFDM symbol of a frame (n=0 for SIGNAL, n=1.. for DATA symbols).
func PilotPolarity(n int) float64 {
	bit := scramblerTable[pilotPolaritySeed][n%scramblerPeriod]
	return 1 - 2*float64(bit)
}

package bits

import "testing"

func TestScrambleInvolution(t *testing.T) {
	payload := make([]byte, 200)
	for i := range payload {
		payload[i] = byte(i * 7 % 2)
	}
	for _, seed := range []int{0, 1, 0x5d, 0x7f, 126} {
		scrambled := Scramble(payload, seed)
		restored := Scramble(scrambled, seed)
		for i := range payload {
			if restored[i] != payload[i] {
				t.Fatalf("seed %#x: bit %d not restored: got %d want %d", seed, i, restored[i], payload[i])
			}
		}
	}
}

func TestScrambleSeedZeroIsIdentity(t *testing.T) {
	payload := []byte{1, 0, 1, 1, 0, 0, 1, 0}
	out := Scramble(payload, 0)
	for i := range payload {
		if out[i] != payload[i] {
			t.Fatalf("seed 0 must leave bits untouched, bit %d: got %d want %d", i, out[i], payload[i])
		}
	}
}

func TestScrambleTableWraps(t *testing.T) {
	long := make([]byte, scramblerPeriod*3+5)
	out := Scramble(long, 0x5d)
	for i := scramblerPeriod; i < len(long); i++ {
		if out[i] != scramblerTable[0x5d][i%scramblerPeriod] {
			t.Fatalf("wraparound mismatch at %d", i)
		}
	}
}

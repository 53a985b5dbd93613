package bits

import "testing"

func withTail(payload []byte) []byte {
	return append(append([]byte{}, payload...), 0, 0, 0, 0, 0, 0)
}

func hardLLR(coded []byte) []int {
	llr := make([]int, len(coded))
	for i, b := range coded {
		if b == 1 {
			llr[i] = 1000
		} else {
			llr[i] = -1000
		}
	}
	return llr
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte{1, 0, 1, 1, 0, 0, 1, 1, 1, 0, 0, 0, 1, 0, 1, 0, 1, 1, 0, 1}
	in := withTail(payload)

	coded := Encode(in)
	if len(coded) != 2*len(in) {
		t.Fatalf("coded length = %d, want %d", len(coded), 2*len(in))
	}

	decoded := Decode(hardLLR(coded))
	if len(decoded) != len(in) {
		t.Fatalf("decoded length = %d, want %d", len(decoded), len(in))
	}
	for i := range in {
		if decoded[i] != in[i] {
			t.Fatalf("bit %d mismatch: got %d want %d", i, decoded[i], in[i])
		}
	}
}

func TestDecodeToleratesNoisyLLR(t *testing.T) {
	payload := make([]byte, 96)
	for i := range payload {
		payload[i] = byte((i * 13) % 2)
	}
	in := withTail(payload)
	coded := Encode(in)
	llr := hardLLR(coded)

	// Flip a handful of soft confidences without changing the hard
	// decision too much; Viterbi should still recover all bits given
	// the code's error-correction margin on these few errors.
	llr[4] = -50
	llr[40] = 20

	decoded := Decode(llr)
	for i := range in {
		if decoded[i] != in[i] {
			t.Fatalf("bit %d mismatch after soft perturbation: got %d want %d", i, decoded[i], in[i])
		}
	}
}

func TestDecodeEndsAtStateZero(t *testing.T) {
	payload := []byte{1, 1, 1, 1, 1, 1, 1, 1}
	in := withTail(payload)
	coded := Encode(in)
	decoded := Decode(hardLLR(coded))
	if len(decoded) != len(in) {
		t.Fatalf("length mismatch")
	}
	for i, tailBit := range decoded[len(decoded)-6:] {
		if tailBit != 0 {
			t.Fatalf("tail bit %d = %d, want 0 (trellis must end in state 0)", i, tailBit)
		}
	}
}

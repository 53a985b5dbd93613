package phy

import (
	"testing"

	"github.com/sdrmodem/blurt80211/internal/bits"
)

func TestSignalFieldRoundTrip(t *testing.T) {
	for _, rate := range []byte{0x8, 0x9, 0xa, 0xb, 0xc, 0xd, 0xe, 0xf} {
		b := buildSignalBits(rate, 1504)
		got, err := parseSignalBits(b)
		if err != nil {
			t.Fatalf("rate %#x: %v", rate, err)
		}
		if got.Rate != rate || got.Length != 1504 {
			t.Fatalf("rate %#x: got %+v", rate, got)
		}
	}
}

func TestSignalFieldRejectsParityFailure(t *testing.T) {
	b := buildSignalBits(0x0b, 100)
	b[17] ^= 1
	if _, err := parseSignalBits(b); err == nil {
		t.Fatal("expected parity failure to be rejected")
	}
}

func TestSignalFieldRejectsUnknownRate(t *testing.T) {
	b := buildSignalBits(0x0b, 100)
	// Clear the rate nibble and its parity bit to an unassigned value.
	for i := 0; i < 4; i++ {
		b[i] = 0
	}
	var parity byte
	for i := 0; i <= 16; i++ {
		parity ^= b[i]
	}
	b[17] = parity
	if _, err := parseSignalBits(b); err == nil {
		t.Fatal("expected unassigned rate nibble to be rejected")
	}
}

func TestBytesBitsRoundTrip(t *testing.T) {
	want := []byte{0x00, 0xff, 0x5a, 0x81}
	got := bitsToBytes(bytesToBits(want))
	if len(got) != len(want) {
		t.Fatalf("length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, got[i], want[i])
		}
	}
}

func TestFrameLayoutConsistentWithPuncturing(t *testing.T) {
	for _, rate := range []byte{0x8, 0x9, 0xa, 0xb, 0xc, 0xd, 0xe, 0xf} {
		r, ok := bits.Rates[rate]
		if !ok {
			t.Fatalf("rate %#x not registered", rate)
		}
		layout := computeFrameLayout(r, 100)
		payloadBits := serviceBits + 100*8
		codedBits := payloadBits + tailBits + layout.PadBits
		if codedBits != layout.NumSymbols*ndbps(r) {
			t.Fatalf("rate %#x: coded bits %d != numSymbols*ndbps %d", rate, codedBits, layout.NumSymbols*ndbps(r))
		}
	}
}

package phy

import (
	"math/rand"
	"testing"
	"time"

	"github.com/sdrmodem/blurt80211/internal/config"
)

// chunkFloat32 splits samples into size-sample pieces, simulating a
// streaming audio callback feeding the Receiver across several calls.
func chunkFloat32(samples []float32, size int) [][]float32 {
	var out [][]float32
	for i := 0; i < len(samples); i += size {
		end := i + size
		if end > len(samples) {
			end = len(samples)
		}
		out = append(out, samples[i:end])
	}
	return out
}

func feedAll(rx *Receiver, samples []float32, chunkSize int) []Frame {
	var frames []Frame
	for _, c := range chunkFloat32(samples, chunkSize) {
		frames = append(frames, rx.Feed(c, time.Time{})...)
	}
	return frames
}

func TestTransmitReceiveRoundTrip(t *testing.T) {
	ch := config.DefaultChannel()
	tx := NewTransmitter(ch)
	payload := []byte("Hello")

	left, _, err := tx.Transmit(payload, 0x0b)
	if err != nil {
		t.Fatalf("Transmit: %v", err)
	}

	rx := NewReceiver(ch, 1500)
	frames := feedAll(rx, left, 512)

	if len(frames) != 1 {
		t.Fatalf("expected 1 decoded frame, got %d", len(frames))
	}
	if string(frames[0].Payload) != string(payload) {
		t.Fatalf("payload = %q, want %q", frames[0].Payload, payload)
	}
	if frames[0].SNRdB < 40 {
		t.Fatalf("SNR = %v dB, want > 40 dB for a noiseless loopback", frames[0].SNRdB)
	}
}

func TestTransmitReceiveRoundTripMaxMTULowestRate(t *testing.T) {
	ch := config.DefaultChannel()
	tx := NewTransmitter(ch)
	payload := make([]byte, 1500)

	left, _, err := tx.Transmit(payload, 0x0f)
	if err != nil {
		t.Fatalf("Transmit: %v", err)
	}

	rx := NewReceiver(ch, 1500)
	frames := feedAll(rx, left, 1024)

	if len(frames) != 1 {
		t.Fatalf("expected 1 decoded frame, got %d", len(frames))
	}
	if len(frames[0].Payload) != len(payload) {
		t.Fatalf("payload length = %d, want %d", len(frames[0].Payload), len(payload))
	}
	for i, b := range frames[0].Payload {
		if b != 0 {
			t.Fatalf("payload[%d] = %#x, want 0x00", i, b)
		}
	}
}

func TestTwoFramesBackToBackDecodeInOrder(t *testing.T) {
	ch := config.DefaultChannel()
	tx := NewTransmitter(ch)
	p1 := []byte("first frame")
	p2 := []byte("second frame")

	l1, _, err := tx.Transmit(p1, 0x0b)
	if err != nil {
		t.Fatalf("Transmit p1: %v", err)
	}
	l2, _, err := tx.Transmit(p2, 0x0b)
	if err != nil {
		t.Fatalf("Transmit p2: %v", err)
	}

	combined := append(append([]float32{}, l1...), l2...)

	rx := NewReceiver(ch, 1500)
	frames := feedAll(rx, combined, 512)

	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if string(frames[0].Payload) != string(p1) {
		t.Fatalf("frame 0 payload = %q, want %q", frames[0].Payload, p1)
	}
	if string(frames[1].Payload) != string(p2) {
		t.Fatalf("frame 1 payload = %q, want %q", frames[1].Payload, p2)
	}
}

func TestRoundTripSurvivesLightNoise(t *testing.T) {
	ch := config.DefaultChannel()
	tx := NewTransmitter(ch)
	payload := []byte("the quick brown fox jumps over the lazy dog")

	left, _, err := tx.Transmit(payload, 0x0b)
	if err != nil {
		t.Fatalf("Transmit: %v", err)
	}

	rng := rand.New(rand.NewSource(1))
	const noiseAmp = 0.01
	noisy := make([]float32, len(left)+200)
	for i := range noisy {
		n := float32(noiseAmp * (rng.Float64()*2 - 1))
		if i < 100 || i >= 100+len(left) {
			noisy[i] = n
			continue
		}
		noisy[i] = left[i-100] + n
	}

	rx := NewReceiver(ch, 1500)
	frames := feedAll(rx, noisy, 512)

	if len(frames) != 1 {
		t.Fatalf("expected 1 decoded frame under light noise, got %d", len(frames))
	}
	if string(frames[0].Payload) != string(payload) {
		t.Fatalf("payload = %q, want %q", frames[0].Payload, payload)
	}
}

func TestCorruptedDataSymbolDiscardedSilently(t *testing.T) {
	ch := config.DefaultChannel()
	tx := NewTransmitter(ch)
	left, _, err := tx.Transmit([]byte("Hello, world"), 0x0b)
	if err != nil {
		t.Fatalf("Transmit: %v", err)
	}

	// Flip the sign of a run of samples well past the preamble and
	// SIGNAL symbol, inside the DATA portion of the waveform, enough to
	// corrupt the FCS without necessarily destroying synchronization.
	start := len(left) * 3 / 4
	for i := start; i < start+40 && i < len(left); i++ {
		left[i] = -left[i]
	}

	rx := NewReceiver(ch, 1500)
	frames := feedAll(rx, left, 512)

	if len(frames) != 0 {
		t.Fatalf("expected corrupted frame to be discarded, got %d frames", len(frames))
	}
}

func TestReceiverStaysHealthyAfterDiscardedFrame(t *testing.T) {
	ch := config.DefaultChannel()
	tx := NewTransmitter(ch)

	bad, _, err := tx.Transmit([]byte("will be corrupted"), 0x0b)
	if err != nil {
		t.Fatalf("Transmit bad: %v", err)
	}
	start := len(bad) * 3 / 4
	for i := start; i < start+40 && i < len(bad); i++ {
		bad[i] = -bad[i]
	}

	good, _, err := tx.Transmit([]byte("still works"), 0x0b)
	if err != nil {
		t.Fatalf("Transmit good: %v", err)
	}

	combined := append(append([]float32{}, bad...), good...)

	rx := NewReceiver(ch, 1500)
	frames := feedAll(rx, combined, 512)

	if len(frames) != 1 {
		t.Fatalf("expected exactly 1 surviving frame, got %d", len(frames))
	}
	if string(frames[0].Payload) != "still works" {
		t.Fatalf("payload = %q, want %q", frames[0].Payload, "still works")
	}
}

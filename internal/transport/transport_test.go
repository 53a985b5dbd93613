package transport

import (
	"bytes"
	"os"
	"testing"

	"github.com/sdrmodem/blurt80211/internal/phy"
)

func TestOuterShardCountsInvertsEncodeOuter(t *testing.T) {
	for dataShards := 1; dataShards <= 40; dataShards++ {
		parityShards := (dataShards*parityNumerator + parityDenominator - 1) / parityDenominator
		if parityShards < 1 {
			parityShards = 1
		}
		total := dataShards + parityShards

		gotData, gotParity := outerShardCounts(total)
		if gotData != dataShards || gotParity != parityShards {
			t.Fatalf("outerShardCounts(%d) = (%d, %d), want (%d, %d)",
				total, gotData, gotParity, dataShards, parityShards)
		}
	}
}

func TestFileMetaRoundTrip(t *testing.T) {
	meta := FileMetadata{Filename: "report.pdf", Size: 123456, MD5Hash: "0123456789abcdef0123456789abcdef"}
	got, err := decodeFileMeta(encodeFileMeta(meta))
	if err != nil {
		t.Fatalf("decodeFileMeta: %v", err)
	}
	if got != meta {
		t.Fatalf("got %+v, want %+v", got, meta)
	}
}

func TestEncodeDecodeOuterNoLoss(t *testing.T) {
	payloads := [][]byte{
		[]byte("metadata-fragment"),
		[]byte("data-fragment-one-"),
		[]byte("data-fragment-two-"),
		[]byte("data-fragment-three"),
	}
	shards, err := encodeOuter(payloads)
	if err != nil {
		t.Fatalf("encodeOuter: %v", err)
	}

	dataShards := len(payloads)
	_, parityShards := outerShardCounts(len(shards))

	recovered, err := decodeOuter(shards, dataShards, parityShards)
	if err != nil {
		t.Fatalf("decodeOuter: %v", err)
	}
	width := equalizeLen(payloads)
	for i, p := range payloads {
		padded := make([]byte, width)
		copy(padded, p)
		if !bytes.Equal(recovered[i], padded) {
			t.Fatalf("shard %d = %q, want %q", i, recovered[i], padded)
		}
	}
}

func TestEncodeDecodeOuterSurvivesOneLostShard(t *testing.T) {
	payloads := [][]byte{
		[]byte("metadata-fragment-"),
		[]byte("data-fragment-one--"),
		[]byte("data-fragment-two--"),
		[]byte("data-fragment-three"),
		[]byte("data-fragment-four-"),
	}
	shards, err := encodeOuter(payloads)
	if err != nil {
		t.Fatalf("encodeOuter: %v", err)
	}

	dataShards := len(payloads)
	_, parityShards := outerShardCounts(len(shards))

	lossy := make([][]byte, len(shards))
	copy(lossy, shards)
	lossy[1] = nil // drop one data shard, rely on parity

	recovered, err := decodeOuter(lossy, dataShards, parityShards)
	if err != nil {
		t.Fatalf("decodeOuter with one lost shard: %v", err)
	}
	width := equalizeLen(payloads)
	padded := make([]byte, width)
	copy(padded, payloads[1])
	if !bytes.Equal(recovered[1], padded) {
		t.Fatalf("reconstructed shard 1 = %q, want %q", recovered[1], padded)
	}
}

type fakeTransmitter struct{ rate byte }

func (f *fakeTransmitter) Transmit(payload []byte, rate byte) ([]float32, []float32, error) {
	f.rate = rate
	return make([]float32, 4), make([]float32, 4), nil
}

type fakePlayer struct{ plays int }

func (p *fakePlayer) WriteStereo(left, right []float32) error {
	p.plays++
	return nil
}

func TestSendFileFeedsEveryShardToTransmitter(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/payload.bin"
	data := bytes.Repeat([]byte{0xAB}, 10)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}

	tx := &fakeTransmitter{}
	pl := &fakePlayer{}
	if err := SendFile(tx, pl, path, 0x0b); err != nil {
		t.Fatalf("SendFile: %v", err)
	}
	if tx.rate != 0x0b {
		t.Fatalf("rate = %#x, want 0x0b", tx.rate)
	}
	// 10 bytes: one metadata and one data fragment, plus one parity shard.
	if pl.plays != 3 {
		t.Fatalf("played %d fragments, want 3 (every shard)", pl.plays)
	}
}

func TestReceiveFileReassemblesFragments(t *testing.T) {
	dir := t.TempDir()
	srcPath := dir + "/src.bin"
	data := bytes.Repeat([]byte("the quick brown fox "), 100)
	if err := os.WriteFile(srcPath, data, 0o644); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}

	var sent []phy.Frame
	tx := recordingTransmitter(func(payload []byte, rate byte) {
		sent = append(sent, phy.Frame{Payload: append([]byte{}, payload...)})
	})
	if err := SendFile(tx, nil, srcPath, 0x0b); err != nil {
		t.Fatalf("SendFile: %v", err)
	}

	frames := make(chan phy.Frame, len(sent))
	for _, f := range sent {
		frames <- f
	}
	close(frames)

	var out bytes.Buffer
	meta, err := ReceiveFile(frames, &out)
	if err != nil {
		t.Fatalf("ReceiveFile: %v", err)
	}
	if meta.Size != int64(len(data)) {
		t.Fatalf("meta.Size = %d, want %d", meta.Size, len(data))
	}
	if !bytes.Equal(out.Bytes(), data) {
		t.Fatalf("reassembled output does not match source")
	}
}

type recordingTransmitter func(payload []byte, rate byte)

func (f recordingTransmitter) Transmit(payload []byte, rate byte) ([]float32, []float32, error) {
	f(payload, rate)
	return make([]float32, 4), make([]float32, 4), nil
}

// Package transport supplements the core PHY with the thin multi-frame
// file-transfer layer original_source/ never needed (it only ever
// moved one MTU-sized PSDU at a time): fragmenting a file across many
// PHY frames, outer-erasure-coding the fragment set with
// github.com/klauspost/reedsolomon so that whole dropped/corrupted
// frames can be reconstructed, and reassembling the file from whatever
// fragments the receiver actually decodes. It does not retransmit,
// acknowledge, or resequence.
package transport

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/klauspost/reedsolomon"

	"github.com/sdrmodem/blurt80211/internal/config"
	"github.com/sdrmodem/blurt80211/internal/phy"
)

// envelopeLen is the fixed header every fragment carries ahead of its
// payload: [FragmentIndex uint16][FragmentCount uint16][TransferID uint32].
const envelopeLen = 2 + 2 + 4

// parityNumerator/parityDenominator set the outer code's redundancy:
// one parity fragment for every 4 data fragments, rounded up, at
// least 1 — generous enough to ride out an occasional discarded PHY
// frame without chasing a target bit-error rate nobody has measured
// for this acoustic channel.
const (
	parityNumerator   = 1
	parityDenominator = 4
)

// Transmitter is the subset of *phy.Transmitter SendFile needs to
// encode one fragment as one PHY frame.
type Transmitter interface {
	Transmit(payload []byte, rate byte) (left, right []float32, err error)
}

// Player plays a transmitted frame's stereo waveform before the next
// fragment is encoded, so SendFile can drive a real audio device
// without internal/transport depending on internal/audio directly.
type Player interface {
	WriteStereo(left, right []float32) error
}

// ProgressCallback mirrors the teacher's protocol.ProgressCallback,
// reporting fragments (not bytes) sent/received since reassembly only
// knows fragment counts until the final write.
type ProgressCallback func(done, total int, status string)

// FileMetadata is the transfer's first fragment payload, encoded the
// way the teacher's protocol.FileMetadata was: a length-prefixed name,
// an 8-byte size, and an MD5 hex digest, ahead of the data fragments.
type FileMetadata struct {
	Filename string
	Size     int64
	MD5Hash  string
}

func encodeFileMeta(meta FileMetadata) []byte {
	name := []byte(meta.Filename)
	md5 := []byte(meta.MD5Hash)
	buf := make([]byte, 2+len(name)+8+len(md5))
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(name)))
	copy(buf[2:], name)
	off := 2 + len(name)
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(meta.Size))
	copy(buf[off+8:], md5)
	return buf
}

func decodeFileMeta(data []byte) (FileMetadata, error) {
	if len(data) < 2 {
		return FileMetadata{}, fmt.Errorf("transport: metadata too short")
	}
	nameLen := int(binary.BigEndian.Uint16(data[0:2]))
	if len(data) < 2+nameLen+8+32 {
		return FileMetadata{}, fmt.Errorf("transport: metadata truncated")
	}
	off := 2 + nameLen
	return FileMetadata{
		Filename: string(data[2:off]),
		Size:     int64(binary.BigEndian.Uint64(data[off : off+8])),
		MD5Hash:  string(data[off+8 : off+8+32]),
	}, nil
}

// fragmentPayloadSize is the largest payload that fits in one PHY
// frame once the envelope is subtracted from config.DefaultMTU.
const fragmentPayloadSize = config.DefaultMTU - envelopeLen

// SendFile fragments the file at path into fragmentPayloadSize
// payloads prefixed by a metadata fragment, outer-erasure-codes the
// resulting shard set, and feeds every shard (data and parity alike)
// through w as one PHY frame, in order, playing each one with play
// before encoding the next.
func SendFile(w Transmitter, play Player, path string, rate byte) error {
	return SendFileWithProgress(w, play, path, rate, nil)
}

// SendFileWithProgress is SendFile plus a progress callback, the way
// the teacher's FileSender.SetProgressCallback worked.
func SendFileWithProgress(w Transmitter, play Player, path string, rate byte, onProgress ProgressCallback) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("transport: read file: %w", err)
	}
	sum := md5.Sum(data)

	meta := FileMetadata{
		Filename: filepath.Base(path),
		Size:     int64(len(data)),
		MD5Hash:  hex.EncodeToString(sum[:]),
	}

	dataFragments := chunk(data, fragmentPayloadSize)
	payloads := append([][]byte{encodeFileMeta(meta)}, dataFragments...)

	transferID := fnv32(meta.Filename, meta.Size)
	shards, err := encodeOuter(payloads)
	if err != nil {
		return fmt.Errorf("transport: outer encode: %w", err)
	}

	total := len(shards)
	for i, shard := range shards {
		frame := make([]byte, envelopeLen+len(shard))
		binary.BigEndian.PutUint16(frame[0:2], uint16(i))
		binary.BigEndian.PutUint16(frame[2:4], uint16(total))
		binary.BigEndian.PutUint32(frame[4:8], transferID)
		copy(frame[envelopeLen:], shard)

		left, right, err := w.Transmit(frame, rate)
		if err != nil {
			return fmt.Errorf("transport: transmit fragment %d/%d: %w", i, total, err)
		}
		if play != nil {
			if err := play.WriteStereo(left, right); err != nil {
				return fmt.Errorf("transport: play fragment %d/%d: %w", i, total, err)
			}
		}
		if onProgress != nil {
			onProgress(i+1, total, fmt.Sprintf("sent fragment %d/%d", i+1, total))
		}
	}

	log.Printf("transport: sent %s (%d bytes, %d fragments, MD5 %s)", meta.Filename, meta.Size, total, meta.MD5Hash)
	return nil
}

// ReceiveFile accumulates fragments by TransferID from frames,
// reconstructs any missing ones with reedsolomon once enough have
// arrived, and writes the recovered file to out. It returns once one
// transfer's data is fully recovered and MD5-verified, or the channel
// closes first.
func ReceiveFile(frames <-chan phy.Frame, out io.Writer) (FileMetadata, error) {
	return ReceiveFileWithProgress(frames, out, nil)
}

// ReceiveFileWithProgress is ReceiveFile plus a progress callback.
func ReceiveFileWithProgress(frames <-chan phy.Frame, out io.Writer, onProgress ProgressCallback) (FileMetadata, error) {
	type transfer struct {
		total  int
		shards [][]byte
		got    int
	}
	transfers := make(map[uint32]*transfer)

	for f := range frames {
		if len(f.Payload) < envelopeLen {
			continue
		}
		idx := int(binary.BigEndian.Uint16(f.Payload[0:2]))
		total := int(binary.BigEndian.Uint16(f.Payload[2:4]))
		id := binary.BigEndian.Uint32(f.Payload[4:8])
		shard := f.Payload[envelopeLen:]

		tr := transfers[id]
		if tr == nil {
			tr = &transfer{total: total, shards: make([][]byte, total)}
			transfers[id] = tr
		}
		if idx >= len(tr.shards) || tr.shards[idx] != nil {
			continue
		}
		tr.shards[idx] = shard
		tr.got++
		if onProgress != nil {
			onProgress(tr.got, tr.total, fmt.Sprintf("received fragment %d/%d", tr.got, tr.total))
		}

		dataShards, parityShards := outerShardCounts(tr.total)
		if tr.got < dataShards {
			continue
		}

		payloads, err := decodeOuter(tr.shards, dataShards, parityShards)
		if err != nil {
			continue // not enough correct shards yet; keep waiting
		}

		meta, err := decodeFileMeta(payloads[0])
		if err != nil {
			return FileMetadata{}, fmt.Errorf("transport: decode metadata: %w", err)
		}

		hash := md5.New()
		written := int64(0)
		for _, p := range payloads[1:] {
			if written >= meta.Size {
				break
			}
			n := len(p)
			if remaining := meta.Size - written; int64(n) > remaining {
				n = int(remaining)
			}
			if _, err := out.Write(p[:n]); err != nil {
				return FileMetadata{}, fmt.Errorf("transport: write output: %w", err)
			}
			hash.Write(p[:n])
			written += int64(n)
		}

		got := hex.EncodeToString(hash.Sum(nil))
		if got != meta.MD5Hash {
			return FileMetadata{}, fmt.Errorf("transport: MD5 mismatch: want %s, got %s", meta.MD5Hash, got)
		}
		log.Printf("transport: received %s (%d bytes, MD5 verified)", meta.Filename, meta.Size)
		return meta, nil
	}
	return FileMetadata{}, fmt.Errorf("transport: frame channel closed before any transfer completed")
}

// chunk splits data into size-byte pieces, the last padded with
// zeros so every shard reedsolomon sees is equal length.
func chunk(data []byte, size int) [][]byte {
	var out [][]byte
	for i := 0; i < len(data); i += size {
		end := i + size
		if end > len(data) {
			end = len(data)
		}
		piece := make([]byte, size)
		copy(piece, data[i:end])
		out = append(out, piece)
	}
	if len(out) == 0 {
		out = append(out, make([]byte, size))
	}
	return out
}

// outerShardCounts derives (dataShards, parityShards) from the total
// shard count a sender already committed to, inverting the ratio
// SendFile used to build it.
func outerShardCounts(total int) (dataShards, parityShards int) {
	dataShards = total * parityDenominator / (parityDenominator + parityNumerator)
	if dataShards < 1 {
		dataShards = 1
	}
	parityShards = total - dataShards
	if parityShards < 1 {
		parityShards = 1
		dataShards = total - 1
	}
	return dataShards, parityShards
}

// equalizeLen returns the longest payload's length: the shard width
// encodeOuter pads every payload to so reedsolomon sees equal-size
// shards. It does not modify the payloads.
func equalizeLen(payloads [][]byte) int {
	width := 0
	for _, p := range payloads {
		if len(p) > width {
			width = len(p)
		}
	}
	return width
}

func encodeOuter(payloads [][]byte) ([][]byte, error) {
	dataShards := len(payloads)
	parityShards := (dataShards*parityNumerator + parityDenominator - 1) / parityDenominator
	if parityShards < 1 {
		parityShards = 1
	}

	width := equalizeLen(payloads)
	shards := make([][]byte, dataShards+parityShards)
	for i, p := range payloads {
		s := make([]byte, width)
		copy(s, p)
		shards[i] = s
	}
	for i := dataShards; i < len(shards); i++ {
		shards[i] = make([]byte, width)
	}

	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, fmt.Errorf("new encoder (%d, %d): %w", dataShards, parityShards, err)
	}
	if err := enc.Encode(shards); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return shards, nil
}

// decodeOuter reconstructs missing/nil shards via reedsolomon and
// returns the dataShards originals (still envelope-free, width-padded
// payloads; the caller trims padding using the embedded file size).
func decodeOuter(shards [][]byte, dataShards, parityShards int) ([][]byte, error) {
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, fmt.Errorf("new encoder (%d, %d): %w", dataShards, parityShards, err)
	}
	cp := make([][]byte, len(shards))
	copy(cp, shards)
	if err := enc.Reconstruct(cp); err != nil {
		return nil, fmt.Errorf("reconstruct: %w", err)
	}
	ok, err := enc.Verify(cp)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("verification failed")
	}
	return cp[:dataShards], nil
}

// fnv32 derives a TransferID from the filename/size rather than
// random bits, so resending the same file after a failed transfer
// reuses the same ID deterministically (handy for log correlation);
// it is not a security boundary.
func fnv32(name string, size int64) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(name); i++ {
		h ^= uint32(name[i])
		h *= 16777619
	}
	for i := 0; i < 8; i++ {
		h ^= uint32(size>>(8*i)) & 0xff
		h *= 16777619
	}
	return h
}

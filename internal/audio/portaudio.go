package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/sdrmodem/blurt80211/internal/config"
)

// FramesPerBuf is the PortAudio callback buffer size. It has no
// relation to the OFDM symbol length — the PHY layer streams arbitrary-
// size chunks through phy.Receiver.Feed and phy.Transmitter.Transmit
// independently of how PortAudio chooses to deliver/request samples.
const FramesPerBuf = 2048

// OutputChannels is 2: the transmitter drives two speakers with a
// fixed inter-channel delay (spec.md's stereo beamforming step).
// InputChannels is 1: the receiver demodulates a single microphone
// channel.
const (
	OutputChannels = 2
	InputChannels  = 1
)

// AudioIO wraps PortAudio for the stereo-out/mono-in shape the PHY
// layer needs: Transmitter.Transmit produces independent left/right
// waveforms, Receiver.Feed consumes one real channel at a time.
type AudioIO struct {
	inputStream  *portaudio.Stream
	outputStream *portaudio.Stream
	inputBuf     []float32
	outputBuf    []float32
	sampleRate   float64
	mu           sync.Mutex
}

// Init initializes PortAudio.
func Init() error {
	return portaudio.Initialize()
}

// Terminate cleans up PortAudio.
func Terminate() error {
	return portaudio.Terminate()
}

// NewAudioIO creates a new AudioIO instance for the given channel's
// passband sample rate.
func NewAudioIO(ch config.Channel) *AudioIO {
	return &AudioIO{
		inputBuf:   make([]float32, InputChannels*FramesPerBuf),
		outputBuf:  make([]float32, OutputChannels*FramesPerBuf),
		sampleRate: ch.PassbandRate(),
	}
}

// OpenInput opens the default mono input stream.
func (a *AudioIO) OpenInput() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	stream, err := portaudio.OpenDefaultStream(
		InputChannels,
		0,
		a.sampleRate,
		FramesPerBuf,
		a.inputBuf,
	)
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	a.inputStream = stream
	return nil
}

// OpenOutput opens the default stereo output stream.
func (a *AudioIO) OpenOutput() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	stream, err := portaudio.OpenDefaultStream(
		0,
		OutputChannels,
		a.sampleRate,
		FramesPerBuf,
		a.outputBuf,
	)
	if err != nil {
		return fmt.Errorf("open output stream: %w", err)
	}
	a.outputStream = stream
	return nil
}

// StartInput starts the input stream.
func (a *AudioIO) StartInput() error {
	if a.inputStream == nil {
		return fmt.Errorf("input stream not opened")
	}
	return a.inputStream.Start()
}

// StartOutput starts the output stream.
func (a *AudioIO) StartOutput() error {
	if a.outputStream == nil {
		return fmt.Errorf("output stream not opened")
	}
	return a.outputStream.Start()
}

// Read reads one mono buffer of FramesPerBuf samples from the input
// stream, for feeding directly into phy.Receiver.Feed.
func (a *AudioIO) Read() ([]float32, error) {
	if a.inputStream == nil {
		return nil, fmt.Errorf("input stream not opened")
	}
	if err := a.inputStream.Read(); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	out := make([]float32, len(a.inputBuf))
	copy(out, a.inputBuf)
	return out, nil
}

// Write interleaves left/right and writes one stereo buffer. len(left)
// and len(right) must each equal FramesPerBuf; callers stream longer
// waveforms through WriteStereo.
func (a *AudioIO) Write(left, right []float32) error {
	if a.outputStream == nil {
		return fmt.Errorf("output stream not opened")
	}
	for i := 0; i < FramesPerBuf; i++ {
		a.outputBuf[i*OutputChannels] = left[i]
		a.outputBuf[i*OutputChannels+1] = right[i]
	}
	return a.outputStream.Write()
}

// WriteStereo plays a full left/right waveform pair (as produced by
// phy.Transmitter.Transmit) in FramesPerBuf chunks, zero-padding the
// final chunk.
func (a *AudioIO) WriteStereo(left, right []float32) error {
	n := len(left)
	if len(right) != n {
		return fmt.Errorf("write stereo: left/right length mismatch (%d vs %d)", n, len(right))
	}
	chunkL := make([]float32, FramesPerBuf)
	chunkR := make([]float32, FramesPerBuf)
	for i := 0; i < n; i += FramesPerBuf {
		end := i + FramesPerBuf
		clear(chunkL)
		clear(chunkR)
		if end > n {
			end = n
		}
		copy(chunkL, left[i:end])
		copy(chunkR, right[i:end])
		if err := a.Write(chunkL, chunkR); err != nil {
			return err
		}
	}
	return nil
}

// ReadMono reads n samples from the input stream, for a receive loop
// that wants fixed-size chunks larger than FramesPerBuf.
func (a *AudioIO) ReadMono(n int) ([]float32, error) {
	result := make([]float32, 0, n)
	for len(result) < n {
		chunk, err := a.Read()
		if err != nil {
			return nil, err
		}
		result = append(result, chunk...)
	}
	return result[:n], nil
}

// StopInput stops the input stream.
func (a *AudioIO) StopInput() error {
	if a.inputStream == nil {
		return nil
	}
	return a.inputStream.Stop()
}

// StopOutput stops the output stream.
func (a *AudioIO) StopOutput() error {
	if a.outputStream == nil {
		return nil
	}
	return a.outputStream.Stop()
}

// Close closes all streams.
func (a *AudioIO) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	if a.inputStream != nil {
		if err := a.inputStream.Close(); err != nil {
			errs = append(errs, err)
		}
		a.inputStream = nil
	}
	if a.outputStream != nil {
		if err := a.outputStream.Close(); err != nil {
			errs = append(errs, err)
		}
		a.outputStream = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

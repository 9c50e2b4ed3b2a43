package audio

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/go-audio/wav"
)

// WAVCapturer replays a PCM WAV file as a sequence of frames, advancing by
// a fixed hop on every read. Multi-channel files are mixed down to mono.
type WAVCapturer struct {
	mu          sync.Mutex
	path        string
	frameSize   int
	hop         int
	isCapturing bool
	samples     []float32
	sampleRate  int
	pos         int
	analyser    *Analyser
}

// NewWAVCapturer creates a replay source for path. hop <= 0 means frames
// do not overlap.
func NewWAVCapturer(path string, frameSize, hop int) *WAVCapturer {
	if hop <= 0 {
		hop = frameSize
	}
	return &WAVCapturer{
		path:      path,
		frameSize: frameSize,
		hop:       hop,
		analyser:  NewAnalyser(),
	}
}

// Start decodes the file into memory
func (c *WAVCapturer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isCapturing {
		return ErrAlreadyCapturing
	}

	samples, sampleRate, err := readWAVMono(c.path)
	if err != nil {
		return err
	}

	c.samples = samples
	c.sampleRate = sampleRate
	c.pos = 0
	c.isCapturing = true
	return nil
}

// Stop releases the decoded samples
func (c *WAVCapturer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.isCapturing = false
	c.samples = nil
	c.pos = 0
	return nil
}

// ReadFrame returns the next frame or io.EOF at the end of the file
func (c *WAVCapturer) ReadFrame() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isCapturing {
		return nil, ErrNotCapturing
	}
	if c.pos+c.frameSize > len(c.samples) {
		return nil, io.EOF
	}

	samples := make([]float32, c.frameSize)
	copy(samples, c.samples[c.pos:c.pos+c.frameSize])
	c.pos += c.hop

	return &Frame{
		Samples:      samples,
		MagnitudesDB: c.analyser.Magnitudes(samples),
		SampleRate:   c.sampleRate,
	}, nil
}

// IsCapturing returns true while the file is loaded
func (c *WAVCapturer) IsCapturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isCapturing
}

// SampleRate returns the rate of the loaded file, 0 before Start
func (c *WAVCapturer) SampleRate() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sampleRate
}

func readWAVMono(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decoding wav: %w", err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, 0, fmt.Errorf("invalid wav buffer: %s", path)
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))

	ch := buf.Format.NumChannels
	frames := len(buf.Data) / ch
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < ch; c++ {
			sum += float64(buf.Data[i*ch+c])
		}
		out[i] = float32(sum / float64(ch) / scale)
	}
	return out, buf.Format.SampleRate, nil
}

package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudioCapturer implements audio capture using PortAudio
type PortAudioCapturer struct {
	isCapturing   bool
	stream        *portaudio.Stream
	samples       []float32 // most recent mono frame
	frameSize     int
	sampleRate    int
	channels      int
	bufferMutex   sync.Mutex
	amplification float32 // Audio signal amplification factor
	analyser      *Analyser
}

// NewPortAudioCapturer creates a new audio capturer using PortAudio.
// frameSize is the number of mono samples per frame and should be a power
// of two.
func NewPortAudioCapturer(frameSize, sampleRate, channels int) (*PortAudioCapturer, error) {
	if frameSize < 2 || frameSize&(frameSize-1) != 0 {
		return nil, fmt.Errorf("frame size %d is not a power of two", frameSize)
	}
	if channels < 1 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}

	return &PortAudioCapturer{
		samples:       make([]float32, frameSize),
		frameSize:     frameSize,
		sampleRate:    sampleRate,
		channels:      channels,
		amplification: 1.0,
		analyser:      NewAnalyser(),
	}, nil
}

// Start begins audio capture
func (c *PortAudioCapturer) Start() error {
	if c.IsCapturing() {
		return ErrAlreadyCapturing
	}

	// PortAudio is initialised per capture session so that Stop fully
	// releases the device.
	if err := portaudio.Initialize(); err != nil {
		return classifyDeviceError(err)
	}

	var err error
	c.stream, err = portaudio.OpenDefaultStream(
		c.channels, // input channels
		0,          // output channels
		float64(c.sampleRate),
		c.frameSize, // frames per buffer
		c.processAudio,
	)
	if err != nil {
		portaudio.Terminate()
		return classifyDeviceError(err)
	}

	if err := c.stream.Start(); err != nil {
		c.stream.Close()
		portaudio.Terminate()
		return classifyDeviceError(err)
	}

	c.bufferMutex.Lock()
	c.isCapturing = true
	c.bufferMutex.Unlock()
	return nil
}

// Stop ends audio capture
func (c *PortAudioCapturer) Stop() error {
	c.bufferMutex.Lock()
	wasCapturing := c.isCapturing
	c.isCapturing = false
	c.bufferMutex.Unlock()
	if !wasCapturing {
		return nil
	}

	var errs []error
	if err := c.stream.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stopping stream: %w", err))
	}
	if err := c.stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing stream: %w", err))
	}
	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, fmt.Errorf("terminating portaudio: %w", err))
	}
	c.stream = nil

	c.bufferMutex.Lock()
	clear(c.samples)
	c.bufferMutex.Unlock()

	return errors.Join(errs...)
}

// processAudio is the PortAudio callback; it keeps the latest mono frame
func (c *PortAudioCapturer) processAudio(in, _ []float32) {
	c.bufferMutex.Lock()
	defer c.bufferMutex.Unlock()

	// Keep only the newest frameSize frames of an oversized host buffer.
	frames := len(in) / c.channels
	if frames > c.frameSize {
		in = in[(frames-c.frameSize)*c.channels:]
		frames = c.frameSize
	}

	// Shift older audio left so the frame always holds the newest frameSize
	// samples even if the host delivers shorter buffers.
	copy(c.samples, c.samples[frames:])
	dst := c.samples[c.frameSize-frames:]

	for i := 0; i < frames; i++ {
		sum := float32(0)
		for ch := 0; ch < c.channels; ch++ {
			sum += in[i*c.channels+ch]
		}
		dst[i] = (sum / float32(c.channels)) * c.amplification
	}
}

// ReadFrame returns a copy of the latest frame with its spectrum
func (c *PortAudioCapturer) ReadFrame() (*Frame, error) {
	c.bufferMutex.Lock()
	if !c.isCapturing {
		c.bufferMutex.Unlock()
		return nil, ErrNotCapturing
	}
	samples := make([]float32, len(c.samples))
	copy(samples, c.samples)
	c.bufferMutex.Unlock()

	return &Frame{
		Samples:      samples,
		MagnitudesDB: c.analyser.Magnitudes(samples),
		SampleRate:   c.sampleRate,
	}, nil
}

// IsCapturing returns true if currently capturing audio
func (c *PortAudioCapturer) IsCapturing() bool {
	c.bufferMutex.Lock()
	defer c.bufferMutex.Unlock()
	return c.isCapturing
}

// SetAmplification sets the audio amplification factor
func (c *PortAudioCapturer) SetAmplification(factor float32) {
	c.bufferMutex.Lock()
	defer c.bufferMutex.Unlock()

	// Ensure amplification is positive
	if factor < 0.1 {
		factor = 0.1
	}

	c.amplification = factor
}

// classifyDeviceError maps host refusals to ErrPermissionDenied so the UI
// can show an actionable message.
func classifyDeviceError(err error) error {
	var paErr portaudio.Error
	if errors.As(err, &paErr) {
		switch paErr {
		case portaudio.DeviceUnavailable, portaudio.InvalidDevice:
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
	}
	return fmt.Errorf("opening input device: %w", err)
}

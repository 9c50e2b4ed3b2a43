package audio

import (
	"errors"
	"io"
	"sync"
)

// Errors
var (
	ErrAlreadyCapturing = errors.New("audio capture already started")
	ErrNotCapturing     = errors.New("audio capture not started")
	ErrPermissionDenied = errors.New("microphone permission denied")
)

// Frame is one capture cycle: time-domain samples in [-1,1] paired with the
// analyser's magnitude spectrum in dB.
type Frame struct {
	Samples      []float32
	MagnitudesDB []float64
	SampleRate   int
}

// Capturer defines the interface for audio capture
type Capturer interface {
	// Start begins audio capture. A denied or missing input device is
	// reported as ErrPermissionDenied.
	Start() error

	// Stop ends audio capture and releases the device. Stopping a stopped
	// capturer is a no-op.
	Stop() error

	// ReadFrame returns the most recent frame. Finite sources return io.EOF
	// once exhausted.
	ReadFrame() (*Frame, error)

	// IsCapturing returns true if currently capturing audio
	IsCapturing() bool
}

// MemoryCapturer replays a fixed list of frames. It backs tests and demos
// that need a capture device without hardware.
type MemoryCapturer struct {
	mu          sync.Mutex
	isCapturing bool
	frames      []*Frame
	next        int
	loop        bool

	starts, stops int

	// StartErr, when set, is returned by Start instead of starting.
	StartErr error
}

// NewMemoryCapturer creates a capturer over frames. When loop is true the
// frames repeat forever, otherwise ReadFrame returns io.EOF after the last.
func NewMemoryCapturer(frames []*Frame, loop bool) *MemoryCapturer {
	return &MemoryCapturer{
		frames: frames,
		loop:   loop,
	}
}

// Start begins audio capture
func (c *MemoryCapturer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isCapturing {
		return ErrAlreadyCapturing
	}
	if c.StartErr != nil {
		return c.StartErr
	}

	c.isCapturing = true
	c.next = 0
	c.starts++
	return nil
}

// Stop ends audio capture
func (c *MemoryCapturer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isCapturing {
		return nil
	}
	c.isCapturing = false
	c.stops++
	return nil
}

// ReadFrame returns the next stored frame
func (c *MemoryCapturer) ReadFrame() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isCapturing {
		return nil, ErrNotCapturing
	}
	if len(c.frames) == 0 {
		return nil, io.EOF
	}
	if c.next >= len(c.frames) {
		if !c.loop {
			return nil, io.EOF
		}
		c.next = 0
	}

	frame := c.frames[c.next]
	c.next++
	return frame, nil
}

// IsCapturing returns true if currently capturing audio
func (c *MemoryCapturer) IsCapturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isCapturing
}

// Acquisitions returns how many times the capturer was started and stopped
func (c *MemoryCapturer) Acquisitions() (starts, stops int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts, c.stops
}

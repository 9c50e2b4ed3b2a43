package engine

import (
	"io"
	"log/slog"
	"time"

	"github.com/0xlemi/fiddletone/internal/pitch"
	"github.com/0xlemi/fiddletone/internal/tone"
)

// Config holds the engine and driver settings
type Config struct {
	FrameSize  int // samples per frame, a power of two
	SampleRate int
	Channels   int

	TickInterval    time.Duration // cadence of the cooperative loop
	RefreshInterval time.Duration // live metrics cadence
	Window          time.Duration // live metrics look-back
	Decimation      int           // realtime driver emits every Nth detection
	QueueSize       int           // realtime message buffer

	SampleCapacity int
	TunerCapacity  int

	Target pitch.Target

	Logger *slog.Logger
	Now    func() time.Time
}

// DefaultConfig returns the settings used by the practice tuner
func DefaultConfig() Config {
	return Config{
		FrameSize:       2048,
		SampleRate:      44100,
		Channels:        1,
		TickInterval:    time.Second / 60,
		RefreshInterval: tone.DefaultRefreshInterval,
		Window:          tone.DefaultWindow,
		Decimation:      3,
		QueueSize:       32,
		SampleCapacity:  tone.SampleCapacity,
		TunerCapacity:   tone.TunerCapacity,
		Target:          pitch.OpenStrings[2],
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FrameSize <= 0 {
		c.FrameSize = d.FrameSize
	}
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.Channels <= 0 {
		c.Channels = d.Channels
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.Decimation <= 0 {
		c.Decimation = 1
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.SampleCapacity <= 0 {
		c.SampleCapacity = d.SampleCapacity
	}
	if c.TunerCapacity <= 0 {
		c.TunerCapacity = d.TunerCapacity
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

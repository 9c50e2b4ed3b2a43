package engine

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/0xlemi/fiddletone/internal/audio"
)

// Loop is the cooperative driver: a single goroutine that, on every tick,
// reads one frame, runs the full pipeline and hands the result to the sink
// before waiting for the next tick.
type Loop struct {
	lifecycle
	interval time.Duration
	sink     Sink
}

// NewLoop creates a cooperative driver ticking at cfg.TickInterval
func NewLoop(e *Engine, c audio.Capturer, cfg Config, sink Sink) *Loop {
	cfg = cfg.withDefaults()
	return &Loop{
		lifecycle: lifecycle{
			engine:   e,
			capturer: c,
			log:      e.log.With("driver", "loop"),
		},
		interval: cfg.TickInterval,
		sink:     sink,
	}
}

// Start begins capture
func (l *Loop) Start(ctx context.Context) error { return l.start(ctx, l.run) }

// Stop ends capture and resets the engine
func (l *Loop) Stop() error { return l.stopCurrent() }

// Running reports whether the loop is active
func (l *Loop) Running() bool { return l.running() }

// Done is closed when the loop stops producing
func (l *Loop) Done() <-chan struct{} { return l.doneChan() }

func (l *Loop) run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, err := l.capturer.ReadFrame()
		if errors.Is(err, io.EOF) {
			l.log.Info("capture source exhausted")
			return
		}
		if err != nil {
			l.log.Debug("frame unavailable", "err", err)
			continue
		}

		res := l.engine.PushAndScore(frame)
		if l.sink != nil {
			l.sink(res)
		}
	}
}

package engine

import (
	"context"
	"errors"
	"io"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/0xlemi/fiddletone/internal/audio"
	"github.com/0xlemi/fiddletone/internal/pitch"
	"golang.org/x/sync/errgroup"
)

// Realtime runs capture and detection on a goroutine locked to its own OS
// thread. Every Decimation-th detection is sent to a consumer goroutine
// that folds it into the engine. The two sides share only the channel; a
// full channel drops the message.
type Realtime struct {
	lifecycle
	detector   pitch.Detector
	interval   time.Duration
	decimation int
	queueSize  int
	now        func() time.Time
	sink       Sink

	emitted atomic.Uint64
	dropped atomic.Uint64
}

// NewRealtime creates a realtime driver. The detector runs on the capture
// thread and must not be shared with the cooperative path unless it is
// stateless.
func NewRealtime(e *Engine, c audio.Capturer, d pitch.Detector, cfg Config, sink Sink) *Realtime {
	cfg = cfg.withDefaults()
	return &Realtime{
		lifecycle: lifecycle{
			engine:   e,
			capturer: c,
			log:      e.log.With("driver", "realtime", "decimation", cfg.Decimation),
		},
		detector:   d,
		interval:   cfg.TickInterval,
		decimation: cfg.Decimation,
		queueSize:  cfg.QueueSize,
		now:        cfg.Now,
		sink:       sink,
	}
}

// Start begins capture
func (r *Realtime) Start(ctx context.Context) error { return r.start(ctx, r.run) }

// Stop ends capture and resets the engine
func (r *Realtime) Stop() error { return r.stopCurrent() }

// Running reports whether the driver is active
func (r *Realtime) Running() bool { return r.running() }

// Done is closed when the driver stops producing
func (r *Realtime) Done() <-chan struct{} { return r.doneChan() }

// Emitted returns how many detections were sent to the consumer
func (r *Realtime) Emitted() uint64 { return r.emitted.Load() }

// Dropped returns how many detections were lost to a full queue
func (r *Realtime) Dropped() uint64 { return r.dropped.Load() }

func (r *Realtime) run(ctx context.Context) {
	messages := make(chan Detection, r.queueSize)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.produce(ctx, messages) })
	g.Go(func() error { return r.consume(ctx, messages) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		r.log.Warn("realtime driver ended", "err", err)
	}
}

func (r *Realtime) produce(ctx context.Context, out chan<- Detection) error {
	defer close(out)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	cycle := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		frame, err := r.capturer.ReadFrame()
		if errors.Is(err, io.EOF) {
			r.log.Info("capture source exhausted")
			return nil
		}
		if err != nil {
			continue
		}

		det := Analyze(r.detector, frame, r.now())
		cycle++
		if cycle%r.decimation != 0 {
			continue
		}

		select {
		case out <- det:
			r.emitted.Add(1)
		default:
			r.dropped.Add(1)
		}
	}
}

func (r *Realtime) consume(ctx context.Context, in <-chan Detection) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case det, ok := <-in:
			if !ok {
				return nil
			}
			res := r.engine.Fold(det)
			if r.sink != nil {
				r.sink(res)
			}
		}
	}
}

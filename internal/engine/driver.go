package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/0xlemi/fiddletone/internal/audio"
)

// ErrRunning is returned when starting a driver that is already running
var ErrRunning = errors.New("engine already running")

// Sink receives every cycle's result on the driver's consumer goroutine.
// It must not call Stop on the same driver.
type Sink func(Result)

// Driver feeds an Engine from a capture device under one threading model.
// A session whose source runs out releases the device by itself and keeps
// the engine's results until the next Start or Stop.
type Driver interface {
	// Start acquires the device and begins processing. Cancelling ctx
	// stops the driver as if Stop had been called.
	Start(ctx context.Context) error

	// Stop halts acquisition, releases the device and resets the engine.
	// It is idempotent; a stopped driver may be started again.
	Stop() error

	// Running reports whether a session is active
	Running() bool

	// Done is closed when the current session stops producing, either
	// because it was stopped or its source ran out.
	Done() <-chan struct{}
}

type session struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *session) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// lifecycle implements the start/stop bookkeeping shared by drivers
type lifecycle struct {
	engine   *Engine
	capturer audio.Capturer
	log      *slog.Logger

	// teardown serialises device acquisition with device release
	teardown sync.Mutex

	mu      sync.Mutex
	current *session
}

func (lc *lifecycle) session() *session {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.current
}

func (lc *lifecycle) start(ctx context.Context, run func(ctx context.Context)) error {
	lc.teardown.Lock()
	defer lc.teardown.Unlock()

	if s := lc.session(); s != nil {
		if !s.finished() {
			return ErrRunning
		}
		// The source ran out and its release has not happened yet.
		if err := lc.release(s, false); err != nil {
			lc.log.Warn("releasing finished session", "err", err)
		}
	}

	if err := lc.capturer.Start(); err != nil {
		lc.log.Warn("capture failed to start", "err", err)
		return fmt.Errorf("starting capture: %w", err)
	}
	lc.engine.Reset()

	ctx, cancel := context.WithCancel(ctx)
	s := &session{cancel: cancel, done: make(chan struct{})}
	lc.mu.Lock()
	lc.current = s
	lc.mu.Unlock()

	go func() {
		run(ctx)
		close(s.done)

		// A cancelled context is a stop; an exhausted source keeps its
		// results readable.
		lc.teardown.Lock()
		defer lc.teardown.Unlock()
		if lc.session() == s {
			if err := lc.release(s, ctx.Err() != nil); err != nil {
				lc.log.Warn("releasing capture", "err", err)
			}
		}
	}()

	lc.log.Info("capture started")
	return nil
}

// stopCurrent stops the active session, if any, and resets the engine
func (lc *lifecycle) stopCurrent() error {
	lc.teardown.Lock()
	defer lc.teardown.Unlock()

	s := lc.session()
	if s == nil {
		lc.engine.Reset()
		return nil
	}
	return lc.release(s, true)
}

// release ends s and frees the device. The caller holds teardown; current
// is cleared only once the device is released.
func (lc *lifecycle) release(s *session, reset bool) error {
	s.cancel()
	<-s.done

	err := lc.capturer.Stop()
	if reset {
		lc.engine.Reset()
	}

	lc.mu.Lock()
	if lc.current == s {
		lc.current = nil
	}
	lc.mu.Unlock()

	lc.log.Info("capture stopped", "reset", reset)
	if err != nil {
		return fmt.Errorf("releasing capture: %w", err)
	}
	return nil
}

func (lc *lifecycle) running() bool {
	s := lc.session()
	return s != nil && !s.finished()
}

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

func (lc *lifecycle) doneChan() <-chan struct{} {
	if s := lc.session(); s != nil {
		return s.done
	}
	return closedChan
}

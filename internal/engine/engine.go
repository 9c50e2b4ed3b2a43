// Package engine ties pitch detection, spectral analysis and tone scoring
// into one per-instance pipeline, and drives it from a capture device.
package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/0xlemi/fiddletone/internal/audio"
	"github.com/0xlemi/fiddletone/internal/pitch"
	"github.com/0xlemi/fiddletone/internal/spectral"
	"github.com/0xlemi/fiddletone/internal/tone"
	"github.com/google/uuid"
)

// Detection is the per-frame analysis result. It is the message the
// realtime driver passes from its capture thread to the engine.
type Detection struct {
	Time      time.Time
	Frequency float64
	Voiced    bool
	RMS       float64
	Centroid  float64
}

// Result is the outcome of one engine cycle
type Result struct {
	Detection Detection
	Note      pitch.Note  // valid when Voiced
	Sample    tone.Sample // valid when Voiced
	Voiced    bool
	Accuracy  float64 // against the current target, 0 when not voiced

	Metrics   tone.Metrics
	Refreshed bool // Metrics were recomputed this cycle
}

// Analyze runs detection and spectral analysis on one frame. It touches no
// engine state.
func Analyze(d pitch.Detector, frame *audio.Frame, at time.Time) Detection {
	det := Detection{Time: at}
	if frame == nil {
		return det
	}
	det.Frequency, det.Voiced = d.Detect(frame)
	det.RMS = spectral.RMS(frame.Samples)
	det.Centroid = spectral.Centroid(frame.MagnitudesDB, frame.SampleRate)
	return det
}

// Engine owns the tone histories, live metrics and target note of one
// practice session. It is safe for one writer and many readers.
type Engine struct {
	id       string
	detector pitch.Detector
	now      func() time.Time
	log      *slog.Logger

	mu      sync.RWMutex
	target  pitch.Target
	samples *tone.Ring[tone.Sample]
	tuner   *tone.Ring[tone.TunerEntry]
	scorer  *tone.Scorer
}

// New creates an engine using detector for the cooperative path
func New(detector pitch.Detector, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	id := uuid.NewString()

	return &Engine{
		id:       id,
		detector: detector,
		now:      cfg.Now,
		log:      cfg.Logger.With("engine", id),
		target:   cfg.Target,
		samples:  tone.NewRing[tone.Sample](cfg.SampleCapacity),
		tuner:    tone.NewRing[tone.TunerEntry](cfg.TunerCapacity),
		scorer:   tone.NewScorer(cfg.RefreshInterval, cfg.Window),
	}
}

// ID returns the instance id used in log records
func (e *Engine) ID() string { return e.id }

// Detect runs the engine's detector on frame
func (e *Engine) Detect(frame *audio.Frame) (float64, bool) {
	return e.detector.Detect(frame)
}

// PushAndScore analyzes frame, records it if voiced and refreshes the live
// metrics when they are due.
func (e *Engine) PushAndScore(frame *audio.Frame) Result {
	return e.Fold(Analyze(e.detector, frame, e.now()))
}

// Fold records a detection produced elsewhere, such as on the realtime
// capture thread.
func (e *Engine) Fold(det Detection) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := Result{Detection: det, Voiced: det.Voiced}

	if det.Voiced {
		cents := pitch.CentsFromTarget(det.Frequency, e.target.Frequency)
		sample := tone.Sample{
			Time:      det.Time,
			RMS:       det.RMS,
			Centroid:  det.Centroid,
			Cents:     cents,
			Frequency: det.Frequency,
		}
		e.samples.Push(sample)
		e.tuner.Push(tone.TunerEntry{
			Frequency: det.Frequency,
			Cents:     cents,
			Time:      det.Time,
		})

		res.Sample = sample
		res.Note = pitch.MapToNote(det.Frequency)
		res.Accuracy = pitch.Accuracy(det.Frequency, e.target)
	}

	if e.scorer.Due(det.Time) {
		res.Metrics, res.Refreshed = e.scorer.Refresh(e.samples.Snapshot(), det.Time)
		if res.Refreshed {
			e.log.Debug("live metrics refreshed",
				"stability", res.Metrics.Stability.Value,
				"dynamics", res.Metrics.Dynamics.Value,
				"warmth", res.Metrics.Warmth.Value,
				"vibrato", res.Metrics.Vibrato.Value)
		}
	} else {
		res.Metrics = e.scorer.Metrics()
	}
	return res
}

// SetTarget changes the target note for future samples only
func (e *Engine) SetTarget(t pitch.Target) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.target = t
	e.log.Info("target changed", "note", t.Name, "hz", t.Frequency)
}

// Target returns the current target note
func (e *Engine) Target() pitch.Target {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.target
}

// SampleAccuracy scores a detection against the current target in [0,1].
// An unvoiced estimate scores 0; callers should skip it rather than
// average it in.
func (e *Engine) SampleAccuracy(hz float64, ok bool) float64 {
	if !ok {
		return 0
	}
	return pitch.Accuracy(hz, e.Target())
}

// ToneHistory returns a copy of the tone-feature history, oldest first
func (e *Engine) ToneHistory() []tone.Sample {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.samples.Snapshot()
}

// TunerHistory returns a copy of the pitch trend, oldest first
func (e *Engine) TunerHistory() []tone.TunerEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tuner.Snapshot()
}

// Metrics returns the most recent live metrics
func (e *Engine) Metrics() tone.Metrics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scorer.Metrics()
}

// Reset drops all history and metrics. The target is kept.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.samples.Reset()
	e.tuner.Reset()
	e.scorer.Reset()
	e.log.Debug("engine reset")
}

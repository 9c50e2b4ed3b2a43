package tone

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultRefreshInterval is how often live metrics are recomputed.
	DefaultRefreshInterval = 220 * time.Millisecond
	// DefaultWindow is how far back the scorer looks.
	DefaultWindow = 2500 * time.Millisecond

	stabilitySpreadCents = 18.0
	dynamicsFullRange    = 0.06
	warmthBrightHz       = 2000.0
	warmthSpanHz         = 1800.0
	vibratoMinRateHz     = 3.0
	vibratoSpanHz        = 5.0
	vibratoMinSamples    = 6
)

// Score is an integer score in [0,100] that may be absent
type Score struct {
	Value int
	Valid bool
}

func (s Score) String() string {
	if !s.Valid {
		return "--"
	}
	return fmt.Sprintf("%d", s.Value)
}

func score(v int) Score { return Score{Value: v, Valid: true} }

// Metrics are the four live tone-quality scores
type Metrics struct {
	Stability Score
	Dynamics  Score
	Warmth    Score
	Vibrato   Score
}

// Ready reports whether metrics have been computed since the last reset
func (m Metrics) Ready() bool {
	return m.Stability.Valid && m.Dynamics.Valid && m.Warmth.Valid && m.Vibrato.Valid
}

// Scorer recomputes Metrics from the tone history on a throttled cadence.
// It keeps the last result so that an empty window does not blank the
// display.
type Scorer struct {
	interval    time.Duration
	window      time.Duration
	lastRefresh time.Time
	metrics     Metrics
}

// NewScorer creates a scorer. Non-positive arguments select the defaults.
func NewScorer(interval, window time.Duration) *Scorer {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Scorer{interval: interval, window: window}
}

// Due reports whether a refresh is owed at now
func (s *Scorer) Due(now time.Time) bool {
	return s.lastRefresh.IsZero() || now.Sub(s.lastRefresh) >= s.interval
}

// Refresh recomputes the metrics from history if a refresh is due. The
// boolean is true only when new metrics were produced.
func (s *Scorer) Refresh(history []Sample, now time.Time) (Metrics, bool) {
	if !s.Due(now) {
		return s.metrics, false
	}
	s.lastRefresh = now

	window := Window(history, now, s.window)
	if len(window) == 0 {
		return s.metrics, false
	}

	s.metrics = Compute(window)
	return s.metrics, true
}

// Metrics returns the most recent result
func (s *Scorer) Metrics() Metrics { return s.metrics }

// Reset forgets the previous result and refresh time
func (s *Scorer) Reset() {
	s.lastRefresh = time.Time{}
	s.metrics = Metrics{}
}

// Window returns the samples no older than span at now, in order
func Window(history []Sample, now time.Time, span time.Duration) []Sample {
	var out []Sample
	for _, s := range history {
		if now.Sub(s.Time) <= span {
			out = append(out, s)
		}
	}
	return out
}

// Compute scores a non-empty window from scratch
func Compute(window []Sample) Metrics {
	cents := make([]float64, len(window))
	rms := make([]float64, len(window))
	centroids := make([]float64, len(window))
	for i, s := range window {
		cents[i] = s.Cents
		rms[i] = s.RMS
		centroids[i] = s.Centroid
	}

	var duration time.Duration
	if len(window) > 1 {
		duration = window[len(window)-1].Time.Sub(window[0].Time)
	}

	return Metrics{
		Stability: score(Stability(cents)),
		Dynamics:  score(Dynamics(rms)),
		Warmth:    score(Warmth(centroids)),
		Vibrato:   score(Vibrato(cents, duration)),
	}
}

// Stability rewards a steady pitch: 100 at zero spread, 0 once the
// population standard deviation reaches 18 cents.
func Stability(cents []float64) int {
	if len(cents) == 0 {
		return 0
	}
	std := math.Sqrt(math.Max(0, stat.PopVariance(cents, nil)))
	return finalize(100 - (std/stabilitySpreadCents)*100)
}

// Dynamics rewards controlled loudness variation, saturating at an RMS
// range of 0.06.
func Dynamics(rms []float64) int {
	if len(rms) == 0 {
		return 0
	}
	spread := floats.Max(rms) - floats.Min(rms)
	return finalize((spread / dynamicsFullRange) * 100)
}

// Warmth favours a darker tone: the lower the mean positive spectral
// centroid below 2000 Hz, the higher the score.
func Warmth(centroids []float64) int {
	var positive []float64
	for _, c := range centroids {
		if c > 0 {
			positive = append(positive, c)
		}
	}
	if len(positive) == 0 {
		return 0
	}
	avg := stat.Mean(positive, nil)
	return finalize(((warmthBrightHz - avg) / warmthSpanHz) * 100)
}

// Vibrato scores the oscillation rate of the pitch around its own mean:
// 0 at or below 3 Hz, 100 at 8 Hz.
func Vibrato(cents []float64, duration time.Duration) int {
	if len(cents) < vibratoMinSamples || duration <= 0 {
		return 0
	}
	rate := float64(crossings(cents)) / (2 * duration.Seconds())
	return finalize(((rate - vibratoMinRateHz) / vibratoSpanHz) * 100)
}

// crossings counts sign changes of x around its mean. Exact zeros are
// bridged: each sample is compared with the last nonzero one, so [1,0,-1]
// is one crossing.
func crossings(x []float64) int {
	mean := stat.Mean(x, nil)

	count := 0
	prev := 0.0
	for _, v := range x {
		d := v - mean
		if d == 0 {
			continue
		}
		sign := math.Copysign(1, d)
		if prev != 0 && sign != prev {
			count++
		}
		prev = sign
	}
	return count
}

func finalize(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Max(0, math.Min(100, math.Round(v))))
}

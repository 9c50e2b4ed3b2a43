package pitch

import (
	"math"

	"github.com/0xlemi/fiddletone/internal/audio"
	"github.com/0xlemi/fiddletone/internal/spectral"
)

const (
	// DefaultSilenceRMS is the RMS below which a frame is treated as silence.
	DefaultSilenceRMS = 0.01

	// DefaultTrimThreshold is the amplitude the edge trim scans for.
	DefaultTrimThreshold = 0.2
)

// Detector defines the interface for pitch detection
type Detector interface {
	// Detect returns the fundamental frequency of frame in Hz. ok is false
	// when there is no confident pitch; callers skip the cycle.
	Detect(frame *audio.Frame) (hz float64, ok bool)
}

// Autocorrelation detects pitch from the first dominant peak of the
// frame's autocorrelation, refined by parabolic interpolation.
type Autocorrelation struct {
	silenceRMS    float64
	trimThreshold float64
}

// NewAutocorrelation creates a detector with the default thresholds
func NewAutocorrelation() *Autocorrelation {
	return &Autocorrelation{
		silenceRMS:    DefaultSilenceRMS,
		trimThreshold: DefaultTrimThreshold,
	}
}

// Detect analyzes an audio frame and returns the detected frequency
func (d *Autocorrelation) Detect(frame *audio.Frame) (float64, bool) {
	if frame == nil || frame.SampleRate <= 0 || len(frame.Samples) == 0 {
		return 0, false
	}

	if spectral.RMS(frame.Samples) < d.silenceRMS {
		return 0, false
	}

	buf := d.trim(frame.Samples)
	if len(buf) < 2 {
		return 0, false
	}

	c := autocorrelate(buf)

	// Walk down the slope of the lag-0 peak.
	dip := 0
	for dip+1 < len(c) && c[dip] > c[dip+1] {
		dip++
	}

	maxVal, maxPos := -1.0, -1
	for i := dip; i < len(c); i++ {
		if c[i] > maxVal {
			maxVal = c[i]
			maxPos = i
		}
	}
	if maxPos < 1 || maxPos >= len(c)-1 {
		return 0, false
	}

	x1, x2, x3 := c[maxPos-1], c[maxPos], c[maxPos+1]
	a := (x1 + x3 - 2*x2) / 2
	b := (x3 - x1) / 2

	t0 := float64(maxPos)
	if a != 0 {
		t0 -= b / (2 * a)
	}
	if t0 <= 0 {
		return 0, false
	}

	return float64(frame.SampleRate) / t0, true
}

// trim drops the frame edges up to the first sample, scanning inwards from
// each end over at most half the frame, whose magnitude is below the trim
// threshold. The end index is exclusive.
func (d *Autocorrelation) trim(samples []float32) []float32 {
	n := len(samples)
	r1, r2 := 0, n-1

	for i := 0; i < n/2; i++ {
		if math.Abs(float64(samples[i])) < d.trimThreshold {
			r1 = i
			break
		}
	}
	for i := 1; i < n/2; i++ {
		if math.Abs(float64(samples[n-i])) < d.trimThreshold {
			r2 = n - i
			break
		}
	}

	if r2 < r1 {
		return nil
	}
	return samples[r1:r2]
}

// autocorrelate returns c[i] = Σ buf[j]·buf[j+i] for every lag in buf.
func autocorrelate(buf []float32) []float64 {
	n := len(buf)
	x := make([]float64, n)
	for i, s := range buf {
		x[i] = float64(s)
	}

	c := make([]float64, n)
	for lag := 0; lag < n; lag++ {
		sum := 0.0
		for j := 0; j < n-lag; j++ {
			sum += x[j] * x[j+lag]
		}
		c[lag] = sum
	}
	return c
}

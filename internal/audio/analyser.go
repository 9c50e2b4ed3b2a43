package audio

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// MinDecibels is the floor reported for empty or silent bins.
const MinDecibels = -100.0

// Analyser turns time-domain frames into dB magnitude spectra, the way a
// browser analyser node does: Blackman window, real FFT, |X|/N, 20·log10.
type Analyser struct {
	mu      sync.Mutex
	windows map[int][]float64
}

// NewAnalyser creates an analyser with an empty window cache
func NewAnalyser() *Analyser {
	return &Analyser{windows: make(map[int][]float64)}
}

// Magnitudes returns len(samples)/2 bins in dB. Bin i is centred on
// i·sampleRate/len(samples).
func (a *Analyser) Magnitudes(samples []float32) []float64 {
	n := len(samples)
	if n < 2 {
		return nil
	}

	coeffs := a.window(n)
	windowed := make([]float64, n)
	for i, s := range samples {
		windowed[i] = float64(s) * coeffs[i]
	}

	spectrum := fft.FFTReal(windowed)

	bins := make([]float64, n/2)
	for i := range bins {
		magnitude := cmplx.Abs(spectrum[i]) / float64(n)
		if magnitude <= 0 {
			bins[i] = MinDecibels
			continue
		}
		bins[i] = math.Max(20*math.Log10(magnitude), MinDecibels)
	}
	return bins
}

func (a *Analyser) window(n int) []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	w, ok := a.windows[n]
	if !ok {
		w = window.Blackman(n)
		a.windows[n] = w
	}
	return w
}

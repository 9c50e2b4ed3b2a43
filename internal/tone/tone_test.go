package tone

import (
	"math"
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestRingEviction(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
		if r.Len() > r.Cap() {
			t.Fatalf("Ring grew past capacity: %d > %d", r.Len(), r.Cap())
		}
	}

	got := r.Snapshot()
	want := []int{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("Snapshot() = %v, expected %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Snapshot()[%d] = %d, expected %d", i, got[i], want[i])
		}
	}

	// Snapshots are copies.
	got[0] = 99
	if r.Snapshot()[0] != 3 {
		t.Error("Mutating a snapshot changed the ring")
	}

	r.Reset()
	if r.Len() != 0 || len(r.Snapshot()) != 0 {
		t.Errorf("Expected empty ring after Reset, got %v", r.Snapshot())
	}
	r.Push(7)
	if s := r.Snapshot(); len(s) != 1 || s[0] != 7 {
		t.Errorf("Expected [7] after reuse, got %v", s)
	}
}

func TestRingCapacities(t *testing.T) {
	samples := NewRing[Sample](SampleCapacity)
	entries := NewRing[TunerEntry](TunerCapacity)
	for i := 0; i < 500; i++ {
		samples.Push(Sample{RMS: float64(i)})
		entries.Push(TunerEntry{Frequency: float64(i)})
	}
	if samples.Len() != 200 || entries.Len() != 120 {
		t.Errorf("Expected 200/120, got %d/%d", samples.Len(), entries.Len())
	}
	if first := samples.Snapshot()[0].RMS; first != 300 {
		t.Errorf("Expected oldest retained sample 300, got %f", first)
	}
}

func TestStability(t *testing.T) {
	if got := Stability([]float64{12, 12, 12, 12}); got != 100 {
		t.Errorf("Expected 100 for identical cents, got %d", got)
	}

	prev := 101
	for _, spread := range []float64{0, 2, 5, 9, 14, 20} {
		cents := []float64{-spread, spread, -spread, spread}
		got := Stability(cents)
		if got >= prev && got != 0 {
			t.Errorf("Spread %.0f: score %d did not fall below %d", spread, got, prev)
		}
		prev = got
	}

	// Population std-dev of ±9 is 9, half the 18 cent span.
	if got := Stability([]float64{-9, 9}); got != 50 {
		t.Errorf("Expected 50 for std 9, got %d", got)
	}
	if got := Stability([]float64{-40, 40}); got != 0 {
		t.Errorf("Expected clamp to 0, got %d", got)
	}
}

func TestDynamics(t *testing.T) {
	if got := Dynamics([]float64{0.3, 0.3, 0.3}); got != 0 {
		t.Errorf("Expected 0 for constant RMS, got %d", got)
	}

	prev := -1
	for _, spread := range []float64{0.005, 0.01, 0.03, 0.05} {
		got := Dynamics([]float64{0.2, 0.2 + spread})
		if got <= prev {
			t.Errorf("Range %.3f: score %d did not rise above %d", spread, got, prev)
		}
		prev = got
	}

	if got := Dynamics([]float64{0.2, 0.23}); got != 50 {
		t.Errorf("Expected 50 for range 0.03, got %d", got)
	}
	if got := Dynamics([]float64{0.1, 0.5}); got != 100 {
		t.Errorf("Expected saturation at 100, got %d", got)
	}
}

func TestWarmth(t *testing.T) {
	tests := []struct {
		name      string
		centroids []float64
		expected  int
	}{
		{"no positive centroid", []float64{0, 0, -5}, 0},
		{"dark", []float64{200}, 100},
		{"middle", []float64{1100}, 50},
		{"bright", []float64{2500}, 0},
		{"zeros ignored", []float64{0, 1100, 0}, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Warmth(tt.centroids); got != tt.expected {
				t.Errorf("Warmth() = %d, expected %d", got, tt.expected)
			}
		})
	}
}

func TestVibratoNeedsSixSamples(t *testing.T) {
	for n := 0; n < 6; n++ {
		cents := make([]float64, n)
		for i := range cents {
			cents[i] = float64(30 * (1 - 2*(i%2)))
		}
		if got := Vibrato(cents, 100*time.Millisecond); got != 0 {
			t.Errorf("%d samples: expected 0, got %d", n, got)
		}
	}
	if got := Vibrato([]float64{1, -1, 1, -1, 1, -1}, 0); got != 0 {
		t.Errorf("Expected 0 for zero duration, got %d", got)
	}
}

func TestCrossingsSkipsZeros(t *testing.T) {
	// Mean 0; the zeros sit between sign changes and must not add any.
	if got := crossings([]float64{1, 0, -1, 0, 1, -1}); got != 3 {
		t.Errorf("Expected 3 crossings, got %d", got)
	}
	// A zero between opposite signs is bridged, not a break.
	if got := crossings([]float64{2, 0, -2}); got != 1 {
		t.Errorf("Expected 1 crossing across a zero, got %d", got)
	}
	if got := crossings([]float64{2, 0, 2, -4}); got != 1 {
		t.Errorf("Expected 1 crossing, got %d", got)
	}
	if got := crossings([]float64{5, 5, 5}); got != 0 {
		t.Errorf("Expected 0 crossings for a flat series, got %d", got)
	}
}

func TestVibratoFiveHertz(t *testing.T) {
	const (
		step  = 20 * time.Millisecond
		count = 101
	)

	window := make([]Sample, count)
	cents := make([]float64, count)
	for i := range window {
		at := time.Duration(i) * step
		cents[i] = 30 * math.Sin(2*math.Pi*5*at.Seconds()+0.3)
		window[i] = Sample{Time: t0.Add(at), Cents: cents[i], RMS: 0.3, Centroid: 900}
	}

	// Expected value straight from the crossing-rate formula.
	mean := 0.0
	for _, c := range cents {
		mean += c
	}
	mean /= count
	crossed, last := 0, 0
	for _, c := range cents {
		sign := 0
		if c-mean > 0 {
			sign = 1
		} else if c-mean < 0 {
			sign = -1
		}
		if sign == 0 {
			continue
		}
		if last != 0 && sign != last {
			crossed++
		}
		last = sign
	}
	duration := window[count-1].Time.Sub(window[0].Time).Seconds()
	rate := float64(crossed) / (2 * duration)
	expected := int(math.Max(0, math.Min(100, math.Round((rate-3)/5*100))))

	m := Compute(window)
	if m.Vibrato.Value != expected {
		t.Errorf("Vibrato = %d, expected %d from formula", m.Vibrato.Value, expected)
	}
	if expected != 40 {
		t.Errorf("A 5 Hz vibrato should score 40, formula gave %d", expected)
	}
	if !m.Ready() {
		t.Error("Computed metrics should be ready")
	}
}

func TestSteadyToneScenario(t *testing.T) {
	window := make([]Sample, 10)
	for i := range window {
		window[i] = Sample{
			Time:      t0.Add(time.Duration(i) * 16 * time.Millisecond),
			RMS:       0.3,
			Centroid:  440,
			Cents:     0.31,
			Frequency: 440.08,
		}
	}

	m := Compute(window)
	if m.Stability.Value != 100 {
		t.Errorf("Expected stability 100, got %d", m.Stability.Value)
	}
	if m.Vibrato.Value != 0 {
		t.Errorf("Expected vibrato 0, got %d", m.Vibrato.Value)
	}
	if m.Dynamics.Value != 0 {
		t.Errorf("Expected dynamics 0, got %d", m.Dynamics.Value)
	}
}

func TestScorerCadenceAndWindow(t *testing.T) {
	s := NewScorer(220*time.Millisecond, 2500*time.Millisecond)
	if s.Metrics().Ready() {
		t.Fatal("New scorer should have no data")
	}

	history := []Sample{{Time: t0, Cents: 0, RMS: 0.2, Centroid: 1100}}

	m, ok := s.Refresh(history, t0)
	if !ok || !m.Ready() {
		t.Fatal("First refresh should produce metrics")
	}

	if _, ok := s.Refresh(history, t0.Add(100*time.Millisecond)); ok {
		t.Error("Refresh inside the interval should be throttled")
	}

	// Window now empty: previous metrics survive.
	late := t0.Add(3 * time.Second)
	m, ok = s.Refresh(history, late)
	if ok {
		t.Error("Empty window should not count as a refresh")
	}
	if !m.Ready() || m.Warmth.Value != 50 {
		t.Errorf("Expected previous metrics to be kept, got %+v", m)
	}

	s.Reset()
	if s.Metrics().Ready() {
		t.Error("Reset should clear metrics")
	}
	if !s.Due(late) {
		t.Error("Reset scorer should be due immediately")
	}
}

func TestWindow(t *testing.T) {
	history := []Sample{
		{Time: t0},
		{Time: t0.Add(time.Second)},
		{Time: t0.Add(3 * time.Second)},
	}
	got := Window(history, t0.Add(3500*time.Millisecond), 2500*time.Millisecond)
	if len(got) != 2 {
		t.Fatalf("Expected 2 samples in window, got %d", len(got))
	}
	if !got[0].Time.Equal(t0.Add(time.Second)) {
		t.Errorf("Expected window to start at +1s, got %v", got[0].Time.Sub(t0))
	}
}

func TestScoreString(t *testing.T) {
	if s := (Score{}).String(); s != "--" {
		t.Errorf("Expected -- for missing score, got %q", s)
	}
	if s := score(42).String(); s != "42" {
		t.Errorf("Expected 42, got %q", s)
	}
}

package audio

import (
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func sine(freq float64, n, sampleRate int, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}

func writeTestWAV(t *testing.T, samples []float32, sampleRate int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create wav: %v", err)
	}
	defer f.Close()

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(math.Round(float64(s) * 32767))
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("Failed to write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Failed to close encoder: %v", err)
	}
	return path
}

func TestAnalyserPeakBin(t *testing.T) {
	const (
		n          = 2048
		sampleRate = 44100
		bin        = 20
	)
	freq := float64(bin) * sampleRate / n

	mags := NewAnalyser().Magnitudes(sine(freq, n, sampleRate, 0.5))
	if len(mags) != n/2 {
		t.Fatalf("Expected %d bins, got %d", n/2, len(mags))
	}

	peak := 0
	for i, m := range mags {
		if m > mags[peak] {
			peak = i
		}
	}
	if peak != bin {
		t.Errorf("Expected peak at bin %d, got %d", bin, peak)
	}
	for i, m := range mags {
		if m < MinDecibels {
			t.Errorf("Bin %d below floor: %f", i, m)
		}
	}
}

func TestAnalyserSilence(t *testing.T) {
	mags := NewAnalyser().Magnitudes(make([]float32, 1024))
	for i, m := range mags {
		if m != MinDecibels {
			t.Fatalf("Bin %d: expected %f for silence, got %f", i, MinDecibels, m)
		}
	}
	if got := NewAnalyser().Magnitudes(nil); got != nil {
		t.Errorf("Expected nil spectrum for empty input, got %v", got)
	}
}

func TestMemoryCapturer(t *testing.T) {
	frames := []*Frame{{SampleRate: 1}, {SampleRate: 2}}
	c := NewMemoryCapturer(frames, false)

	if _, err := c.ReadFrame(); !errors.Is(err, ErrNotCapturing) {
		t.Errorf("Expected ErrNotCapturing before Start, got %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.Start(); !errors.Is(err, ErrAlreadyCapturing) {
		t.Errorf("Expected ErrAlreadyCapturing, got %v", err)
	}

	for want := 1; want <= 2; want++ {
		f, err := c.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame failed: %v", err)
		}
		if f.SampleRate != want {
			t.Errorf("Expected frame %d, got %d", want, f.SampleRate)
		}
	}
	if _, err := c.ReadFrame(); !errors.Is(err, io.EOF) {
		t.Errorf("Expected io.EOF, got %v", err)
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Errorf("Second Stop should be a no-op, got %v", err)
	}
	if starts, stops := c.Acquisitions(); starts != 1 || stops != 1 {
		t.Errorf("Expected 1 start and 1 stop, got %d and %d", starts, stops)
	}
}

func TestMemoryCapturerLoopAndStartErr(t *testing.T) {
	c := NewMemoryCapturer([]*Frame{{SampleRate: 7}}, true)
	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := c.ReadFrame(); err != nil {
			t.Fatalf("Looping capturer returned %v on read %d", err, i)
		}
	}

	denied := NewMemoryCapturer(nil, false)
	denied.StartErr = ErrPermissionDenied
	if err := denied.Start(); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied, got %v", err)
	}
	if denied.IsCapturing() {
		t.Error("Capturer should not be capturing after a failed Start")
	}
}

func TestWAVCapturer(t *testing.T) {
	const sampleRate = 44100
	path := writeTestWAV(t, sine(440, 5000, sampleRate, 0.5), sampleRate)

	c := NewWAVCapturer(path, 2048, 1024)
	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop()

	if c.SampleRate() != sampleRate {
		t.Errorf("Expected sample rate %d, got %d", sampleRate, c.SampleRate())
	}

	// 5000 samples with 2048/1024 framing gives offsets 0, 1024, 2048.
	count := 0
	for {
		f, err := c.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ReadFrame failed: %v", err)
		}
		count++

		if len(f.Samples) != 2048 || len(f.MagnitudesDB) != 1024 {
			t.Fatalf("Unexpected frame shape %d/%d", len(f.Samples), len(f.MagnitudesDB))
		}
		peak := 0.0
		for _, s := range f.Samples {
			peak = math.Max(peak, math.Abs(float64(s)))
		}
		if math.Abs(peak-0.5) > 0.01 {
			t.Errorf("Expected peak near 0.5 after normalisation, got %f", peak)
		}
	}
	if count != 3 {
		t.Errorf("Expected 3 frames, got %d", count)
	}
}

func TestWAVCapturerMissingFile(t *testing.T) {
	c := NewWAVCapturer(filepath.Join(t.TempDir(), "missing.wav"), 2048, 0)
	if err := c.Start(); err == nil {
		t.Fatal("Expected error for missing file")
	}
	if c.IsCapturing() {
		t.Error("Capturer should not be capturing after a failed Start")
	}
}

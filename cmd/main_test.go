package main

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/0xlemi/fiddletone/internal/engine"
	"github.com/0xlemi/fiddletone/internal/pitch"
	"github.com/0xlemi/fiddletone/internal/tone"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeA4(t *testing.T) string {
	t.Helper()
	const sampleRate = 48000

	data := make([]int, sampleRate/2)
	for i := range data {
		data[i] = int(0.5 * 32767 * math.Sin(2*math.Pi*440*float64(i)/sampleRate))
	}

	path := filepath.Join(t.TempDir(), "a4.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create wav: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	err = enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	})
	if err != nil {
		t.Fatalf("Failed to write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Failed to close encoder: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestReplayPlain(t *testing.T) {
	path := writeA4(t)
	logPath := filepath.Join(t.TempDir(), "debug.log")

	for _, mode := range [][]string{nil, {"--realtime", "--decimation", "1"}} {
		args := append([]string{"replay", path, "--plain", "--tick", "1ms", "--log", logPath}, mode...)
		out, err := execute(t, args...)
		if err != nil {
			t.Fatalf("replay %v failed: %v", mode, err)
		}

		if !strings.Contains(out, "A4") {
			t.Errorf("Expected A4 readings in output:\n%s", out)
		}
		if !strings.Contains(out, "Accuracy against A4: ★★★★★ 100% over 11 readings") {
			t.Errorf("Expected a perfect session summary:\n%s", out)
		}
	}

	logs, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Expected a log file: %v", err)
	}
	if !strings.Contains(string(logs), "capture started") {
		t.Errorf("Expected driver logs, got:\n%s", logs)
	}
}

func TestReplayAgainstOtherTarget(t *testing.T) {
	out, err := execute(t, "replay", writeA4(t), "--plain", "--tick", "1ms", "--target", "E5")
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if !strings.Contains(out, "Accuracy against E5: ☆☆☆☆☆ 0%") {
		t.Errorf("Expected zero accuracy against E5:\n%s", out)
	}
}

func TestReplayErrors(t *testing.T) {
	if _, err := execute(t, "replay", writeA4(t), "--plain", "--target", "H2"); !errors.Is(err, pitch.ErrUnknownNote) {
		t.Errorf("Expected ErrUnknownNote, got %v", err)
	}
	if _, err := execute(t, "replay", filepath.Join(t.TempDir(), "missing.wav"), "--plain"); err == nil {
		t.Error("Expected an error for a missing file")
	}
	if _, err := execute(t, "replay"); err == nil {
		t.Error("Expected an error without a file argument")
	}
}

func TestNotes(t *testing.T) {
	out, err := execute(t, "notes")
	if err != nil {
		t.Fatalf("notes failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 1+len(pitch.OpenStrings) {
		t.Fatalf("Expected header and %d strings, got:\n%s", len(pitch.OpenStrings), out)
	}
	for i, want := range []string{"G3", "D4", "A4", "E5"} {
		if !strings.HasPrefix(lines[i+1], want) {
			t.Errorf("Line %d: expected %s, got %q", i+1, want, lines[i+1])
		}
	}
	if !strings.Contains(lines[3], "69") || !strings.Contains(lines[3], "440.00") {
		t.Errorf("Expected A4 to be MIDI 69 at 440 Hz, got %q", lines[3])
	}
}

func TestFormatResult(t *testing.T) {
	m := tone.Metrics{
		Stability: tone.Score{Value: 100, Valid: true},
		Dynamics:  tone.Score{Value: 0, Valid: true},
		Warmth:    tone.Score{Value: 42, Valid: true},
		Vibrato:   tone.Score{Value: 7, Valid: true},
	}
	res := engine.Result{
		Detection: engine.Detection{Frequency: 440.1, Voiced: true},
		Note:      pitch.MapToNote(440.1),
		Sample:    tone.Sample{Cents: 0.4},
		Voiced:    true,
		Metrics:   m,
	}

	got := formatResult(res)
	for _, want := range []string{"A4", "+0.4 cents", "440.10 Hz", "stability 100", "warmth  42"} {
		if !strings.Contains(got, want) {
			t.Errorf("formatResult missing %q: %q", want, got)
		}
	}

	if got := formatResult(engine.Result{}); !strings.HasPrefix(got, "--") || !strings.Contains(got, "stability  --") {
		t.Errorf("Unexpected unvoiced line: %q", got)
	}
}

func TestBadFrameSize(t *testing.T) {
	if _, err := execute(t, "tune", "--frame-size", "1000"); err == nil {
		t.Error("Expected an error for a frame size that is not a power of two")
	}
}

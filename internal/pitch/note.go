package pitch

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnknownNote is returned when a note name cannot be parsed
var ErrUnknownNote = errors.New("unknown note name")

const (
	// ConcertA is the reference pitch of A4 in Hz.
	ConcertA = 440.0
	// ConcertAMIDI is the MIDI number of A4.
	ConcertAMIDI = 69
)

// All note names in chromatic order
var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var flatNames = map[string]string{
	"DB": "C#", "EB": "D#", "GB": "F#", "AB": "G#", "BB": "A#",
}

// Note represents a musical note
type Note struct {
	MIDI      int     // MIDI note number, A4 = 69
	Name      string  // e.g., "A", "A#", "B"
	Octave    int     // e.g., 4 for middle C (C4)
	Frequency float64 // Detected frequency in Hz
	Cents     int     // Cents from the nearest note, truncated toward -inf
}

// String renders scientific pitch notation, e.g. "A#4"
func (n Note) String() string {
	return fmt.Sprintf("%s%d", n.Name, n.Octave)
}

// Target is the note the player is aiming for
type Target struct {
	Name      string
	Frequency float64
}

// OpenStrings are the violin's open strings, lowest first.
var OpenStrings = []Target{
	{Name: "G3", Frequency: FrequencyOf(55)},
	{Name: "D4", Frequency: FrequencyOf(62)},
	{Name: "A4", Frequency: FrequencyOf(69)},
	{Name: "E5", Frequency: FrequencyOf(76)},
}

// NoteNumber returns the MIDI number of the equal-tempered note nearest to
// hz. Non-positive frequencies map to 0.
func NoteNumber(hz float64) int {
	if !(hz > 0) || math.IsInf(hz, 0) {
		return 0
	}
	return int(math.Round(12*math.Log2(hz/ConcertA))) + ConcertAMIDI
}

// FrequencyOf returns the equal-tempered frequency of MIDI note n
func FrequencyOf(n int) float64 {
	return ConcertA * math.Pow(2, float64(n-ConcertAMIDI)/12)
}

// CentsOffset returns floor(1200·log2(hz/FrequencyOf(ref))).
//
// Floor, not round: a reading a fraction of a cent flat reports -1.
func CentsOffset(hz float64, ref int) int {
	if !(hz > 0) {
		return 0
	}
	return int(math.Floor(1200 * math.Log2(hz/FrequencyOf(ref))))
}

// CentsFromTarget returns the unrounded deviation of hz from targetHz in
// cents. Either frequency being non-positive yields 0.
func CentsFromTarget(hz, targetHz float64) float64 {
	if !(hz > 0) || !(targetHz > 0) {
		return 0
	}
	return 1200 * math.Log2(hz/targetHz)
}

// NameOf returns the note name and octave of MIDI note n
func NameOf(n int) (string, int) {
	idx := ((n % 12) + 12) % 12
	return noteNames[idx], floorDiv(n, 12) - 1
}

// MapToNote converts a frequency to the nearest note
func MapToNote(hz float64) Note {
	midi := NoteNumber(hz)
	name, octave := NameOf(midi)
	return Note{
		MIDI:      midi,
		Name:      name,
		Octave:    octave,
		Frequency: hz,
		Cents:     CentsOffset(hz, midi),
	}
}

// Accuracy scores hz against target in [0,1]: 1 on pitch, falling
// linearly to 0 at 50 cents away.
func Accuracy(hz float64, target Target) float64 {
	if !(hz > 0) || !(target.Frequency > 0) {
		return 0
	}
	cents := CentsOffset(hz, NoteNumber(target.Frequency))
	return math.Max(0, 50-math.Abs(float64(cents))) / 50
}

// ParseNote parses scientific pitch notation such as "A4", "C#5" or "Bb3"
// into a MIDI number.
func ParseNote(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrUnknownNote)
	}

	split := 1
	if len(s) > 1 && (s[1] == '#' || s[1] == 'b') {
		split = 2
	}
	name := strings.ToUpper(s[:split])
	if flat, ok := flatNames[name]; ok {
		name = flat
	}

	octave, err := strconv.Atoi(s[split:])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownNote, s)
	}

	for i, candidate := range noteNames {
		if candidate == name {
			return (octave+1)*12 + i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownNote, s)
}

// TargetFromName builds a Target from a note name
func TargetFromName(s string) (Target, error) {
	n, err := ParseNote(s)
	if err != nil {
		return Target{}, err
	}
	name, octave := NameOf(n)
	return Target{
		Name:      fmt.Sprintf("%s%d", name, octave),
		Frequency: FrequencyOf(n),
	}, nil
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

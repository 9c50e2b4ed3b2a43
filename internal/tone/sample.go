// Package tone holds the bounded tone histories and the live tone-quality
// scorer that reads them.
package tone

import "time"

const (
	// SampleCapacity bounds the tone-feature history.
	SampleCapacity = 200
	// TunerCapacity bounds the coarse pitch history used for trend display.
	TunerCapacity = 120
)

// Sample is one voiced analysis cycle
type Sample struct {
	Time      time.Time
	RMS       float64
	Centroid  float64 // spectral centroid in Hz
	Cents     float64 // deviation from the target current at Time
	Frequency float64
}

// TunerEntry is one point of the pitch trend
type TunerEntry struct {
	Frequency float64
	Cents     float64
	Time      time.Time
}

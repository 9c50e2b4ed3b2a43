// Package spectral computes per-frame energy and brightness features.
package spectral

import "math"

// RMS returns the root-mean-square amplitude of samples, 0 when empty.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}

	sumSquares := 0.0
	for _, s := range samples {
		v := float64(s)
		sumSquares += v * v
	}
	return math.Sqrt(sumSquares / float64(len(samples)))
}

// Centroid returns the spectral centroid in Hz of a dB magnitude spectrum.
// Bin i is centred on i·sampleRate/(2·len(magnitudesDB)). A spectrum with no
// energy yields 0.
func Centroid(magnitudesDB []float64, sampleRate int) float64 {
	if len(magnitudesDB) == 0 || sampleRate <= 0 {
		return 0
	}

	binWidth := float64(sampleRate) / float64(2*len(magnitudesDB))

	numerator := 0.0
	denominator := 0.0
	for i, db := range magnitudesDB {
		magnitude := math.Pow(10, db/20)
		numerator += float64(i) * binWidth * magnitude
		denominator += magnitude
	}

	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

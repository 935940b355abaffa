package analysis

import (
	"math"

	"github.com/ethiapath/djmusicorganizer/library/track"
)

// estimateKey folds spectral energy into a twelve-bin chroma profile and
// returns the dominant pitch class. Bins are measured with Goertzel filters
// at note frequencies across three octaves (C3 through B5).
func estimateKey(samples []float64, sampleRate int) (string, error) {
	if sampleRate <= 0 || len(samples) < sampleRate/2 {
		return "", &AnalysisError{Message: "excerpt too short for key estimation"}
	}

	nyquist := float64(sampleRate) / 2
	var chroma [12]float64
	var total float64

	// MIDI 48 (C3) .. 83 (B5); pitch class = midi % 12.
	for midi := 48; midi <= 83; midi++ {
		freq := 440.0 * math.Pow(2, float64(midi-69)/12)
		if freq >= nyquist*0.9 {
			break
		}
		power := goertzelPower(samples, sampleRate, freq)
		chroma[midi%12] += power
		total += power
	}

	if total <= 1e-12 {
		return "", &AnalysisError{Message: "no tonal content in excerpt"}
	}

	best := 0
	for i := 1; i < 12; i++ {
		if chroma[i] > chroma[best] {
			best = i
		}
	}
	return track.PitchClasses[best], nil
}

// goertzelPower measures normalized spectral power at freq using the
// Goertzel recurrence on the nearest DFT bin.
func goertzelPower(samples []float64, sampleRate int, freq float64) float64 {
	n := len(samples)
	k := math.Round(float64(n) * freq / float64(sampleRate))
	omega := 2 * math.Pi * k / float64(n)
	coeff := 2 * math.Cos(omega)

	var s0, s1, s2 float64
	for _, x := range samples {
		s0 = x + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}
	power := s1*s1 + s2*s2 - coeff*s1*s2
	return power / float64(n)
}

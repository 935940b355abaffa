package analysis

import (
	"math"
)

// Tempo search range. Club music lives well inside it; anything outside is
// more likely an octave error than a real tempo.
const (
	minBPM = 60.0
	maxBPM = 200.0
)

// estimateBPM estimates tempo from a mono excerpt: onset strength from the
// short-time energy envelope, then autocorrelation over the tempo range with
// a log-normal prior centered at 120 BPM. The result is rounded to one
// decimal place.
func estimateBPM(samples []float64, sampleRate int) (float64, error) {
	if sampleRate <= 0 || len(samples) < sampleRate/2 {
		return 0, &AnalysisError{Message: "excerpt too short for tempo estimation"}
	}

	// 10 ms hop keeps the lag grid fine enough for one-decimal tempo.
	hop := sampleRate / 100
	if hop < 1 {
		hop = 1
	}
	win := 2 * hop

	envelope := make([]float64, 0, len(samples)/hop)
	for start := 0; start+win <= len(samples); start += hop {
		var energy float64
		for i := start; i < start+win; i++ {
			energy += samples[i] * samples[i]
		}
		envelope = append(envelope, energy)
	}
	if len(envelope) < 4 {
		return 0, &AnalysisError{Message: "excerpt too short for tempo estimation"}
	}

	// Half-wave rectified energy flux: rises mark onsets.
	onsets := make([]float64, len(envelope))
	var total float64
	for i := 1; i < len(envelope); i++ {
		d := envelope[i] - envelope[i-1]
		if d > 0 {
			onsets[i] = d
			total += d
		}
	}
	if total == 0 {
		return 0, &AnalysisError{Message: "no rhythmic content in excerpt"}
	}

	frameRate := float64(sampleRate) / float64(hop)
	minLag := int(frameRate * 60.0 / maxBPM)
	maxLag := int(frameRate * 60.0 / minBPM)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(onsets) {
		maxLag = len(onsets) - 1
	}
	if minLag >= maxLag {
		return 0, &AnalysisError{Message: "excerpt too short for tempo estimation"}
	}

	bestLag, bestScore := 0, 0.0
	scores := make([]float64, maxLag+1)
	for lag := minLag; lag <= maxLag; lag++ {
		var r float64
		for i := lag; i < len(onsets); i++ {
			r += onsets[i] * onsets[i-lag]
		}
		bpm := 60.0 * frameRate / float64(lag)
		// Log-normal tempo prior, one octave standard deviation.
		octaves := math.Log2(bpm / 120.0)
		score := r * math.Exp(-0.5*octaves*octaves)
		scores[lag] = score
		if score > bestScore {
			bestScore = score
			bestLag = lag
		}
	}
	if bestLag == 0 || bestScore == 0 {
		return 0, &AnalysisError{Message: "no rhythmic content in excerpt"}
	}

	// Parabolic refinement around the winning lag.
	lag := float64(bestLag)
	if bestLag > minLag && bestLag < maxLag {
		left, center, right := scores[bestLag-1], scores[bestLag], scores[bestLag+1]
		denom := left - 2*center + right
		if denom != 0 {
			shift := 0.5 * (left - right) / denom
			if shift > -1 && shift < 1 {
				lag += shift
			}
		}
	}

	bpm := 60.0 * frameRate / lag
	return math.Round(bpm*10) / 10, nil
}

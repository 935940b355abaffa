package analysis

import "math"

// estimateEnergy maps the mean short-time RMS level of the excerpt onto the
// 0-100 intensity scale. Silence is a valid 0, not a failure.
func estimateEnergy(samples []float64) (int, error) {
	if len(samples) == 0 {
		return 0, &AnalysisError{Message: "empty excerpt for energy estimation"}
	}

	const (
		win = 2048
		hop = 1024
	)

	var sum float64
	var frames int
	for start := 0; start < len(samples); start += hop {
		end := start + win
		if end > len(samples) {
			end = len(samples)
		}
		var sq float64
		for i := start; i < end; i++ {
			sq += samples[i] * samples[i]
		}
		sum += math.Sqrt(sq / float64(end-start))
		frames++
		if end == len(samples) {
			break
		}
	}

	energy := int(math.Round(sum / float64(frames) * 100))
	if energy < 0 {
		energy = 0
	}
	if energy > 100 {
		energy = 100
	}
	return energy, nil
}

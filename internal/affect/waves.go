package affect

import "math"

// Waves are simulated EEG band amplitudes handed to the renderer.
type Waves struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Theta float64 `json:"theta"`
	Delta float64 `json:"delta"`
}

// waveJitter bounds the oscillation added on top of a resting amplitude.
// It stays below half the smallest gap between neighbouring bases so the
// alpha/beta ordering across emotions always survives.
const waveJitter = 0.05

// per-band oscillation frequencies in Hz, chosen to look like slow drift
var waveFreqs = Waves{Alpha: 0.31, Beta: 0.53, Theta: 0.17, Delta: 0.11}

// WavesFor returns the brainwave amplitudes for e at the given intensity,
// t seconds into the session.
func WavesFor(e Emotion, intensity, t float64) Waves {
	base := ProfileFor(e).Waves
	amp := waveJitter * Clamp01(intensity)
	osc := func(freq, phase float64) float64 {
		return amp * math.Sin(2*math.Pi*freq*t+phase)
	}
	return Waves{
		Alpha: Clamp01(base.Alpha + osc(waveFreqs.Alpha, 0)),
		Beta:  Clamp01(base.Beta + osc(waveFreqs.Beta, 1.1)),
		Theta: Clamp01(base.Theta + osc(waveFreqs.Theta, 2.3)),
		Delta: Clamp01(base.Delta + osc(waveFreqs.Delta, 0.7)),
	}
}

package affect

import (
	"math"
	"math/rand"
)

// Metrics are the cognitive readings derived from the current emotion.
// Every value lives in [0, 1].
type Metrics struct {
	Engagement    float64 `json:"engagement"`
	Attention     float64 `json:"attention"`
	CognitiveLoad float64 `json:"cognitiveLoad"`
}

// Band is an inclusive range a metric is drawn from.
type Band struct {
	Lo, Hi float64
}

// Center returns the midpoint of the band.
func (b Band) Center() float64 {
	return (b.Lo + b.Hi) / 2
}

// Contains reports whether v lies in the band.
func (b Band) Contains(v float64) bool {
	return v >= b.Lo && v <= b.Hi
}

// Profile is everything the engine needs to know about one emotion.
type Profile struct {
	Engagement    Band
	Attention     Band
	CognitiveLoad Band

	// Anchor is where scripted scenes start; scripted hops land near it.
	Anchor Metrics

	// Waves are the resting brainwave amplitudes for this emotion.
	Waves Waves
}

// profiles is the single source of per-emotion behavior. Beta rises and
// alpha falls from happy through neutral, confused and frustrated.
var profiles = map[Emotion]Profile{
	Happy: {
		Engagement:    Band{0.80, 0.95},
		Attention:     Band{0.75, 0.90},
		CognitiveLoad: Band{0.20, 0.45},
		Anchor:        Metrics{Engagement: 0.90, Attention: 0.85, CognitiveLoad: 0.30},
		Waves:         Waves{Alpha: 0.80, Beta: 0.30, Theta: 0.40, Delta: 0.20},
	},
	Neutral: {
		Engagement:    Band{0.60, 0.80},
		Attention:     Band{0.55, 0.80},
		CognitiveLoad: Band{0.40, 0.60},
		Anchor:        Metrics{Engagement: 0.70, Attention: 0.70, CognitiveLoad: 0.50},
		Waves:         Waves{Alpha: 0.60, Beta: 0.50, Theta: 0.40, Delta: 0.30},
	},
	Confused: {
		Engagement:    Band{0.35, 0.60},
		Attention:     Band{0.40, 0.65},
		CognitiveLoad: Band{0.70, 0.90},
		Anchor:        Metrics{Engagement: 0.40, Attention: 0.50, CognitiveLoad: 0.80},
		Waves:         Waves{Alpha: 0.40, Beta: 0.70, Theta: 0.65, Delta: 0.30},
	},
	Frustrated: {
		Engagement:    Band{0.20, 0.45},
		Attention:     Band{0.30, 0.55},
		CognitiveLoad: Band{0.80, 0.95},
		Anchor:        Metrics{Engagement: 0.30, Attention: 0.40, CognitiveLoad: 0.90},
		Waves:         Waves{Alpha: 0.25, Beta: 0.90, Theta: 0.45, Delta: 0.55},
	},
}

// ProfileFor returns the profile for e, falling back to neutral.
func ProfileFor(e Emotion) Profile {
	if p, ok := profiles[e]; ok {
		return p
	}
	return profiles[Neutral]
}

// metricJitter is the symmetric offset applied around a band's center.
const metricJitter = 0.05

// SampleMetrics draws a fresh reading for e: each metric starts at its band
// center, moves by up to ±metricJitter, and is kept inside the band.
func SampleMetrics(e Emotion, rng *rand.Rand) Metrics {
	p := ProfileFor(e)
	return Metrics{
		Engagement:    sampleBand(p.Engagement, rng),
		Attention:     sampleBand(p.Attention, rng),
		CognitiveLoad: sampleBand(p.CognitiveLoad, rng),
	}
}

func sampleBand(b Band, rng *rand.Rand) float64 {
	return jitterIn(b, b.Center(), metricJitter, rng)
}

// anchorJitter is the offset applied around an anchor on a scripted hop.
const anchorJitter = 0.02

// JitterAnchor returns e's anchor with each metric moved by up to
// ±anchorJitter and kept inside its band.
func JitterAnchor(e Emotion, rng *rand.Rand) Metrics {
	p := ProfileFor(e)
	return Metrics{
		Engagement:    jitterIn(p.Engagement, p.Anchor.Engagement, anchorJitter, rng),
		Attention:     jitterIn(p.Attention, p.Anchor.Attention, anchorJitter, rng),
		CognitiveLoad: jitterIn(p.CognitiveLoad, p.Anchor.CognitiveLoad, anchorJitter, rng),
	}
}

func jitterIn(b Band, base, spread float64, rng *rand.Rand) float64 {
	v := base + (rng.Float64()*2-1)*spread
	return Clamp01(math.Min(math.Max(v, b.Lo), b.Hi))
}

// Clamp01 clamps v to [0, 1]; NaN becomes 0.
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Clamp clamps v to [lo, hi]; NaN becomes lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamped returns m with every metric in [0, 1].
func (m Metrics) Clamped() Metrics {
	return Metrics{
		Engagement:    Clamp01(m.Engagement),
		Attention:     Clamp01(m.Attention),
		CognitiveLoad: Clamp01(m.CognitiveLoad),
	}
}

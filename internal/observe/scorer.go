package observe

import (
	"sort"
	"time"

	"github.com/alex/biotutor/internal/affect"
)

const (
	// DefaultRecencyWeight gives an observation recorded right now a 5%
	// edge over one at the far end of the window.
	DefaultRecencyWeight = 0.05
	// DefaultNeutralPenalty scales every neutral observation's score.
	DefaultNeutralPenalty = 0.9
)

// Scoring holds the composite scorer's tunables.
type Scoring struct {
	RecencyWeight  float64
	NeutralPenalty float64
}

// DefaultScoring returns the standard scorer settings.
func DefaultScoring() Scoring {
	return Scoring{
		RecencyWeight:  DefaultRecencyWeight,
		NeutralPenalty: DefaultNeutralPenalty,
	}
}

// Decision is the scorer's verdict over one window.
type Decision struct {
	// Emotion is the winning raw label.
	Emotion string `json:"emotion"`
	// Confidence is the mean raw confidence of the winner's observations.
	Confidence float64 `json:"confidence"`
	// TotalScore is the winner's summed composite score.
	TotalScore float64 `json:"totalScore"`
	// Scores is the summed composite score of every label in the window.
	Scores  map[string]float64 `json:"scores"`
	Samples int                `json:"samples"`
}

// Core returns the winning label mapped to its core emotion.
func (d Decision) Core() affect.Emotion {
	return affect.Normalize(d.Emotion)
}

// Select cleans the buffer against now and picks the winning emotion.
// An empty window yields neutral with full confidence. Exact score ties go
// to the lexicographically smallest label.
func (s Scoring) Select(b *Buffer, now time.Time) Decision {
	return s.decide(b.Entries(now), b.Window(), now)
}

// Select scores the buffer with DefaultScoring.
func Select(b *Buffer, now time.Time) Decision {
	return DefaultScoring().Select(b, now)
}

func (s Scoring) decide(entries []Observation, window time.Duration, now time.Time) Decision {
	if len(entries) == 0 {
		return Decision{
			Emotion:    string(affect.Neutral),
			Confidence: 1.0,
			Scores:     map[string]float64{},
		}
	}

	scores := make(map[string]float64)
	for _, o := range entries {
		scores[o.Label] += s.Score(o, window, now)
	}

	labels := make([]string, 0, len(scores))
	for l := range scores {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	winner := labels[0]
	for _, l := range labels[1:] {
		if scores[l] > scores[winner] {
			winner = l
		}
	}

	var sum float64
	var n int
	for _, o := range entries {
		if o.Label == winner {
			sum += o.Confidence
			n++
		}
	}
	confidence := 0.5
	if n > 0 {
		confidence = sum / float64(n)
	}

	return Decision{
		Emotion:    winner,
		Confidence: confidence,
		TotalScore: scores[winner],
		Scores:     scores,
		Samples:    len(entries),
	}
}

// Score returns one observation's composite score: confidence times a
// recency factor in [1, 1+RecencyWeight], with the neutral penalty applied
// on top.
func (s Scoring) Score(o Observation, window time.Duration, now time.Time) float64 {
	freshness := 1.0
	if window > 0 {
		age := now.Sub(o.Timestamp)
		freshness = affect.Clamp01(1 - float64(age)/float64(window))
	}
	score := o.Confidence * (1 + s.RecencyWeight*freshness)
	if o.Label == string(affect.Neutral) {
		score *= s.NeutralPenalty
	}
	return score
}

// Package affect holds the learner's emotion vocabulary and the per-emotion
// tables that drive cognitive metrics, simulated brainwaves and autonomous
// drift.
package affect

import "strings"

// Emotion is one of the four core labels the dashboard displays.
type Emotion string

const (
	Neutral    Emotion = "neutral"
	Happy      Emotion = "happy"
	Confused   Emotion = "confused"
	Frustrated Emotion = "frustrated"
)

// Core lists the core emotions in display order.
var Core = []Emotion{Neutral, Happy, Confused, Frustrated}

// rawToCore maps detector vocabularies onto the core labels.
// Anything not listed here falls back to neutral.
var rawToCore = map[string]Emotion{
	"neutral":    Neutral,
	"happy":      Happy,
	"joy":        Happy,
	"confused":   Confused,
	"surprise":   Confused,
	"surprised":  Confused,
	"frustrated": Frustrated,
	"angry":      Frustrated,
	"sad":        Frustrated,
	"disgust":    Frustrated,
	"disgusted":  Frustrated,
	"fear":       Frustrated,
	"fearful":    Frustrated,
}

// CleanLabel lowercases and trims a raw detector label. Observations keep
// this form so scoring stays faithful to what the detector said.
func CleanLabel(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Normalize maps a raw label to its core emotion for display and metric
// lookup.
func Normalize(raw string) Emotion {
	if e, ok := rawToCore[CleanLabel(raw)]; ok {
		return e
	}
	return Neutral
}

// Known reports whether the raw label is part of a recognized vocabulary.
func Known(raw string) bool {
	_, ok := rawToCore[CleanLabel(raw)]
	return ok
}

// IsCore reports whether e is one of the four core labels.
func (e Emotion) IsCore() bool {
	switch e {
	case Neutral, Happy, Confused, Frustrated:
		return true
	}
	return false
}

func (e Emotion) String() string {
	return string(e)
}

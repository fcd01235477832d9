// Package observe keeps a sliding window of emotion sightings and reduces
// it to a single decision.
package observe

import (
	"math"
	"sync"
	"time"

	"github.com/alex/biotutor/internal/affect"
)

const (
	// DefaultWindow is how long an observation stays relevant.
	DefaultWindow = 5 * time.Second
	// DefaultNeutralMinConfidence is the confidence a neutral sighting
	// needs to be kept. Neutral is the detector's fallback label and
	// swamps naive aggregation otherwise.
	DefaultNeutralMinConfidence = 0.9
)

// Observation is one timestamped emotion sighting.
type Observation struct {
	// Label is the raw detector label, lowercased.
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// Emotion returns the core emotion the raw label maps to.
func (o Observation) Emotion() affect.Emotion {
	return affect.Normalize(o.Label)
}

// Buffer holds observations in time order, bounded by a sliding window.
// It is safe for concurrent use.
type Buffer struct {
	mu           sync.Mutex
	entries      []Observation
	window       time.Duration
	neutralFloor float64
}

// NewBuffer creates a buffer with the given window. A non-positive window
// uses DefaultWindow.
func NewBuffer(window time.Duration) *Buffer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Buffer{
		entries:      make([]Observation, 0, 32),
		window:       window,
		neutralFloor: DefaultNeutralMinConfidence,
	}
}

// SetNeutralMinConfidence changes the neutral filtering threshold.
func (b *Buffer) SetNeutralMinConfidence(v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.neutralFloor = affect.Clamp01(v)
}

// Window returns the buffer's time window.
func (b *Buffer) Window() time.Duration {
	return b.window
}

// NormalizeConfidence accepts either a unit value or a percentage and
// returns a value in [0, 1]. Anything above 1 is read as a percentage;
// NaN becomes 0.
func NormalizeConfidence(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		v /= 100
	}
	return affect.Clamp01(v)
}

// PercentToUnit converts a percentage to [0, 1]; NaN becomes 0.
func PercentToUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return affect.Clamp01(v / 100)
}

// Record adds a sighting and cleans the window against now. A zero
// timestamp is read as now. Low-confidence neutral sightings are dropped;
// the returned observation is what was (or would have been) stored and
// kept reports whether it was.
func (b *Buffer) Record(label string, confidence float64, ts, now time.Time) (obs Observation, kept bool) {
	if ts.IsZero() {
		ts = now
	}
	obs = Observation{
		Label:      affect.CleanLabel(label),
		Confidence: NormalizeConfidence(confidence),
		Timestamp:  ts,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if obs.Label == string(affect.Neutral) && obs.Confidence < b.neutralFloor {
		b.cleanLocked(now)
		return obs, false
	}

	b.entries = append(b.entries, obs)
	b.cleanLocked(now)
	return obs, true
}

// Clean drops every observation older than now minus the window and
// returns how many were removed.
func (b *Buffer) Clean(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cleanLocked(now)
}

func (b *Buffer) cleanLocked(now time.Time) int {
	cutoff := now.Add(-b.window)
	kept := b.entries[:0]
	for _, o := range b.entries {
		if o.Timestamp.Before(cutoff) {
			continue
		}
		kept = append(kept, o)
	}
	removed := len(b.entries) - len(kept)
	// clear the tail so dropped entries don't linger in the backing array
	for i := len(kept); i < len(b.entries); i++ {
		b.entries[i] = Observation{}
	}
	b.entries = kept
	return removed
}

// Entries cleans against now and returns a copy of what remains.
func (b *Buffer) Entries(now time.Time) []Observation {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cleanLocked(now)
	out := make([]Observation, len(b.entries))
	copy(out, b.entries)
	return out
}

// Len cleans against now and returns the number of observations left.
func (b *Buffer) Len(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cleanLocked(now)
	return len(b.entries)
}

// Latest returns the newest observation in the window.
func (b *Buffer) Latest(now time.Time) (Observation, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cleanLocked(now)
	if len(b.entries) == 0 {
		return Observation{}, false
	}
	return b.entries[len(b.entries)-1], true
}

// Reset empties the buffer.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = b.entries[:0]
}

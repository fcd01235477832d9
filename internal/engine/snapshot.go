package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/alex/biotutor/internal/affect"
	"github.com/alex/biotutor/internal/observe"
)

// Snapshot is a point-in-time reading for the tutor. Emotion and
// Confidence come from scoring the observation window; the metrics are
// the live values.
type Snapshot struct {
	ID         string         `json:"id"`
	CapturedAt time.Time      `json:"capturedAt"`
	Emotion    affect.Emotion `json:"emotion"`
	Confidence float64        `json:"confidence"`
	Intensity  float64        `json:"intensity"`
	affect.Metrics
	Mode           Mode             `json:"mode"`
	WindowAnalysis observe.Decision `json:"windowAnalysis"`
}

// CaptureSnapshot scores the window and pairs the verdict with the live
// metrics.
func (c *Controller) CaptureSnapshot() Snapshot {
	var out outbox
	c.mu.Lock()
	now := c.now()
	d := c.cfg.Scoring.Select(c.buffer, now)
	snap := Snapshot{
		ID:             uuid.NewString(),
		CapturedAt:     now,
		Emotion:        d.Core(),
		Confidence:     d.Confidence,
		Intensity:      c.state.Intensity,
		Metrics:        c.state.Metrics,
		Mode:           c.state.Mode,
		WindowAnalysis: d,
	}
	out.snapshots = append(out.snapshots, snap)
	ls := c.listeners
	c.mu.Unlock()

	c.log.Debug().
		Str("id", snap.ID).
		Str("emotion", string(snap.Emotion)).
		Float64("confidence", snap.Confidence).
		Int("samples", d.Samples).
		Msg("snapshot captured")

	out.deliver(ls)
	return snap
}

package engine

import (
	"time"

	"github.com/alex/biotutor/internal/affect"
)

const (
	driftIntensity  = 0.9
	driftConfidence = 0.9
)

// tickDriftLocked attempts a periodic drift once per DriftInterval, and
// only when the cooldown since the last change has passed.
func (c *Controller) tickDriftLocked(now time.Time, out *outbox) {
	if c.cfg.DriftInterval <= 0 || now.Sub(c.lastDrift) < c.cfg.DriftInterval {
		return
	}
	c.lastDrift = now
	if now.Sub(c.state.LastChangeAt) < c.cfg.Cooldown {
		return
	}
	if c.rng.Float64() < c.cfg.Stability {
		c.log.Debug().Msg("drift skipped for stability")
		return
	}
	c.driftLocked(now, out)
}

// TriggerDrift draws the next emotion from the drift table immediately,
// ignoring the cooldown. It is a no-op outside autonomous mode and when
// the draw lands on the current emotion. It reports whether the emotion
// changed.
func (c *Controller) TriggerDrift() bool {
	var out outbox
	c.mu.Lock()
	changed := false
	if c.state.Mode == ModeAutonomous {
		now := c.now()
		c.lastDrift = now
		changed = c.driftLocked(now, &out)
		c.refreshWavesLocked(now)
	}
	ls := c.listeners
	c.mu.Unlock()

	out.deliver(ls)
	return changed
}

// driftLocked moves to a weighted draw and records the new emotion as a
// synthetic observation so the window reflects it.
func (c *Controller) driftLocked(now time.Time, out *outbox) bool {
	next := affect.NextEmotion(c.state.Emotion, c.rng)
	if next == c.state.Emotion {
		return false
	}
	c.setEmotionLocked(next, string(next), driftIntensity,
		affect.SampleMetrics(next, c.rng), CauseDrift, now, out)

	obs, kept := c.buffer.Record(string(next), driftConfidence, now, now)
	out.recorded = append(out.recorded, recorded{obs: obs, kept: kept})
	return true
}

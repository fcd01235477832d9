package engine

import (
	"time"

	"github.com/alex/biotutor/internal/affect"
	"github.com/alex/biotutor/internal/observe"
)

const observedIntensity = 0.7

// ReportObservation records a detector sighting. Confidence is a
// percentage in [0, 100]; a zero timestamp means now. In external
// mode the displayed emotion follows every arrival directly, while the
// window keeps feeding the scorer in all modes.
func (c *Controller) ReportObservation(label string, confidence float64, ts time.Time) (observe.Observation, bool) {
	var out outbox
	now := c.now()
	obs, kept := c.buffer.Record(label, observe.PercentToUnit(confidence), ts, now)
	out.recorded = append(out.recorded, recorded{obs: obs, kept: kept})

	c.mu.Lock()
	if c.state.Mode == ModeExternal {
		c.followLocked(obs, now, &out)
	}
	ls := c.listeners
	c.mu.Unlock()

	out.deliver(ls)
	return obs, kept
}

// followLocked redraws the metrics on every arrival. A repeat of the
// current raw label updates the state without a change event.
func (c *Controller) followLocked(obs observe.Observation, now time.Time, out *outbox) {
	e := affect.Normalize(obs.Label)
	m := affect.SampleMetrics(e, c.rng)
	if e == c.state.Emotion && obs.Label == c.state.RawEmotion {
		c.state.Intensity = observedIntensity
		c.state.Metrics = m.Clamped()
		c.state.UpdatedAt = now
	} else {
		c.setEmotionLocked(e, obs.Label, observedIntensity, m, CauseObservation, now, out)
	}
	c.refreshWavesLocked(now)
}

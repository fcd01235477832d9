package engine

import (
	"time"

	"github.com/alex/biotutor/internal/affect"
	"github.com/alex/biotutor/internal/observe"
)

// Cause says what moved the emotional state.
type Cause string

const (
	CauseSceneStart  Cause = "scene_start"
	CauseScript      Cause = "script"
	CauseIntensify   Cause = "intensify"
	CauseObservation Cause = "observation"
	CauseDrift       Cause = "drift"
)

// Change describes one emotion update. From equals To when a scripted
// step intensified the current emotion in place.
type Change struct {
	From  affect.Emotion `json:"from"`
	To    affect.Emotion `json:"to"`
	Cause Cause          `json:"cause"`
	At    time.Time      `json:"at"`
	State State          `json:"state"`
}

// Listener is notified after the controller releases its lock. Calls
// arrive on whichever goroutine drove the controller.
type Listener interface {
	EmotionChanged(Change)
	ObservationRecorded(obs observe.Observation, kept bool)
	SnapshotCaptured(Snapshot)
}

// NopListener implements Listener with no-ops; embed it to pick the
// callbacks you need.
type NopListener struct{}

func (NopListener) EmotionChanged(Change)                         {}
func (NopListener) ObservationRecorded(observe.Observation, bool) {}
func (NopListener) SnapshotCaptured(Snapshot)                     {}

type recorded struct {
	obs  observe.Observation
	kept bool
}

// outbox collects notifications while the lock is held.
type outbox struct {
	changes   []Change
	recorded  []recorded
	snapshots []Snapshot
}

func (o *outbox) deliver(listeners []Listener) {
	for _, l := range listeners {
		for _, r := range o.recorded {
			l.ObservationRecorded(r.obs, r.kept)
		}
		for _, ch := range o.changes {
			l.EmotionChanged(ch)
		}
		for _, s := range o.snapshots {
			l.SnapshotCaptured(s)
		}
	}
}

package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alex/biotutor/internal/affect"
	"github.com/alex/biotutor/internal/engine"
	"github.com/alex/biotutor/internal/observe"
)

// value returns the sample of family name whose labels include want.
func value(t *testing.T, r *Recorder, name string, want map[string]string) float64 {
	t.Helper()
	families, err := r.Registry().Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if !matches(m, want) {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("no sample %s%v", name, want)
	return 0
}

func matches(m *dto.Metric, want map[string]string) bool {
	found := 0
	for _, lp := range m.GetLabel() {
		if v, ok := want[lp.GetName()]; ok && v == lp.GetValue() {
			found++
		}
	}
	return found == len(want)
}

func TestRecorder_EmotionChanged(t *testing.T) {
	r := New()
	st := engine.State{
		Emotion:   affect.Confused,
		Intensity: 0.7,
		Metrics:   affect.Metrics{Engagement: 0.4, Attention: 0.5, CognitiveLoad: 0.8},
		Waves:     affect.Waves{Alpha: 0.4, Beta: 0.7, Theta: 0.65, Delta: 0.3},
	}
	r.EmotionChanged(engine.Change{From: affect.Neutral, To: affect.Confused, Cause: engine.CauseScript, State: st})
	r.EmotionChanged(engine.Change{From: affect.Neutral, To: affect.Confused, Cause: engine.CauseScript, State: st})

	assert.Equal(t, 2.0, value(t, r, "biotutor_emotion_changes_total", map[string]string{"from": "neutral", "to": "confused", "cause": "script"}))
	assert.Equal(t, 1.0, value(t, r, "biotutor_state_emotion", map[string]string{"emotion": "confused"}))
	assert.Equal(t, 0.0, value(t, r, "biotutor_state_emotion", map[string]string{"emotion": "happy"}))
	assert.Equal(t, 0.7, value(t, r, "biotutor_state_intensity", nil))
	assert.Equal(t, 0.8, value(t, r, "biotutor_state_metric", map[string]string{"metric": "cognitive_load"}))
	assert.Equal(t, 0.65, value(t, r, "biotutor_state_wave", map[string]string{"band": "theta"}))
}

func TestRecorder_Observations(t *testing.T) {
	r := New()
	r.ObservationRecorded(observe.Observation{Label: "angry", Confidence: 0.8}, true)
	r.ObservationRecorded(observe.Observation{Label: "neutral", Confidence: 0.5}, false)
	r.ObservationRecorded(observe.Observation{Label: "contempt", Confidence: 0.9}, true)

	assert.Equal(t, 1.0, value(t, r, "biotutor_observations_total", map[string]string{"label": "angry", "kept": "true"}))
	assert.Equal(t, 1.0, value(t, r, "biotutor_observations_total", map[string]string{"label": "neutral", "kept": "false"}))
	assert.Equal(t, 1.0, value(t, r, "biotutor_observations_total", map[string]string{"label": "other", "kept": "true"}))
}

func TestRecorder_SnapshotsAndChat(t *testing.T) {
	r := New()
	r.SnapshotCaptured(engine.Snapshot{Emotion: affect.Happy, Confidence: 0.85})
	r.ChatReplied(affect.Happy, true)

	assert.Equal(t, 1.0, value(t, r, "biotutor_snapshots_total", map[string]string{"emotion": "happy"}))
	assert.Equal(t, 1.0, value(t, r, "biotutor_snapshot_confidence", nil))
	assert.Equal(t, 1.0, value(t, r, "biotutor_chat_replies_total", map[string]string{"emotion": "happy", "fallback": "true"}))
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.ObserveState(engine.State{Emotion: affect.Happy, Intensity: 0.9})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `biotutor_state_emotion{emotion="happy"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestRecorder_IsListener(t *testing.T) {
	var _ engine.Listener = New()
}

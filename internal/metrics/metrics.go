// Package metrics exports the engine's activity as Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alex/biotutor/internal/affect"
	"github.com/alex/biotutor/internal/engine"
	"github.com/alex/biotutor/internal/observe"
)

const namespace = "biotutor"

// Recorder owns a private registry and implements engine.Listener.
type Recorder struct {
	registry *prometheus.Registry

	emotionChanges *prometheus.CounterVec
	observations   *prometheus.CounterVec
	snapshots      *prometheus.CounterVec
	snapshotConf   prometheus.Histogram
	chatReplies    *prometheus.CounterVec

	emotion   *prometheus.GaugeVec
	intensity prometheus.Gauge
	cognitive *prometheus.GaugeVec
	waves     *prometheus.GaugeVec
}

// New creates a recorder with every collector registered, plus the Go
// runtime and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		emotionChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "emotion_changes_total",
				Help:      "Emotion updates by origin, target and cause",
			},
			[]string{"from", "to", "cause"},
		),
		observations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "observations_total",
				Help:      "Emotion observations received, by raw label and whether the buffer kept them",
			},
			[]string{"label", "kept"},
		),
		snapshots: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshots_total",
				Help:      "Snapshots captured, by winning emotion",
			},
			[]string{"emotion"},
		),
		snapshotConf: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "snapshot_confidence",
				Help:      "Mean confidence of the winning label at snapshot time",
				Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
			},
		),
		chatReplies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_replies_total",
				Help:      "Tutor replies, by emotion and whether the fallback was used",
			},
			[]string{"emotion", "fallback"},
		),

		emotion: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "state_emotion",
				Help:      "1 for the currently displayed emotion, 0 otherwise",
			},
			[]string{"emotion"},
		),
		intensity: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "state_intensity",
				Help:      "Current emotion intensity",
			},
		),
		cognitive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "state_metric",
				Help:      "Current cognitive metrics",
			},
			[]string{"metric"},
		),
		waves: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "state_wave",
				Help:      "Current simulated brainwave amplitudes",
			},
			[]string{"band"},
		),
	}

	r.registry.MustRegister(
		r.emotionChanges,
		r.observations,
		r.snapshots,
		r.snapshotConf,
		r.chatReplies,
		r.emotion,
		r.intensity,
		r.cognitive,
		r.waves,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry exposes the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// EmotionChanged implements engine.Listener.
func (r *Recorder) EmotionChanged(ch engine.Change) {
	r.emotionChanges.WithLabelValues(string(ch.From), string(ch.To), string(ch.Cause)).Inc()
	r.ObserveState(ch.State)
}

// ObservationRecorded implements engine.Listener. Labels outside the
// known detector vocabulary are counted as "other".
func (r *Recorder) ObservationRecorded(obs observe.Observation, kept bool) {
	label := obs.Label
	if !affect.Known(label) {
		label = "other"
	}
	r.observations.WithLabelValues(label, strconv.FormatBool(kept)).Inc()
}

// SnapshotCaptured implements engine.Listener.
func (r *Recorder) SnapshotCaptured(s engine.Snapshot) {
	r.snapshots.WithLabelValues(string(s.Emotion)).Inc()
	r.snapshotConf.Observe(s.Confidence)
}

// ChatReplied counts one tutor reply.
func (r *Recorder) ChatReplied(e affect.Emotion, fallback bool) {
	r.chatReplies.WithLabelValues(string(e), strconv.FormatBool(fallback)).Inc()
}

// ObserveState sets the state gauges.
func (r *Recorder) ObserveState(st engine.State) {
	for _, e := range affect.Core {
		v := 0.0
		if e == st.Emotion {
			v = 1
		}
		r.emotion.WithLabelValues(string(e)).Set(v)
	}
	r.intensity.Set(st.Intensity)
	r.cognitive.WithLabelValues("engagement").Set(st.Engagement)
	r.cognitive.WithLabelValues("attention").Set(st.Attention)
	r.cognitive.WithLabelValues("cognitive_load").Set(st.CognitiveLoad)
	r.waves.WithLabelValues("alpha").Set(st.Waves.Alpha)
	r.waves.WithLabelValues("beta").Set(st.Waves.Beta)
	r.waves.WithLabelValues("theta").Set(st.Waves.Theta)
	r.waves.WithLabelValues("delta").Set(st.Waves.Delta)
}

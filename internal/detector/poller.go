package detector

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/alex/biotutor/internal/observe"
)

// DefaultPollInterval is how often the poller asks for a fresh result.
const DefaultPollInterval = time.Second

// Source yields the backend's latest analysis.
type Source interface {
	Latest(ctx context.Context) (Status, error)
}

// Reporter accepts detections. The engine controller satisfies it.
type Reporter interface {
	ReportObservation(label string, confidence float64, ts time.Time) (observe.Observation, bool)
}

// Poller feeds the backend's cached analyses into a Reporter, skipping
// results it has already seen and frames without a face.
type Poller struct {
	src      Source
	sink     Reporter
	interval time.Duration
	log      zerolog.Logger

	lastSeen float64
	failing  bool
}

// NewPoller creates a poller. A non-positive interval uses
// DefaultPollInterval.
func NewPoller(src Source, sink Reporter, interval time.Duration, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		src:      src,
		sink:     sink,
		interval: interval,
		log:      log.With().Str("component", "detector").Logger(),
	}
}

// Run polls until ctx is cancelled. Backend failures are logged and
// retried on the next tick.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Info().Dur("interval", p.interval).Msg("polling detector")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
				if !p.failing {
					p.log.Warn().Err(err).Msg("detector unavailable")
				}
				p.failing = true
				continue
			}
			if p.failing {
				p.log.Info().Msg("detector back")
				p.failing = false
			}
		}
	}
}

// PollOnce fetches the latest analysis and reports it if it is new and
// shows a face. It reports whether an observation was forwarded.
func (p *Poller) PollOnce(ctx context.Context) (bool, error) {
	st, err := p.src.Latest(ctx)
	if err != nil {
		return false, err
	}
	if !st.HasResult() || st.Timestamp == p.lastSeen {
		return false, nil
	}
	p.lastSeen = st.Timestamp

	if !st.Result.HasFace() {
		p.log.Debug().Msg("no face in frame")
		return false, nil
	}

	obs, kept := p.sink.ReportObservation(st.Result.Emotion, st.Result.Confidence(), st.Time())
	p.log.Debug().
		Str("label", obs.Label).
		Float64("confidence", obs.Confidence).
		Bool("kept", kept).
		Msg("detection")
	return true, nil
}

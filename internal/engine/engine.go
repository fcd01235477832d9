// Package engine owns the single authoritative emotional state and drives
// it in one of three modes: scripted scenes, external observations, or
// autonomous drift.
package engine

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/alex/biotutor/internal/affect"
	"github.com/alex/biotutor/internal/observe"
	"github.com/alex/biotutor/internal/scenario"
)

var (
	// ErrSceneOutOfRange is returned when a scene index does not exist.
	ErrSceneOutOfRange = errors.New("scene index out of range")
	// ErrNoScenes is returned by scene operations before a script is loaded.
	ErrNoScenes = errors.New("no scenes loaded")
)

// State is the live emotional state handed to renderers and the tutor.
type State struct {
	Emotion affect.Emotion `json:"emotion"`
	// RawEmotion is the label that produced Emotion, before normalization.
	RawEmotion string  `json:"rawEmotion"`
	Intensity  float64 `json:"intensity"`
	affect.Metrics
	Waves affect.Waves `json:"waves"`

	Mode       Mode  `json:"mode"`
	Scene      int   `json:"scene"`
	ScenePhase Phase `json:"scenePhase"`

	LastChangeAt time.Time `json:"lastChangeAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Config holds the controller's tunables.
type Config struct {
	Window               time.Duration
	Scoring              observe.Scoring
	NeutralMinConfidence float64

	// Mode is the mode the controller starts in.
	Mode Mode
	// Cooldown is the minimum time between an emotion change and the next
	// periodic drift.
	Cooldown time.Duration
	// DriftInterval is how often autonomous mode attempts a drift. Zero
	// disables periodic drift; TriggerDrift still works.
	DriftInterval time.Duration
	// Stability is the chance a periodic drift attempt is skipped.
	Stability float64
}

// DefaultConfig returns the standard controller settings.
func DefaultConfig() Config {
	return Config{
		Window:               observe.DefaultWindow,
		Scoring:              observe.DefaultScoring(),
		NeutralMinConfidence: observe.DefaultNeutralMinConfidence,
		Mode:                 ModeAutonomous,
		Cooldown:             5 * time.Second,
		DriftInterval:        10 * time.Second,
		Stability:            0.3,
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(c *Controller) { c.cfg = cfg }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithRand sets the random source used for drift and metric sampling.
func WithRand(rng *rand.Rand) Option {
	return func(c *Controller) { c.rng = rng }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithScenes loads a scene script at construction.
func WithScenes(scenes []scenario.Scene) Option {
	return func(c *Controller) { c.scenes = scenes }
}

// WithListener registers a listener at construction.
func WithListener(l Listener) Option {
	return func(c *Controller) { c.listeners = append(c.listeners, l) }
}

// Controller is safe for concurrent use. Every state update happens under
// one lock; listeners are called after it is released.
type Controller struct {
	mu sync.RWMutex

	cfg    Config
	state  State
	buffer *observe.Buffer
	scenes []scenario.Scene
	run    sceneRun

	startedAt time.Time
	lastTick  time.Time
	lastDrift time.Time

	now       func() time.Time
	rng       *rand.Rand
	log       zerolog.Logger
	listeners []Listener
}

// New creates a controller resting in neutral.
func New(opts ...Option) (*Controller, error) {
	c := &Controller{
		cfg: DefaultConfig(),
		now: time.Now,
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if c.cfg.Mode == "" {
		c.cfg.Mode = ModeAutonomous
	}
	if _, err := ParseMode(string(c.cfg.Mode)); err != nil {
		return nil, err
	}
	if c.scenes != nil {
		scenes, err := validScenes(c.scenes)
		if err != nil {
			return nil, err
		}
		c.scenes = scenes
	}

	c.buffer = observe.NewBuffer(c.cfg.Window)
	c.buffer.SetNeutralMinConfidence(c.cfg.NeutralMinConfidence)

	now := c.now()
	c.startedAt = now
	c.lastTick = now
	c.lastDrift = now
	c.run = sceneRun{index: -1}
	c.state = State{
		Emotion:      affect.Neutral,
		RawEmotion:   string(affect.Neutral),
		Intensity:    0.5,
		Metrics:      affect.ProfileFor(affect.Neutral).Anchor,
		Mode:         c.cfg.Mode,
		Scene:        -1,
		LastChangeAt: now,
		UpdatedAt:    now,
	}
	c.refreshWavesLocked(now)
	return c, nil
}

// AddListener registers l for future notifications.
func (c *Controller) AddListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Mode returns the active mode.
func (c *Controller) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Mode
}

// Observations returns the observations currently inside the window.
func (c *Controller) Observations() []observe.Observation {
	return c.buffer.Entries(c.now())
}

// Decision scores the current window without capturing a snapshot.
func (c *Controller) Decision() observe.Decision {
	return c.cfg.Scoring.Select(c.buffer, c.now())
}

// Summary reports the window by frequency next to the composite decision.
func (c *Controller) Summary() observe.Summary {
	return c.cfg.Scoring.Summarize(c.buffer, c.now())
}

// LatestObservation returns the newest observation in the window.
func (c *Controller) LatestObservation() (observe.Observation, bool) {
	return c.buffer.Latest(c.now())
}

// Tick advances time-driven behaviour to the current clock reading and
// returns the resulting state.
func (c *Controller) Tick() State {
	return c.TickAt(c.now())
}

// TickAt is Tick with an explicit timestamp. A timestamp earlier than the
// previous tick is treated as no elapsed time.
func (c *Controller) TickAt(now time.Time) State {
	var out outbox
	c.mu.Lock()
	c.tickLocked(now, &out)
	st, ls := c.state, c.listeners
	c.mu.Unlock()

	out.deliver(ls)
	return st
}

func (c *Controller) tickLocked(now time.Time, out *outbox) {
	dt := now.Sub(c.lastTick)
	if dt < 0 {
		dt = 0
	} else {
		c.lastTick = now
	}
	c.buffer.Clean(now)

	if h, ok := modeHandlers[c.state.Mode]; ok {
		if h.decays {
			c.decayLocked(dt)
		}
		h.tick(c, now, out)
	}
	c.refreshWavesLocked(now)
	c.state.UpdatedAt = now
}

func (c *Controller) refreshWavesLocked(now time.Time) {
	t := now.Sub(c.startedAt).Seconds()
	c.state.Waves = affect.WavesFor(c.state.Emotion, c.state.Intensity, t)
	c.state.Metrics = c.state.Metrics.Clamped()
	c.state.Intensity = affect.Clamp01(c.state.Intensity)
}

// setEmotionLocked moves the state to e and queues a change notification.
func (c *Controller) setEmotionLocked(e affect.Emotion, raw string, intensity float64, m affect.Metrics, cause Cause, now time.Time, out *outbox) {
	from := c.state.Emotion
	c.state.Emotion = e
	c.state.RawEmotion = raw
	c.state.Intensity = affect.Clamp01(intensity)
	c.state.Metrics = m.Clamped()
	c.state.LastChangeAt = now
	c.state.UpdatedAt = now

	c.log.Debug().
		Str("from", string(from)).
		Str("to", string(e)).
		Str("cause", string(cause)).
		Float64("intensity", c.state.Intensity).
		Msg("emotion changed")

	out.changes = append(out.changes, Change{From: from, To: e, Cause: cause, At: now, State: c.state})
}

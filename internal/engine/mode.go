package engine

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrUnknownMode is returned for a mode name the controller doesn't know.
var ErrUnknownMode = errors.New("unknown mode")

// Mode selects what drives the emotional state.
type Mode string

const (
	// ModeScripted follows the loaded scene timeline.
	ModeScripted Mode = "scripted"
	// ModeExternal mirrors each arriving observation.
	ModeExternal Mode = "external"
	// ModeAutonomous drifts between emotions on its own.
	ModeAutonomous Mode = "autonomous"
)

// Modes lists every mode.
var Modes = []Mode{ModeScripted, ModeExternal, ModeAutonomous}

// ParseMode accepts a mode name in any case.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := modeHandlers[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
	return m, nil
}

func (m Mode) String() string {
	return string(m)
}

type modeHandler struct {
	tick func(c *Controller, now time.Time, out *outbox)
	// decays reports whether intensity relaxes toward the floor between
	// events.
	decays bool
}

var modeHandlers = map[Mode]modeHandler{
	ModeScripted:   {tick: (*Controller).tickScriptLocked, decays: true},
	ModeExternal:   {tick: func(*Controller, time.Time, *outbox) {}},
	ModeAutonomous: {tick: (*Controller).tickDriftLocked, decays: true},
}

const (
	// intensityDecay is applied once per 60 Hz frame.
	intensityDecay = 0.99995
	frame          = time.Second / 60
	// decayFloor is the level intensity relaxes to and never decays below.
	decayFloor = 0.5
)

func (c *Controller) decayLocked(dt time.Duration) {
	if dt <= 0 || c.state.Intensity <= decayFloor {
		return
	}
	factor := math.Pow(intensityDecay, float64(dt)/float64(frame))
	c.state.Intensity = math.Max(decayFloor, c.state.Intensity*factor)
}

// SetMode switches modes. Switching clears pending scene timers and resets
// the drift clock; the emotional state itself is kept.
func (c *Controller) SetMode(m Mode) error {
	if _, ok := modeHandlers[m]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMode, m)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.switchModeLocked(m, c.now())
	return nil
}

func (c *Controller) switchModeLocked(m Mode, now time.Time) {
	prev := c.state.Mode
	c.state.Mode = m
	c.run.active = false
	c.run.phase = PhasePending
	c.state.ScenePhase = PhasePending
	c.lastDrift = now
	c.lastTick = now
	c.state.UpdatedAt = now

	c.log.Info().Str("from", string(prev)).Str("to", string(m)).Msg("mode switched")
}

package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/alex/biotutor/internal/affect"
	"github.com/alex/biotutor/internal/scenario"
)

// Phase tracks which scripted hops of the current scene have fired.
type Phase int

const (
	PhasePending Phase = iota
	PhaseTransitioned
	PhaseFinallyTransitioned
)

var phaseNames = map[Phase]string{
	PhasePending:             "pending",
	PhaseTransitioned:        "transitioned",
	PhaseFinallyTransitioned: "finally_transitioned",
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// MarshalText renders the phase by name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// sceneRun is the scripted state machine for the active scene.
type sceneRun struct {
	index     int
	startedAt time.Time
	phase     Phase
	active    bool
}

// Scripted same-label intensification.
const (
	intensifyTo         = 0.9
	loadStep            = 0.15
	loadCap             = 0.95
	engagementStep      = 0.1
	engagementFloor     = 0.3
	attentionStep       = 0.1
	attentionFloor      = 0.4
	transitionIntensity = 0.7
)

func validScenes(scenes []scenario.Scene) ([]scenario.Scene, error) {
	out := make([]scenario.Scene, len(scenes))
	copy(out, scenes)
	for i := range out {
		if err := out[i].Validate(); err != nil {
			return nil, fmt.Errorf("scene %d: %w", i, err)
		}
	}
	return out, nil
}

// LoadScenes replaces the scene script. The previous run is stopped; the
// new script starts with StartScene.
func (c *Controller) LoadScenes(scenes []scenario.Scene) error {
	valid, err := validScenes(scenes)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scenes = valid
	c.run = sceneRun{index: -1}
	c.state.Scene = -1
	c.state.ScenePhase = PhasePending
	c.log.Info().Int("scenes", len(valid)).Msg("scenes loaded")
	return nil
}

// Scenes returns a copy of the loaded script.
func (c *Controller) Scenes() []scenario.Scene {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]scenario.Scene, len(c.scenes))
	copy(out, c.scenes)
	return out
}

// CurrentScene returns the active scene. ok is false when no scene has
// been started.
func (c *Controller) CurrentScene() (sc scenario.Scene, index int, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.run.index < 0 || c.run.index >= len(c.scenes) {
		return scenario.Scene{}, -1, false
	}
	return c.scenes[c.run.index], c.run.index, true
}

// StartScene enters scene i, switching to scripted mode if needed.
func (c *Controller) StartScene(i int) error {
	var out outbox
	c.mu.Lock()
	err := c.startSceneLocked(i, c.now(), &out)
	ls := c.listeners
	c.mu.Unlock()

	out.deliver(ls)
	return err
}

// AdvanceScene enters the scene after the current one. With no scene
// started it enters the first.
func (c *Controller) AdvanceScene() error {
	var out outbox
	c.mu.Lock()
	err := c.startSceneLocked(c.run.index+1, c.now(), &out)
	ls := c.listeners
	c.mu.Unlock()

	out.deliver(ls)
	return err
}

// ResetScenes restarts the script from its first scene.
func (c *Controller) ResetScenes() error {
	return c.StartScene(0)
}

func (c *Controller) startSceneLocked(i int, now time.Time, out *outbox) error {
	if len(c.scenes) == 0 {
		return ErrNoScenes
	}
	if i < 0 || i >= len(c.scenes) {
		return fmt.Errorf("%w: %d of %d", ErrSceneOutOfRange, i, len(c.scenes))
	}
	if c.state.Mode != ModeScripted {
		c.switchModeLocked(ModeScripted, now)
	}

	sc := c.scenes[i]
	c.run = sceneRun{index: i, startedAt: now, phase: PhasePending, active: true}
	c.state.Scene = i
	c.state.ScenePhase = PhasePending
	c.lastTick = now

	c.log.Info().Int("scene", i).Str("name", sc.Name).Str("emotion", string(sc.Emotion)).Msg("scene started")
	c.setEmotionLocked(sc.Emotion, string(sc.Emotion), sc.StartIntensity(),
		affect.ProfileFor(sc.Emotion).Anchor, CauseSceneStart, now, out)
	c.refreshWavesLocked(now)
	return nil
}

// tickScriptLocked fires the active scene's hops once their delays, both
// measured from scene start, have passed. Each hop fires exactly once.
func (c *Controller) tickScriptLocked(now time.Time, out *outbox) {
	if !c.run.active || c.run.index < 0 || c.run.index >= len(c.scenes) {
		return
	}
	sc := c.scenes[c.run.index]
	elapsed := now.Sub(c.run.startedAt)

	if c.run.phase == PhasePending && sc.HasTransition() && elapsed >= sc.TransitionDelay {
		c.run.phase = PhaseTransitioned
		c.applyScriptedLocked(sc.TransitionTo, now, out)
	}
	if c.run.phase == PhaseTransitioned && sc.HasFinal() && elapsed >= sc.FinalTransitionDelay {
		c.run.phase = PhaseFinallyTransitioned
		c.applyScriptedLocked(sc.FinalEmotion, now, out)
	}
	c.state.ScenePhase = c.run.phase
}

// applyScriptedLocked moves to target. Targeting the current emotion
// intensifies it in place instead.
func (c *Controller) applyScriptedLocked(target affect.Emotion, now time.Time, out *outbox) {
	if target != c.state.Emotion {
		c.setEmotionLocked(target, string(target), transitionIntensity,
			affect.JitterAnchor(target, c.rng), CauseScript, now, out)
		return
	}

	m := c.state.Metrics
	if m.CognitiveLoad < loadCap {
		m.CognitiveLoad = math.Min(m.CognitiveLoad+loadStep, loadCap)
	}
	if m.Engagement > engagementFloor {
		m.Engagement = math.Max(m.Engagement-engagementStep, engagementFloor)
	}
	if m.Attention > attentionFloor {
		m.Attention = math.Max(m.Attention-attentionStep, attentionFloor)
	}
	c.setEmotionLocked(target, string(target), math.Max(c.state.Intensity, intensifyTo),
		m, CauseIntensify, now, out)
}

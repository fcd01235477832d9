package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/alex/biotutor/internal/affect"
	"github.com/alex/biotutor/internal/engine"
)

// DefaultHistory is how many turns of conversation the prompt carries.
const DefaultHistory = 5

// Generator produces completions. *Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
	Model() string
}

// Role says who spoke a turn.
type Role string

const (
	RoleUser  Role = "User"
	RoleTutor Role = "AI Instructor"
)

// Turn is one line of conversation.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Params are the sampling parameters chosen for one reply.
type Params struct {
	Temperature float64        `json:"temperature"`
	TopP        float64        `json:"top_p"`
	MaxTokens   int            `json:"max_tokens"`
	Emotion     affect.Emotion `json:"emotion_detected"`
	Model       string         `json:"model"`
}

// Reply is the tutor's answer together with what conditioned it.
type Reply struct {
	Message    string          `json:"message"`
	Snapshot   engine.Snapshot `json:"snapshot"`
	Parameters Params          `json:"parameters_used"`
	Timestamp  time.Time       `json:"timestamp"`
	// Fallback is set when the backend failed and Message is canned.
	Fallback bool   `json:"fallback,omitempty"`
	Error    string `json:"error,omitempty"`
}

// sampling holds the per-emotion temperature and top-p.
type sampling struct {
	temperature float64
	topP        float64
}

var defaultSampling = sampling{temperature: 0.7, topP: 0.95}

// frustrated learners get focused answers, happy ones more playful ones
var emotionSampling = map[affect.Emotion]sampling{
	affect.Frustrated: {temperature: 0.5, topP: 0.85},
	affect.Happy:      {temperature: 0.8, topP: 0.98},
}

// ParamsFor derives sampling parameters from a snapshot. Max tokens scale
// from 128 to 256 with engagement.
func ParamsFor(snap engine.Snapshot) Params {
	s, ok := emotionSampling[snap.Emotion]
	if !ok {
		s = defaultSampling
	}
	engagement := affect.Clamp01(snap.Engagement)
	return Params{
		Temperature: s.temperature,
		TopP:        s.topP,
		MaxTokens:   int(256 * (0.5 + engagement/2)),
		Emotion:     snap.Emotion,
	}
}

// strategies tell the model how to teach a learner in each state.
var strategies = map[affect.Emotion]string{
	affect.Neutral:    "The learner is calm. Keep a steady pace and check understanding with a short question.",
	affect.Happy:      "The learner is enjoying this. Build on the momentum and offer a slightly harder follow-up.",
	affect.Confused:   "The learner looks confused. Slow down, restate the idea another way, and use one concrete example.",
	affect.Frustrated: "The learner is frustrated. Be brief and encouraging, break the problem into one small next step.",
}

// fallbacks answer when the backend is unavailable.
var fallbacks = map[affect.Emotion]string{
	affect.Neutral:    "Let's keep going. Can you tell me in your own words what we just covered?",
	affect.Happy:      "Nice work! Want to try a slightly trickier one?",
	affect.Confused:   "Let's look at that from a different angle. Which part feels unclear?",
	affect.Frustrated: "That's a tough spot, and that's okay. Let's take just the first small step together.",
}

const systemPrompt = `You are a patient, friendly tutor. You can see a live estimate of the learner's emotional and cognitive state and adapt how you teach to it. Answer in plain sentences, no lists or markdown.`

// Tutor keeps a short conversation and answers the learner, conditioned
// on their cognitive state. It is safe for concurrent use.
type Tutor struct {
	gen  Generator
	keep int
	log  zerolog.Logger

	mu      sync.Mutex
	history []Turn
}

// NewTutor creates a tutor that carries the last keep turns into each
// prompt. A non-positive keep uses DefaultHistory.
func NewTutor(gen Generator, keep int, log zerolog.Logger) *Tutor {
	if keep <= 0 {
		keep = DefaultHistory
	}
	return &Tutor{
		gen:  gen,
		keep: keep,
		log:  log.With().Str("component", "tutor").Logger(),
	}
}

// buildPrompt constructs the full prompt from the conversation and state.
func (t *Tutor) buildPrompt(snap engine.Snapshot, history []Turn) string {
	var sb strings.Builder

	sb.WriteString(systemPrompt)
	sb.WriteString("\n\n")

	sb.WriteString("Learner state:\n")
	sb.WriteString(fmt.Sprintf("- Emotion: %s (confidence %.2f)\n", snap.Emotion, snap.Confidence))
	sb.WriteString(fmt.Sprintf("- Engagement: %.2f\n", snap.Engagement))
	sb.WriteString(fmt.Sprintf("- Attention: %.2f\n", snap.Attention))
	sb.WriteString(fmt.Sprintf("- Cognitive load: %.2f\n", snap.CognitiveLoad))
	if s, ok := strategies[snap.Emotion]; ok {
		sb.WriteString(s)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	for _, turn := range history {
		sb.WriteString(fmt.Sprintf("%s: %s\n", turn.Role, turn.Text))
	}
	sb.WriteString(string(RoleTutor) + ": ")

	return sb.String()
}

// Respond adds the learner's message to the conversation and asks the
// backend for the next tutor turn.
func (t *Tutor) Respond(ctx context.Context, message string, snap engine.Snapshot) (Reply, error) {
	params := ParamsFor(snap)
	params.Model = t.gen.Model()

	t.mu.Lock()
	t.appendLocked(Turn{Role: RoleUser, Text: strings.TrimSpace(message)})
	prompt := t.buildPrompt(snap, t.recentLocked())
	t.mu.Unlock()

	text, err := t.gen.Generate(ctx, prompt, Options{
		Temperature: params.Temperature,
		TopP:        params.TopP,
		NumPredict:  params.MaxTokens,
	})
	reply := Reply{
		Snapshot:   snap,
		Parameters: params,
		Timestamp:  snap.CapturedAt,
	}
	if err != nil {
		return reply, fmt.Errorf("generating reply: %w", err)
	}

	reply.Message = text
	t.mu.Lock()
	t.appendLocked(Turn{Role: RoleTutor, Text: text})
	t.mu.Unlock()

	t.log.Debug().
		Str("emotion", string(snap.Emotion)).
		Float64("temperature", params.Temperature).
		Int("max_tokens", params.MaxTokens).
		Msg("tutor replied")
	return reply, nil
}

// RespondWithFallback tries the backend first and falls back to a canned
// reply for the learner's emotion on error.
func (t *Tutor) RespondWithFallback(ctx context.Context, message string, snap engine.Snapshot) Reply {
	reply, err := t.Respond(ctx, message, snap)
	if err == nil {
		return reply
	}
	t.log.Warn().Err(err).Msg("llm unavailable, using fallback reply")

	reply.Message = FallbackReply(snap.Emotion)
	reply.Fallback = true
	reply.Error = err.Error()

	t.mu.Lock()
	t.appendLocked(Turn{Role: RoleTutor, Text: reply.Message})
	t.mu.Unlock()
	return reply
}

// FallbackReply returns the canned reply for e.
func FallbackReply(e affect.Emotion) string {
	if s, ok := fallbacks[e]; ok {
		return s
	}
	return fallbacks[affect.Neutral]
}

// Reset forgets the conversation.
func (t *Tutor) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = nil
}

// History returns a copy of the remembered turns.
func (t *Tutor) History() []Turn {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Turn, len(t.history))
	copy(out, t.history)
	return out
}

func (t *Tutor) appendLocked(turn Turn) {
	t.history = append(t.history, turn)
	// keep a little more than the prompt needs so History stays useful
	if limit := 4 * t.keep; len(t.history) > limit {
		t.history = append([]Turn(nil), t.history[len(t.history)-limit:]...)
	}
}

func (t *Tutor) recentLocked() []Turn {
	if len(t.history) <= t.keep {
		return t.history
	}
	return t.history[len(t.history)-t.keep:]
}

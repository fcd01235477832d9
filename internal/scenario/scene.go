// Package scenario describes scripted demo timelines and loads them from
// YAML.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alex/biotutor/internal/affect"
)

// ErrInvalidScene is returned when a scene fails validation.
var ErrInvalidScene = errors.New("invalid scene")

// DefaultIntensity is the intensity a scene starts at when it gives no hint.
const DefaultIntensity = 0.5

// Scene is one step of a scripted demo.
type Scene struct {
	Name      string         `yaml:"name" json:"name"`
	Emotion   affect.Emotion `yaml:"emotion" json:"emotion"`
	Intensity float64        `yaml:"intensity,omitempty" json:"intensity,omitempty"`

	// TransitionTo fires once TransitionDelay has passed since the scene
	// started. Naming the scene's own emotion intensifies it in place.
	TransitionTo    affect.Emotion `yaml:"transition_to,omitempty" json:"transitionTo,omitempty"`
	TransitionDelay time.Duration  `yaml:"transition_delay,omitempty" json:"transitionDelay,omitempty"`

	// FinalEmotion is an optional second hop, measured from scene start
	// and only after TransitionTo has fired.
	FinalEmotion         affect.Emotion `yaml:"final_emotion,omitempty" json:"finalEmotion,omitempty"`
	FinalTransitionDelay time.Duration  `yaml:"final_transition_delay,omitempty" json:"finalTransitionDelay,omitempty"`

	// Narrative is shown by the UI; the engine ignores it.
	Agent string `yaml:"agent,omitempty" json:"agent,omitempty"`
	User  string `yaml:"user,omitempty" json:"user,omitempty"`
}

// StartIntensity returns the intensity the scene opens with.
func (s Scene) StartIntensity() float64 {
	if s.Intensity <= 0 {
		return DefaultIntensity
	}
	return affect.Clamp(s.Intensity, 0.2, 1.0)
}

// HasTransition reports whether the scene scripts a first hop.
func (s Scene) HasTransition() bool {
	return s.TransitionTo != ""
}

// HasFinal reports whether the scene scripts a second hop.
func (s Scene) HasFinal() bool {
	return s.HasTransition() && s.FinalEmotion != ""
}

// Validate normalizes the scene's labels in place and checks its timing.
func (s *Scene) Validate() error {
	if s.Emotion == "" {
		return fmt.Errorf("%w: %q has no emotion", ErrInvalidScene, s.Name)
	}
	var err error
	if s.Emotion, err = coreLabel(s.Emotion); err != nil {
		return fmt.Errorf("%w: %q emotion: %v", ErrInvalidScene, s.Name, err)
	}
	if s.TransitionTo != "" {
		if s.TransitionTo, err = coreLabel(s.TransitionTo); err != nil {
			return fmt.Errorf("%w: %q transition_to: %v", ErrInvalidScene, s.Name, err)
		}
	}
	if s.FinalEmotion != "" {
		if s.TransitionTo == "" {
			return fmt.Errorf("%w: %q has final_emotion without transition_to", ErrInvalidScene, s.Name)
		}
		if s.FinalEmotion, err = coreLabel(s.FinalEmotion); err != nil {
			return fmt.Errorf("%w: %q final_emotion: %v", ErrInvalidScene, s.Name, err)
		}
		if s.FinalTransitionDelay < s.TransitionDelay {
			return fmt.Errorf("%w: %q final_transition_delay %s is before transition_delay %s",
				ErrInvalidScene, s.Name, s.FinalTransitionDelay, s.TransitionDelay)
		}
	}
	if s.TransitionDelay < 0 || s.FinalTransitionDelay < 0 {
		return fmt.Errorf("%w: %q has a negative delay", ErrInvalidScene, s.Name)
	}
	if s.Intensity < 0 || s.Intensity > 1 {
		return fmt.Errorf("%w: %q intensity %v outside [0,1]", ErrInvalidScene, s.Name, s.Intensity)
	}
	return nil
}

// coreLabel accepts any known detector label and maps it to a core one.
func coreLabel(e affect.Emotion) (affect.Emotion, error) {
	if !affect.Known(string(e)) {
		return "", fmt.Errorf("unknown emotion %q", e)
	}
	return affect.Normalize(string(e)), nil
}

// File is the on-disk layout of a scene script.
type File struct {
	Title  string  `yaml:"title,omitempty"`
	Scenes []Scene `yaml:"scenes"`
}

// Parse reads a scene script and validates every scene.
func Parse(r io.Reader) ([]Scene, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty script", ErrInvalidScene)
		}
		return nil, fmt.Errorf("decoding scenes: %w", err)
	}
	if len(f.Scenes) == 0 {
		return nil, fmt.Errorf("%w: script has no scenes", ErrInvalidScene)
	}
	for i := range f.Scenes {
		if f.Scenes[i].Name == "" {
			f.Scenes[i].Name = fmt.Sprintf("scene-%d", i+1)
		}
		if err := f.Scenes[i].Validate(); err != nil {
			return nil, fmt.Errorf("scene %d: %w", i, err)
		}
	}
	return f.Scenes, nil
}

// Load reads and validates a scene script from disk.
func Load(path string) ([]Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenes: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Marshal encodes scenes in the on-disk layout.
func Marshal(title string, scenes []Scene) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(File{Title: title, Scenes: scenes}); err != nil {
		return nil, fmt.Errorf("encoding scenes: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding scenes: %w", err)
	}
	return buf.Bytes(), nil
}

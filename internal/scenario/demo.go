package scenario

import (
	"time"

	"github.com/alex/biotutor/internal/affect"
)

// DemoTitle names the built-in tutoring script.
const DemoTitle = "Fractions with a bio-adaptive tutor"

// Demo returns the built-in tutoring script. Each call returns a fresh
// slice.
func Demo() []Scene {
	return []Scene{
		{
			Name:            "warm-up",
			Emotion:         affect.Neutral,
			TransitionTo:    affect.Happy,
			TransitionDelay: 4 * time.Second,
			Agent:           "Hi! Today we're looking at adding fractions. Ready?",
			User:            "Sure, let's go.",
		},
		{
			Name:            "common-denominators",
			Emotion:         affect.Confused,
			TransitionTo:    affect.Confused,
			TransitionDelay: 5 * time.Second,
			Agent:           "To add 1/3 and 1/4 we first need a common denominator.",
			User:            "Why can't I just add the bottoms?",
		},
		{
			Name:            "stuck",
			Emotion:         affect.Frustrated,
			TransitionTo:    affect.Confused,
			TransitionDelay: 6 * time.Second,
			Agent:           "Let's slow down and draw it as pizza slices instead.",
			User:            "I still don't get it.",
		},
		{
			Name:                 "breakthrough",
			Emotion:              affect.Neutral,
			TransitionTo:         affect.Happy,
			TransitionDelay:      3 * time.Second,
			FinalEmotion:         affect.Neutral,
			FinalTransitionDelay: 8 * time.Second,
			Agent:                "Twelfths! 4/12 plus 3/12. What do you get?",
			User:                 "7/12... oh, that's it?",
		},
		{
			Name:      "wrap-up",
			Emotion:   affect.Happy,
			Intensity: 0.8,
			Agent:     "Exactly. You just added unlike fractions on your own.",
			User:      "That was actually fun.",
		},
	}
}

package main

import (
	"bytes"
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alex/biotutor/internal/affect"
	"github.com/alex/biotutor/internal/config"
	"github.com/alex/biotutor/internal/engine"
	"github.com/alex/biotutor/internal/scenario"
)

func newSimulator(t *testing.T) (*simulator, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	sim := &simulator{out: &out}
	ctrl, err := engine.New(
		engine.WithRand(rand.New(rand.NewSource(11))),
		engine.WithScenes(scenario.Demo()),
		engine.WithListener(sim),
	)
	require.NoError(t, err)
	sim.ctrl = ctrl
	return sim, &out
}

func TestSimulator_ObservationsInExternalMode(t *testing.T) {
	sim, out := newSimulator(t)

	require.True(t, sim.handle("mode external"))
	require.True(t, sim.handle("Angry 80"))

	assert.Equal(t, affect.Frustrated, sim.ctrl.State().Emotion)
	assert.Contains(t, out.String(), "[observation] angry 0.80")
	assert.Contains(t, out.String(), "[observation] neutral -> frustrated")

	out.Reset()
	sim.handle("neutral 20")
	assert.Contains(t, out.String(), "dropped")
}

func TestSimulator_SceneCommands(t *testing.T) {
	sim, out := newSimulator(t)

	sim.handle("reset")
	assert.Equal(t, engine.ModeScripted, sim.ctrl.Mode())
	assert.Contains(t, out.String(), "scene 1/5: warm-up")

	sim.handle("next")
	_, i, ok := sim.ctrl.CurrentScene()
	require.True(t, ok)
	assert.Equal(t, 1, i)
	assert.Equal(t, affect.Confused, sim.ctrl.State().Emotion)

	sim.handle("scene 5")
	_, i, _ = sim.ctrl.CurrentScene()
	assert.Equal(t, 4, i)

	out.Reset()
	sim.handle("next")
	assert.Contains(t, out.String(), "out of range")

	out.Reset()
	sim.handle("scene x")
	assert.Contains(t, out.String(), `bad scene number "x"`)
}

func TestSimulator_ModeAndUnknownInput(t *testing.T) {
	sim, out := newSimulator(t)

	sim.handle("mode dreaming")
	assert.Contains(t, out.String(), "unknown mode")
	assert.Equal(t, engine.ModeAutonomous, sim.ctrl.Mode())

	out.Reset()
	sim.handle("mode")
	assert.Contains(t, out.String(), "usage: mode <scripted|external|autonomous>")

	out.Reset()
	sim.handle("banana")
	assert.Contains(t, out.String(), "Unknown input: banana")

	out.Reset()
	sim.handle("happy nope")
	assert.Contains(t, out.String(), `bad confidence "nope"`)

	assert.False(t, sim.handle("quit"))
}

func TestSimulator_SnapAndWindow(t *testing.T) {
	sim, out := newSimulator(t)

	sim.handle("happy 90")
	sim.handle("happy 70")
	sim.handle("snap")
	assert.Contains(t, out.String(), "Window verdict: happy")

	out.Reset()
	sim.handle("window")
	assert.Contains(t, out.String(), "2 samples")
	assert.Contains(t, out.String(), "most frequent: happy")
}

func TestSimulator_RunStopsAtEOF(t *testing.T) {
	sim, out := newSimulator(t)

	err := sim.run(context.Background(), strings.NewReader("status\nmode external\nsad\n"), 10*time.Millisecond)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Emotion:")
	assert.Equal(t, affect.Frustrated, sim.ctrl.State().Emotion)
}

func TestScenesCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lesson.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scenes:\n  - name: one\n    emotion: happy\n"), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"scenes", path})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "title: lesson.yaml")
	assert.Contains(t, out.String(), "name: one")

	out.Reset()
	rootCmd.SetArgs([]string{"scenes", "--check"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "built-in demo: 5 scenes ok\n", out.String())
	scenesFlags.check = false

	rootCmd.SetArgs([]string{"scenes", filepath.Join(dir, "missing.yaml")})
	assert.Error(t, rootCmd.Execute())
}

func TestNewTutor_TagsComponentOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.LLM.BaseURL = srv.URL
	var logs bytes.Buffer
	tutor := newTutor(context.Background(), cfg, zerolog.New(&logs))

	reply := tutor.RespondWithFallback(context.Background(), "help", engine.Snapshot{Emotion: affect.Confused})
	require.True(t, reply.Fallback)

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		if !strings.Contains(line, "fallback reply") {
			continue
		}
		found = true
		assert.Equal(t, 1, strings.Count(line, `"component"`), line)
		assert.Contains(t, line, `"component":"tutor"`)
	}
	assert.True(t, found, "no fallback log line in %s", logs.String())
}

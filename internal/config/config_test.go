package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alex/biotutor/internal/engine"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 5*time.Second, cfg.Engine.Window)
	assert.Equal(t, "autonomous", cfg.Engine.Mode)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "custom.yaml", `
engine:
  window: 3s
  mode: scripted
  stability: 0.5
  seed: 42
server:
  addr: 127.0.0.1:9000
detector:
  enabled: true
  poll_interval: 500ms
scenes:
  file: lesson.yaml
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Engine.Window)
	assert.Equal(t, "scripted", cfg.Engine.Mode)
	assert.Equal(t, 0.5, cfg.Engine.Stability)
	assert.Equal(t, int64(42), cfg.Engine.Seed)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.True(t, cfg.Detector.Enabled)
	assert.Equal(t, 500*time.Millisecond, cfg.Detector.PollInterval)
	assert.Equal(t, "lesson.yaml", cfg.Scenes.File)
	assert.Equal(t, Default().LLM, cfg.LLM, "untouched sections keep defaults")
}

func TestLoad_FindsFileInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, "biotutor.yaml", "log:\n  level: debug\n")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BIOTUTOR_ENGINE_MODE", "external")
	t.Setenv("BIOTUTOR_ENGINE_COOLDOWN", "2s")
	t.Setenv("BIOTUTOR_LLM_HISTORY", "8")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "external", cfg.Engine.Mode)
	assert.Equal(t, 2*time.Second, cfg.Engine.Cooldown)
	assert.Equal(t, 8, cfg.LLM.History)
}

func TestLoad_DotEnv(t *testing.T) {
	const key = "BIOTUTOR_LLM_MODEL"
	_, set := os.LookupEnv(key)
	require.False(t, set, "%s must not be set for this test", key)
	t.Cleanup(func() { os.Unsetenv(key) })

	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, ".env", key+"=llama3:8b\n")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "llama3:8b", cfg.LLM.Model)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load("nope.yaml")
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "bad.yaml", "engine:\n  mode: hypnotic\n  window: 0s\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrUnknownMode)
	assert.Contains(t, err.Error(), "engine.window")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero tick", func(c *Config) { c.Engine.TickInterval = 0 }},
		{"negative drift", func(c *Config) { c.Engine.DriftInterval = -time.Second }},
		{"stability above one", func(c *Config) { c.Engine.Stability = 1.5 }},
		{"neutral floor negative", func(c *Config) { c.Engine.NeutralMinConfidence = -0.1 }},
		{"zero broadcast", func(c *Config) { c.Server.BroadcastInterval = 0 }},
		{"no history", func(c *Config) { c.LLM.History = 0 }},
		{"detector without poll", func(c *Config) { c.Detector.Enabled = true; c.Detector.PollInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestEngineOptions(t *testing.T) {
	cfg := Default()
	cfg.Engine.Mode = "Scripted"
	cfg.Engine.RecencyWeight = 0.1

	opts := cfg.EngineOptions()
	assert.Equal(t, engine.ModeScripted, opts.Mode)
	assert.Equal(t, 0.1, opts.Scoring.RecencyWeight)
	assert.Equal(t, cfg.Engine.Window, opts.Window)
}

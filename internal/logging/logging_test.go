package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "warn"}, &buf)
	require.NoError(t, err)

	log.Info().Msg("hidden")
	log.Warn().Str("component", "engine").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "biotutor", entry["app"])
	assert.Equal(t, "engine", entry["component"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "DEBUG", Console: true}, &buf)
	require.NoError(t, err)

	log.Debug().Msg("scene started")
	assert.Contains(t, buf.String(), "scene started")
	assert.Contains(t, buf.String(), "DBG")
}

func TestNew_DefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{}, &buf)
	require.NoError(t, err)

	log.Debug().Msg("quiet")
	assert.Empty(t, buf.String())
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"}, nil)
	assert.Error(t, err)
}

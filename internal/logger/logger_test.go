package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesComponentToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tgdown.log")

	l, err := New("debug", path)
	require.NoError(t, err)
	l.Component("worker").Info().Int("message_id", 7).Msg("saved")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "worker", entry["component"])
	assert.Equal(t, "saved", entry["message"])
	assert.EqualValues(t, 7, entry["message_id"])
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	l, err := New("loud", "")
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, l.GetLevel())
}

func TestGet_NoopBeforeInit(t *testing.T) {
	prev := Global
	Global = nil
	t.Cleanup(func() { Global = prev })

	assert.NotNil(t, Get())
	assert.Equal(t, zerolog.Disabled, Get().GetLevel())
}

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogrusLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogrusLogger("debug", "json", &buf)

	log.WithField("device", "Pixel5").Info(context.Background(), "found device", map[string]interface{}{
		"id": 42,
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "found device", entry["msg"])
	assert.Equal(t, "Pixel5", entry["device"])
	assert.Equal(t, float64(42), entry["id"])
	assert.Equal(t, "info", entry["level"])
}

func TestLogrusLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogrusLogger("warn", "text", &buf)

	log.Info(context.Background(), "hidden", nil)
	assert.Empty(t, buf.String())

	log.Warn(context.Background(), "shown", nil)
	assert.Contains(t, buf.String(), "shown")
}

func TestLogrusLogger_InvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogrusLogger("nonsense", "text", &buf)

	log.Debug(context.Background(), "debug line", nil)
	assert.Empty(t, buf.String())

	log.Info(context.Background(), "info line", nil)
	assert.Contains(t, buf.String(), "info line")
}

func TestTestLogger_ChildrenShareEntries(t *testing.T) {
	log := NewTestLogger()
	child := log.WithField("component", "monitor")

	child.Info(context.Background(), "polling run", map[string]interface{}{"run": "r1"})
	log.Error(context.Background(), "boom", nil)

	entries := log.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "monitor", entries[0].Fields["component"])
	assert.Equal(t, "r1", entries[0].Fields["run"])
	assert.True(t, log.HasMessage("error", "boom"))
	assert.False(t, log.HasMessage("info", "boom"))

	log.Reset()
	assert.Empty(t, log.Entries())
}

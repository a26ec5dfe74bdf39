package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripdesk/apiserver/config"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, config.LogConfig{Level: "warn", Format: "json"})

	logger.Info("dropped")
	logger.Warn("kept", "trip_request_id", 7)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "kept", record["msg"])
	assert.EqualValues(t, 7, record["trip_request_id"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

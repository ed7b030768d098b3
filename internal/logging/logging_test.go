package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json", true)
	logger.Debug("hidden")
	logger.Info("scan_started", "scan_id", "abc")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "scan_started", entry["msg"])
	assert.Equal(t, "abc", entry["scan_id"])
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "debug", "console", true)
	logger.Debug("fetch_job_failed", "url", "https://example.com/jobs/1")

	out := buf.String()
	assert.Contains(t, out, "fetch_job_failed")
	assert.Contains(t, out, "url=https://example.com/jobs/1")
}

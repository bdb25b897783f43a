package util

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigureLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ConfigureLogger(LogOptions{Level: "debug", Format: "json", Output: &buf}))
	defer InitLogger(false)

	GetLogger().Debug("hello", "frames", 10)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, float64(10), rec["frames"])
}

func TestConfigureLoggerRejectsUnknownFormat(t *testing.T) {
	assert.Error(t, ConfigureLogger(LogOptions{Format: "xml"}))
}

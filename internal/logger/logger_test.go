package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		check  func(t *testing.T, output string)
	}{
		{
			name:   "text format at info level",
			config: Config{Level: "info", Format: "text", Output: "stdout"},
			check: func(t *testing.T, output string) {
				assert.Contains(t, output, "level=INFO")
				assert.Contains(t, output, `msg="review queued"`)
			},
		},
		{
			name:   "json format at debug level",
			config: Config{Level: "debug", Format: "json", Output: "stdout"},
			check: func(t *testing.T, output string) {
				var entry map[string]any
				require.NoError(t, json.Unmarshal([]byte(output), &entry))
				assert.Equal(t, "DEBUG", entry["level"])
				assert.Equal(t, "review queued", entry["msg"])
			},
		},
		{
			name:   "unknown format falls back to text",
			config: Config{Level: "info", Format: "logfmt", Output: "stdout"},
			check: func(t *testing.T, output string) {
				assert.Contains(t, output, "level=INFO")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.config, &buf)

			if tt.config.Level == "debug" {
				logger.Debug("review queued")
			} else {
				logger.Info("review queued")
			}

			tt.check(t, buf.String())
		})
	}
}

func TestNewLogger_LevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: "info", Format: "text"}, &buf)

	logger.Debug("diff acquired")

	assert.Empty(t, buf.String())
}

func TestNewLogger_InvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: "chatty", Format: "text"}, &buf)

	logger.Debug("diff acquired")
	logger.Info("review queued")

	assert.NotContains(t, buf.String(), "diff acquired")
	assert.Contains(t, buf.String(), "review queued")
}

package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fightgen/pkg/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level json", &config.LoggingConfig{Level: "debug", JSON: true}, false},
		{"invalid log level", &config.LoggingConfig{Level: "invalid"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"loud", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNewWithWriterFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&config.LoggingConfig{Level: "info"}, &buf)
	require.NoError(t, err)

	log.Debug("hidden")
	log.WithField("batch", 3).WithError(errors.New("boom")).Warn("batch failed")
	log.InfoWithFields("accepted", map[string]interface{}{
		"count":   2,
		"elapsed": 1500 * time.Millisecond,
		"ok":      true,
	})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "batch failed", lines[0]["message"])
	assert.Equal(t, float64(3), lines[0]["batch"])
	assert.Equal(t, "boom", lines[0]["error"])
	assert.Equal(t, "fightgen", lines[0]["app"])

	assert.Equal(t, "accepted", lines[1]["message"])
	assert.Equal(t, float64(2), lines[1]["count"])
	assert.Equal(t, true, lines[1]["ok"])
	assert.NotContains(t, lines[1], "batch")
}

func TestWithFieldsDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	base, err := NewWithWriter(&config.LoggingConfig{Level: "debug"}, &buf)
	require.NoError(t, err)

	child := base.WithFields(map[string]interface{}{"stage": "append"})
	child.Info("child")
	base.Info("parent")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "append", lines[0]["stage"])
	assert.NotContains(t, lines[1], "stage")
}

func TestHelpersWithTestLogger(t *testing.T) {
	tl := NewTestLogger()

	LogBatchProgress(tl, 25, 100, 125)
	LogGenerationRequest(tl, "gpt-4", 50, time.Second, errors.New("timeout"))
	LogComponentStart(tl, "orchestrator", map[string]interface{}{"batch_size": 50})

	progress := tl.GetMessagesByLevel("INFO")
	require.Len(t, progress, 2)
	assert.Equal(t, "Generation progress", progress[0].Message)
	assert.Equal(t, "25.0%", progress[0].Fields["percentage"])
	assert.Equal(t, "orchestrator", progress[1].Fields["component"])

	warns := tl.GetMessagesByLevel("WARN")
	require.Len(t, warns, 1)
	assert.EqualError(t, warns[0].Error, "timeout")
	assert.Equal(t, 50, warns[0].Fields["requested"])

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.WithField("a", 1).WithError(errors.New("x")).Error("ignored")
	assert.Nil(t, l.GetZerolog())
}

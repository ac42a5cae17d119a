package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var timestampPrefix = regexp.MustCompile(`^\[[0-9]{1,2}:[0-9]{1,2}:[0-9]{1,2}\]`)

func emitAll(logger *slog.Logger) {
	logger.Debug("debug line")
	logger.Info("info line")
	logger.Warn("warn line")
	logger.Error("error line")
}

func TestNewHandler_LevelFiltering(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level   string
		visible []string
		hidden  []string
	}{
		{"debug", []string{"debug line", "info line", "warn line", "error line"}, nil},
		{"info", []string{"info line", "warn line", "error line"}, []string{"debug line"}},
		{"warn", []string{"warn line", "error line"}, []string{"debug line", "info line"}},
		{"error", []string{"error line"}, []string{"debug line", "info line", "warn line"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			t.Parallel()
			lvl, err := ParseLevel(tt.level)
			require.NoError(t, err)

			var buf bytes.Buffer
			emitAll(New(Options{Level: lvl, Writer: &buf}))

			out := buf.String()
			for _, s := range tt.visible {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.hidden {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestNewHandler_Silent(t *testing.T) {
	t.Parallel()

	for _, format := range []string{FormatText, FormatJSON} {
		var buf bytes.Buffer
		logger := New(Options{Level: LevelSilent, Timestamp: true, Format: format, Writer: &buf})
		emitAll(logger)
		logger.Log(t.Context(), slog.Level(1000), "way above error")
		assert.Empty(t, buf.String(), format)
	}
}

func TestNewHandler_Timestamp(t *testing.T) {
	t.Parallel()

	t.Run("every line is prefixed", func(t *testing.T) {
		var buf bytes.Buffer
		emitAll(New(Options{Level: slog.LevelDebug, Timestamp: true, Writer: &buf}))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 4)
		for _, line := range lines {
			assert.Regexp(t, timestampPrefix, line)
		}
	})

	t.Run("no prefix when disabled", func(t *testing.T) {
		var buf bytes.Buffer
		New(Options{Level: slog.LevelInfo, Writer: &buf}).Info("hello")
		assert.NotRegexp(t, timestampPrefix, buf.String())
		assert.Contains(t, buf.String(), "hello")
	})
}

func TestSetupHandlerJSON(t *testing.T) {
	t.Parallel()

	t.Run("time dropped without timestamp", func(t *testing.T) {
		var buf bytes.Buffer
		slog.New(SetupHandlerJSON(slog.LevelInfo, false, &buf)).Info("msg", "k", "v")

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.NotContains(t, rec, slog.TimeKey)
		assert.Equal(t, "msg", rec[slog.MessageKey])
		assert.Equal(t, "v", rec["k"])
	})

	t.Run("time kept with timestamp", func(t *testing.T) {
		var buf bytes.Buffer
		slog.New(SetupHandlerJSON(slog.LevelInfo, true, &buf)).Info("msg")

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Contains(t, rec, slog.TimeKey)
	})
}

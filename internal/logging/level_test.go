package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DeBuG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"silent", LevelSilent},
		{" SILENT ", LevelSilent},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := ParseLevel("trace")
	require.ErrorIs(t, err, ErrInvalidLevel)
}

func TestLevelOrdering(t *testing.T) {
	t.Parallel()

	names := []string{"debug", "info", "warn", "error", "silent"}
	var prev slog.Level
	for i, name := range names {
		lvl, err := ParseLevel(name)
		require.NoError(t, err)
		assert.Equal(t, name, LevelName(lvl))
		if i > 0 {
			assert.Greater(t, lvl, prev, "%s should rank above %s", name, names[i-1])
		}
		prev = lvl
	}
}

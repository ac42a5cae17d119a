package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/atlanticdynamic/lynxserve/internal/build"
	"github.com/stretchr/testify/assert"
)

func render(level slog.Level, events ...build.Event) string {
	var buf bytes.Buffer
	logger := New(Options{Level: level, Writer: &buf})
	for _, ev := range events {
		LogEvent(logger, ev)
	}
	return buf.String()
}

func TestLogEvent(t *testing.T) {
	t.Parallel()
	id := build.NewCycleID()

	success := build.Completed(id, &build.Result{
		Artifacts: []build.Artifact{{URLPath: "/main.js", Contents: []byte("1")}},
	}, 10*time.Millisecond)
	warnings := build.Completed(id, &build.Result{
		Warnings: []build.Message{{Text: "unused import", File: "src/a.js", Line: 2, Column: 1}},
	}, 0)
	failed := build.Completed(id, &build.Result{
		Errors: []build.Message{{Text: "unexpected token", File: "src/a.js", Line: 1, Column: 4}},
	}, 0)
	fatal := build.Fatal(id, errors.New("entry point not found"))

	t.Run("info level", func(t *testing.T) {
		out := render(slog.LevelInfo, build.Building(id), success, warnings, failed, fatal)
		assert.NotContains(t, out, MsgCompiling)
		assert.Contains(t, out, MsgCompiled)
		assert.Contains(t, out, MsgCompiledWarnings)
		assert.Contains(t, out, "src/a.js:2:1: unused import")
		assert.Contains(t, out, MsgFailed)
		assert.Contains(t, out, "src/a.js:1:4: unexpected token")
		assert.Contains(t, out, MsgFatal)
		assert.Contains(t, out, "entry point not found")
	})

	t.Run("debug level shows progress and assets", func(t *testing.T) {
		out := render(slog.LevelDebug, build.Building(id), success)
		assert.Contains(t, out, MsgCompiling)
		assert.Contains(t, out, "/main.js")
	})

	t.Run("error level hides warnings", func(t *testing.T) {
		out := render(slog.LevelError, success, warnings, failed)
		assert.NotContains(t, out, MsgCompiled)
		assert.NotContains(t, out, MsgCompiledWarnings)
		assert.Contains(t, out, MsgFailed)
	})

	t.Run("each event rendered once", func(t *testing.T) {
		out := render(slog.LevelInfo, success)
		assert.Equal(t, 1, strings.Count(out, MsgCompiled))
	})

	t.Run("silent", func(t *testing.T) {
		assert.Empty(t, render(LevelSilent, build.Building(id), success, warnings, failed, fatal))
	})
}

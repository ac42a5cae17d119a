// Package logging builds the slog handlers used by the dev server and renders
// compile events as log lines.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
)

// TimeFormat is the prefix written on every line when timestamps are enabled.
const TimeFormat = "[15:04:05]"

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options controls the handler returned by NewHandler.
type Options struct {
	Level     slog.Level
	Timestamp bool
	Format    string
	Writer    io.Writer
}

// NewHandler returns the handler described by opts. A silent level yields a
// handler that never writes.
func NewHandler(opts Options) slog.Handler {
	if opts.Level >= LevelSilent {
		return slog.DiscardHandler
	}
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}
	if opts.Format == FormatJSON {
		return SetupHandlerJSON(opts.Level, opts.Timestamp, opts.Writer)
	}
	return SetupHandlerText(opts.Level, opts.Timestamp, opts.Writer)
}

// New is a shorthand for slog.New(NewHandler(opts)).
func New(opts Options) *slog.Logger {
	return slog.New(NewHandler(opts))
}

// SetupHandlerText configures a charmbracelet text handler.
func SetupHandlerText(level slog.Level, timestamp bool, writer io.Writer) slog.Handler {
	return log.NewWithOptions(writer, log.Options{
		ReportTimestamp: timestamp,
		TimeFormat:      TimeFormat,
		ReportCaller:    false,
		Level:           log.Level(level),
	})
}

// SetupHandlerJSON configures a JSON handler. Without timestamp the time
// attribute is dropped from every record.
func SetupHandlerJSON(level slog.Level, timestamp bool, writer io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if !timestamp {
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		}
	}
	return slog.NewJSONHandler(writer, opts)
}

// Enabled reports whether logger would emit a record at level.
func Enabled(logger *slog.Logger, level slog.Level) bool {
	return logger.Enabled(context.Background(), level)
}

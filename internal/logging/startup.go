package logging

import (
	"context"
	"log/slog"

	"github.com/robbyt/go-loglater"
)

// Startup holds records emitted before the configured handler exists, so the
// output level and format are applied to them retroactively.
type Startup struct {
	collector *loglater.LogCollector
}

// NewStartup returns an empty startup buffer.
func NewStartup() *Startup {
	return &Startup{collector: loglater.NewLogCollector(nil)}
}

// Logger returns a logger that records into the buffer.
func (s *Startup) Logger() *slog.Logger {
	return slog.New(s.collector)
}

// Replay sends every buffered record enabled for h to h with its own
// timestamp.
func (s *Startup) Replay(ctx context.Context, h slog.Handler) error {
	for _, stored := range s.collector.GetLogs() {
		if !h.Enabled(ctx, stored.Level) {
			continue
		}
		rec := slog.NewRecord(stored.Time, stored.Level, stored.Message, stored.PC)
		rec.AddAttrs(stored.Attrs...)
		if err := h.Handle(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

package logging

import (
	"log/slog"
	"time"

	"github.com/atlanticdynamic/lynxserve/internal/build"
)

// Messages written for compile outcomes. The ready lines are what tooling
// watching stdout waits for.
const (
	MsgCompiling        = "Compiling..."
	MsgCompiled         = "Compiled successfully"
	MsgCompiledWarnings = "Compiled with warnings"
	MsgFailed           = "Failed to compile"
	MsgFatal            = "Fatal compiler error"
)

// LogEvent renders one compile event. Each event yields its lines exactly
// once; level filtering is left to the handler.
func LogEvent(logger *slog.Logger, ev build.Event) {
	switch ev.Kind {
	case build.KindBuilding:
		logger.Debug(MsgCompiling, "id", ev.ID.String())

	case build.KindSuccess:
		logger.Info(MsgCompiled, statsAttrs(ev)...)
		logAssets(logger, ev)

	case build.KindWarnings:
		logger.Warn(MsgCompiledWarnings, statsAttrs(ev)...)
		for _, w := range ev.Stats.Warnings {
			logger.Warn(w.String())
		}
		logAssets(logger, ev)

	case build.KindErrors:
		logger.Error(MsgFailed, statsAttrs(ev)...)
		for _, e := range ev.Stats.Errors {
			logger.Error(e.String())
		}

	case build.KindFatal:
		logger.Error(MsgFatal, "error", ev.Cause)
	}
}

func statsAttrs(ev build.Event) []any {
	if ev.Stats == nil {
		return nil
	}
	return []any{"hash", ev.Stats.Hash, "duration", ev.Stats.Duration.Round(time.Millisecond)}
}

func logAssets(logger *slog.Logger, ev build.Event) {
	if ev.Stats == nil {
		return
	}
	for _, a := range ev.Stats.Assets {
		logger.Debug("Asset", "name", a.Name, "size", a.Size)
	}
}

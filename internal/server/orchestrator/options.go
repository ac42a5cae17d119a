package orchestrator

import (
	"log/slog"

	"github.com/atlanticdynamic/lynxserve/internal/build"
	"github.com/atlanticdynamic/lynxserve/internal/server/metrics"
)

type Option func(*Orchestrator)

// WithLogHandler sets the handler used for component logs and compile output.
func WithLogHandler(handler slog.Handler) Option {
	return func(o *Orchestrator) {
		o.handler = handler
	}
}

// WithCompiler replaces the default esbuild compiler.
func WithCompiler(c build.Compiler) Option {
	return func(o *Orchestrator) {
		o.compiler = c
	}
}

// WithMetrics uses m instead of a fresh registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithSignalHandling controls whether Run turns SIGINT and SIGTERM into
// Interrupt. Enabled by default.
func WithSignalHandling(enabled bool) Option {
	return func(o *Orchestrator) {
		o.handleSignals = enabled
	}
}

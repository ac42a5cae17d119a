package hotchannel

import (
	"context"
	"crypto/tls"
	"log/slog"

	"github.com/atlanticdynamic/lynxserve/internal/server/metrics"
)

type Option func(*Runner)

// WithLogger sets a custom logger for the Runner instance.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithLogHandler sets a custom log handler for the Runner instance.
func WithLogHandler(handler slog.Handler) Option {
	return func(r *Runner) {
		r.logger = slog.New(handler)
	}
}

// WithContext sets a custom parent context for the Runner instance.
func WithContext(ctx context.Context) Option {
	return func(r *Runner) {
		r.parentCtx = ctx
	}
}

// WithTLSConfig serves the channel over TLS (wss).
func WithTLSConfig(cfg *tls.Config) Option {
	return func(r *Runner) {
		r.tlsConfig = cfg
	}
}

// WithMetrics records the subscriber count on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

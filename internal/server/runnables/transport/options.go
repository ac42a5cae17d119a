package transport

import (
	"context"
	"crypto/tls"
	"log/slog"
	"maps"
	"time"

	"github.com/atlanticdynamic/lynxserve/internal/config"
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

// WithContentRoots sets the directories searched, in order, after the build artifacts.
func WithContentRoots(roots ...string) Option {
	return func(r *Runner) {
		r.contentRoots = append([]string(nil), roots...)
	}
}

// WithHeaders adds headers to every response.
func WithHeaders(headers map[string]string) Option {
	return func(r *Runner) {
		r.headers = maps.Clone(headers)
	}
}

// WithTLSConfig serves HTTPS using cfg.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(r *Runner) {
		r.tlsConfig = cfg
	}
}

// WithHTTP2 enables HTTP/2. It only takes effect together with TLS.
func WithHTTP2(enabled bool) Option {
	return func(r *Runner) {
		r.http2 = enabled
	}
}

// WithStalePolicy selects what is served after a failed rebuild.
func WithStalePolicy(p config.StalePolicy) Option {
	return func(r *Runner) {
		r.stalePolicy = p
	}
}

// WithMetrics records requests on m and serves m on the metrics path.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithStateFunc reports the server state on the status path.
func WithStateFunc(fn func() string) Option {
	return func(r *Runner) {
		r.stateFunc = fn
	}
}

// WithDrainTimeout bounds how long Stop waits for in-flight requests.
func WithDrainTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.drainTimeout = d
		}
	}
}

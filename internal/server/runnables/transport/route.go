package transport

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/atlanticdynamic/lynxserve/internal/server/metrics"
	"github.com/robbyt/go-supervisor/runnables/httpserver"
	"github.com/robbyt/go-supervisor/runnables/httpserver/middleware/headers"
	"github.com/robbyt/go-supervisor/runnables/httpserver/middleware/recovery"
)

// kindWriter carries the resolution kind from the resolver back to the
// access log.
type kindWriter struct {
	httpserver.ResponseWriter
	kind string
}

// newRoute builds the catch-all route: access log, panic recovery, the
// configured response headers, then the resolver.
func (r *Runner) newRoute() (*httpserver.Route, error) {
	hdr := make(http.Header, len(r.headers))
	for key, value := range r.headers {
		hdr.Set(key, value)
	}
	route, err := httpserver.NewRouteFromHandlerFunc(
		"lynxserve",
		"/",
		r.handle,
		accessLog(r.logger, r.metrics),
		recovery.New(r.logger.Handler()),
		headers.New(hdr),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create route: %w", err)
	}
	return route, nil
}

// accessLog records one metric sample and one log line per request. Server
// errors are logged at warn, except the expected 503 before the first build.
func accessLog(logger *slog.Logger, m *metrics.Metrics) httpserver.HandlerFunc {
	logger = logger.WithGroup("http")
	return func(rp *httpserver.RequestProcessor) {
		start := time.Now()
		kw := &kindWriter{ResponseWriter: rp.Writer()}
		rp.SetWriter(kw)

		rp.Next()

		status := kw.Status()
		if status == 0 {
			status = http.StatusOK
		}
		kind := kw.kind
		if kind == "" {
			kind = metrics.KindPanic
		}
		m.ObserveRequest(kind, status)

		level := slog.LevelDebug
		if status >= http.StatusInternalServerError && kind != metrics.KindUnavailable {
			level = slog.LevelWarn
		}
		req := rp.Request()
		logger.LogAttrs(req.Context(), level, "HTTP request",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Int("status", status),
			slog.Int("size", kw.Size()),
			slog.String("kind", kind),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

// Package transport serves build artifacts and content roots over HTTP,
// HTTPS or HTTP/2. Content requests are refused until the first usable build.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atlanticdynamic/lynxserve/internal/build"
	"github.com/atlanticdynamic/lynxserve/internal/config"
	"github.com/atlanticdynamic/lynxserve/internal/server/finitestate"
	"github.com/atlanticdynamic/lynxserve/internal/server/metrics"
	"github.com/robbyt/go-supervisor/supervisor"
	"golang.org/x/net/http2"
)

var (
	_ supervisor.Runnable  = (*Runner)(nil)
	_ supervisor.Stateable = (*Runner)(nil)
	_ supervisor.Readiness = (*Runner)(nil)
	_ http.Handler         = (*Runner)(nil)
)

// ErrTransportBind is returned when the listen address cannot be bound.
var ErrTransportBind = errors.New("failed to bind transport")

const defaultDrainTimeout = 5 * time.Second

type Runner struct {
	addr         string
	contentRoots []string
	headers      map[string]string
	tlsConfig    *tls.Config
	http2        bool
	stalePolicy  config.StalePolicy
	drainTimeout time.Duration
	metrics      *metrics.Metrics
	stateFunc    func() string

	logger  *slog.Logger
	fsm     finitestate.Machine
	handler http.Handler

	ready     atomic.Bool
	artifacts atomic.Pointer[artifactSet]
	failure   atomic.Pointer[failure]

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	serving  bool

	parentCtx context.Context
	stopOnce  sync.Once
	stopCh    chan struct{}
}

// NewRunner creates a transport that will listen on addr.
func NewRunner(addr string, opts ...Option) (*Runner, error) {
	if addr == "" {
		return nil, errors.New("listen address is required")
	}
	r := &Runner{
		addr:         addr,
		stalePolicy:  config.DefaultStalePolicy,
		drainTimeout: defaultDrainTimeout,
		logger:       slog.Default().WithGroup("transport.Runner"),
		parentCtx:    context.Background(),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	fsm, err := finitestate.New(r.logger.WithGroup("fsm").Handler())
	if err != nil {
		return nil, fmt.Errorf("failed to create state machine: %w", err)
	}
	r.fsm = fsm
	route, err := r.newRoute()
	if err != nil {
		return nil, err
	}
	r.handler = route
	return r, nil
}

// String implements the supervisor.Runnable interface
func (r *Runner) String() string {
	return "transport.Runner"
}

// Bind opens the listening socket and prepares the server. It is safe to
// call more than once.
func (r *Runner) Bind() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener != nil {
		return nil
	}

	srv := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		ErrorLog:          slog.NewLogLogger(r.logger.Handler(), slog.LevelDebug),
	}
	if r.tlsConfig != nil {
		srv.TLSConfig = r.tlsConfig.Clone()
		if r.http2 {
			if err := http2.ConfigureServer(srv, &http2.Server{}); err != nil {
				return fmt.Errorf("failed to enable HTTP/2: %w", err)
			}
		} else {
			srv.TLSConfig.NextProtos = []string{"http/1.1"}
			srv.TLSNextProto = map[string]func(*http.Server, *tls.Conn, http.Handler){}
		}
	}

	ln, err := net.Listen("tcp", r.addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransportBind, r.addr, err)
	}
	if srv.TLSConfig != nil {
		ln = tls.NewListener(ln, srv.TLSConfig)
	}
	r.listener = ln
	r.server = srv
	r.logger.Debug("Transport bound", "address", ln.Addr().String(), "tls", r.tlsConfig != nil, "http2", r.http2)
	return nil
}

// Addr returns the bound address, or the configured one before Bind.
func (r *Runner) Addr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener != nil {
		return r.listener.Addr().String()
	}
	return r.addr
}

// Run implements the supervisor.Runnable interface
func (r *Runner) Run(ctx context.Context) error {
	select {
	case <-r.stopCh:
		return nil
	default:
	}

	if err := r.fsm.Transition(finitestate.StatusBooting); err != nil {
		return fmt.Errorf("failed to transition to booting state: %w", err)
	}
	if err := r.Bind(); err != nil {
		r.fsm.TransitionBool(finitestate.StatusError)
		return err
	}

	r.mu.Lock()
	select {
	case <-r.stopCh:
		r.mu.Unlock()
		r.fsm.TransitionBool(finitestate.StatusStopping)
		r.fsm.TransitionBool(finitestate.StatusStopped)
		return nil
	default:
	}
	ln, srv := r.listener, r.server
	r.serving = true
	r.mu.Unlock()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	if err := r.fsm.Transition(finitestate.StatusRunning); err != nil {
		return fmt.Errorf("failed to transition to running state: %w", err)
	}
	r.logger.Debug("Transport listening", "address", ln.Addr().String())

	var runErr error
	select {
	case <-ctx.Done():
	case <-r.parentCtx.Done():
	case <-r.stopCh:
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("transport stopped unexpectedly: %w", err)
		}
	}

	r.fsm.TransitionBool(finitestate.StatusStopping)
	r.shutdown(srv)

	if runErr != nil {
		r.fsm.TransitionBool(finitestate.StatusError)
		return runErr
	}
	if err := r.fsm.Transition(finitestate.StatusStopped); err != nil {
		return fmt.Errorf("failed to transition to stopped state: %w", err)
	}
	return nil
}

func (r *Runner) shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), r.drainTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		r.logger.Warn("Transport drain timed out, closing connections", "error", err)
		_ = srv.Close()
	}
	r.logger.Debug("Transport closed")
}

// Stop implements the supervisor.Runnable interface. A transport that was
// bound but never run releases its socket here.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		// a runner that never ran has nothing left to wind down
		if r.fsm.TransitionIfCurrentState(finitestate.StatusNew, finitestate.StatusStopping) == nil {
			r.fsm.TransitionBool(finitestate.StatusStopped)
		} else {
			r.fsm.TransitionBool(finitestate.StatusStopping)
		}
		close(r.stopCh)

		r.mu.Lock()
		defer r.mu.Unlock()
		if !r.serving && r.listener != nil {
			_ = r.listener.Close()
		}
	})
}

// MarkReady allows content requests. Readiness is never revoked.
func (r *Runner) MarkReady() {
	if r.ready.CompareAndSwap(false, true) {
		r.logger.Debug("Transport ready")
	}
}

// Ready reports whether content requests are answered.
func (r *Runner) Ready() bool {
	return r.ready.Load()
}

// Publish updates the served artifacts from a terminal compile event. A
// usable build replaces the artifacts and clears any failure; a failed one
// keeps the previous artifacts and records the failure.
func (r *Runner) Publish(ev build.Event) {
	switch {
	case ev.Kind.IsUsable():
		r.artifacts.Store(newArtifactSet(ev))
		r.failure.Store(nil)
	case ev.Kind == build.KindErrors, ev.Kind == build.KindFatal:
		r.failure.Store(newFailure(ev))
	}
}

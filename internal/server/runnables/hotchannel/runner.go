// Package hotchannel runs the websocket endpoint browsers subscribe to for
// live reload. Every compile event published to it is broadcast as JSON.
package hotchannel

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/atlanticdynamic/lynxserve/internal/build"
	"github.com/atlanticdynamic/lynxserve/internal/server/finitestate"
	"github.com/atlanticdynamic/lynxserve/internal/server/metrics"
	"github.com/gorilla/websocket"
	"github.com/robbyt/go-supervisor/supervisor"
)

var (
	_ supervisor.Runnable  = (*Runner)(nil)
	_ supervisor.Stateable = (*Runner)(nil)
	_ supervisor.Readiness = (*Runner)(nil)
	_ http.Handler         = (*Runner)(nil)
)

// ErrBind is returned when the hot channel address cannot be bound.
var ErrBind = errors.New("failed to bind hot channel")

const shutdownTimeout = 2 * time.Second

type Runner struct {
	addr      string
	tlsConfig *tls.Config
	metrics   *metrics.Metrics

	logger *slog.Logger
	fsm    finitestate.Machine

	hub      *hub
	upgrader websocket.Upgrader

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server

	parentCtx context.Context
	stopOnce  sync.Once
	stopCh    chan struct{}
}

// NewRunner creates a hot channel that will listen on addr.
func NewRunner(addr string, opts ...Option) (*Runner, error) {
	if addr == "" {
		return nil, errors.New("listen address is required")
	}
	r := &Runner{
		addr:      addr,
		logger:    slog.Default().WithGroup("hotchannel.Runner"),
		parentCtx: context.Background(),
		stopCh:    make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// pages are served from the transport's origin, not this one
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.hub = newHub(r.logger, r.metrics)

	fsm, err := finitestate.New(r.logger.WithGroup("fsm").Handler())
	if err != nil {
		return nil, fmt.Errorf("failed to create state machine: %w", err)
	}
	r.fsm = fsm
	return r, nil
}

// String implements the supervisor.Runnable interface
func (r *Runner) String() string {
	return "hotchannel.Runner"
}

// Bind opens the listening socket. It is safe to call more than once.
func (r *Runner) Bind() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", r.addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBind, r.addr, err)
	}
	if r.tlsConfig != nil {
		ln = tls.NewListener(ln, r.tlsConfig)
	}
	r.listener = ln
	r.logger.Debug("Hot channel bound", "address", ln.Addr().String())
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
	ln := r.listener
	r.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          slog.NewLogLogger(r.logger.Handler(), slog.LevelDebug),
	}
	srv := r.server
	r.mu.Unlock()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	if err := r.fsm.Transition(finitestate.StatusRunning); err != nil {
		return fmt.Errorf("failed to transition to running state: %w", err)
	}
	r.logger.Debug("Hot channel listening", "address", ln.Addr().String())

	var runErr error
	select {
	case <-ctx.Done():
	case <-r.parentCtx.Done():
	case <-r.stopCh:
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("hot channel stopped unexpectedly: %w", err)
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

// shutdown drops every subscriber, then closes the listener.
func (r *Runner) shutdown(srv *http.Server) {
	r.hub.close()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		r.logger.Warn("Hot channel shutdown timed out", "error", err)
		_ = srv.Close()
	}
	r.logger.Debug("Hot channel closed")
}

// Stop implements the supervisor.Runnable interface. A channel that was
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
		if r.server == nil && r.listener != nil {
			_ = r.listener.Close()
			r.hub.close()
		}
	})
}

// Publish broadcasts ev to every subscriber.
func (r *Runner) Publish(ev build.Event) {
	payload, err := encode(ev)
	if err != nil {
		r.logger.Error("Failed to encode event", "kind", ev.Kind, "error", err)
		return
	}
	r.hub.broadcast(ev.Kind, payload)
}

// Subscribers returns the number of connected subscribers.
func (r *Runner) Subscribers() int {
	return r.hub.count()
}

// ServeHTTP upgrades every request to a subscription. Messages sent by the
// browser are read and discarded to detect disconnects.
func (r *Runner) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if !websocket.IsWebSocketUpgrade(req) {
		http.Error(w, "lynxserve hot channel: websocket upgrade required", http.StatusUpgradeRequired)
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Debug("Websocket upgrade failed", "error", err)
		return
	}

	sub := newSubscriber(conn)
	if !r.hub.add(sub) {
		sub.close(websocket.CloseGoingAway, "server shutting down")
		return
	}
	defer func() {
		r.hub.remove(sub)
		sub.close(websocket.CloseNormalClosure, "")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

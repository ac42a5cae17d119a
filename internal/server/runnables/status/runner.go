// Package status serves the standard gRPC health service so tools can wait
// for the dev server to become ready.
package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/atlanticdynamic/lynxserve/internal/config"
	"github.com/atlanticdynamic/lynxserve/internal/server/finitestate"
	"github.com/robbyt/go-supervisor/supervisor"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var (
	_ supervisor.Runnable  = (*Runner)(nil)
	_ supervisor.Stateable = (*Runner)(nil)
	_ supervisor.Readiness = (*Runner)(nil)
)

// ErrBind is returned when the status address cannot be bound.
var ErrBind = errors.New("failed to bind status endpoint")

// ServiceName is reported alongside the overall ("") service.
const ServiceName = "lynxserve"

const stopTimeout = 2 * time.Second

type Runner struct {
	listenAddr string
	network    string
	address    string

	logger *slog.Logger
	fsm    finitestate.Machine
	health *health.Server

	mu       sync.Mutex
	listener net.Listener
	serving  bool

	parentCtx context.Context
	stopOnce  sync.Once
	stopCh    chan struct{}
}

// NewRunner creates a health endpoint for listenAddr, which may be a host:port
// or a tcp:// or unix:// URL.
func NewRunner(listenAddr string, opts ...Option) (*Runner, error) {
	if listenAddr == "" {
		return nil, errors.New("listen address cannot be empty")
	}
	network, address, err := config.ParseListenAddr(listenAddr)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		listenAddr: listenAddr,
		network:    network,
		address:    address,
		logger:     slog.Default().WithGroup("status.Runner"),
		health:     health.NewServer(),
		parentCtx:  context.Background(),
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.SetServing(false)

	fsm, err := finitestate.New(r.logger.WithGroup("fsm").Handler())
	if err != nil {
		return nil, fmt.Errorf("failed to create state machine: %w", err)
	}
	r.fsm = fsm
	return r, nil
}

func (r *Runner) String() string {
	return "status.Runner"
}

// Bind opens the listening socket. A stale unix socket file is removed first.
func (r *Runner) Bind() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener != nil {
		return nil
	}
	if r.network == "unix" {
		if err := removeStaleSocket(r.address, r.logger); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrBind, r.listenAddr, err)
		}
	}
	ln, err := net.Listen(r.network, r.address)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBind, r.listenAddr, err)
	}
	r.listener = ln
	return nil
}

// Addr returns the bound address, or the configured one before Bind.
func (r *Runner) Addr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener != nil {
		return r.listener.Addr().String()
	}
	return r.address
}

// SetServing flips the reported health status.
func (r *Runner) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	r.health.SetServingStatus("", st)
	r.health.SetServingStatus(ServiceName, st)
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
	r.serving = true
	r.mu.Unlock()

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, r.health)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	if err := r.fsm.Transition(finitestate.StatusRunning); err != nil {
		return fmt.Errorf("failed to transition to running state: %w", err)
	}
	r.logger.Debug("Status endpoint listening", "network", r.network, "address", ln.Addr().String())

	var runErr error
	select {
	case <-ctx.Done():
	case <-r.parentCtx.Done():
	case <-r.stopCh:
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("status endpoint stopped unexpectedly: %w", err)
		}
	}

	r.fsm.TransitionBool(finitestate.StatusStopping)
	r.health.Shutdown()
	r.gracefulStop(srv)
	if r.network == "unix" {
		_ = os.Remove(r.address)
	}

	if runErr != nil {
		r.fsm.TransitionBool(finitestate.StatusError)
		return runErr
	}
	if err := r.fsm.Transition(finitestate.StatusStopped); err != nil {
		return fmt.Errorf("failed to transition to stopped state: %w", err)
	}
	return nil
}

// gracefulStop waits for in-flight RPCs, then forces the server closed.
func (r *Runner) gracefulStop(srv *grpc.Server) {
	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		r.logger.Warn("Status endpoint did not stop gracefully")
		srv.Stop()
	}
}

// Stop implements the supervisor.Runnable interface
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

// removeStaleSocket deletes a leftover socket file at path. Anything other
// than a socket is left alone and reported.
func removeStaleSocket(path string, logger *slog.Logger) error {
	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	logger.Warn("Removing stale unix socket", "path", path)
	return os.Remove(path)
}

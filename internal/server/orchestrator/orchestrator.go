// Package orchestrator sequences the dev server: it binds the listeners,
// starts the runnables under a supervisor, relays compile events to the log,
// the hot channel and the transport, and drives the server state machine
// from Starting to Terminated.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/atlanticdynamic/lynxserve/internal/build"
	"github.com/atlanticdynamic/lynxserve/internal/build/esbuild"
	"github.com/atlanticdynamic/lynxserve/internal/config"
	"github.com/atlanticdynamic/lynxserve/internal/config/errz"
	"github.com/atlanticdynamic/lynxserve/internal/logging"
	"github.com/atlanticdynamic/lynxserve/internal/server/finitestate"
	"github.com/atlanticdynamic/lynxserve/internal/server/metrics"
	"github.com/atlanticdynamic/lynxserve/internal/server/runnables/compiler"
	"github.com/atlanticdynamic/lynxserve/internal/server/runnables/hotchannel"
	"github.com/atlanticdynamic/lynxserve/internal/server/runnables/status"
	"github.com/atlanticdynamic/lynxserve/internal/server/runnables/transport"
	"github.com/atlanticdynamic/lynxserve/internal/server/tlsconfig"
	"github.com/robbyt/go-supervisor/supervisor"
)

// ErrStopped is returned when the supervisor ends on its own with an error.
var ErrStopped = errors.New("server stopped unexpectedly")

const (
	stopTimeout = 10 * time.Second
	startupPoll = 5 * time.Millisecond
)

// stateful is implemented by every runnable the orchestrator stops.
type stateful interface {
	supervisor.Runnable
	supervisor.Stateable
}

// Orchestrator owns one server process: its configuration, its runnables and
// its state. It is used once: New, then Run.
type Orchestrator struct {
	cfg           *config.Resolved
	handler       slog.Handler
	logger        *slog.Logger
	compiler      build.Compiler
	metrics       *metrics.Metrics
	handleSignals bool

	state finitestate.Machine

	transport   *transport.Runner
	hot         *hotchannel.Runner
	status      *status.Runner
	coordinator *compiler.Runner

	interruptOnce sync.Once
	interrupt     chan struct{}
}

// New builds the runnables for cfg. Nothing is bound until Run.
func New(cfg *config.Resolved, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	o := &Orchestrator{
		cfg:           cfg,
		handler:       slog.Default().Handler(),
		handleSignals: true,
		interrupt:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = metrics.New()
	}
	o.logger = slog.New(o.handler).WithGroup("orchestrator")

	state, err := finitestate.NewServer(o.logger.WithGroup("fsm").Handler())
	if err != nil {
		return nil, fmt.Errorf("failed to create state machine: %w", err)
	}
	o.state = state

	tlsCfg, err := tlsconfig.Load(cfg.TLS)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errz.ErrConfigLoad, err)
	}

	o.transport, err = transport.NewRunner(cfg.Addr(),
		transport.WithLogHandler(o.handler),
		transport.WithContentRoots(cfg.ContentRoots...),
		transport.WithHeaders(cfg.Headers),
		transport.WithTLSConfig(tlsCfg),
		transport.WithHTTP2(cfg.HTTP2),
		transport.WithStalePolicy(cfg.StalePolicy),
		transport.WithMetrics(o.metrics),
		transport.WithStateFunc(o.State),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	if cfg.Hot.Enabled {
		o.hot, err = hotchannel.NewRunner(cfg.HotAddr(),
			hotchannel.WithLogHandler(o.handler),
			hotchannel.WithTLSConfig(tlsCfg),
			hotchannel.WithMetrics(o.metrics),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create hot channel: %w", err)
		}
	}

	if cfg.StatusListen != "" {
		o.status, err = status.NewRunner(cfg.StatusListen, status.WithLogHandler(o.handler))
		if err != nil {
			return nil, fmt.Errorf("failed to create status endpoint: %w", err)
		}
	}
	return o, nil
}

// State returns the current server state.
func (o *Orchestrator) State() string {
	return o.state.GetState()
}

// StateChan emits every server state until ctx is canceled.
func (o *Orchestrator) StateChan(ctx context.Context) <-chan string {
	return o.state.GetStateChan(ctx)
}

// Addr returns the transport address, the bound one once Run has started.
func (o *Orchestrator) Addr() string {
	return o.transport.Addr()
}

// HotAddr returns the hot channel address, or "" when it is disabled.
func (o *Orchestrator) HotAddr() string {
	if o.hot == nil {
		return ""
	}
	return o.hot.Addr()
}

// StatusAddr returns the status endpoint address, or "" when not configured.
func (o *Orchestrator) StatusAddr() string {
	if o.status == nil {
		return ""
	}
	return o.status.Addr()
}

// Metrics returns the collectors the server records to.
func (o *Orchestrator) Metrics() *metrics.Metrics {
	return o.metrics
}

// Interrupt requests a graceful shutdown. Further calls do nothing.
func (o *Orchestrator) Interrupt() {
	o.interruptOnce.Do(func() {
		o.logger.Debug("Interrupt received")
		close(o.interrupt)
	})
}

// Run binds the listeners, runs the server until it is interrupted or the
// compiler fails fatally, and releases every resource before returning. It
// returns nil after an interrupt and an error wrapping build.ErrCompileFatal
// after a fatal compiler error.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.State() != finitestate.ServerStarting {
		return fmt.Errorf("orchestrator already used (state %s)", o.State())
	}

	if o.handleSignals {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		sigCtx, sigCancel := context.WithCancel(ctx)
		defer sigCancel()
		go func() {
			for {
				select {
				case sig := <-sigCh:
					o.logger.Debug("Signal received", "signal", sig.String())
					o.Interrupt()
				case <-sigCtx.Done():
					return
				}
			}
		}()
	}

	runnables, err := o.bind()
	if err != nil {
		o.releaseListeners()
		o.transition(finitestate.ServerTerminated)
		return err
	}

	// the runnables outlive ctx until shutdown has stopped them in order
	superCtx, superCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer superCancel()
	super, err := supervisor.New(
		supervisor.WithContext(superCtx),
		supervisor.WithLogHandler(o.handler),
		// SIGINT and SIGTERM belong to Interrupt; the supervisor only reloads
		supervisor.WithSignals(syscall.SIGHUP),
		supervisor.WithStartupInitial(startupPoll),
		supervisor.WithRunnables(runnables...),
	)
	if err != nil {
		o.releaseListeners()
		o.transition(finitestate.ServerTerminated)
		return fmt.Errorf("failed to create supervisor: %w", err)
	}

	superDone := make(chan error, 1)
	go func() {
		superDone <- super.Run()
	}()

	o.transition(finitestate.ServerAwaitingFirstBuild)
	o.logger.Info("Server started", "url", o.url(), "hot", o.hotURL())

	runErr := o.loop(ctx, superDone)

	o.shutdown(runnables, superCancel, superDone)
	return runErr
}

// bind opens every listener and builds the runnable list in start order.
// Any failure aborts startup before a runnable runs.
func (o *Orchestrator) bind() ([]supervisor.Runnable, error) {
	if err := o.transport.Bind(); err != nil {
		return nil, err
	}
	runnables := []supervisor.Runnable{o.transport}

	if o.status != nil {
		if err := o.status.Bind(); err != nil {
			return nil, err
		}
		runnables = append(runnables, o.status)
	}

	if o.hot != nil {
		if err := o.hot.Bind(); err != nil {
			return nil, err
		}
		runnables = append(runnables, o.hot)
	}

	c := o.compiler
	if c == nil {
		c = o.defaultCompiler()
	}
	coordinator, err := compiler.NewRunner(c,
		compiler.WithLogHandler(o.handler),
		compiler.WithDebounce(o.cfg.Build.Debounce),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create compiler: %w", err)
	}
	o.coordinator = coordinator
	return append(runnables, coordinator), nil
}

func (o *Orchestrator) defaultCompiler() build.Compiler {
	opts := []esbuild.Option{
		esbuild.WithLogHandler(o.handler),
		esbuild.WithWorkingDir(o.workingDir()),
	}
	if o.hot != nil {
		opts = append(opts, esbuild.WithHotClient(o.hotURL()))
	}
	return esbuild.New(o.cfg.Build, opts...)
}

func (o *Orchestrator) workingDir() string {
	if o.cfg.ConfigPath != "" {
		return filepath.Dir(o.cfg.ConfigPath)
	}
	return o.cfg.WorkingDir
}

// loop relays compile events until the server has to stop. Each event goes
// to the log, then the hot channel, then the transport gate.
func (o *Orchestrator) loop(ctx context.Context, superDone <-chan error) error {
	events := o.coordinator.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				o.logger.Debug("Compiler stopped")
				return nil
			}
			if err := o.relay(ev); err != nil {
				return err
			}
		case <-o.interrupt:
			return nil
		case <-ctx.Done():
			return nil
		case err := <-superDone:
			// a fatal event may already be queued behind the supervisor exit
			if fatal := o.drainFatal(events); fatal != nil {
				return fatal
			}
			if err != nil {
				return fmt.Errorf("%w: %w", ErrStopped, err)
			}
			return nil
		}
	}
}

func (o *Orchestrator) relay(ev build.Event) error {
	logging.LogEvent(slog.New(o.handler), ev)
	if o.hot != nil {
		o.hot.Publish(ev)
	}
	o.metrics.ObserveBuild(ev)
	o.transport.Publish(ev)

	switch ev.Kind {
	case build.KindSuccess, build.KindWarnings:
		if o.State() == finitestate.ServerAwaitingFirstBuild {
			o.transport.MarkReady()
			if o.status != nil {
				o.status.SetServing(true)
			}
			o.transition(finitestate.ServerReady)
			o.logger.Info("Server ready", "url", o.url())
		}
	case build.KindFatal:
		return ev.Cause
	}
	return nil
}

func (o *Orchestrator) drainFatal(events <-chan build.Event) error {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := o.relay(ev); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// shutdown stops the runnables in reverse start order, waits until each
// one has released its resources, then stops the supervisor.
func (o *Orchestrator) shutdown(runnables []supervisor.Runnable, superCancel context.CancelFunc, superDone <-chan error) {
	o.transition(finitestate.ServerShuttingDown)
	o.logger.Debug("Shutting down")
	if o.status != nil {
		o.status.SetServing(false)
	}

	for i := len(runnables) - 1; i >= 0; i-- {
		r, ok := runnables[i].(stateful)
		if !ok {
			runnables[i].Stop()
			continue
		}
		r.Stop()
		o.waitStopped(r)
	}

	superCancel()
	select {
	case <-superDone:
	case <-time.After(stopTimeout):
		o.logger.Warn("Supervisor did not stop in time")
	}

	o.transition(finitestate.ServerTerminated)
	o.logger.Info("Server stopped")
}

// waitStopped blocks until r has left its running states.
func (o *Orchestrator) waitStopped(r stateful) {
	deadline := time.Now().Add(stopTimeout)
	for time.Now().Before(deadline) {
		switch r.GetState() {
		case finitestate.StatusStopped, finitestate.StatusError, finitestate.StatusNew:
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	o.logger.Warn("Runnable did not stop in time", "runnable", r.String(), "state", r.GetState())
}

// releaseListeners closes whatever bind managed to open.
func (o *Orchestrator) releaseListeners() {
	o.transport.Stop()
	if o.hot != nil {
		o.hot.Stop()
	}
	if o.status != nil {
		o.status.Stop()
	}
}

func (o *Orchestrator) transition(to string) {
	if err := o.state.Transition(to); err != nil {
		o.logger.Debug("Ignoring state transition", "to", to, "error", err)
	}
}

func (o *Orchestrator) url() string {
	scheme := "http"
	if o.cfg.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + browserAddr(o.cfg.Host, o.Addr())
}

func (o *Orchestrator) hotURL() string {
	if o.hot == nil {
		return ""
	}
	scheme := "ws"
	if o.cfg.TLS != nil {
		scheme = "wss"
	}
	return scheme + "://" + browserAddr(o.cfg.Hot.Host, o.hot.Addr())
}

// browserAddr combines the configured host with the bound port. Wildcard
// hosts are replaced by localhost.
func browserAddr(host, bound string) string {
	_, port, err := net.SplitHostPort(bound)
	if err != nil {
		return bound
	}
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}

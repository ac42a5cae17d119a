// Package compiler drives a build.Compiler: it runs compile cycles on file
// changes and on request, and publishes every cycle as build.Events.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/atlanticdynamic/lynxserve/internal/build"
	"github.com/atlanticdynamic/lynxserve/internal/server/finitestate"
	"github.com/gofrs/uuid/v5"
	"github.com/robbyt/go-supervisor/supervisor"
)

var (
	_ supervisor.Runnable   = (*Runner)(nil)
	_ supervisor.Reloadable = (*Runner)(nil)
	_ supervisor.Stateable  = (*Runner)(nil)
	_ supervisor.Readiness  = (*Runner)(nil)
)

// ErrNoResult is returned when a compiler reports neither a result nor an error.
var ErrNoResult = errors.New("compiler returned no result")

const defaultEventBuffer = 16

type Runner struct {
	compiler    build.Compiler
	debounce    time.Duration
	eventBuffer int

	logger *slog.Logger
	fsm    finitestate.Machine

	events  chan build.Event
	trigger chan struct{}

	parentCtx context.Context
	stopOnce  sync.Once
	stopCh    chan struct{}
}

// NewRunner creates a Runner for c. Events must be consumed for compiles to progress.
func NewRunner(c build.Compiler, opts ...Option) (*Runner, error) {
	if c == nil {
		return nil, errors.New("compiler is required")
	}
	r := &Runner{
		compiler:    c,
		debounce:    50 * time.Millisecond,
		eventBuffer: defaultEventBuffer,
		logger:      slog.Default().WithGroup("compiler.Runner"),
		parentCtx:   context.Background(),
		trigger:     make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.events = make(chan build.Event, r.eventBuffer)

	fsm, err := finitestate.New(r.logger.WithGroup("fsm").Handler())
	if err != nil {
		return nil, fmt.Errorf("failed to create state machine: %w", err)
	}
	r.fsm = fsm
	return r, nil
}

// String implements the supervisor.Runnable interface
func (r *Runner) String() string {
	return "compiler.Runner"
}

// Events is the ordered stream of compile events. It is closed when Run returns.
func (r *Runner) Events() <-chan build.Event {
	return r.events
}

// Run implements the supervisor.Runnable interface. A fatal compiler error
// is reported as an event; Run then waits to be stopped.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.events)

	select {
	case <-r.stopCh:
		return nil
	default:
	}

	if err := r.fsm.Transition(finitestate.StatusBooting); err != nil {
		return fmt.Errorf("failed to transition to booting state: %w", err)
	}

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go func() {
		select {
		case <-r.stopCh:
		case <-r.parentCtx.Done():
		case <-runCtx.Done():
		}
		runCancel()
	}()

	defer func() {
		if err := r.compiler.Close(); err != nil {
			r.logger.Warn("Failed to close compiler", "error", err)
		}
	}()

	if err := r.boot(runCtx); err != nil {
		r.fail(runCtx, build.NewCycleID(), err)
	} else {
		r.loop(runCtx)
	}

	<-runCtx.Done()
	r.logger.Debug("Runner shutting down")

	if r.fsm.GetState() != finitestate.StatusStopping {
		if err := r.fsm.Transition(finitestate.StatusStopping); err != nil {
			r.logger.Error("Failed to transition to stopping state", "error", err)
		}
	}
	if err := r.fsm.Transition(finitestate.StatusStopped); err != nil {
		return fmt.Errorf("failed to transition to stopped state: %w", err)
	}
	return nil
}

func (r *Runner) boot(ctx context.Context) error {
	return r.guard(func() error { return r.compiler.Setup(ctx) })
}

// loop runs compile cycles until ctx ends or a cycle fails fatally.
func (r *Runner) loop(ctx context.Context) {
	w, err := newWatcher(r.compiler.WatchPaths(), r.logger)
	if err != nil {
		r.fail(ctx, build.NewCycleID(), err)
		return
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.run(ctx, r.debounce, r.Rebuild)
	}()
	defer func() {
		w.close()
		wg.Wait()
	}()

	if err := r.fsm.Transition(finitestate.StatusRunning); err != nil {
		r.logger.Error("Failed to transition to running state", "error", err)
		return
	}

	r.Rebuild()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.trigger:
			if err := r.cycle(ctx); err != nil {
				return
			}
		}
	}
}

// cycle runs one compile and emits its events. It returns an error when no
// further cycles may run.
func (r *Runner) cycle(ctx context.Context) error {
	id := build.NewCycleID()
	if !r.emit(ctx, build.Building(id)) {
		return ctx.Err()
	}

	start := time.Now()
	var res *build.Result
	err := r.guard(func() error {
		var compileErr error
		res, compileErr = r.compiler.Compile(ctx)
		return compileErr
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil && res == nil {
		err = ErrNoResult
	}
	if err != nil {
		r.fail(ctx, id, err)
		return err
	}

	r.emit(ctx, build.Completed(id, res, time.Since(start)))
	return nil
}

func (r *Runner) fail(ctx context.Context, id uuid.UUID, cause error) {
	r.logger.Debug("Compiler failed", "error", cause)
	if err := r.fsm.Transition(finitestate.StatusError); err != nil {
		r.logger.Error("Failed to transition to error state", "error", err)
	}
	r.emit(ctx, build.Fatal(id, cause))
}

func (r *Runner) emit(ctx context.Context, ev build.Event) bool {
	select {
	case r.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// guard converts a panic inside the compiler into an error.
func (r *Runner) guard(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("compiler panic: %v", p)
		}
	}()
	return fn()
}

// Rebuild requests a compile cycle. Requests made while one is pending are
// merged into it.
func (r *Runner) Rebuild() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Reload implements the supervisor.Reloadable interface by requesting a
// rebuild. It does not wait for the cycle to run.
func (r *Runner) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !r.IsRunning() {
		return fmt.Errorf("cannot rebuild in state %s", r.GetState())
	}
	r.logger.Debug("Rebuild requested")
	r.Rebuild()
	return nil
}

// Stop implements the supervisor.Runnable interface
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		r.logger.Debug("Stopping Runner")
		// a runner that never ran has nothing left to wind down
		if r.fsm.TransitionIfCurrentState(finitestate.StatusNew, finitestate.StatusStopping) == nil {
			r.fsm.TransitionBool(finitestate.StatusStopped)
		} else {
			r.fsm.TransitionBool(finitestate.StatusStopping)
		}
		close(r.stopCh)
	})
}

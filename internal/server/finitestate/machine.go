// Package finitestate wraps go-fsm with the two machines the server uses:
// the lifecycle of each supervised runnable, and the server-wide state
// driven by the orchestrator.
package finitestate

import (
	"context"
	"log/slog"
	"time"

	"github.com/robbyt/go-fsm"
)

const (
	StatusNew       = fsm.StatusNew
	StatusBooting   = fsm.StatusBooting
	StatusRunning   = fsm.StatusRunning
	StatusReloading = fsm.StatusReloading
	StatusStopping  = fsm.StatusStopping
	StatusStopped   = fsm.StatusStopped
	StatusError     = fsm.StatusError
	StatusUnknown   = fsm.StatusUnknown
)

// RunnableTransitions is the lifecycle of a supervised runnable. Error may
// be left through Stopping so a failed component can still be shut down.
var RunnableTransitions = map[string][]string{
	StatusNew:       {StatusBooting, StatusStopping, StatusError},
	StatusBooting:   {StatusRunning, StatusStopping, StatusError},
	StatusRunning:   {StatusReloading, StatusStopping, StatusError},
	StatusReloading: {StatusRunning, StatusStopping, StatusError},
	StatusStopping:  {StatusStopped, StatusError},
	StatusStopped:   {StatusNew, StatusError},
	StatusError:     {StatusStopping, StatusStopped, StatusNew},
}

// SubscriberOption is a functional option for configuring state channel behavior
type SubscriberOption = fsm.SubscriberOption

// WithSyncTimeout sets a timeout for synchronous broadcast operations
var WithSyncTimeout = fsm.WithSyncTimeout

// Machine is the subset of go-fsm the server relies on.
type Machine interface {
	// Transition moves to state, failing if the move is not allowed from the current state.
	Transition(state string) error

	// TransitionBool is Transition reporting success as a bool.
	TransitionBool(state string) bool

	// TransitionIfCurrentState moves to newState only when the machine is in currentState.
	TransitionIfCurrentState(currentState, newState string) error

	// SetState forces the state, bypassing the transition table.
	SetState(state string) error

	// GetState returns the current state.
	GetState() string

	// GetStateChan emits the state on every change until ctx is canceled.
	GetStateChan(ctx context.Context) <-chan string

	// GetStateChanWithOptions is GetStateChan with custom subscriber options.
	GetStateChanWithOptions(ctx context.Context, opts ...SubscriberOption) <-chan string
}

// syncTimeout bounds how long a transition waits on a subscriber that
// stopped reading. The wait happens under the machine's subscriber lock.
const syncTimeout = 250 * time.Millisecond

// syncMachine delivers state updates synchronously so subscribers observe
// every state, including the final ones during shutdown.
type syncMachine struct {
	*fsm.Machine
}

func (m *syncMachine) GetStateChan(ctx context.Context) <-chan string {
	return m.GetStateChanWithOptions(ctx, WithSyncTimeout(syncTimeout))
}

// New creates a runnable lifecycle machine starting in StatusNew.
func New(handler slog.Handler) (Machine, error) {
	return newMachine(handler, StatusNew, RunnableTransitions)
}

func newMachine(handler slog.Handler, initial string, transitions map[string][]string) (Machine, error) {
	machine, err := fsm.New(handler, initial, transitions)
	if err != nil {
		return nil, err
	}
	return &syncMachine{Machine: machine}, nil
}

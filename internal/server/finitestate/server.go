package finitestate

import "log/slog"

// Server-wide states, owned by the orchestrator.
const (
	ServerStarting           = "Starting"
	ServerAwaitingFirstBuild = "AwaitingFirstBuild"
	ServerReady              = "Ready"
	ServerShuttingDown       = "ShuttingDown"
	ServerTerminated         = "Terminated"
)

// ServerTransitions only moves forward: once Ready the server never goes back
// to awaiting a build, and ShuttingDown always ends in Terminated.
var ServerTransitions = map[string][]string{
	ServerStarting:           {ServerAwaitingFirstBuild, ServerShuttingDown, ServerTerminated},
	ServerAwaitingFirstBuild: {ServerReady, ServerShuttingDown},
	ServerReady:              {ServerShuttingDown},
	ServerShuttingDown:       {ServerTerminated},
	ServerTerminated:         {},
}

// NewServer creates the server state machine in ServerStarting.
func NewServer(handler slog.Handler) (Machine, error) {
	return newMachine(handler, ServerStarting, ServerTransitions)
}

package hotchannel

import (
	"context"

	"github.com/atlanticdynamic/lynxserve/internal/server/finitestate"
)

func (r *Runner) GetState() string {
	return r.fsm.GetState()
}

func (r *Runner) GetStateChan(ctx context.Context) <-chan string {
	return r.fsm.GetStateChan(ctx)
}

func (r *Runner) IsRunning() bool {
	return r.fsm.GetState() == finitestate.StatusRunning
}

func (r *Runner) IsReady() bool {
	switch r.fsm.GetState() {
	case finitestate.StatusNew, finitestate.StatusBooting:
		return false
	default:
		return true
	}
}

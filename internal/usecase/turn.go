package usecase

import (
	"context"
	"sync"
	"time"

	"voxchat/internal/domain"
	"voxchat/internal/ports"
)

// pendingTurn is the single in-flight operation a controller may hold.
// Fields other than ctx and cancel are guarded by the controller mutex.
type pendingTurn struct {
	ctx    context.Context
	cancel context.CancelFunc

	language  domain.Language
	state     domain.TurnState
	recording ports.Recording
	committed bool

	// running counts blocking intents currently executing this turn.
	running sync.WaitGroup
}

func newPendingTurn(parent context.Context, state domain.TurnState, language domain.Language) *pendingTurn {
	ctx, cancel := context.WithCancel(parent)
	return &pendingTurn{
		ctx:      ctx,
		cancel:   cancel,
		language: language,
		state:    state,
	}
}

// bindCaller cancels the turn when the intent's own context ends.
func (t *pendingTurn) bindCaller(ctx context.Context) (stop func() bool) {
	return context.AfterFunc(ctx, t.cancel)
}

func (t *pendingTurn) cancelled() bool {
	return t.ctx.Err() != nil
}

// route is the generation target chosen on entry to Generating.
type route struct {
	mode      domain.Mode
	documents domain.DocumentSet
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package flight

import (
	"context"
	"sync"
)

// Group coalesces refresh triggers per logical key: at most one run is
// in flight per key, and triggers arriving while a run is active set a
// trailing "run again" flag instead of starting a second run. The first
// trigger always runs (leading edge).
type Group struct {
	mu      sync.Mutex
	flights map[string]*flightState
	closed  bool
}

type flightState struct {
	inFlight bool
	again    bool
	cancel   context.CancelFunc
}

// NewGroup creates an empty single-flight group
func NewGroup() *Group {
	return &Group{flights: make(map[string]*flightState)}
}

// Trigger requests a run for key. If no run is in flight the function is
// started immediately on its own goroutine and Trigger reports true; if
// a run is already active the trailing flag is set instead and Trigger
// reports false. When the active run finishes with the trailing flag
// set, the function runs once more (triggers in between coalesce).
func (g *Group) Trigger(key string, run func(context.Context)) bool {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return false
	}

	state, ok := g.flights[key]
	if !ok {
		state = &flightState{}
		g.flights[key] = state
	}

	if state.inFlight {
		state.again = true
		g.mu.Unlock()
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	state.inFlight = true
	state.cancel = cancel
	g.mu.Unlock()

	go g.loop(key, state, ctx, run)
	return true
}

func (g *Group) loop(key string, state *flightState, ctx context.Context, run func(context.Context)) {
	for {
		run(ctx)

		g.mu.Lock()
		if !state.again || ctx.Err() != nil {
			state.inFlight = false
			state.again = false
			state.cancel = nil
			g.mu.Unlock()
			return
		}
		state.again = false
		g.mu.Unlock()
	}
}

// Cancel stops the in-flight run for key, if any, and clears its
// trailing flag
func (g *Group) Cancel(key string) {
	g.mu.Lock()
	state, ok := g.flights[key]
	if ok {
		state.again = false
		if state.cancel != nil {
			state.cancel()
		}
	}
	g.mu.Unlock()
}

// Close cancels every in-flight run and rejects further triggers.
// Called on view teardown.
func (g *Group) Close() {
	g.mu.Lock()
	g.closed = true
	for _, state := range g.flights {
		state.again = false
		if state.cancel != nil {
			state.cancel()
		}
	}
	g.mu.Unlock()
}

// InFlight reports whether a run is currently active for key
func (g *Group) InFlight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, ok := g.flights[key]
	return ok && state.inFlight
}

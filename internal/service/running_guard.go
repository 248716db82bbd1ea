package service

import (
	"context"
	"sync"
)

// ─────────────────────────────────────────────────────────────
// runGuard admits one pipeline pass at a time
// ─────────────────────────────────────────────────────────────

// runGuard lets at most one pass run and, once closed, admits none. idle is
// replaced on every admitted pass and closed when that pass leaves, so
// waiters never race a new pass the way a reused WaitGroup would.
type runGuard struct {
	mu     sync.Mutex
	active bool
	closed bool
	idle   chan struct{}
}

// enter admits a pass. It fails with ErrRunInProgress while another pass is
// active and with ErrServiceStopped after close.
func (g *runGuard) enter() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrServiceStopped
	}
	if g.active {
		return ErrRunInProgress
	}
	g.active = true
	g.idle = make(chan struct{})
	return nil
}

// leave ends the admitted pass. Must follow a successful enter.
func (g *runGuard) leave() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = false
	close(g.idle)
}

func (g *runGuard) busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// close refuses every later enter. The active pass, if any, runs on.
func (g *runGuard) close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
}

// wait blocks until no pass is active or ctx is done.
func (g *runGuard) wait(ctx context.Context) {
	g.mu.Lock()
	if !g.active {
		g.mu.Unlock()
		return
	}
	idle := g.idle
	g.mu.Unlock()

	select {
	case <-idle:
	case <-ctx.Done():
	}
}

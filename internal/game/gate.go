/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"context"
	"maps"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Resolution says why a gate opened.
type Resolution string

const (
	ResolvedAllSubmitted Resolution = "all_submitted"
	ResolvedDeadline     Resolution = "deadline"
)

// Gate collects one round's prompt submissions. It resolves exactly once,
// either when every current member has submitted or when its deadline
// fires, whichever comes first.
type Gate struct {
	done     chan struct{}
	resolved atomic.Bool
	cause    Resolution        // written once before done is closed
	prompts  map[string]string // likewise

	mu    sync.Mutex
	timer Timer
}

func newGate() *Gate {
	return &Gate{done: make(chan struct{})}
}

// OpenGate installs a gate as the room's pending gate and arms its
// deadline. A gate whose room already has every prompt resolves at once.
func OpenGate(clk Clock, room *Room, deadline time.Duration) *Gate {
	g := newGate()

	room.mu.Lock()
	defer room.mu.Unlock()

	if prev := room.pendingGate; prev != nil {
		prev.resolve(ResolvedDeadline, maps.Clone(room.round.Prompts))
	}
	room.pendingGate = g

	room.checkGateLocked()
	if g.Resolved() {
		return g
	}

	t := clk.AfterFunc(deadline, func() { room.expireGate(g) })

	g.mu.Lock()
	g.timer = t
	g.mu.Unlock()

	return g
}

// resolve reports whether this call was the one that resolved the gate.
// prompts is the round's submissions at the moment the gate closed.
func (g *Gate) resolve(cause Resolution, prompts map[string]string) bool {
	if !g.resolved.CompareAndSwap(false, true) {
		return false
	}

	g.cause = cause
	g.prompts = prompts
	close(g.done)

	g.mu.Lock()
	t := g.timer
	g.mu.Unlock()

	if t != nil {
		t.Stop()
	}

	return true
}

func (g *Gate) Done() <-chan struct{} { return g.done }

func (g *Gate) Resolved() bool { return g.resolved.Load() }

// Cause returns the resolution, or "" while the gate is pending.
func (g *Gate) Cause() Resolution {
	select {
	case <-g.done:
		return g.cause
	default:
		return ""
	}
}

// Prompts returns the submissions captured when the gate resolved, or nil
// while it is pending. Later submissions never appear here.
func (g *Gate) Prompts() map[string]string {
	select {
	case <-g.done:
		return maps.Clone(g.prompts)
	default:
		return nil
	}
}

// Await blocks until the gate resolves or ctx ends.
func (g *Gate) Await(ctx context.Context) (Resolution, error) {
	select {
	case <-g.done:
		return g.cause, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Submit records a member's prompt for the current round. Resubmission
// overwrites. Prompts sent while the original is on show count toward the
// gate once it opens; prompts sent after it closes are kept but never
// scored. Submissions before the first round, after the game, or from
// non-members are dropped. The result is informational only: clients are
// told ok either way.
func (r *Room) Submit(playerID, text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case PhaseShowingImage, PhaseWritingPrompt, PhaseGeneratingImages, PhaseVoting:
	default:
		return false
	}

	if _, ok := r.players[playerID]; !ok {
		return false
	}

	r.round.Prompts[playerID] = strings.TrimSpace(text)
	r.checkGateLocked()

	return true
}

// PendingGate returns the room's unresolved gate, if any.
func (r *Room) PendingGate() *Gate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pendingGate
}

// checkGateLocked resolves the pending gate once every member has a
// non-empty prompt. An empty room counts as complete.
func (r *Room) checkGateLocked() {
	g := r.pendingGate
	if g == nil {
		return
	}

	for id := range r.players {
		if r.round.Prompts[id] == "" {
			return
		}
	}

	r.pendingGate = nil
	g.resolve(ResolvedAllSubmitted, maps.Clone(r.round.Prompts))
}

func (r *Room) expireGate(g *Gate) {
	r.mu.Lock()
	if r.pendingGate == g {
		r.pendingGate = nil
	}
	prompts := maps.Clone(r.round.Prompts)
	r.mu.Unlock()

	g.resolve(ResolvedDeadline, prompts)
}

// closeGate clears g if it is still the pending gate.
func (r *Room) closeGate(g *Gate) {
	r.mu.Lock()
	if r.pendingGate == g {
		r.pendingGate = nil
	}
	r.mu.Unlock()
}

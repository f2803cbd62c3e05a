package lock

import (
	"sync"
	"time"
)

// DefaultCooldown is the battery refresh window.
const DefaultCooldown = 60 * time.Second

// CooldownGate allows at most one operation per window. The zero value is not usable; use NewCooldownGate.
type CooldownGate struct {
	mu     sync.Mutex
	window time.Duration
	timer  *time.Timer
}

// NewCooldownGate creates a gate with the given window. A non-positive window falls back to DefaultCooldown.
func NewCooldownGate(window time.Duration) *CooldownGate {
	if window <= 0 {
		window = DefaultCooldown
	}
	return &CooldownGate{window: window}
}

// TryAcquire arms the gate or fails fast with ErrRefreshInProgress when it is already armed.
func (g *CooldownGate) TryAcquire() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.timer != nil {
		return ErrRefreshInProgress
	}
	var t *time.Timer
	t = time.AfterFunc(g.window, func() {
		g.mu.Lock()
		// A Clear followed by a new TryAcquire replaces the timer; only reset our own.
		if g.timer == t {
			g.timer = nil
		}
		g.mu.Unlock()
	})
	g.timer = t
	return nil
}

// Pending reports whether a cooldown is running.
func (g *CooldownGate) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.timer != nil
}

// Clear cancels a pending cooldown. Calling it without one pending is a no-op.
func (g *CooldownGate) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.timer == nil {
		return
	}
	g.timer.Stop()
	g.timer = nil
}

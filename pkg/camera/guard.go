package camera

import "sync"

// ActiveGuard serializes access to the process-wide "active capture session"
// slot. Production code shares DefaultGuard; tests construct their own guard
// so the exclusivity rule can be exercised without process-level state.
type ActiveGuard struct {
	mu     sync.Mutex
	active *Session
}

// DefaultGuard is the guard used when session options do not supply one.
var DefaultGuard = NewGuard()

// NewGuard constructs an empty guard.
func NewGuard() *ActiveGuard {
	return &ActiveGuard{}
}

// Acquire claims the active slot for s. It fails with ErrMultipleInstances
// when a different session holds the slot and succeeds idempotently when s
// already holds it.
func (g *ActiveGuard) Acquire(s *Session) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active != nil && g.active != s {
		return ErrMultipleInstances
	}
	g.active = s
	return nil
}

// Release clears the slot only if it still points at s.
func (g *ActiveGuard) Release(s *Session) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active == s {
		g.active = nil
	}
}

// Holder reports the session currently holding the slot, if any.
func (g *ActiveGuard) Holder() *Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Package session models a client connection's identity and lock
// bookkeeping. Sessions reference schema and policy state but never own
// it; they are created on connect and discarded on disconnect.
package session

import (
	"sync"
	"time"
)

// Session carries the caller identity for dispatched calls. One logical
// call at a time per session is assumed externally, but the lock set is
// still guarded because auditing and admin surfaces may inspect it
// concurrently.
type Session struct {
	// ID uniquely identifies the connection.
	ID string

	// Principal is the authenticated caller identity.
	Principal string

	// PrincipalClass is the access-control category used for policy lookup.
	PrincipalClass string

	// CreatedAt is when the session was established.
	CreatedAt time.Time

	mu    sync.Mutex
	locks map[string]bool
}

// New creates a session for an authenticated principal.
func New(id, principal, principalClass string, at time.Time) *Session {
	return &Session{
		ID:             id,
		Principal:      principal,
		PrincipalClass: principalClass,
		CreatedAt:      at,
		locks:          make(map[string]bool),
	}
}

// TrackLock records that the session holds a write lock on a module.
func (s *Session) TrackLock(module string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks[module] = true
}

// UntrackLock records a released lock.
func (s *Session) UntrackLock(module string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, module)
}

// HeldLocks returns the modules the session currently holds locks on.
func (s *Session) HeldLocks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.locks))
	for m := range s.locks {
		out = append(out, m)
	}
	return out
}

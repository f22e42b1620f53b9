// Package session holds the process-wide voice session state and the
// presentation helpers for feature toggle controls.
package session

import (
	"sync"

	"github.com/google/uuid"
)

// Session is the shared state every subsystem reads. AddonActive gates all
// voice features; ClientID is attached to poll requests so responses can be
// correlated to this process.
type Session struct {
	mu          sync.RWMutex
	addonActive bool
	clientID    string
}

// New creates a session with a fresh client id. The addon starts inactive
// until the coordinator observes availability.
func New() *Session {
	return &Session{clientID: uuid.NewString()}
}

// ClientID returns the opaque identity attached to poll requests.
func (s *Session) ClientID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientID
}

// AddonActive reports whether the upstream capability provider is reachable.
func (s *Session) AddonActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addonActive
}

// SetAddonActive records addon availability and reports whether the value
// changed. Only the coordinator calls this.
func (s *Session) SetAddonActive(active bool) (changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addonActive == active {
		return false
	}
	s.addonActive = active
	return true
}

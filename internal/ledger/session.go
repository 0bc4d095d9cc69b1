package ledger

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

// Session serialises actions for one user.
type Session struct {
	ID string

	mu       sync.Mutex
	state    State
	lastSeen time.Time
}

func NewSession(id string, initial State) *Session {
	return &Session{ID: id, state: initial, lastSeen: time.Now()}
}

// Dispatch applies a and returns the resulting state.
func (s *Session) Dispatch(a Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Reduce(s.state, a)
	s.lastSeen = time.Now()
	return s.state
}

// Snapshot returns the current state. Reads count as activity for expiry.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
	return s.state
}

// Registry owns every live session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	initial  func() State
}

// NewRegistry creates a registry; initial builds the state of new sessions
// and defaults to InitialState.
func NewRegistry(initial func() State) *Registry {
	if initial == nil {
		initial = InitialState
	}
	return &Registry{sessions: make(map[string]*Session), initial: initial}
}

// Create starts a session under a fresh uuid.
func (r *Registry) Create() *Session {
	return r.Ensure(uuid.NewString())
}

// Get returns an existing session.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Ensure returns the session for id, creating it when missing.
func (r *Registry) Ensure(id string) *Session {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s
	}
	s = NewSession(id, r.initial())
	r.sessions[id] = s
	return s
}

// Initial builds the state a new session starts from.
func (r *Registry) Initial() State {
	return r.initial()
}

// Adopt registers a session for id starting from state. An existing session
// wins and state is discarded.
func (r *Registry) Adopt(id string, state State) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s
	}
	s := NewSession(id, state)
	r.sessions[id] = s
	return s
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Expire drops sessions idle for longer than ttl and returns how many were
// removed.
func (r *Registry) Expire(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, s := range r.sessions {
		s.mu.Lock()
		idle := s.lastSeen.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

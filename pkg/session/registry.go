package session

import (
	"fmt"
	"sort"
	"sync"

	"github.com/crxforge/crxforge/pkg/logging"
)

// Registry tracks live sessions by id and hydrates them from the store at
// startup. It is an explicit object passed to whoever needs it; there is no
// process-wide session state.
type Registry struct {
	store  *Store
	logger *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry loads every persisted session from the store.
func NewRegistry(store *Store) (*Registry, error) {
	loaded, err := store.LoadAll()
	if err != nil {
		return nil, err
	}
	sessions := make(map[string]*Session, len(loaded))
	for _, s := range loaded {
		sessions[s.ID()] = s
	}
	r := &Registry{
		store:    store,
		logger:   logging.ForComponent("session-registry"),
		sessions: sessions,
	}
	if len(loaded) > 0 {
		r.logger.Infof("restored %d persisted sessions", len(loaded))
	}
	return r, nil
}

// Create makes a new empty session, persists it, and tracks it.
func (r *Registry) Create() (*Session, error) {
	s := New()
	if err := r.store.Save(s); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
	r.logger.Infof("created session %s", s.ID())
	return s, nil
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// List returns all tracked sessions, oldest first.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt().Equal(out[j].CreatedAt()) {
			return out[i].ID() < out[j].ID()
		}
		return out[i].CreatedAt().Before(out[j].CreatedAt())
	})
	return out
}

// Save persists the session's current state. Call after every transcript or
// extension mutation that must survive a restart.
func (r *Registry) Save(s *Session) error {
	return r.store.Save(s)
}

// Discard forgets the session and deletes its persisted record.
func (r *Registry) Discard(id string) error {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown session %s", id)
	}
	return r.store.Remove(id)
}

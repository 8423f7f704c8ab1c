// Package session holds per-conversation state: the transcript, the owned
// extension, and the locks that serialize generation turns. Sessions are
// tracked by an explicit Registry and persisted as one JSON file each.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crxforge/crxforge/pkg/types"
)

// Session is one user conversation plus its owned extension state. The
// transcript is append-only; its order is the only timeline downstream
// consumers see.
type Session struct {
	id        string
	createdAt time.Time

	mu         sync.RWMutex
	transcript []*types.Message
	extension  *types.Extension

	// genMu serializes generation turns. A second message that would
	// trigger generation while one is in flight queues behind it rather
	// than being dropped.
	genMu sync.Mutex
}

// New creates an empty session with a fresh id.
func New() *Session {
	return &Session{
		id:        uuid.NewString(),
		createdAt: time.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Append adds a message to the transcript. The session id is stamped onto
// the message.
func (s *Session) Append(msg *types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.SessionID = s.id
	s.transcript = append(s.transcript, msg)
}

// Transcript returns a copy of the transcript in append order.
func (s *Session) Transcript() []*types.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Extension returns the session's extension, nil before the first
// successful generation.
func (s *Session) Extension() *types.Extension {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.extension
}

// SetExtension replaces the session's extension state.
func (s *Session) SetExtension(ext *types.Extension) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extension = ext
}

// HasExtension reports whether the session has any generated files.
func (s *Session) HasExtension() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.extension.IsEmpty()
}

// LockGeneration acquires the session's generation slot, blocking while
// another generation turn is in flight.
func (s *Session) LockGeneration() { s.genMu.Lock() }

// UnlockGeneration releases the generation slot.
func (s *Session) UnlockGeneration() { s.genMu.Unlock() }

// record is the on-disk JSON shape of a session.
type record struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Messages  []*types.Message `json:"messages"`
	Extension *types.Extension `json:"extension,omitempty"`
}

func (s *Session) toRecord() *record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]*types.Message, len(s.transcript))
	copy(msgs, s.transcript)
	return &record{
		ID:        s.id,
		CreatedAt: s.createdAt,
		Messages:  msgs,
		Extension: s.extension,
	}
}

func fromRecord(r *record) *Session {
	return &Session{
		id:         r.ID,
		createdAt:  r.CreatedAt,
		transcript: r.Messages,
		extension:  r.Extension,
	}
}

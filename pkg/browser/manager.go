package browser

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/crxforge/crxforge/pkg/config"
	"github.com/crxforge/crxforge/pkg/logging"
)

// Manager tracks at most one active verification session per chat session.
// Starting a new one for a session that already has an active session closes
// the prior one synchronously before launching, so two sessions are never
// ready against the same chat session at once.
type Manager struct {
	backend  Backend
	headless bool
	testURL  string
	retry    RetryPolicy
	logger   *logging.Logger

	mu     sync.Mutex
	active map[string]*VerificationSession
	// starts serializes Start calls per chat session so overlapping starts
	// for one session cannot leave an untracked live context, without
	// blocking other sessions for the duration of a launch.
	starts map[string]*sync.Mutex
}

// NewManager creates a manager over the given automation backend.
func NewManager(backend Backend, cfg config.BrowserConfig) *Manager {
	return &Manager{
		backend:  backend,
		headless: cfg.Headless,
		testURL:  cfg.TestURL,
		retry: RetryPolicy{
			Attempts:     cfg.Resolve.Attempts,
			InitialDelay: time.Duration(cfg.Resolve.InitialDelayMs) * time.Millisecond,
			Multiplier:   cfg.Resolve.Multiplier,
		},
		logger: logging.ForComponent("browser-manager"),
		active: make(map[string]*VerificationSession),
		starts: make(map[string]*sync.Mutex),
	}
}

// startLock returns the per-session start mutex, creating it on first use.
func (m *Manager) startLock(sessionID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.starts[sessionID]
	if !ok {
		l = &sync.Mutex{}
		m.starts[sessionID] = l
	}
	return l
}

// Start launches a verification session for the chat session against the
// extension snapshot in extensionDir. Any prior session is closed first. The
// new session is tracked even when launch fails, so its failed state stays
// inspectable until the next start. The launch itself runs outside the
// tracking lock, so Get and Close for other sessions never wait on it.
func (m *Manager) Start(ctx context.Context, sessionID, extensionDir string) (*VerificationSession, error) {
	lock := m.startLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	prior, hadPrior := m.active[sessionID]
	m.mu.Unlock()
	if hadPrior {
		m.logger.Infof("closing prior verification session %s for session %s", prior.ID(), sessionID)
		if err := prior.Close(); err != nil {
			return nil, fmt.Errorf("closing prior verification session: %w", err)
		}
	}

	userDataDir, err := os.MkdirTemp("", "crxforge-profile-*")
	if err != nil {
		return nil, fmt.Errorf("creating browser profile dir: %w", err)
	}

	vs := newVerificationSession(sessionID, extensionDir, userDataDir, m.testURL, m.backend, m.headless, m.retry)
	m.mu.Lock()
	m.active[sessionID] = vs
	m.mu.Unlock()

	if err := vs.Start(ctx); err != nil {
		return vs, err
	}
	return vs, nil
}

// Get returns the chat session's current verification session, if any.
func (m *Manager) Get(sessionID string) (*VerificationSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vs, ok := m.active[sessionID]
	return vs, ok
}

// Close closes and forgets the chat session's verification session. Closing
// a session that has none is a no-op.
func (m *Manager) Close(sessionID string) error {
	m.mu.Lock()
	vs, ok := m.active[sessionID]
	delete(m.active, sessionID)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return vs.Close()
}

// CloseAll releases every active session, used at shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make(map[string]*VerificationSession, len(m.active))
	for id, vs := range m.active {
		sessions[id] = vs
		delete(m.active, id)
	}
	m.mu.Unlock()

	for id, vs := range sessions {
		if err := vs.Close(); err != nil {
			m.logger.Warnf("closing verification session for %s: %v", id, err)
		}
	}
}

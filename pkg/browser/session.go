package browser

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crxforge/crxforge/pkg/logging"
)

// Status is the verification session lifecycle state.
type Status string

const (
	StatusUnstarted Status = "unstarted"
	StatusLoading   Status = "loading"
	StatusReady     Status = "ready"
	StatusClosed    Status = "closed"
	StatusFailed    Status = "failed"
)

// ProbeKind names one scripted interaction against the loaded extension.
type ProbeKind string

const (
	// ProbePopup opens the extension's action popup and summarizes its
	// content into the event log.
	ProbePopup ProbeKind = "popup"

	// ProbeClick dispatches a synthetic click on the tracked page.
	ProbeClick ProbeKind = "click"

	// ProbeKeyboard dispatches a synthetic key press on the tracked page.
	ProbeKeyboard ProbeKind = "keyboard"

	// ProbeNavigate navigates the tracked tab to the configured test URL.
	ProbeNavigate ProbeKind = "navigate"

	// ProbeTest runs the standard exercise sequence: navigate, then popup.
	ProbeTest ProbeKind = "test"
)

// VerificationSession is one live automation context bound to a single
// extension snapshot. State moves unstarted → loading → ready → closed, with
// failed reachable from loading. All operations on the underlying context
// are serialized by the session's mutex.
type VerificationSession struct {
	id           string
	sessionID    string
	extensionDir string
	testURL      string

	backend Backend
	opts    LaunchOptions
	retry   RetryPolicy
	logger  *logging.Logger

	mu          sync.Mutex
	status      Status
	browserCtx  Context
	page        Page
	extensionID string
	log         *EventLog
}

// newVerificationSession builds a session in the unstarted state.
func newVerificationSession(sessionID, extensionDir, userDataDir, testURL string, backend Backend, headless bool, retry RetryPolicy) *VerificationSession {
	return &VerificationSession{
		id:           uuid.NewString(),
		sessionID:    sessionID,
		extensionDir: extensionDir,
		testURL:      testURL,
		backend:      backend,
		retry:        retry,
		logger:       logging.ForComponent("browser"),
		status:       StatusUnstarted,
		log:          NewEventLog(),
		opts: LaunchOptions{
			UserDataDir:  userDataDir,
			ExtensionDir: extensionDir,
			Headless:     headless,
		},
	}
}

// ID returns the verification session's identifier.
func (s *VerificationSession) ID() string { return s.id }

// Status returns the current lifecycle state.
func (s *VerificationSession) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// ExtensionID returns the loaded extension's runtime identifier, empty until
// the session reaches ready.
func (s *VerificationSession) ExtensionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extensionID
}

// Start launches the context, loads the extension snapshot exclusively, and
// resolves its runtime id by polling service-worker registrations under the
// retry policy. On any failure the context is released and the session ends
// up failed.
func (s *VerificationSession) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusUnstarted {
		return fmt.Errorf("cannot start verification session in state %s", s.status)
	}
	s.status = StatusLoading
	s.logger.Infof("starting verification session %s for session %s", s.id, s.sessionID)

	browserCtx, err := s.backend.Launch(ctx, s.opts)
	if err != nil {
		s.status = StatusFailed
		return fmt.Errorf("browser launch failed: %w", err)
	}

	page, err := browserCtx.ActivePage()
	if err != nil {
		browserCtx.Close()
		s.status = StatusFailed
		return fmt.Errorf("browser launch failed: %w", err)
	}
	page.AttachListeners(s.log.Append)

	extensionID, err := s.resolveExtensionID(ctx, browserCtx)
	if err != nil {
		browserCtx.Close()
		s.status = StatusFailed
		return err
	}

	s.browserCtx = browserCtx
	s.page = page
	s.extensionID = extensionID
	s.status = StatusReady
	s.log.Append(CategoryLifecycle, fmt.Sprintf("extension loaded with id %s", extensionID))
	s.logger.Infof("verification session %s ready, extension id %s", s.id, extensionID)
	return nil
}

// resolveExtensionID polls for the extension's service worker registration.
// The worker URL has the form chrome-extension://<id>/... and the id is its
// host segment.
func (s *VerificationSession) resolveExtensionID(ctx context.Context, browserCtx Context) (string, error) {
	for attempt := 0; attempt < s.retry.Attempts; attempt++ {
		for _, url := range browserCtx.ServiceWorkerURLs() {
			if id := extensionIDFromWorkerURL(url); id != "" {
				return id, nil
			}
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("resolving extension id: %w", ctx.Err())
		case <-time.After(s.retry.Backoff(attempt)):
		}
	}
	return "", fmt.Errorf("extension id not resolved after %d attempts", s.retry.Attempts)
}

func extensionIDFromWorkerURL(url string) string {
	if !strings.HasPrefix(url, "chrome-extension://") {
		return ""
	}
	rest := strings.TrimPrefix(url, "chrome-extension://")
	if idx := strings.Index(rest, "/"); idx >= 0 {
		rest = rest[:idx]
	}
	return rest
}

// RunProbe executes one scripted interaction. Valid only while ready; the
// session stays ready afterwards, and any events the interaction provoked
// land in the log through the attached listeners.
func (s *VerificationSession) RunProbe(ctx context.Context, kind ProbeKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusReady {
		return fmt.Errorf("cannot run probe in state %s", s.status)
	}

	switch kind {
	case ProbePopup:
		return s.probePopup()
	case ProbeClick:
		if err := s.page.Click("body"); err != nil {
			return err
		}
		s.log.Append(CategoryClick, fmt.Sprintf("synthetic click on %s", s.page.URL()))
		return nil
	case ProbeKeyboard:
		if err := s.page.Press("Tab"); err != nil {
			return err
		}
		s.log.Append(CategoryKeyboard, "synthetic Tab press")
		return nil
	case ProbeNavigate:
		if err := s.page.Goto(s.testURL); err != nil {
			return err
		}
		s.log.Append(CategoryNavigation, fmt.Sprintf("navigated to %s", s.testURL))
		return nil
	case ProbeTest:
		if err := s.page.Goto(s.testURL); err != nil {
			return err
		}
		s.log.Append(CategoryNavigation, fmt.Sprintf("navigated to %s", s.testURL))
		return s.probePopup()
	default:
		return fmt.Errorf("unknown probe kind %q", kind)
	}
}

func (s *VerificationSession) probePopup() error {
	popupURL := fmt.Sprintf("chrome-extension://%s/popup.html", s.extensionID)
	if err := s.page.Goto(popupURL); err != nil {
		return fmt.Errorf("opening popup: %w", err)
	}
	content, err := s.page.Content()
	if err != nil {
		return fmt.Errorf("reading popup content: %w", err)
	}
	summary, err := SummarizePopup(content)
	if err != nil {
		return err
	}
	s.log.Append(CategoryLifecycle, fmt.Sprintf("popup opened: %s", summary))
	return nil
}

// CollectLogs returns the accumulated event trail in capture order. The read
// is non-destructive and valid in any state.
func (s *VerificationSession) CollectLogs() []Event {
	return s.log.Snapshot()
}

// Counts returns per-category event counts.
func (s *VerificationSession) Counts() map[Category]int {
	return s.log.Counts()
}

// Close releases the browser context. Idempotent: closing an already-closed
// session is a no-op.
func (s *VerificationSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusClosed {
		return nil
	}
	prev := s.status
	s.status = StatusClosed

	if s.browserCtx != nil {
		if err := s.browserCtx.Close(); err != nil {
			s.logger.Warnf("closing browser context for session %s: %v", s.sessionID, err)
		}
		s.browserCtx = nil
		s.page = nil
	}
	if s.opts.UserDataDir != "" {
		if err := os.RemoveAll(s.opts.UserDataDir); err != nil {
			s.logger.Warnf("removing user data dir: %v", err)
		}
	}
	s.logger.Infof("verification session %s closed (was %s)", s.id, prev)
	return nil
}

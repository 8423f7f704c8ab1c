package browser

import (
	"context"
	"time"
)

// LaunchOptions configures one persistent automation context. ExtensionDir
// is loaded exclusively: no other extension may be present in the profile,
// since extension auto-discovery in a shared profile is non-deterministic.
type LaunchOptions struct {
	UserDataDir  string
	ExtensionDir string
	Headless     bool
}

// EventHandler receives passively captured runtime events.
type EventHandler func(category Category, payload string)

// Backend abstracts the browser automation boundary so the verification
// session state machine can be exercised with fakes in tests.
type Backend interface {
	// Launch starts a persistent context with the given extension loaded.
	Launch(ctx context.Context, opts LaunchOptions) (Context, error)
}

// Context is one live persistent browser context.
type Context interface {
	// ActivePage returns the context's current page, creating one if the
	// context opened without any.
	ActivePage() (Page, error)

	// ServiceWorkerURLs lists the URLs of registered extension service
	// workers, used to resolve the loaded extension's runtime id.
	ServiceWorkerURLs() []string

	// Close tears the context down. Safe to call more than once.
	Close() error
}

// Page is one tab inside a context.
type Page interface {
	Goto(url string) error
	Content() (string, error)
	Click(selector string) error
	Press(key string) error
	URL() string

	// AttachListeners wires passive capture of console, error,
	// network-failure, and navigation events into the handler.
	AttachListeners(h EventHandler)
}

// RetryPolicy bounds the polling loop that resolves the extension id from
// service-worker registrations. The delay before attempt n is
// InitialDelay * Multiplier^n.
type RetryPolicy struct {
	Attempts     int
	InitialDelay time.Duration
	Multiplier   float64
}

// Backoff returns the delay to wait after the given zero-based attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := float64(p.InitialDelay)
	for i := 0; i < attempt; i++ {
		d *= p.Multiplier
	}
	return time.Duration(d)
}

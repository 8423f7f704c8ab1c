package browser

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crxforge/crxforge/pkg/config"
)

// fakeBackend scripts context launches for state-machine tests.
type fakeBackend struct {
	mu        sync.Mutex
	launchErr error
	// launchGate, when set, blocks each launch until the channel is closed.
	launchGate chan struct{}
	// workerAfterPolls delays the service worker registration by this many
	// ServiceWorkerURLs calls, imitating a slow extension startup.
	workerAfterPolls int
	contexts         []*fakeContext
}

func (b *fakeBackend) Launch(ctx context.Context, opts LaunchOptions) (Context, error) {
	b.mu.Lock()
	gate := b.launchGate
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.launchErr != nil {
		return nil, b.launchErr
	}
	c := &fakeContext{
		workerAfterPolls: b.workerAfterPolls,
		workerURL:        "chrome-extension://abcdefghijklmnop/background.js",
		page:             &fakePage{url: "about:blank"},
	}
	b.contexts = append(b.contexts, c)
	return c, nil
}

type fakeContext struct {
	mu               sync.Mutex
	polls            int
	workerAfterPolls int
	workerURL        string
	closed           bool
	page             *fakePage
}

func (c *fakeContext) ActivePage() (Page, error) { return c.page, nil }

func (c *fakeContext) ServiceWorkerURLs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.polls++
	if c.polls <= c.workerAfterPolls {
		return nil
	}
	return []string{c.workerURL}
}

func (c *fakeContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeContext) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakePage struct {
	mu      sync.Mutex
	url     string
	content string
	handler EventHandler
	clicks  []string
	presses []string
}

func (p *fakePage) Goto(url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	return nil
}

func (p *fakePage) Content() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.content != "" {
		return p.content, nil
	}
	return "<html><head><title>Popup</title></head><body>hello</body></html>", nil
}

func (p *fakePage) Click(selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks = append(p.clicks, selector)
	return nil
}

func (p *fakePage) Press(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.presses = append(p.presses, key)
	return nil
}

func (p *fakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *fakePage) AttachListeners(h EventHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = h
}

// emit simulates a passively captured runtime event.
func (p *fakePage) emit(category Category, payload string) {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	if h != nil {
		h(category, payload)
	}
}

func testBrowserConfig() config.BrowserConfig {
	return config.BrowserConfig{
		Headless: true,
		TestURL:  "https://example.com",
		Resolve: config.ResolveConfig{
			Attempts:       3,
			InitialDelayMs: 1,
			Multiplier:     1.5,
		},
	}
}

func TestStart_ReachesReadyAndResolvesExtensionID(t *testing.T) {
	backend := &fakeBackend{}
	m := NewManager(backend, testBrowserConfig())

	vs, err := m.Start(context.Background(), "session-1", "/tmp/ext")
	require.NoError(t, err)

	assert.Equal(t, StatusReady, vs.Status())
	assert.Equal(t, "abcdefghijklmnop", vs.ExtensionID())

	logs := vs.CollectLogs()
	require.NotEmpty(t, logs)
	assert.Equal(t, CategoryLifecycle, logs[0].Category)
	assert.Contains(t, logs[0].Payload, "abcdefghijklmnop")
}

func TestStart_RetriesUntilServiceWorkerAppears(t *testing.T) {
	backend := &fakeBackend{workerAfterPolls: 2}
	m := NewManager(backend, testBrowserConfig())

	vs, err := m.Start(context.Background(), "session-1", "/tmp/ext")
	require.NoError(t, err)
	assert.Equal(t, StatusReady, vs.Status())
}

func TestStart_FailsWhenRetryBudgetExhausted(t *testing.T) {
	backend := &fakeBackend{workerAfterPolls: 100}
	m := NewManager(backend, testBrowserConfig())

	vs, err := m.Start(context.Background(), "session-1", "/tmp/ext")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not resolved")
	assert.Equal(t, StatusFailed, vs.Status())
	// The launched context must be released on failure.
	require.Len(t, backend.contexts, 1)
	assert.True(t, backend.contexts[0].isClosed())
}

func TestStart_FailsWhenLaunchFails(t *testing.T) {
	backend := &fakeBackend{launchErr: fmt.Errorf("no browser installed")}
	m := NewManager(backend, testBrowserConfig())

	vs, err := m.Start(context.Background(), "session-1", "/tmp/ext")
	require.Error(t, err)
	assert.Equal(t, StatusFailed, vs.Status())
}

func TestStart_ClosesPriorSessionFirst(t *testing.T) {
	backend := &fakeBackend{}
	m := NewManager(backend, testBrowserConfig())

	first, err := m.Start(context.Background(), "session-1", "/tmp/ext")
	require.NoError(t, err)
	require.Equal(t, StatusReady, first.Status())

	second, err := m.Start(context.Background(), "session-1", "/tmp/ext")
	require.NoError(t, err)

	assert.Equal(t, StatusClosed, first.Status())
	assert.Equal(t, StatusReady, second.Status())

	active, ok := m.Get("session-1")
	require.True(t, ok)
	assert.Same(t, second, active)
}

func TestStart_DoesNotBlockOtherSessions(t *testing.T) {
	gate := make(chan struct{})
	backend := &fakeBackend{launchGate: gate}
	m := NewManager(backend, testBrowserConfig())
	extDir := t.TempDir()

	done := make(chan error, 1)
	go func() {
		_, err := m.Start(context.Background(), "session-a", extDir)
		done <- err
	}()

	// The session is visible as soon as the launch begins.
	assert.Eventually(t, func() bool {
		_, ok := m.Get("session-a")
		return ok
	}, time.Second, 5*time.Millisecond)

	// Lookups and closes for other sessions return while the launch is
	// still in flight.
	_, ok := m.Get("session-b")
	assert.False(t, ok)
	require.NoError(t, m.Close("session-b"))

	close(gate)
	require.NoError(t, <-done)
	vs, ok := m.Get("session-a")
	require.True(t, ok)
	assert.Equal(t, StatusReady, vs.Status())
}

func TestClose_IsIdempotent(t *testing.T) {
	backend := &fakeBackend{}
	m := NewManager(backend, testBrowserConfig())

	vs, err := m.Start(context.Background(), "session-1", "/tmp/ext")
	require.NoError(t, err)

	require.NoError(t, vs.Close())
	assert.Equal(t, StatusClosed, vs.Status())
	require.NoError(t, vs.Close())
	assert.Equal(t, StatusClosed, vs.Status())
}

func TestStart_RejectedAfterClose(t *testing.T) {
	backend := &fakeBackend{}
	m := NewManager(backend, testBrowserConfig())

	vs, err := m.Start(context.Background(), "session-1", "/tmp/ext")
	require.NoError(t, err)
	require.NoError(t, vs.Close())

	err = vs.Start(context.Background())
	assert.Error(t, err)
}

func TestRunProbe_AppendsEvents(t *testing.T) {
	backend := &fakeBackend{}
	m := NewManager(backend, testBrowserConfig())

	vs, err := m.Start(context.Background(), "session-1", "/tmp/ext")
	require.NoError(t, err)

	require.NoError(t, vs.RunProbe(context.Background(), ProbeNavigate))
	require.NoError(t, vs.RunProbe(context.Background(), ProbeClick))
	require.NoError(t, vs.RunProbe(context.Background(), ProbeKeyboard))
	require.NoError(t, vs.RunProbe(context.Background(), ProbePopup))

	counts := vs.Counts()
	assert.Equal(t, 1, counts[CategoryNavigation])
	assert.Equal(t, 1, counts[CategoryClick])
	assert.Equal(t, 1, counts[CategoryKeyboard])
	// Lifecycle: loaded marker plus popup summary.
	assert.Equal(t, 2, counts[CategoryLifecycle])
	assert.Equal(t, StatusReady, vs.Status())

	page := backend.contexts[0].page
	assert.Contains(t, page.URL(), "chrome-extension://abcdefghijklmnop/popup.html")
}

func TestRunProbe_InvalidOutsideReady(t *testing.T) {
	backend := &fakeBackend{}
	m := NewManager(backend, testBrowserConfig())

	vs, err := m.Start(context.Background(), "session-1", "/tmp/ext")
	require.NoError(t, err)
	require.NoError(t, vs.Close())

	err = vs.RunProbe(context.Background(), ProbeClick)
	assert.Error(t, err)
}

func TestCollectLogs_CapturesPassiveEventsInOrder(t *testing.T) {
	backend := &fakeBackend{}
	m := NewManager(backend, testBrowserConfig())

	vs, err := m.Start(context.Background(), "session-1", "/tmp/ext")
	require.NoError(t, err)

	page := backend.contexts[0].page
	page.emit(CategoryConsole, "log: popup loaded")
	page.emit(CategoryError, "Uncaught TypeError")
	page.emit(CategoryNetworkError, "request failed: https://api.example.com")

	logs := vs.CollectLogs()
	require.GreaterOrEqual(t, len(logs), 4)
	tail := logs[len(logs)-3:]
	assert.Equal(t, CategoryConsole, tail[0].Category)
	assert.Equal(t, CategoryError, tail[1].Category)
	assert.Equal(t, CategoryNetworkError, tail[2].Category)

	// Reads are non-destructive.
	assert.Equal(t, len(logs), len(vs.CollectLogs()))
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{Attempts: 5, InitialDelay: 100 * time.Millisecond, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, p.Backoff(0))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 400*time.Millisecond, p.Backoff(2))
}

func TestExtensionIDFromWorkerURL(t *testing.T) {
	assert.Equal(t, "abc123", extensionIDFromWorkerURL("chrome-extension://abc123/background.js"))
	assert.Equal(t, "abc123", extensionIDFromWorkerURL("chrome-extension://abc123"))
	assert.Equal(t, "", extensionIDFromWorkerURL("https://example.com/worker.js"))
}

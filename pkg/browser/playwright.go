package browser

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightBackend implements Backend over playwright-go. The driver is
// installed and started lazily on first launch and shared by all contexts.
type PlaywrightBackend struct {
	mu sync.Mutex
	pw *playwright.Playwright
}

// NewPlaywrightBackend creates an uninitialized backend.
func NewPlaywrightBackend() *PlaywrightBackend {
	return &PlaywrightBackend{}
}

func (b *PlaywrightBackend) init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pw != nil {
		return nil
	}

	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}
	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}
	b.pw = pw
	return nil
}

// Launch starts a persistent Chromium context with exactly the given
// extension loaded. Extensions require a persistent context and the chromium
// channel; the disable-extensions-except flag keeps the profile from picking
// up anything else.
func (b *PlaywrightBackend) Launch(ctx context.Context, opts LaunchOptions) (Context, error) {
	if err := b.init(); err != nil {
		return nil, err
	}

	launchOpts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(opts.Headless),
		Channel:  playwright.String("chromium"),
		Args: []string{
			fmt.Sprintf("--disable-extensions-except=%s", opts.ExtensionDir),
			fmt.Sprintf("--load-extension=%s", opts.ExtensionDir),
		},
	}

	pctx, err := b.pw.Chromium.LaunchPersistentContext(opts.UserDataDir, launchOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to launch persistent context: %w", err)
	}
	return &playwrightContext{ctx: pctx}, nil
}

// Shutdown stops the shared driver.
func (b *PlaywrightBackend) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pw == nil {
		return nil
	}
	err := b.pw.Stop()
	b.pw = nil
	return err
}

type playwrightContext struct {
	ctx    playwright.BrowserContext
	mu     sync.Mutex
	closed bool
}

func (c *playwrightContext) ActivePage() (Page, error) {
	pages := c.ctx.Pages()
	if len(pages) > 0 {
		return &playwrightPage{page: pages[0]}, nil
	}
	page, err := c.ctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return &playwrightPage{page: page}, nil
}

func (c *playwrightContext) ServiceWorkerURLs() []string {
	workers := c.ctx.ServiceWorkers()
	urls := make([]string, 0, len(workers))
	for _, w := range workers {
		urls = append(urls, w.URL())
	}
	return urls
}

func (c *playwrightContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.ctx.Close()
}

type playwrightPage struct {
	page playwright.Page
}

func (p *playwrightPage) Goto(url string) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{})
	if err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (p *playwrightPage) Content() (string, error) {
	return p.page.Content()
}

func (p *playwrightPage) Click(selector string) error {
	if err := p.page.Click(selector, playwright.PageClickOptions{}); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

func (p *playwrightPage) Press(key string) error {
	if err := p.page.Keyboard().Press(key); err != nil {
		return fmt.Errorf("key press failed: %w", err)
	}
	return nil
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

func (p *playwrightPage) AttachListeners(h EventHandler) {
	p.page.OnConsole(func(msg playwright.ConsoleMessage) {
		h(CategoryConsole, fmt.Sprintf("%s: %s", msg.Type(), msg.Text()))
	})
	p.page.OnPageError(func(err error) {
		h(CategoryError, err.Error())
	})
	p.page.OnRequestFailed(func(req playwright.Request) {
		h(CategoryNetworkError, fmt.Sprintf("request failed: %s (%s)", req.URL(), req.Failure()))
	})
	p.page.OnFrameNavigated(func(frame playwright.Frame) {
		h(CategoryNavigation, frame.URL())
	})
	p.page.OnDOMContentLoaded(func(playwright.Page) {
		h(CategoryLifecycle, fmt.Sprintf("dom loaded: %s", p.page.URL()))
	})
}

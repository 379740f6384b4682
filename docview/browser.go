// Package docview drives a real document view in Chromium: it opens the
// page, injects an event bridge, and adapts the live DOM to the selection
// controller's view contract and the overlay engine's tree contract.
package docview

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// BrowserConfig configures the Chromium connection.
type BrowserConfig struct {
	// RemoteURL is the WebSocket URL of an external Chromium instance.
	// Empty launches a local one.
	RemoteURL string
	// Headful shows the browser window. A viewer usually wants this.
	Headful bool
	Logger  *slog.Logger
}

func (c *BrowserConfig) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Browser owns one Chromium connection for the viewer's lifetime.
type Browser struct {
	cfg     BrowserConfig
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewBrowser creates a Browser. Call Start to connect.
func NewBrowser(cfg BrowserConfig) *Browser {
	cfg.defaults()
	return &Browser{cfg: cfg}
}

// Start launches Chromium (or connects to a remote instance) and returns
// the Rod handle.
func (b *Browser) Start() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("docview: browser is closed")
	}
	if b.browser != nil {
		return b.browser, nil
	}

	wsURL := b.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().
			Headless(!b.cfg.Headful).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("docview: launch: %w", err)
		}
		b.lnch = l
		wsURL = u
		b.cfg.Logger.Info("docview: launched chromium", "headful", b.cfg.Headful)
	} else {
		b.cfg.Logger.Info("docview: connecting to remote chromium", "url", wsURL)
	}

	br := rod.New().ControlURL(wsURL)
	if err := br.Connect(); err != nil {
		return nil, fmt.Errorf("docview: connect: %w", err)
	}
	b.browser = br
	return br, nil
}

// Close shuts down the connection and, for a locally launched Chromium,
// the process.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.browser != nil {
		b.browser.Close()
		b.browser = nil
	}
	if b.lnch != nil {
		b.lnch.Cleanup()
		b.lnch = nil
	}
	return nil
}

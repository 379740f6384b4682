package docview

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

// Tab wraps a Rod page opened on the document.
type Tab struct {
	Page *rod.Page
	URL  string
}

// OpenTab creates a tab with stealth applied, navigates to the URL and
// waits for the load event.
func OpenTab(ctx context.Context, b *rod.Browser, pageURL string, timeout time.Duration) (*Tab, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("docview: create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("docview: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		// A slow page is still usable once the DOM is there.
		return &Tab{Page: page, URL: pageURL}, nil
	}

	return &Tab{Page: page, URL: pageURL}, nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}

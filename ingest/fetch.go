package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

// FetchConfig configures the fetcher.
type FetchConfig struct {
	Timeout  time.Duration // HTTP timeout. Default: 30s.
	MaxBytes int64         // Max response body size. Default: 10MB.
	// UserAgent sent with requests.
	UserAgent string
	// URLValidator validates URLs before fetch (SSRF prevention).
	// Default: ValidateURL.
	URLValidator func(string) error
}

func (c *FetchConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024 // 10MB
	}
	if c.UserAgent == "" {
		c.UserAgent = "openpaper/1.0"
	}
	if c.URLValidator == nil {
		c.URLValidator = ValidateURL
	}
}

// FetchResult is a fetched resource body plus enough metadata to pick an
// extraction path.
type FetchResult struct {
	Body        []byte
	ContentType string
	FinalURL    string
}

// IsPDF reports whether the resource should go through PDF extraction.
func (r *FetchResult) IsPDF() bool {
	if strings.Contains(r.ContentType, "application/pdf") {
		return true
	}
	return len(r.Body) >= 5 && string(r.Body[:5]) == "%PDF-"
}

// Fetcher performs HTTP requests with SSRF protection on the initial URL
// and on every redirect hop.
type Fetcher struct {
	client *http.Client
	config FetchConfig
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg FetchConfig) *Fetcher {
	cfg.defaults()
	validate := cfg.URLValidator
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
		config: cfg,
	}
}

// Fetch retrieves a URL.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	if err := f.config.URLValidator(url); err != nil {
		return nil, fmt.Errorf("ingest: url blocked: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ingest: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/pdf,*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ingest: http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, fmt.Errorf("ingest: http %d fetching %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("ingest: read body: %w", err)
	}

	return &FetchResult{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
	}, nil
}

// FetchRendered loads a URL in a browser tab with stealth applied, waits
// for the page to settle, and returns the rendered DOM. Used when the
// plain HTTP body lacks the article (script-rendered pages).
func (f *Fetcher) FetchRendered(ctx context.Context, b *rod.Browser, url string) (*FetchResult, error) {
	if b == nil {
		return nil, fmt.Errorf("ingest: no browser available")
	}
	if err := f.config.URLValidator(url); err != nil {
		return nil, fmt.Errorf("ingest: url blocked: %w", err)
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("ingest: create tab: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(url); err != nil {
		return nil, fmt.Errorf("ingest: navigate %s: %w", url, err)
	}
	// Best effort: a page that never fires load can still carry content.
	_ = page.Context(navCtx).WaitLoad()

	res, err := page.Context(navCtx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("ingest: read rendered dom: %w", err)
	}
	body := []byte(res.Value.Str())
	if int64(len(body)) > f.config.MaxBytes {
		body = body[:f.config.MaxBytes]
	}

	finalURL := url
	if info, err := page.Context(navCtx).Info(); err == nil {
		finalURL = info.URL
	}

	return &FetchResult{
		Body:        body,
		ContentType: "text/html",
		FinalURL:    finalURL,
	}, nil
}

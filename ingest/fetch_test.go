package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func allowAll(string) error { return nil }

func TestFetcherRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "openpaper/1.0" {
			t.Errorf("User-Agent = %q", got)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>hi</body></html>"))
	}))
	defer srv.Close()

	f := NewFetcher(FetchConfig{URLValidator: allowAll})
	res, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.Contains(string(res.Body), "hi") {
		t.Errorf("Body = %q", res.Body)
	}
	if !strings.Contains(res.ContentType, "text/html") {
		t.Errorf("ContentType = %q", res.ContentType)
	}
	if res.IsPDF() {
		t.Error("html response reported as PDF")
	}
}

func TestFetcherBlocksPrivateURLs(t *testing.T) {
	// Default validator refuses loopback. An httptest server always binds
	// loopback, so no server is needed here.
	f := NewFetcher(FetchConfig{})
	if _, err := f.Fetch(context.Background(), "http://127.0.0.1:9/x"); err == nil {
		t.Fatal("expected loopback URL to be blocked")
	}
}

func TestFetcherBlocksPrivateRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://169.254.169.254/latest/meta-data", http.StatusFound)
	}))
	defer srv.Close()

	// Allow the initial loopback URL so only the redirect hop is checked.
	seen := 0
	f := NewFetcher(FetchConfig{URLValidator: func(u string) error {
		seen++
		if seen == 1 {
			return nil
		}
		return ValidateURL(u)
	}})
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected redirect to metadata endpoint to be blocked")
	}
}

func TestFetcherLimitsBodySize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 4096))
	}))
	defer srv.Close()

	f := NewFetcher(FetchConfig{MaxBytes: 1024, URLValidator: allowAll})
	res, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(res.Body) != 1024 {
		t.Errorf("len(Body) = %d, want 1024", len(res.Body))
	}
}

func TestFetcherErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewFetcher(FetchConfig{URLValidator: allowAll})
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestIsPDFSniffsMagic(t *testing.T) {
	r := &FetchResult{Body: []byte("%PDF-1.7 rest"), ContentType: "application/octet-stream"}
	if !r.IsPDF() {
		t.Error("PDF magic not detected")
	}
}

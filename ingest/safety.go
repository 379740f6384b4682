// Package ingest imports documents into the store: PDF text extraction
// with page offset maps, and web article import (fetch, sanitize, content
// extraction, markdown conversion) with extraction quality scoring.
package ingest

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	// ErrUnsafeScheme is returned for non-http(s) URLs.
	ErrUnsafeScheme = errors.New("ingest: only http and https URLs are allowed")
	// ErrPrivateAddress is returned when a URL points at a private,
	// loopback or link-local address.
	ErrPrivateAddress = errors.New("ingest: URL resolves to a private address")
)

// ValidateURL rejects URLs that could reach internal infrastructure when
// fetched server-side. Literal IPs are checked directly; hostnames are
// resolved and every address must be public.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("ingest: invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrUnsafeScheme
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("ingest: URL has no host")
	}
	if strings.EqualFold(host, "localhost") {
		return ErrPrivateAddress
	}

	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return ErrPrivateAddress
		}
		return nil
	}

	addrs, err := net.LookupHost(host)
	if err != nil {
		// Temporarily unresolvable external hosts fail at connect time
		// with a clearer error.
		return nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && isPrivateIP(ip) {
			return ErrPrivateAddress
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

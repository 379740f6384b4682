// Package translate coordinates on-demand translation of text selections:
// it deduplicates identical requests, caches responses for the session,
// retries transient failures once, enforces a wall-clock timeout, and
// guarantees that only the most recently requested selection can update the
// visible state.
package translate

import (
	"context"
	"encoding/json"
)

// Request is the translation call payload. The wire names follow the
// backend's selection-translation endpoint.
type Request struct {
	DocumentID        string `json:"document_id"`
	SelectedText      string `json:"selected_text"`
	PageNumber        *int   `json:"page_number,omitempty"`
	SelectionTypeHint string `json:"selection_type_hint"`
	ContextBefore     string `json:"context_before,omitempty"`
	ContextAfter      string `json:"context_after,omitempty"`
	TargetLanguage    string `json:"target_language"`
}

// Meta carries response bookkeeping from the backend.
type Meta struct {
	Confidence            float64 `json:"confidence"`
	ContextRelevanceScore float64 `json:"context_relevance_score"`
	Cached                bool    `json:"cached"`
	LatencyMS             int64   `json:"latency_ms"`
}

// Response is the structured translation result. Result stays raw: its
// shape depends on the detected mode and is rendered, not interpreted,
// on this side of the wire.
type Response struct {
	Mode           string          `json:"mode"`
	DetectedMode   string          `json:"detected_mode"`
	SourceText     string          `json:"source_text"`
	TargetLanguage string          `json:"target_language"`
	Result         json.RawMessage `json:"result"`
	Meta           Meta            `json:"meta"`
}

// Backend performs the actual translation call. Implementations must honor
// context cancellation.
type Backend interface {
	Translate(ctx context.Context, req *Request) (*Response, error)
}

// Status describes the externally visible request lifecycle.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// State is the coordinator's externally visible state. Replaced wholesale
// on every transition.
type State struct {
	Status      Status
	Fingerprint string
	Response    *Response
	Err         error
}

// Listener observes state transitions.
type Listener func(State)

// Cache stores responses by fingerprint for the owning view's lifetime.
// The coordinator is the only writer.
type Cache interface {
	Get(fingerprint string) (*Response, bool)
	Put(fingerprint string, resp *Response)
}

// MemoryCache is the default session cache: write-once per fingerprint,
// no eviction (bounded naturally by the selections visited in one session).
type MemoryCache struct {
	entries map[string]*Response
}

// NewMemoryCache creates an empty session cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*Response)}
}

// Get returns the cached response for a fingerprint.
func (m *MemoryCache) Get(fp string) (*Response, bool) {
	r, ok := m.entries[fp]
	return r, ok
}

// Put stores a response. Existing entries are overwritten only by forced
// requests, which the coordinator funnels through this same path.
func (m *MemoryCache) Put(fp string, resp *Response) {
	m.entries[fp] = resp
}

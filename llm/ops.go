package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// SourceDocument is the stored document view the operations need: clean
// extracted text plus the page → text-offset map built at ingest time.
type SourceDocument struct {
	ID      string
	Title   string
	RawText string
	// PageOffsets maps a 1-based page number to its [start, end) byte
	// range in RawText. Nil for documents without page structure.
	PageOffsets map[int][2]int
}

// DocumentSource loads documents scoped to their owning user.
type DocumentSource interface {
	Document(ctx context.Context, userID, documentID string) (*SourceDocument, error)
}

// TranslationUsage is one billable translation event.
type TranslationUsage struct {
	UserID       string
	DocumentID   string
	Mode         string
	SourceChars  int
	ContextChars int
	OutputChars  int
	Cached       bool
}

// UsageRecorder persists usage events. Failures are logged, never fatal.
type UsageRecorder interface {
	RecordTranslationUsage(ctx context.Context, u TranslationUsage) error
}

// EventTracker receives product telemetry events.
type EventTracker interface {
	Track(event string, userID string, props map[string]any)
}

// ResultCache is an optional second cache tier that survives restarts.
// The in-process map stays in front of it.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}

// SelectionParams are the resolved inputs for one selection translation.
type SelectionParams struct {
	UserID         string
	DocumentID     string
	SelectedText   string
	PageNumber     *int
	TypeHint       Mode
	ContextBefore  string
	ContextAfter   string
	TargetLanguage string
}

// SelectionMeta is the bookkeeping attached to a selection result.
type SelectionMeta struct {
	Confidence            float64 `json:"confidence"`
	ContextRelevanceScore float64 `json:"context_relevance_score"`
	Cached                bool    `json:"cached"`
	LatencyMS             int64   `json:"latency_ms"`
}

// SelectionResult is the wire-shaped translation response.
type SelectionResult struct {
	Mode           Mode            `json:"mode"`
	DetectedMode   Mode            `json:"detected_mode"`
	SourceText     string          `json:"source_text"`
	TargetLanguage string          `json:"target_language"`
	Result         json.RawMessage `json:"result"`
	Meta           SelectionMeta   `json:"meta"`
}

type cacheEntry struct {
	expiresAt time.Time
	result    *SelectionResult
}

// Operations owns the translate-selection flow: classification, context
// resolution, prompting, validation, caching and usage accounting.
type Operations struct {
	client   *Client
	docs     DocumentSource
	usage    UsageRecorder
	tracker  EventTracker
	logger   *slog.Logger
	cacheTTL time.Duration
	durable  ResultCache

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// OpsOption configures Operations.
type OpsOption func(*Operations)

// WithUsageRecorder wires usage accounting.
func WithUsageRecorder(r UsageRecorder) OpsOption {
	return func(o *Operations) { o.usage = r }
}

// WithEventTracker wires product telemetry.
func WithEventTracker(t EventTracker) OpsOption {
	return func(o *Operations) { o.tracker = t }
}

// WithCacheTTL overrides the default 24h server-side cache lifetime.
func WithCacheTTL(ttl time.Duration) OpsOption {
	return func(o *Operations) { o.cacheTTL = ttl }
}

// WithResultCache adds a durable cache tier behind the in-process one.
func WithResultCache(c ResultCache) OpsOption {
	return func(o *Operations) { o.durable = c }
}

func NewOperations(client *Client, docs DocumentSource, logger *slog.Logger, opts ...OpsOption) *Operations {
	o := &Operations{
		client:   client,
		docs:     docs,
		logger:   logger,
		cacheTTL: 24 * time.Hour,
		cache:    make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// cacheKey is stable across surface formatting differences of the same
// logical request. The resolved context participates through a hash so a
// re-anchored selection with different surroundings is a different entry.
func cacheKey(documentID, selectedText string, mode Mode, targetLanguage, contextBefore, contextAfter string) string {
	ctxHash := sha256.Sum256([]byte(contextBefore + "|" + contextAfter))
	base := documentID + "|" + normalizeMatch(selectedText) + "|" + string(mode) + "|" +
		targetLanguage + "|" + hex.EncodeToString(ctxHash[:8])
	sum := sha256.Sum256([]byte(base))
	return hex.EncodeToString(sum[:])
}

func (o *Operations) cached(ctx context.Context, key string) *SelectionResult {
	o.mu.Lock()
	entry, ok := o.cache[key]
	if ok && time.Now().After(entry.expiresAt) {
		delete(o.cache, key)
		ok = false
	}
	o.mu.Unlock()
	if ok {
		return entry.result
	}

	if o.durable == nil {
		return nil
	}
	payload, found := o.durable.Get(ctx, key)
	if !found {
		return nil
	}
	var res SelectionResult
	if err := json.Unmarshal(payload, &res); err != nil {
		o.logger.Warn("corrupt cached translation dropped", "error", err)
		return nil
	}
	o.mu.Lock()
	o.cache[key] = cacheEntry{expiresAt: time.Now().Add(o.cacheTTL), result: &res}
	o.mu.Unlock()
	return &res
}

func (o *Operations) store(ctx context.Context, key string, res *SelectionResult) {
	o.mu.Lock()
	o.cache[key] = cacheEntry{expiresAt: time.Now().Add(o.cacheTTL), result: res}
	o.mu.Unlock()

	if o.durable == nil {
		return
	}
	payload, err := json.Marshal(res)
	if err == nil {
		err = o.durable.Put(ctx, key, payload, o.cacheTTL)
	}
	if err != nil {
		o.logger.Warn("failed to write durable translation cache", "error", err)
	}
}

func (o *Operations) track(event, userID string, props map[string]any) {
	if o.tracker != nil {
		o.tracker.Track(event, userID, props)
	}
}

func (o *Operations) pageSpan(doc *SourceDocument, pageNumber *int) *[2]int {
	if pageNumber == nil || doc.PageOffsets == nil {
		return nil
	}
	offsets, ok := doc.PageOffsets[*pageNumber]
	if !ok {
		return nil
	}
	if offsets[0] < 0 || offsets[1] <= offsets[0] || offsets[1] > len(doc.RawText) {
		return nil
	}
	return &offsets
}

func confidence(mode Mode, contextQuality float64) float64 {
	base := 0.78
	switch mode {
	case ModeSentence:
		base = 0.82
	case ModeFormula:
		base = 0.74
	}
	c := base + (contextQuality-0.5)*0.3
	return round2(min(0.99, max(0.4, c)))
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

// TranslateSelection runs the full selection-translation flow. The
// provider is called at most twice (one retry on a transient failure or a
// malformed generation).
func (o *Operations) TranslateSelection(ctx context.Context, p SelectionParams) (*SelectionResult, error) {
	started := time.Now()

	doc, err := o.docs.Document(ctx, p.UserID, p.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return nil, InputError{Msg: "document not found"}
	}

	cleaned := normalizeSelection(p.SelectedText)
	if cleaned == "" {
		return nil, InputError{Msg: "selected text cannot be empty"}
	}

	mode := ClassifyMode(cleaned, p.TypeHint)
	resolved := resolveContext(doc.RawText, cleaned, o.pageSpan(doc, p.PageNumber),
		mode, p.ContextBefore, p.ContextAfter)

	key := cacheKey(p.DocumentID, cleaned, mode, p.TargetLanguage, resolved.before, resolved.after)
	o.track("selection_translation_context_resolved", p.UserID, map[string]any{
		"mode":                    string(mode),
		"context_relevance_score": round2(resolved.quality),
		"match_strategy":          resolved.strategy,
	})

	if res := o.cached(ctx, key); res != nil {
		hit := *res
		hit.Meta.Cached = true
		hit.Meta.LatencyMS = time.Since(started).Milliseconds()
		o.track("selection_translation_cache_hit", p.UserID, map[string]any{
			"mode":       string(mode),
			"latency_ms": hit.Meta.LatencyMS,
		})
		return &hit, nil
	}

	prompt := buildPrompt(mode, cleaned, p.TargetLanguage, doc.Title, resolved.before, resolved.after)
	raw, err := o.generate(ctx, mode, prompt)
	if err != nil {
		return nil, err
	}

	res := &SelectionResult{
		Mode:           mode,
		DetectedMode:   mode,
		SourceText:     cleaned,
		TargetLanguage: p.TargetLanguage,
		Result:         raw,
		Meta: SelectionMeta{
			Confidence:            confidence(mode, resolved.quality),
			ContextRelevanceScore: round2(resolved.quality),
			Cached:                false,
			LatencyMS:             time.Since(started).Milliseconds(),
		},
	}

	if o.usage != nil {
		if err := o.usage.RecordTranslationUsage(ctx, TranslationUsage{
			UserID:       p.UserID,
			DocumentID:   p.DocumentID,
			Mode:         string(mode),
			SourceChars:  len(cleaned),
			ContextChars: len(resolved.before) + len(resolved.after),
			OutputChars:  len(raw),
			Cached:       false,
		}); err != nil {
			o.logger.Warn("failed to record translation usage", "error", err)
		}
	}

	o.store(ctx, key, res)
	o.track("selection_translation_succeeded", p.UserID, map[string]any{
		"mode":                    string(mode),
		"latency_ms":              res.Meta.LatencyMS,
		"context_relevance_score": res.Meta.ContextRelevanceScore,
		"target_language":         p.TargetLanguage,
	})
	return res, nil
}

// generate calls the provider with one retry for transient failures and
// malformed generations.
func (o *Operations) generate(ctx context.Context, mode Mode, prompt string) (json.RawMessage, error) {
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		raw, err := o.client.CompleteJSON(ctx, selectionSystemPrompt, prompt)
		if err == nil {
			if vErr := validateOutput(mode, raw); vErr == nil {
				return raw, nil
			} else {
				err = vErr
			}
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, err
		}
		retryable := Transient(err) || isValidationError(err)
		if attempt == 1 && retryable {
			o.logger.Warn("translation generation failed, retrying",
				"attempt", attempt, "category", Category(err), "error", err)
			continue
		}
		break
	}
	return nil, lastErr
}

func isValidationError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "model output")
}

// normalizeSelection collapses whitespace runs and trims, matching the
// client-side snapshot normalization.
func normalizeSelection(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

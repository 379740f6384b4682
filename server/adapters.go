package server

import (
	"context"
	"errors"
	"time"

	"github.com/Zemacs/openpaper/docstore"
	"github.com/Zemacs/openpaper/llm"
)

// storeDocs adapts the document store to the translation operations'
// document source.
type storeDocs struct {
	store *docstore.Store
}

func (d storeDocs) Document(ctx context.Context, userID, documentID string) (*llm.SourceDocument, error) {
	doc, err := d.store.GetDocument(ctx, userID, documentID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &llm.SourceDocument{
		ID:          doc.ID,
		Title:       doc.Title,
		RawText:     doc.RawText,
		PageOffsets: doc.PageOffsets,
	}, nil
}

// storeUsage adapts the store's usage log to the translation operations'
// usage recorder.
type storeUsage struct {
	store *docstore.Store
}

func (u storeUsage) RecordTranslationUsage(ctx context.Context, rec llm.TranslationUsage) error {
	return u.store.RecordUsage(ctx, docstore.UsageRecord{
		UserID:       rec.UserID,
		DocumentID:   rec.DocumentID,
		Mode:         rec.Mode,
		SourceChars:  rec.SourceChars,
		ContextChars: rec.ContextChars,
		OutputChars:  rec.OutputChars,
		Cached:       rec.Cached,
	})
}

// storeCache adapts the store's translation cache table to the durable
// result-cache tier.
type storeCache struct {
	store *docstore.Store
}

func (c storeCache) Get(ctx context.Context, key string) ([]byte, bool) {
	return c.store.CacheGet(ctx, key)
}

func (c storeCache) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	return c.store.CachePut(ctx, key, payload, ttl)
}

// StoreAdapters returns the llm option set backed by the document store:
// usage recording and the durable cache tier.
func StoreAdapters(store *docstore.Store) []llm.OpsOption {
	return []llm.OpsOption{
		llm.WithUsageRecorder(storeUsage{store: store}),
		llm.WithResultCache(storeCache{store: store}),
	}
}

// DocumentSource returns the llm document source backed by the store.
func DocumentSource(store *docstore.Store) llm.DocumentSource {
	return storeDocs{store: store}
}

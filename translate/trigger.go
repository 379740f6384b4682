package translate

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/Zemacs/openpaper/overlay"
	"github.com/Zemacs/openpaper/selection"
)

// Trigger bridges the selection controller and the coordinator. It tracks
// the latest settled snapshot and, on request, turns it into a translation
// call. Collaborators (shortcut mapper, menu buttons) call exactly
// RequestTranslation; the selection lifecycle itself stays DOM-driven.
type Trigger struct {
	coordinator *Coordinator
	documentID  string
	targetLang  string
	logger      *slog.Logger

	mu   sync.Mutex
	snap selection.Snapshot
}

// NewTrigger creates the glue for one document view.
func NewTrigger(coordinator *Coordinator, documentID, targetLang string, logger *slog.Logger) *Trigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{
		coordinator: coordinator,
		documentID:  documentID,
		targetLang:  targetLang,
		logger:      logger,
	}
}

// SelectionChanged records the settled snapshot.
func (t *Trigger) SelectionChanged(snap selection.Snapshot, _ []overlay.Rect) {
	t.mu.Lock()
	t.snap = snap
	t.mu.Unlock()
}

// SelectionCleared drops the snapshot and cancels any outstanding request.
func (t *Trigger) SelectionCleared() {
	t.mu.Lock()
	t.snap = selection.Snapshot{}
	t.mu.Unlock()
	t.coordinator.Clear()
}

// RequestTranslation translates the current snapshot. It is safe to call
// from any goroutine; the call itself runs asynchronously.
func (t *Trigger) RequestTranslation(force bool) {
	t.mu.Lock()
	snap := t.snap
	t.mu.Unlock()
	if snap.Empty() {
		return
	}

	req := &Request{
		DocumentID:        t.documentID,
		SelectedText:      snap.Text,
		SelectionTypeHint: "auto",
		ContextBefore:     snap.ContextBefore,
		ContextAfter:      snap.ContextAfter,
		TargetLanguage:    t.targetLang,
	}
	if snap.PageID != "" {
		if page, err := strconv.Atoi(snap.PageID); err == nil {
			req.PageNumber = &page
		}
	}

	go func() {
		if _, err := t.coordinator.Translate(context.Background(), req, force); err != nil {
			t.logger.Debug("translate: request finished with error", "error", err)
		}
	}()
}

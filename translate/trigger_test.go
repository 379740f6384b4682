package translate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Zemacs/openpaper/selection"
)

func waitForCalls(t *testing.T, backend *fakeBackend, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if backend.callCount() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("backend calls = %d, want %d", backend.callCount(), want)
}

func settledSnapshot(text, pageID string) selection.Snapshot {
	return selection.Snapshot{
		Text:          text,
		ContextBefore: "approaches to ",
		ContextAfter:  " the risks involved",
		PageID:        pageID,
	}
}

func TestTriggerRepeatPressIssuesOneCall(t *testing.T) {
	var (
		mu   sync.Mutex
		reqs []*Request
	)
	backend := &fakeBackend{fn: func(_ context.Context, req *Request, _ int) (*Response, error) {
		mu.Lock()
		reqs = append(reqs, req)
		mu.Unlock()
		return okResponse(req.SelectedText), nil
	}}
	c := NewCoordinator(backend, Config{})
	trigger := NewTrigger(c, "doc_1", "zh-CN", nil)

	trigger.SelectionChanged(settledSnapshot("mitigate", "3"), nil)
	trigger.RequestTranslation(false)
	waitForCalls(t, backend, 1)

	// Same settled selection, second press: served from cache.
	trigger.RequestTranslation(false)
	time.Sleep(30 * time.Millisecond)
	if got := backend.callCount(); got != 1 {
		t.Fatalf("backend calls after second press = %d, want 1", got)
	}
	if st := c.CurrentState(); st.Status != StatusDone {
		t.Fatalf("status = %q, want %q", st.Status, StatusDone)
	}

	mu.Lock()
	req := reqs[0]
	mu.Unlock()
	if req.SelectedText != "mitigate" {
		t.Errorf("SelectedText = %q, want %q", req.SelectedText, "mitigate")
	}
	if req.SelectionTypeHint != "auto" {
		t.Errorf("SelectionTypeHint = %q, want %q", req.SelectionTypeHint, "auto")
	}
	if req.TargetLanguage != "zh-CN" {
		t.Errorf("TargetLanguage = %q, want %q", req.TargetLanguage, "zh-CN")
	}
	if req.PageNumber == nil || *req.PageNumber != 3 {
		t.Errorf("PageNumber = %v, want 3", req.PageNumber)
	}
	if req.ContextBefore == "" || req.ContextAfter == "" {
		t.Errorf("context not carried: before=%q after=%q", req.ContextBefore, req.ContextAfter)
	}
}

func TestTriggerNonNumericPageID(t *testing.T) {
	var (
		mu  sync.Mutex
		got *Request
	)
	backend := &fakeBackend{fn: func(_ context.Context, req *Request, _ int) (*Response, error) {
		mu.Lock()
		got = req
		mu.Unlock()
		return okResponse(req.SelectedText), nil
	}}
	c := NewCoordinator(backend, Config{})
	trigger := NewTrigger(c, "doc_1", "zh-CN", nil)

	trigger.SelectionChanged(settledSnapshot("mitigate", "appendix-a"), nil)
	trigger.RequestTranslation(false)
	waitForCalls(t, backend, 1)

	mu.Lock()
	defer mu.Unlock()
	if got.PageNumber != nil {
		t.Errorf("PageNumber = %d, want nil for non-numeric page id", *got.PageNumber)
	}
}

func TestTriggerIgnoresEmptySnapshot(t *testing.T) {
	backend := &fakeBackend{fn: func(_ context.Context, req *Request, _ int) (*Response, error) {
		return okResponse(req.SelectedText), nil
	}}
	c := NewCoordinator(backend, Config{})
	trigger := NewTrigger(c, "doc_1", "zh-CN", nil)

	trigger.RequestTranslation(false)
	time.Sleep(30 * time.Millisecond)
	if got := backend.callCount(); got != 0 {
		t.Fatalf("backend calls = %d, want 0 without a settled selection", got)
	}
}

func TestTriggerSelectionClearedGoesIdle(t *testing.T) {
	backend := &fakeBackend{fn: func(_ context.Context, req *Request, _ int) (*Response, error) {
		return okResponse(req.SelectedText), nil
	}}
	c := NewCoordinator(backend, Config{})
	trigger := NewTrigger(c, "doc_1", "zh-CN", nil)

	trigger.SelectionChanged(settledSnapshot("mitigate", ""), nil)
	trigger.RequestTranslation(false)
	waitForCalls(t, backend, 1)

	trigger.SelectionCleared()
	if st := c.CurrentState(); st.Status != StatusIdle {
		t.Fatalf("status after clear = %q, want %q", st.Status, StatusIdle)
	}

	// The snapshot is gone; a stray press must not resurrect the request.
	trigger.RequestTranslation(false)
	time.Sleep(30 * time.Millisecond)
	if got := backend.callCount(); got != 1 {
		t.Fatalf("backend calls after clear = %d, want 1", got)
	}
}

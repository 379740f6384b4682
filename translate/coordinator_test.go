package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, req *Request, call int) (*Response, error)
}

func (b *fakeBackend) Translate(ctx context.Context, req *Request) (*Response, error) {
	b.mu.Lock()
	b.calls++
	call := b.calls
	fn := b.fn
	b.mu.Unlock()
	return fn(ctx, req, call)
}

func (b *fakeBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func okResponse(text string) *Response {
	return &Response{
		Mode:           "word",
		DetectedMode:   "word",
		SourceText:     text,
		TargetLanguage: "zh-CN",
		Result:         json.RawMessage(`{"primary_translation_cn":"译文"}`),
	}
}

type stateRec struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRec) listen(st State) {
	r.mu.Lock()
	r.states = append(r.states, st)
	r.mu.Unlock()
}

func (r *stateRec) last() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return State{}
	}
	return r.states[len(r.states)-1]
}

func (r *stateRec) sawErrorFor(fp string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range r.states {
		if st.Status == StatusError && st.Fingerprint == fp {
			return true
		}
	}
	return false
}

func wordRequest(text string) *Request {
	return &Request{
		DocumentID:        "doc_1",
		SelectedText:      text,
		SelectionTypeHint: "auto",
		TargetLanguage:    "zh-CN",
	}
}

func TestTranslate_SecondCallServedFromCache(t *testing.T) {
	backend := &fakeBackend{fn: func(_ context.Context, req *Request, _ int) (*Response, error) {
		return okResponse(req.SelectedText), nil
	}}
	c := NewCoordinator(backend, Config{})

	first, err := c.Translate(context.Background(), wordRequest("mitigate"), false)
	if err != nil {
		t.Fatalf("first translate: %v", err)
	}
	second, err := c.Translate(context.Background(), wordRequest("mitigate"), false)
	if err != nil {
		t.Fatalf("second translate: %v", err)
	}
	if backend.callCount() != 1 {
		t.Errorf("backend calls = %d, want 1 (second resolves from cache)", backend.callCount())
	}
	if first != second {
		t.Errorf("cache returned a different response instance")
	}
}

func TestTranslate_FingerprintIgnoresSurfaceFormatting(t *testing.T) {
	backend := &fakeBackend{fn: func(_ context.Context, req *Request, _ int) (*Response, error) {
		return okResponse(req.SelectedText), nil
	}}
	c := NewCoordinator(backend, Config{})

	if _, err := c.Translate(context.Background(), wordRequest("Domain  Shift"), false); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Translate(context.Background(), wordRequest("domain shift"), false); err != nil {
		t.Fatal(err)
	}
	if backend.callCount() != 1 {
		t.Errorf("backend calls = %d, want 1 (same fingerprint)", backend.callCount())
	}
}

func TestTranslate_ConcurrentIdenticalRequestsShareOneCall(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{fn: func(ctx context.Context, req *Request, _ int) (*Response, error) {
		select {
		case <-release:
			return okResponse(req.SelectedText), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}
	c := NewCoordinator(backend, Config{})

	var wg sync.WaitGroup
	results := make([]*Response, 2)
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.Translate(context.Background(), wordRequest("dedup"), false)
		}(i)
	}

	// Let both goroutines reach the coordinator before releasing.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if backend.callCount() != 1 {
		t.Errorf("backend calls = %d, want 1", backend.callCount())
	}
	if results[0] == nil || results[0] != results[1] {
		t.Errorf("concurrent callers got different results: %v vs %v", results[0], results[1])
	}
}

func TestTranslate_SlowOldRequestNeverOverwritesNewResult(t *testing.T) {
	backend := &fakeBackend{fn: func(_ context.Context, req *Request, _ int) (*Response, error) {
		// Deliberately ignores cancellation: the old call keeps running
		// and resolves after the new one.
		if req.SelectedText == "mitigate" {
			time.Sleep(120 * time.Millisecond)
		}
		return okResponse(req.SelectedText), nil
	}}
	c := NewCoordinator(backend, Config{})
	rec := &stateRec{}
	c.AddListener(rec.listen)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.Translate(context.Background(), wordRequest("mitigate"), false) // slow A
	}()
	time.Sleep(20 * time.Millisecond)
	go func() {
		defer wg.Done()
		c.Translate(context.Background(), wordRequest("covariate"), false) // fast B
	}()
	wg.Wait()

	st := c.CurrentState()
	if st.Status != StatusDone || st.Response.SourceText != "covariate" {
		t.Fatalf("visible state = %+v, want B's result", st)
	}
	if rec.last().Response.SourceText != "covariate" {
		t.Errorf("last published state is %q, want covariate", rec.last().Response.SourceText)
	}

	// A's late result was cached silently.
	if _, ok := c.cache.Get(Fingerprint(wordRequest("mitigate"))); !ok {
		t.Errorf("slow request's result missing from cache")
	}
}

func TestTranslate_TransientFailureRetriedOnce(t *testing.T) {
	backend := &fakeBackend{fn: func(_ context.Context, req *Request, call int) (*Response, error) {
		if call == 1 {
			return nil, fmt.Errorf("provider busy, please retry")
		}
		return okResponse(req.SelectedText), nil
	}}
	c := NewCoordinator(backend, Config{RetryDelay: time.Millisecond})

	resp, err := c.Translate(context.Background(), wordRequest("retry me"), false)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if backend.callCount() != 2 {
		t.Errorf("backend calls = %d, want 2", backend.callCount())
	}
	if resp.SourceText != "retry me" {
		t.Errorf("resp = %+v", resp)
	}
	if c.CurrentState().Status != StatusDone {
		t.Errorf("status = %s, want done", c.CurrentState().Status)
	}
}

func TestTranslate_NonTransientFailsImmediately(t *testing.T) {
	backend := &fakeBackend{fn: func(context.Context, *Request, int) (*Response, error) {
		return nil, errors.New("selection text rejected by provider")
	}}
	c := NewCoordinator(backend, Config{RetryDelay: time.Millisecond})

	_, err := c.Translate(context.Background(), wordRequest("bad"), false)
	if err == nil {
		t.Fatal("want error")
	}
	if backend.callCount() != 1 {
		t.Errorf("backend calls = %d, want 1 (no retry for non-transient)", backend.callCount())
	}
	if c.CurrentState().Status != StatusError {
		t.Errorf("status = %s, want error", c.CurrentState().Status)
	}
}

func TestTranslate_RetryBoundIsHonored(t *testing.T) {
	backend := &fakeBackend{fn: func(context.Context, *Request, int) (*Response, error) {
		return nil, HTTPError{StatusCode: 503, Message: "service unavailable"}
	}}
	c := NewCoordinator(backend, Config{MaxAttempts: 2, RetryDelay: time.Millisecond})

	_, err := c.Translate(context.Background(), wordRequest("doomed"), false)
	if err == nil {
		t.Fatal("want terminal error after exhausting attempts")
	}
	if backend.callCount() != 2 {
		t.Errorf("backend calls = %d, want exactly 2", backend.callCount())
	}
	st := c.CurrentState()
	if st.Status != StatusError {
		t.Errorf("final status = %s, want error (never stuck loading)", st.Status)
	}
}

func TestTranslate_WallClockTimeout(t *testing.T) {
	backend := &fakeBackend{fn: func(ctx context.Context, _ *Request, _ int) (*Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	c := NewCoordinator(backend, Config{Timeout: 30 * time.Millisecond})

	_, err := c.Translate(context.Background(), wordRequest("slowpoke"), false)
	var te TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want TimeoutError", err)
	}
	st := c.CurrentState()
	if st.Status != StatusError {
		t.Errorf("status = %s, want error (timeout while still latest)", st.Status)
	}
	if !errors.As(st.Err, &te) {
		t.Errorf("published err = %v, want TimeoutError", st.Err)
	}
}

func TestTranslate_SupersededAbortStaysSilent(t *testing.T) {
	backend := &fakeBackend{fn: func(ctx context.Context, req *Request, _ int) (*Response, error) {
		if req.SelectedText == "old" {
			<-ctx.Done() // aborted by the newer request
			return nil, ctx.Err()
		}
		return okResponse(req.SelectedText), nil
	}}
	c := NewCoordinator(backend, Config{})
	rec := &stateRec{}
	c.AddListener(rec.listen)

	oldFP := Fingerprint(wordRequest("old"))
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Translate(context.Background(), wordRequest("old"), false)
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	if _, err := c.Translate(context.Background(), wordRequest("new"), false); err != nil {
		t.Fatalf("new translate: %v", err)
	}

	if err := <-errCh; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("old request err = %v, want ErrSuperseded", err)
	}
	if rec.sawErrorFor(oldFP) {
		t.Error("superseded abort surfaced an error state")
	}
	if c.CurrentState().Response.SourceText != "new" {
		t.Errorf("visible result = %+v, want the new request's", c.CurrentState().Response)
	}
}

func TestTranslate_MissingDocumentFailsFast(t *testing.T) {
	backend := &fakeBackend{fn: func(context.Context, *Request, int) (*Response, error) {
		t.Fatal("network call issued without document context")
		return nil, nil
	}}
	c := NewCoordinator(backend, Config{})

	req := wordRequest("no doc")
	req.DocumentID = ""
	_, err := c.Translate(context.Background(), req, false)
	var nce NoContextError
	if !errors.As(err, &nce) {
		t.Fatalf("err = %v, want NoContextError", err)
	}
	if backend.callCount() != 0 {
		t.Errorf("backend calls = %d, want 0", backend.callCount())
	}
}

func TestRetryLast_BypassesCacheAndDedup(t *testing.T) {
	backend := &fakeBackend{fn: func(_ context.Context, req *Request, _ int) (*Response, error) {
		return okResponse(req.SelectedText), nil
	}}
	c := NewCoordinator(backend, Config{})

	if _, err := c.Translate(context.Background(), wordRequest("again"), false); err != nil {
		t.Fatal(err)
	}
	if _, err := c.RetryLast(context.Background()); err != nil {
		t.Fatal(err)
	}
	if backend.callCount() != 2 {
		t.Errorf("backend calls = %d, want 2 (force replay)", backend.callCount())
	}
}

func TestClear_CancelsOutstandingAndResetsState(t *testing.T) {
	started := make(chan struct{})
	backend := &fakeBackend{fn: func(ctx context.Context, _ *Request, _ int) (*Response, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	c := NewCoordinator(backend, Config{})
	rec := &stateRec{}
	c.AddListener(rec.listen)

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Translate(context.Background(), wordRequest("cancel me"), false)
		errCh <- err
	}()
	<-started
	c.Clear()

	if err := <-errCh; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("cleared request err = %v, want ErrSuperseded", err)
	}
	if st := c.CurrentState(); st.Status != StatusIdle {
		t.Errorf("status = %s, want idle", st.Status)
	}
}

func TestFingerprint_Components(t *testing.T) {
	base := wordRequest("text")
	same := wordRequest("  TEXT ")
	if Fingerprint(base) != Fingerprint(same) {
		t.Error("case and whitespace must not change the fingerprint")
	}

	diffCtx := wordRequest("text")
	diffCtx.ContextBefore = "different context"
	if Fingerprint(base) == Fingerprint(diffCtx) {
		t.Error("context change must change the fingerprint")
	}

	page := 3
	diffPage := wordRequest("text")
	diffPage.PageNumber = &page
	if Fingerprint(base) == Fingerprint(diffPage) {
		t.Error("page change must change the fingerprint")
	}
}

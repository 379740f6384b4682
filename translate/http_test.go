package translate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPBackend_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/translation/selection" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("auth header = %q", got)
		}
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.SelectedText != "covariate shift" {
			t.Errorf("selected_text = %q", req.SelectedText)
		}
		json.NewEncoder(w).Encode(Response{
			Mode:           "term",
			DetectedMode:   "term",
			SourceText:     req.SelectedText,
			TargetLanguage: req.TargetLanguage,
			Result:         json.RawMessage(`{"translation_cn":"协变量偏移"}`),
			Meta:           Meta{Confidence: 0.9},
		})
	}))
	defer srv.Close()

	b := &HTTPBackend{BaseURL: srv.URL, AuthToken: "tok-1"}
	resp, err := b.Translate(context.Background(), &Request{
		DocumentID:     "doc_1",
		SelectedText:   "covariate shift",
		TargetLanguage: "zh-CN",
	})
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if resp.Mode != "term" || resp.Meta.Confidence != 0.9 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHTTPBackend_ErrorPayloadKeptForClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "daily quota exhausted"})
	}))
	defer srv.Close()

	b := &HTTPBackend{BaseURL: srv.URL}
	_, err := b.Translate(context.Background(), &Request{DocumentID: "d", SelectedText: "x"})
	var he HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("err = %v, want HTTPError", err)
	}
	if he.StatusCode != 429 || he.Message != "daily quota exhausted" {
		t.Errorf("HTTPError = %+v", he)
	}
	if !Transient(err) {
		t.Error("429 must classify as transient")
	}
}

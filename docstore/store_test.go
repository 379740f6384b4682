package docstore

import (
	"context"
	"strings"
	"testing"
	"time"
)

func testUser(t *testing.T, s *Store) *User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), "reader@example.com", "$2a$10$hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestUserRoundTrip(t *testing.T) {
	s := OpenMemory(t)
	u := testUser(t, s)
	if !strings.HasPrefix(u.ID, "usr_") {
		t.Errorf("id = %q, want usr_ prefix", u.ID)
	}

	got, err := s.UserByEmail(context.Background(), "reader@example.com")
	if err != nil {
		t.Fatalf("user by email: %v", err)
	}
	if got.ID != u.ID || got.PasswordHash != u.PasswordHash {
		t.Errorf("got %+v, want %+v", got, u)
	}

	if _, err := s.UserByEmail(context.Background(), "nobody@example.com"); err != ErrNotFound {
		t.Errorf("missing user err = %v, want ErrNotFound", err)
	}

	if _, err := s.CreateUser(context.Background(), "reader@example.com", "x"); err == nil {
		t.Error("duplicate email accepted")
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	s := OpenMemory(t)
	u := testUser(t, s)

	doc := &Document{
		UserID:     u.ID,
		Title:      "On Domain Adaptation",
		SourceKind: "pdf",
		SourceRef:  "paper.pdf",
		RawText:    "page one text page two text",
		Quality:    0.92,
		PageOffsets: map[int][2]int{
			1: {0, 13},
			2: {13, 27},
		},
	}
	if err := s.CreateDocument(context.Background(), doc); err != nil {
		t.Fatalf("create document: %v", err)
	}
	if !strings.HasPrefix(doc.ID, "doc_") {
		t.Errorf("id = %q", doc.ID)
	}

	got, err := s.GetDocument(context.Background(), u.ID, doc.ID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if got.Title != doc.Title || got.RawText != doc.RawText {
		t.Errorf("got %+v", got)
	}
	if got.PageOffsets[2] != [2]int{13, 27} {
		t.Errorf("page offsets = %v", got.PageOffsets)
	}

	// Ownership scoping: another user must not see the document.
	u2, err := s.CreateUser(context.Background(), "other@example.com", "h")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetDocument(context.Background(), u2.ID, doc.ID); err != ErrNotFound {
		t.Errorf("cross-user get err = %v, want ErrNotFound", err)
	}

	list, err := s.ListDocuments(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != doc.ID {
		t.Errorf("list = %+v", list)
	}
	if list[0].Quality != 0.92 {
		t.Errorf("quality = %v", list[0].Quality)
	}
}

func TestUsageAccounting(t *testing.T) {
	s := OpenMemory(t)
	u := testUser(t, s)

	rec := UsageRecord{
		UserID: u.ID, DocumentID: "doc_x", Mode: "word",
		SourceChars: 10, ContextChars: 200, OutputChars: 300,
	}
	if err := s.RecordUsage(context.Background(), rec); err != nil {
		t.Fatalf("record usage: %v", err)
	}
	cachedRec := rec
	cachedRec.Cached = true
	if err := s.RecordUsage(context.Background(), cachedRec); err != nil {
		t.Fatal(err)
	}

	total, err := s.UsageCharsSince(context.Background(), u.ID, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("usage since: %v", err)
	}
	// Cache hits do not count against quota.
	if total != 510 {
		t.Errorf("total = %d, want 510", total)
	}

	future, err := s.UsageCharsSince(context.Background(), u.ID, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if future != 0 {
		t.Errorf("future window total = %d, want 0", future)
	}
}

func TestTranslationCache(t *testing.T) {
	s := OpenMemory(t)

	if _, ok := s.CacheGet(context.Background(), "k1"); ok {
		t.Error("empty cache returned a payload")
	}

	if err := s.CachePut(context.Background(), "k1", []byte(`{"mode":"word"}`), time.Minute); err != nil {
		t.Fatalf("cache put: %v", err)
	}
	payload, ok := s.CacheGet(context.Background(), "k1")
	if !ok || string(payload) != `{"mode":"word"}` {
		t.Errorf("cache get = %q, %v", payload, ok)
	}

	// Overwrite wins.
	if err := s.CachePut(context.Background(), "k1", []byte(`{"mode":"term"}`), time.Minute); err != nil {
		t.Fatal(err)
	}
	payload, _ = s.CacheGet(context.Background(), "k1")
	if string(payload) != `{"mode":"term"}` {
		t.Errorf("after overwrite = %q", payload)
	}

	// Expired entries are invisible.
	if err := s.CachePut(context.Background(), "k2", []byte("x"), -time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.CacheGet(context.Background(), "k2"); ok {
		t.Error("expired entry served")
	}
}

package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a row does not exist or is not visible to
// the requesting user.
var ErrNotFound = errors.New("docstore: not found")

// Store wraps the SQLite handle. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle for components that share the file,
// such as the telemetry event log.
func (s *Store) DB() *sql.DB { return s.db }

// User is an account row. PasswordHash is bcrypt.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// CreateUser inserts a new account. Duplicate emails fail.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (*User, error) {
	u := &User{
		ID:           NewID("usr"),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.CreatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("docstore: create user: %w", err)
	}
	return u, nil
}

// UserByEmail loads an account for login.
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: user by email: %w", err)
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	return &u, nil
}

// Document is an imported paper or article.
type Document struct {
	ID         string
	UserID     string
	Title      string
	SourceKind string // "pdf" or "article"
	SourceRef  string
	RawText    string
	Quality    float64
	CreatedAt  time.Time
	// PageOffsets maps 1-based page numbers to [start, end) byte ranges
	// in RawText. Empty for articles.
	PageOffsets map[int][2]int
}

// CreateDocument inserts the document and its page offset rows in one
// transaction. The ID is assigned here.
func (s *Store) CreateDocument(ctx context.Context, doc *Document) error {
	doc.ID = NewID("doc")
	doc.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("docstore: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, user_id, title, source_kind, source_ref, raw_text, quality, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.UserID, doc.Title, doc.SourceKind, doc.SourceRef, doc.RawText, doc.Quality, doc.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("docstore: insert document: %w", err)
	}

	for page, span := range doc.PageOffsets {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO pages (document_id, page_number, start_offset, end_offset) VALUES (?, ?, ?, ?)`,
			doc.ID, page, span[0], span[1])
		if err != nil {
			return fmt.Errorf("docstore: insert page %d: %w", page, err)
		}
	}
	return tx.Commit()
}

// GetDocument loads a document owned by userID, including page offsets.
func (s *Store) GetDocument(ctx context.Context, userID, id string) (*Document, error) {
	var doc Document
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, source_kind, source_ref, raw_text, quality, created_at
		 FROM documents WHERE id = ? AND user_id = ?`, id, userID).
		Scan(&doc.ID, &doc.UserID, &doc.Title, &doc.SourceKind, &doc.SourceRef,
			&doc.RawText, &doc.Quality, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: get document: %w", err)
	}
	doc.CreatedAt = time.Unix(created, 0).UTC()

	rows, err := s.db.QueryContext(ctx,
		`SELECT page_number, start_offset, end_offset FROM pages WHERE document_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("docstore: get pages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var page, start, end int
		if err := rows.Scan(&page, &start, &end); err != nil {
			return nil, fmt.Errorf("docstore: scan page: %w", err)
		}
		if doc.PageOffsets == nil {
			doc.PageOffsets = make(map[int][2]int)
		}
		doc.PageOffsets[page] = [2]int{start, end}
	}
	return &doc, rows.Err()
}

// DocumentSummary is the list-view projection, without the full text.
type DocumentSummary struct {
	ID         string
	Title      string
	SourceKind string
	SourceRef  string
	Quality    float64
	CreatedAt  time.Time
}

// ListDocuments returns the user's documents, newest first.
func (s *Store) ListDocuments(ctx context.Context, userID string) ([]DocumentSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, source_kind, source_ref, quality, created_at
		 FROM documents WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("docstore: list documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentSummary
	for rows.Next() {
		var d DocumentSummary
		var created int64
		if err := rows.Scan(&d.ID, &d.Title, &d.SourceKind, &d.SourceRef, &d.Quality, &created); err != nil {
			return nil, fmt.Errorf("docstore: scan document: %w", err)
		}
		d.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

// UsageRecord is one translation usage row.
type UsageRecord struct {
	UserID       string
	DocumentID   string
	Mode         string
	SourceChars  int
	ContextChars int
	OutputChars  int
	Cached       bool
}

// RecordUsage appends to the translation usage log.
func (s *Store) RecordUsage(ctx context.Context, u UsageRecord) error {
	cached := 0
	if u.Cached {
		cached = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO translation_usage
		 (id, user_id, document_id, mode, source_chars, context_chars, output_chars, cached, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		NewID("use"), u.UserID, u.DocumentID, u.Mode,
		u.SourceChars, u.ContextChars, u.OutputChars, cached, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("docstore: record usage: %w", err)
	}
	return nil
}

// UsageCharsSince sums the user's billed characters (source + context +
// output) since the cutoff. Quota checks build on this.
func (s *Store) UsageCharsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(source_chars + context_chars + output_chars)
		 FROM translation_usage WHERE user_id = ? AND created_at >= ? AND cached = 0`,
		userID, since.Unix()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("docstore: usage since: %w", err)
	}
	return int(total.Int64), nil
}

// CacheGet returns a non-expired cached translation payload.
func (s *Store) CacheGet(ctx context.Context, key string) ([]byte, bool) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM translation_cache WHERE cache_key = ? AND expires_at > ?`,
		key, time.Now().Unix()).Scan(&payload)
	if err != nil {
		return nil, false
	}
	return payload, true
}

// CachePut upserts a cached translation payload with the given lifetime.
// Expired rows are swept opportunistically.
func (s *Store) CachePut(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO translation_cache (cache_key, payload, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at`,
		key, payload, now.Add(ttl).Unix())
	if err != nil {
		return fmt.Errorf("docstore: cache put: %w", err)
	}
	_, _ = s.db.ExecContext(ctx,
		`DELETE FROM translation_cache WHERE expires_at <= ?`, now.Unix())
	return nil
}

// Package telemetry records product events to SQLite. Recording is
// best-effort: a failing event store logs a warning and never blocks or
// fails the calling operation.
package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Zemacs/openpaper/docstore"
)

// Schema is the DDL for the event log. Applied by NewTracker; exported so
// shared-file deployments can fold it into their own schema management.
const Schema = `
CREATE TABLE IF NOT EXISTS product_events (
    event_id   TEXT PRIMARY KEY,
    event_name TEXT NOT NULL,
    user_id    TEXT NOT NULL DEFAULT '',
    properties TEXT NOT NULL DEFAULT '{}',
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_name_time
    ON product_events(event_name, created_at DESC);
`

// Event is one recorded product event.
type Event struct {
	ID         string
	Name       string
	UserID     string
	Properties map[string]any
	CreatedAt  time.Time
}

// Tracker writes events asynchronously through a bounded buffer. When the
// buffer is full the event is dropped with a warning; telemetry never
// applies backpressure to request handling.
type Tracker struct {
	db     *sql.DB
	logger *slog.Logger
	ch     chan Event
	stop   chan struct{}
	done   chan struct{}
}

// NewTracker applies the schema and starts the flush loop. A buffer of a
// few hundred events rides out short write stalls.
func NewTracker(db *sql.DB, bufferSize int, logger *slog.Logger) (*Tracker, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("telemetry: apply schema: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}
	t := &Tracker{
		db:     db,
		logger: logger,
		ch:     make(chan Event, bufferSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go t.flushLoop()
	return t, nil
}

// Track queues an event. Never blocks.
func (t *Tracker) Track(event, userID string, props map[string]any) {
	e := Event{
		ID:         docstore.NewID("evt"),
		Name:       event,
		UserID:     userID,
		Properties: props,
		CreatedAt:  time.Now().UTC(),
	}
	select {
	case t.ch <- e:
	case <-t.stop:
	default:
		t.logger.Warn("telemetry buffer full, event dropped", "event", event)
	}
}

// Close drains queued events and stops the flush loop.
func (t *Tracker) Close() {
	close(t.stop)
	<-t.done
}

func (t *Tracker) flushLoop() {
	defer close(t.done)
	for {
		select {
		case e := <-t.ch:
			t.insert(e)
		case <-t.stop:
			for {
				select {
				case e := <-t.ch:
					t.insert(e)
				default:
					return
				}
			}
		}
	}
}

func (t *Tracker) insert(e Event) {
	props := "{}"
	if len(e.Properties) > 0 {
		if b, err := json.Marshal(e.Properties); err == nil {
			props = string(b)
		}
	}
	_, err := t.db.Exec(
		`INSERT INTO product_events (event_id, event_name, user_id, properties, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.UserID, props, e.CreatedAt.Unix())
	if err != nil {
		t.logger.Warn("telemetry event insert failed", "event", e.Name, "error", err)
	}
}

// RecentEvents returns the newest events with the given name, for tests
// and local inspection.
func (t *Tracker) RecentEvents(ctx context.Context, name string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := t.db.QueryContext(ctx,
		`SELECT event_id, event_name, user_id, properties, created_at
		 FROM product_events WHERE event_name = ?
		 ORDER BY created_at DESC, event_id DESC LIMIT ?`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("telemetry: query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var props string
		var created int64
		if err := rows.Scan(&e.ID, &e.Name, &e.UserID, &props, &created); err != nil {
			return nil, fmt.Errorf("telemetry: scan event: %w", err)
		}
		e.CreatedAt = time.Unix(created, 0).UTC()
		if err := json.Unmarshal([]byte(props), &e.Properties); err != nil {
			e.Properties = nil
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

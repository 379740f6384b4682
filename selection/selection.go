// Package selection tracks the lifecycle of a reader's text selection
// inside a scrollable document view.
//
// A Controller consumes pointer, keyboard, selection-change and content
// events from the view, decides when a gesture has settled, and publishes an
// immutable Snapshot together with tight overlay rectangles. All state is
// owned by a single event-loop goroutine; the public API posts events and
// reads a guarded copy of the latest snapshot.
package selection

import (
	"time"

	"github.com/Zemacs/openpaper/overlay"
)

// State is the controller's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateSelecting
	StateSettling
	StateActive
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelecting:
		return "selecting"
	case StateSettling:
		return "settling"
	case StateActive:
		return "active"
	}
	return "unknown"
}

// Source records how a snapshot came to exist.
type Source string

const (
	SourceDrag         Source = "drag"
	SourceProgrammatic Source = "programmatic"
)

// Snapshot is the settled selection. It is replaced wholesale on every new
// settle, never mutated, and cleared to the zero value on IDLE.
type Snapshot struct {
	Text          string
	Anchor        overlay.Point
	ContextBefore string
	ContextAfter  string
	PageID        string
	Source        Source
}

// Empty reports whether the snapshot holds no selection.
func (s Snapshot) Empty() bool { return s.Text == "" }

// View is the scoped container the controller observes. Implementations
// bridge a real document view (see docview) or a test fake.
type View interface {
	// CurrentRange returns the live selection range when it is non-collapsed
	// and intersects the container. ok is false otherwise.
	CurrentRange() (rng overlay.Range, ok bool)
	// Container returns the scrollable container for geometry work.
	Container() overlay.Container
	// PageID maps a range to the page or section it falls in ("" if unknown).
	PageID(rng overlay.Range) string
}

// Listener receives settled-selection notifications.
type Listener interface {
	SelectionChanged(snap Snapshot, rects []overlay.Rect)
	SelectionCleared()
}

// Event is an input to the controller. The view adapter posts these from
// DOM activity; tests post them directly.
type Event interface{ isEvent() }

// PointerDown marks a primary-button press inside the container.
type PointerDown struct{ X, Y float64 }

// PointerUp marks the matching release.
type PointerUp struct{ X, Y float64 }

// SelectionChange signals the document-scoped selectionchange notification.
type SelectionChange struct{}

// Escape signals the Escape key.
type Escape struct{}

// OutsideClick signals a click outside the container with no live selection.
type OutsideClick struct{}

// ContentChanged signals that the container's content mutated.
type ContentChanged struct{}

// Clear is the explicit API request to drop the selection.
type Clear struct{}

// settleTimeout fires when a pointer-up was never observed.
type settleTimeout struct{ seq uint64 }

func (PointerDown) isEvent()     {}
func (PointerUp) isEvent()       {}
func (SelectionChange) isEvent() {}
func (Escape) isEvent()          {}
func (OutsideClick) isEvent()    {}
func (ContentChanged) isEvent()  {}
func (Clear) isEvent()           {}
func (settleTimeout) isEvent()   {}

// Config tunes the controller. Zero values take the defaults below.
type Config struct {
	// SettleTimeout force-settles a gesture whose pointer-up was lost
	// (focus loss, drag out of the viewport). Default 2.5s.
	SettleTimeout time.Duration
	// DragThreshold is the minimum pointer travel, in pixels, for the
	// drag-end point to win over the range geometry as anchor. Default 4.
	DragThreshold float64
	// ContextWindow bounds each context slice in runes. Default 220.
	ContextWindow int
	// CharBudget is passed through to overlay.Compute. Default 2400.
	CharBudget int
}

func (c *Config) defaults() {
	if c.SettleTimeout <= 0 {
		c.SettleTimeout = 2500 * time.Millisecond
	}
	if c.DragThreshold <= 0 {
		c.DragThreshold = 4
	}
	if c.ContextWindow <= 0 {
		c.ContextWindow = 220
	}
	if c.CharBudget <= 0 {
		c.CharBudget = overlay.DefaultCharBudget
	}
}

package selection

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/Zemacs/openpaper/overlay"
)

// Controller owns the selection state machine. Create one per document view
// with NewController, register listeners, then Start it.
type Controller struct {
	cfg      Config
	view     View
	logger   *slog.Logger
	events   chan Event
	done     chan struct{}
	stopOnce sync.Once

	// Loop-owned state. Never touched outside run().
	state    State
	downAt   overlay.Point
	upAt     overlay.Point
	dragged  bool
	timerSeq uint64
	timer    *time.Timer

	listeners []Listener

	// Guarded copies for external readers.
	mu        sync.RWMutex
	stateCopy State
	snapshot  Snapshot
	rects     []overlay.Rect
	activeKey string
}

// NewController creates a Controller over the given view.
func NewController(view View, cfg Config, logger *slog.Logger) *Controller {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		cfg:    cfg,
		view:   view,
		logger: logger,
		events: make(chan Event, 256),
		done:   make(chan struct{}),
		state:  StateIdle,
	}
}

// AddListener registers a listener. Call before Start.
func (c *Controller) AddListener(l Listener) {
	c.listeners = append(c.listeners, l)
}

// Start launches the event loop.
func (c *Controller) Start() {
	go c.run()
}

// Close stops the loop. Pending events are dropped.
func (c *Controller) Close() {
	c.stopOnce.Do(func() { close(c.done) })
}

// Post delivers an event to the controller. It never blocks: when the
// buffer is full the event is dropped, which only ever loses an
// intermediate update, never a terminal one the next event won't redo.
func (c *Controller) Post(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	default:
		c.logger.Warn("selection: event buffer full, dropping", "event", fmt.Sprintf("%T", ev))
	}
}

// State returns the current lifecycle state. Test and diagnostic use;
// consumers should rely on listener callbacks instead.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stateCopy
}

// Snapshot returns the latest settled snapshot and its overlay rectangles.
func (c *Controller) Snapshot() (Snapshot, []overlay.Rect) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rects := make([]overlay.Rect, len(c.rects))
	copy(rects, c.rects)
	return c.snapshot, rects
}

func (c *Controller) run() {
	for {
		select {
		case <-c.done:
			c.stopTimer()
			return
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

func (c *Controller) handle(ev Event) {
	switch e := ev.(type) {
	case PointerDown:
		c.enterSelecting(overlay.Point{X: e.X, Y: e.Y})

	case PointerUp:
		if c.state != StateSelecting {
			return
		}
		c.stopTimer()
		c.upAt = overlay.Point{X: e.X, Y: e.Y}
		c.dragged = dist(c.downAt, c.upAt) >= c.cfg.DragThreshold
		c.settle(SourceDrag)

	case settleTimeout:
		// Stale timers from an already finished gesture are ignored.
		if c.state != StateSelecting || e.seq != c.timerSeq {
			return
		}
		c.logger.Debug("selection: settle safety timeout fired")
		c.dragged = false
		c.settle(SourceDrag)

	case SelectionChange:
		// During an active drag the browser fires selectionchange
		// continuously; the settle happens on pointer-up instead.
		if c.state == StateSelecting {
			return
		}
		c.dragged = false
		c.settle(SourceProgrammatic)

	case Escape, OutsideClick, ContentChanged, Clear:
		c.stopTimer()
		c.clear()
	}
}

func (c *Controller) enterSelecting(p overlay.Point) {
	c.stopTimer()
	c.state = StateSelecting
	c.downAt = p
	c.dragged = false
	c.setStateCopy(StateSelecting)

	c.timerSeq++
	seq := c.timerSeq
	c.timer = time.AfterFunc(c.cfg.SettleTimeout, func() {
		c.Post(settleTimeout{seq: seq})
	})
}

func (c *Controller) setStateCopy(s State) {
	c.mu.Lock()
	c.stateCopy = s
	c.mu.Unlock()
}

// settle reads the live selection and either activates a snapshot or falls
// back to IDLE. Every extraction step degrades gracefully: a measurement
// failure yields a partial snapshot, never a blocked selection.
func (c *Controller) settle(source Source) {
	c.state = StateSettling
	c.setStateCopy(StateSettling)

	rng, ok := c.view.CurrentRange()
	if !ok {
		c.clear()
		return
	}

	text := normalizeText(overlay.RangeText(rng))
	if text == "" {
		c.clear()
		return
	}

	rects := overlay.Compute(rng, c.view.Container(), overlay.WithCharBudget(c.cfg.CharBudget))
	before, after := overlay.Context(rng, c.cfg.ContextWindow)

	snap := Snapshot{
		Text:          text,
		Anchor:        c.anchorFor(rects),
		ContextBefore: before,
		ContextAfter:  after,
		PageID:        c.view.PageID(rng),
		Source:        source,
	}

	key := selectionKey(text, rects)
	c.mu.Lock()
	identical := key != "" && key == c.activeKey
	if !identical {
		c.snapshot = snap
		c.rects = rects
		c.activeKey = key
	}
	c.stateCopy = StateActive
	c.mu.Unlock()
	c.state = StateActive

	if identical {
		// Incidental re-selection of the same text and geometry: state is
		// left as it was so downstream effects do not re-fire.
		return
	}

	for _, l := range c.listeners {
		l.SelectionChanged(snap, rects)
	}
}

func (c *Controller) clear() {
	wasActive := c.state == StateActive
	c.state = StateIdle
	c.mu.Lock()
	hadSnapshot := !c.snapshot.Empty()
	c.snapshot = Snapshot{}
	c.rects = nil
	c.activeKey = ""
	c.stateCopy = StateIdle
	c.mu.Unlock()

	if wasActive || hadSnapshot {
		for _, l := range c.listeners {
			l.SelectionCleared()
		}
	}
}

// anchorFor prefers the explicit drag-end point when the user visibly
// dragged; otherwise the bottom center of the overlay's bounding box.
func (c *Controller) anchorFor(rects []overlay.Rect) overlay.Point {
	if c.dragged {
		return c.upAt
	}
	if len(rects) == 0 {
		return c.downAt
	}
	box := rects[0]
	for _, r := range rects[1:] {
		box = box.Union(r)
	}
	return overlay.Point{X: box.Left + box.Width/2, Y: box.Bottom()}
}

func (c *Controller) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func dist(a, b overlay.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// normalizeText collapses all whitespace runs to single spaces and trims.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// selectionKey derives the idempotence key from the normalized text plus a
// coarse geometry signature, so the same logical selection reached through
// different event paths is processed once.
func selectionKey(text string, rects []overlay.Rect) string {
	var sb strings.Builder
	sb.WriteString(text)
	for _, r := range rects {
		fmt.Fprintf(&sb, "|%.0f,%.0f,%.0f,%.0f", r.Left, r.Top, r.Width, r.Height)
	}
	return sb.String()
}

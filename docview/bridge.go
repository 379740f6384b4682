package docview

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod/lib/proto"
)

//go:embed bridge.js
var bridgeJS string

const bridgeBinding = "__openpaper_bridge"

// BridgeEvent is one DOM activity notification from the page.
type BridgeEvent struct {
	Type  string  `json:"type"` // pointerdown | pointerup | outsidedown | selectionchange | keydown | contentchanged
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Key   string  `json:"key"`
	Ctrl  bool    `json:"ctrl"`
	Meta  bool    `json:"meta"`
	Alt   bool    `json:"alt"`
	Shift bool    `json:"shift"`
}

// Bridge receives page events through a runtime binding.
type Bridge struct {
	tab    *Tab
	logger *slog.Logger
	events chan BridgeEvent
	cancel context.CancelFunc
}

// AttachBridge installs the binding and the in-page script, scoped to the
// container selector, and starts forwarding events.
func AttachBridge(ctx context.Context, tab *Tab, containerSelector string, logger *slog.Logger) (*Bridge, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if containerSelector == "" {
		containerSelector = "body"
	}

	if err := (proto.RuntimeAddBinding{Name: bridgeBinding}).Call(tab.Page); err != nil {
		logger.Warn("docview: add binding", "error", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	b := &Bridge{
		tab:    tab,
		logger: logger,
		events: make(chan BridgeEvent, 256),
		cancel: cancel,
	}
	go b.listen(ctx)

	selJSON, _ := json.Marshal(containerSelector)
	if _, err := tab.Page.Eval(fmt.Sprintf("() => { window.__openpaper_container_selector = %s; }", selJSON)); err != nil {
		cancel()
		return nil, fmt.Errorf("docview: set container selector: %w", err)
	}
	if _, err := tab.Page.Eval(bridgeJS); err != nil {
		cancel()
		return nil, fmt.Errorf("docview: inject bridge: %w", err)
	}

	return b, nil
}

// Events is the stream of page activity. Closed when the bridge detaches.
func (b *Bridge) Events() <-chan BridgeEvent {
	return b.events
}

// Close stops forwarding.
func (b *Bridge) Close() {
	b.cancel()
}

func (b *Bridge) listen(ctx context.Context) {
	defer close(b.events)
	b.tab.Page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bridgeBinding {
			return
		}
		var ev BridgeEvent
		if err := json.Unmarshal([]byte(e.Payload), &ev); err != nil {
			b.logger.Warn("docview: bridge payload", "error", err)
			return
		}
		select {
		case b.events <- ev:
		default:
			// The consumer stalled; drop rather than block the CDP loop.
			b.logger.Warn("docview: bridge event dropped", "type", ev.Type)
		}
	})()
}

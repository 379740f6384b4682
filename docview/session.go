package docview

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"

	"github.com/Zemacs/openpaper/selection"
	"github.com/Zemacs/openpaper/shortcut"
	"github.com/Zemacs/openpaper/translate"
)

// SessionConfig wires one document view.
type SessionConfig struct {
	// DocumentID identifies the document on the backend.
	DocumentID string
	// URL is the page where the document renders.
	URL string
	// ContainerSelector scopes selection capture to the reader element.
	// Default: body.
	ContainerSelector string
	TargetLanguage    string
	// Backend performs translation calls.
	Backend translate.Backend
	// Selection and Translate tune the pipeline; zero values take the
	// shipped defaults.
	Selection selection.Config
	Translate translate.Config
	// NavTimeout bounds page load. Default: 30s.
	NavTimeout time.Duration
	// OnTranslation observes translation state transitions. Optional.
	OnTranslation func(translate.State)
	// OnAction receives non-translate shortcut actions. Optional.
	OnAction func(shortcut.Action)
	Logger   *slog.Logger
}

// Session is one live document view: tab, event bridge, selection
// controller, translation coordinator and shortcut dispatcher, running
// until Close.
type Session struct {
	tab    *Tab
	bridge *Bridge
	view   *View

	Controller  *selection.Controller
	Coordinator *translate.Coordinator
	Trigger     *translate.Trigger

	dispatcher *shortcut.Dispatcher
	logger     *slog.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

// OpenSession opens the document and starts the full selection to
// translation pipeline.
func OpenSession(ctx context.Context, browser *rod.Browser, cfg SessionConfig) (*Session, error) {
	if cfg.DocumentID == "" {
		return nil, fmt.Errorf("docview: document id is required")
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("docview: translation backend is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TargetLanguage == "" {
		cfg.TargetLanguage = "zh-CN"
	}

	tab, err := OpenTab(ctx, browser, cfg.URL, cfg.NavTimeout)
	if err != nil {
		return nil, err
	}

	view, err := NewView(tab, cfg.ContainerSelector, logger)
	if err != nil {
		tab.Close()
		return nil, err
	}

	sessCtx, cancel := context.WithCancel(ctx)
	bridge, err := AttachBridge(sessCtx, tab, cfg.ContainerSelector, logger)
	if err != nil {
		cancel()
		tab.Close()
		return nil, err
	}

	coordinator := translate.NewCoordinator(cfg.Backend, cfg.Translate, translate.WithLogger(logger))
	if cfg.OnTranslation != nil {
		coordinator.AddListener(cfg.OnTranslation)
	}

	trigger := translate.NewTrigger(coordinator, cfg.DocumentID, cfg.TargetLanguage, logger)

	controller := selection.NewController(view, cfg.Selection, logger)
	controller.AddListener(trigger)

	s := &Session{
		tab:         tab,
		bridge:      bridge,
		view:        view,
		Controller:  controller,
		Coordinator: coordinator,
		Trigger:     trigger,
		dispatcher: &shortcut.Dispatcher{
			Mapper:    shortcut.NewMapper(),
			Translate: trigger,
			OnAction:  cfg.OnAction,
			Logger:    logger,
		},
		logger: logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	controller.Start()
	go s.pump()
	return s, nil
}

// Bind rebinds a shortcut chord for this session.
func (s *Session) Bind(chord string, action shortcut.Action) error {
	return s.dispatcher.Mapper.Bind(chord, action)
}

// Close tears the session down: bridge, controller, coordinator, tab.
func (s *Session) Close() {
	s.cancel()
	<-s.done
	s.Controller.Close()
	s.Coordinator.Close()
	s.tab.Close()
}

// pump converts bridge events into controller events and shortcut
// dispatches.
func (s *Session) pump() {
	defer close(s.done)
	for ev := range s.bridge.Events() {
		switch ev.Type {
		case "pointerdown":
			s.Controller.Post(selection.PointerDown{X: ev.X, Y: ev.Y})
		case "pointerup":
			s.Controller.Post(selection.PointerUp{X: ev.X, Y: ev.Y})
		case "outsidedown":
			// Only a click that finds no live selection clears state.
			if _, ok := s.view.CurrentRange(); !ok {
				s.Controller.Post(selection.OutsideClick{})
			}
		case "selectionchange":
			s.Controller.Post(selection.SelectionChange{})
		case "keydown":
			s.handleKey(ev)
		case "contentchanged":
			s.view.InvalidateNodes()
			s.Controller.Post(selection.ContentChanged{})
		}
	}
}

func (s *Session) handleKey(ev BridgeEvent) {
	if ev.Key == "Escape" {
		s.Controller.Post(selection.Escape{})
		return
	}
	chord := shortcut.FromEvent(ev.Key, ev.Ctrl, ev.Meta, ev.Alt, ev.Shift)
	if chord == "" {
		return
	}
	s.dispatcher.HandleKey(chord)
}

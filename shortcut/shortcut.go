// Package shortcut maps normalized keyboard chords to reader actions and
// forwards them to their handlers. It owns no behavior beyond the lookup:
// what an action does is decided by the callbacks wired into the Dispatcher.
package shortcut

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Action is one of the reader-level commands a chord can trigger.
type Action int

const (
	ActionNone Action = iota
	ActionTranslate
	ActionChat
	ActionHighlight
	ActionAnnotate
	ActionHelp
)

func (a Action) String() string {
	switch a {
	case ActionTranslate:
		return "translate"
	case ActionChat:
		return "chat"
	case ActionHighlight:
		return "highlight"
	case ActionAnnotate:
		return "annotate"
	case ActionHelp:
		return "help"
	default:
		return "none"
	}
}

// modAliases fold platform modifiers into one canonical set. "mod" matches
// ctrl and cmd alike so one binding table serves both platforms.
var modAliases = map[string]string{
	"ctrl":    "mod",
	"control": "mod",
	"cmd":     "mod",
	"meta":    "mod",
	"command": "mod",
	"mod":     "mod",
	"alt":     "alt",
	"option":  "alt",
	"shift":   "shift",
}

// Normalize canonicalizes a chord string: lowercase, modifiers folded and
// sorted, key last. "Shift+Ctrl+T" and "mod+shift+t" normalize identically.
func Normalize(chord string) (string, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(chord)), "+")
	var mods []string
	key := ""
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if alias, ok := modAliases[p]; ok {
			mods = append(mods, alias)
			continue
		}
		if key != "" {
			return "", fmt.Errorf("shortcut: chord %q has two keys", chord)
		}
		key = p
	}
	if key == "" {
		return "", fmt.Errorf("shortcut: chord %q has no key", chord)
	}
	sort.Strings(mods)
	mods = dedup(mods)
	return strings.Join(append(mods, key), "+"), nil
}

func dedup(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}

// FromEvent builds a normalized chord from raw key-event fields, as bridged
// from the page. Returns "" for a bare modifier press.
func FromEvent(key string, ctrl, meta, alt, shift bool) string {
	key = strings.ToLower(key)
	switch key {
	case "", "control", "meta", "alt", "shift":
		return ""
	}
	var mods []string
	if ctrl || meta {
		mods = append(mods, "mod")
	}
	if alt {
		mods = append(mods, "alt")
	}
	if shift {
		mods = append(mods, "shift")
	}
	sort.Strings(mods)
	return strings.Join(append(mods, key), "+")
}

// Mapper is the chord → action lookup table.
type Mapper struct {
	mu       sync.RWMutex
	bindings map[string]Action
}

// NewMapper returns a mapper with the default bindings installed.
func NewMapper() *Mapper {
	m := &Mapper{bindings: make(map[string]Action)}
	defaults := map[string]Action{
		"mod+t": ActionTranslate,
		"mod+j": ActionChat,
		"mod+h": ActionHighlight,
		"mod+m": ActionAnnotate,
		"mod+/": ActionHelp,
	}
	for chord, a := range defaults {
		m.bindings[chord] = a
	}
	return m
}

// Bind maps a chord to an action, replacing any previous binding for that
// chord. ActionNone removes the binding.
func (m *Mapper) Bind(chord string, a Action) error {
	norm, err := Normalize(chord)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if a == ActionNone {
		delete(m.bindings, norm)
		return nil
	}
	m.bindings[norm] = a
	return nil
}

// Resolve returns the action bound to the chord, or ActionNone.
func (m *Mapper) Resolve(chord string) Action {
	norm, err := Normalize(chord)
	if err != nil {
		return ActionNone
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bindings[norm]
}

// TranslateTrigger is the coordinator-side entry point the dispatcher
// forwards translate presses to.
type TranslateTrigger interface {
	RequestTranslation(force bool)
}

// Dispatcher resolves chords and invokes the wired handlers. Actions other
// than translate go through OnAction; unbound chords are ignored.
type Dispatcher struct {
	Mapper    *Mapper
	Translate TranslateTrigger
	// OnAction receives chat, highlight, annotate and help. Optional.
	OnAction func(Action)
	Logger   *slog.Logger
}

// HandleKey resolves the chord and dispatches. Returns true when the chord
// was bound and handled, so the caller can suppress the page default.
func (d *Dispatcher) HandleKey(chord string) bool {
	if chord == "" {
		return false
	}
	action := d.Mapper.Resolve(chord)
	if action == ActionNone {
		return false
	}
	if d.Logger != nil {
		d.Logger.Debug("shortcut dispatched", "chord", chord, "action", action.String())
	}
	if action == ActionTranslate {
		if d.Translate != nil {
			d.Translate.RequestTranslation(false)
		}
		return true
	}
	if d.OnAction != nil {
		d.OnAction(action)
	}
	return true
}

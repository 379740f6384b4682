package shortcut

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"mod+t", "mod+t"},
		{"Ctrl+T", "mod+t"},
		{"Cmd+Shift+T", "mod+shift+t"},
		{"shift+ctrl+t", "mod+shift+t"},
		{"meta+ctrl+t", "mod+t"},
		{"alt+/", "alt+/"},
		{"escape", "escape"},
	}
	for _, c := range cases {
		got, err := Normalize(c.in)
		if err != nil {
			t.Errorf("Normalize(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}

	for _, bad := range []string{"", "ctrl+", "ctrl+t+u", "shift"} {
		if _, err := Normalize(bad); err == nil {
			t.Errorf("Normalize(%q) accepted an invalid chord", bad)
		}
	}
}

func TestFromEvent(t *testing.T) {
	if got := FromEvent("T", true, false, false, false); got != "mod+t" {
		t.Errorf("ctrl+T = %q", got)
	}
	if got := FromEvent("t", false, true, false, true); got != "mod+shift+t" {
		t.Errorf("meta+shift+t = %q", got)
	}
	if got := FromEvent("Shift", false, false, false, true); got != "" {
		t.Errorf("bare modifier = %q, want empty", got)
	}
}

func TestMapperBindResolve(t *testing.T) {
	m := NewMapper()
	if got := m.Resolve("Cmd+T"); got != ActionTranslate {
		t.Errorf("default cmd+t = %s", got)
	}
	if err := m.Bind("alt+x", ActionChat); err != nil {
		t.Fatal(err)
	}
	if got := m.Resolve("Alt+X"); got != ActionChat {
		t.Errorf("alt+x = %s, want chat", got)
	}
	if err := m.Bind("alt+x", ActionNone); err != nil {
		t.Fatal(err)
	}
	if got := m.Resolve("alt+x"); got != ActionNone {
		t.Errorf("unbound alt+x = %s", got)
	}
	if got := m.Resolve("mod+q"); got != ActionNone {
		t.Errorf("unknown chord = %s", got)
	}
}

type recTrigger struct {
	calls int
	force []bool
}

func (r *recTrigger) RequestTranslation(force bool) {
	r.calls++
	r.force = append(r.force, force)
}

func TestDispatcher(t *testing.T) {
	trig := &recTrigger{}
	var actions []Action
	d := &Dispatcher{
		Mapper:    NewMapper(),
		Translate: trig,
		OnAction:  func(a Action) { actions = append(actions, a) },
	}

	if !d.HandleKey("ctrl+t") {
		t.Fatal("translate chord not handled")
	}
	if trig.calls != 1 || trig.force[0] {
		t.Errorf("trigger calls = %d force = %v", trig.calls, trig.force)
	}

	if !d.HandleKey("mod+h") {
		t.Fatal("highlight chord not handled")
	}
	if len(actions) != 1 || actions[0] != ActionHighlight {
		t.Errorf("actions = %v", actions)
	}

	if d.HandleKey("mod+q") {
		t.Error("unbound chord reported handled")
	}
	if d.HandleKey("") {
		t.Error("empty chord reported handled")
	}
}

package telemetry

import (
	"context"
	"testing"

	"github.com/Zemacs/openpaper/docstore"
)

func TestTrackerRoundTrip(t *testing.T) {
	store := docstore.OpenMemory(t)
	tracker, err := NewTracker(store.DB(), 16, nil)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}

	tracker.Track("selection_translation_requested", "usr_1", map[string]any{
		"mode":          "word",
		"selection_len": 8,
	})
	tracker.Track("selection_translation_requested", "usr_1", nil)
	tracker.Close() // drains the buffer

	events, err := tracker.RecentEvents(context.Background(), "selection_translation_requested", 10)
	if err != nil {
		t.Fatalf("recent events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	var withProps *Event
	for i := range events {
		if len(events[i].Properties) > 0 {
			withProps = &events[i]
		}
	}
	if withProps == nil || withProps.Properties["mode"] != "word" {
		t.Errorf("properties not round-tripped: %+v", events)
	}
}

func TestTrackAfterCloseDoesNotBlock(t *testing.T) {
	store := docstore.OpenMemory(t)
	tracker, err := NewTracker(store.DB(), 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	tracker.Close()
	// Must return immediately instead of blocking on a dead flush loop.
	tracker.Track("late_event", "", nil)
}

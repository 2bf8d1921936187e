package usecase

import (
	"errors"
	"testing"
	"time"

	"CrudeDesk/internal/domain/models"
)

func TestEventIndexWindowBounds(t *testing.T) {
	idx := NewEventIndex()
	asOf := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)

	events := []models.EventRecord{
		{EventID: "in-lower-bound", OccurredAt: time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC)},
		{EventID: "out-below", OccurredAt: time.Date(2026, 2, 7, 23, 59, 59, 0, time.UTC)},
		{EventID: "in-upper-bound", OccurredAt: asOf},
		{EventID: "out-above", OccurredAt: asOf.Add(time.Second)},
		{EventID: "in-middle", OccurredAt: time.Date(2026, 2, 12, 9, 0, 0, 0, time.UTC)},
	}

	got, err := idx.Window(events, asOf, 7)
	if err != nil {
		t.Fatalf("Window failed: %v", err)
	}

	wantOrder := []string{"in-upper-bound", "in-middle", "in-lower-bound"}
	if len(got) != len(wantOrder) {
		t.Fatalf("got %d events, want %d: %+v", len(got), len(wantOrder), got)
	}
	for i, id := range wantOrder {
		if got[i].EventID != id {
			t.Fatalf("events[%d] = %s, want %s", i, got[i].EventID, id)
		}
	}
}

func TestEventIndexInvalidWindow(t *testing.T) {
	idx := NewEventIndex()
	asOf := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)

	for _, days := range []int{0, -3} {
		if _, err := idx.Window(nil, asOf, days); !errors.Is(err, models.ErrInvalidWindow) {
			t.Fatalf("windowDays=%d: expected ErrInvalidWindow, got %v", days, err)
		}
	}
}

func TestEventIndexFlagDangling(t *testing.T) {
	idx := NewEventIndex()

	events := []models.EventRecord{
		{EventID: "e1", LinkedFactors: []string{"opec-cut", "ghost-factor"}},
		{EventID: "e2", LinkedFactors: []string{"opec-cut"}},
		{EventID: "e3"},
	}
	known := map[string]struct{}{"opec-cut": {}}

	got := idx.FlagDangling(events, known)
	if len(got) != 3 {
		t.Fatalf("event dropped: got %d, want 3", len(got))
	}
	if len(got[0].DanglingFactors) != 1 || got[0].DanglingFactors[0] != "ghost-factor" {
		t.Fatalf("e1 dangling = %v, want [ghost-factor]", got[0].DanglingFactors)
	}
	if got[1].DanglingFactors != nil {
		t.Fatalf("e2 dangling = %v, want none", got[1].DanglingFactors)
	}
	// Input must stay untouched.
	if events[0].DanglingFactors != nil {
		t.Fatal("FlagDangling mutated its input")
	}
}

package usecase

import (
	"fmt"
	"sort"
	"time"

	"CrudeDesk/internal/domain/models"
)

// DefaultWindowDays applies when the events endpoint omits windowDays.
const DefaultWindowDays = 7

// EventIndex windows event records by as-of time and audits their driver
// links. It never drops an event: dangling links are advisory metadata.
type EventIndex struct{}

func NewEventIndex() *EventIndex {
	return &EventIndex{}
}

// Window filters events to occurredAt in [asOf - windowDays, asOf], inclusive
// on both ends, most recent first.
func (x *EventIndex) Window(events []models.EventRecord, asOf time.Time, windowDays int) ([]models.EventRecord, error) {
	if windowDays < 1 {
		return nil, fmt.Errorf("%w: windowDays=%d", models.ErrInvalidWindow, windowDays)
	}
	from := asOf.AddDate(0, 0, -windowDays)

	out := make([]models.EventRecord, 0, len(events))
	for _, ev := range events {
		if ev.OccurredAt.Before(from) || ev.OccurredAt.After(asOf) {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	return out, nil
}

// FlagDangling marks linked factor ids that do not resolve against the
// known driver set for the same trading day.
func (x *EventIndex) FlagDangling(events []models.EventRecord, known map[string]struct{}) []models.EventRecord {
	out := make([]models.EventRecord, len(events))
	copy(out, events)
	for i := range out {
		var dangling []string
		for _, id := range out[i].LinkedFactors {
			if _, ok := known[id]; !ok {
				dangling = append(dangling, id)
			}
		}
		out[i].DanglingFactors = dangling
	}
	return out
}

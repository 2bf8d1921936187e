package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Raw generator payloads. The generator is an opaque search+LLM capability, so
// everything it returns is validated strictly at this boundary before anything
// is cached or persisted.

// RawDriverPayload is the generator's driver output before aggregation.
type RawDriverPayload struct {
	Drivers []DriverRecord `json:"drivers"`
	Summary string         `json:"summary"`
}

// RawRegimePayload carries the generator's narrative for a regime refresh.
// The verdict itself is computed by the regime engine, not taken from here.
type RawRegimePayload struct {
	Narrative string `json:"narrative"`
}

// RawEventPayload is the generator's event output before windowing.
type RawEventPayload struct {
	Events []EventRecord `json:"events"`
}

func decodeStrict(b []byte, dest interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}
	return nil
}

// DecodeSnapshot validates a raw snapshot payload.
func DecodeSnapshot(b []byte) (Snapshot, error) {
	var s Snapshot
	if err := decodeStrict(b, &s); err != nil {
		return Snapshot{}, err
	}
	switch s.TermStructure.State {
	case TermBackwardation, TermContango, TermFlat:
	default:
		return Snapshot{}, fmt.Errorf("%w: bad term structure state %q", ErrUpstreamFailure, s.TermStructure.State)
	}
	if len(s.History) > SnapshotHistoryPoints {
		s.History = s.History[len(s.History)-SnapshotHistoryPoints:]
	}
	return s, nil
}

// DecodeRawDrivers validates a raw driver payload.
func DecodeRawDrivers(b []byte) (RawDriverPayload, error) {
	var p RawDriverPayload
	if err := decodeStrict(b, &p); err != nil {
		return RawDriverPayload{}, err
	}
	for _, d := range p.Drivers {
		if err := validateDriver(d); err != nil {
			return RawDriverPayload{}, err
		}
	}
	return p, nil
}

func validateDriver(d DriverRecord) error {
	if d.FactorID == "" {
		return fmt.Errorf("%w: driver without factorId", ErrUpstreamFailure)
	}
	switch d.Category {
	case CategorySupply, CategoryDemand, CategoryMacroFinancial, CategoryFX, CategoryEvents, CategoryOther:
	default:
		return fmt.Errorf("%w: driver %s has bad category %q", ErrUpstreamFailure, d.FactorID, d.Category)
	}
	switch d.Direction {
	case DirectionUp, DirectionDown, DirectionNeutral:
	default:
		return fmt.Errorf("%w: driver %s has bad direction %q", ErrUpstreamFailure, d.FactorID, d.Direction)
	}
	if d.Strength < 1 || d.Strength > 10 {
		return fmt.Errorf("%w: driver %s strength %.2f outside [1,10]", ErrUpstreamFailure, d.FactorID, d.Strength)
	}
	return nil
}

// DecodeRawRegime validates a raw regime narrative payload.
func DecodeRawRegime(b []byte) (RawRegimePayload, error) {
	var p RawRegimePayload
	if err := decodeStrict(b, &p); err != nil {
		return RawRegimePayload{}, err
	}
	return p, nil
}

// DecodeRawEvents validates a raw event payload.
func DecodeRawEvents(b []byte) (RawEventPayload, error) {
	var p RawEventPayload
	if err := decodeStrict(b, &p); err != nil {
		return RawEventPayload{}, err
	}
	seen := make(map[string]struct{}, len(p.Events))
	for _, e := range p.Events {
		if e.EventID == "" {
			return RawEventPayload{}, fmt.Errorf("%w: event without eventId", ErrUpstreamFailure)
		}
		if _, dup := seen[e.EventID]; dup {
			return RawEventPayload{}, fmt.Errorf("%w: duplicate eventId %s", ErrUpstreamFailure, e.EventID)
		}
		seen[e.EventID] = struct{}{}
		switch e.Type {
		case EventGeopolitics, EventPolicy, EventSupply, EventDemand, EventMacro, EventOther:
		default:
			return RawEventPayload{}, fmt.Errorf("%w: event %s has bad type %q", ErrUpstreamFailure, e.EventID, e.Type)
		}
		switch e.Impact {
		case ImpactUp, ImpactDown, ImpactUncertain:
		default:
			return RawEventPayload{}, fmt.Errorf("%w: event %s has bad impact %q", ErrUpstreamFailure, e.EventID, e.Impact)
		}
	}
	return p, nil
}

// DecodeDriverSet decodes a persisted drivers artifact.
func DecodeDriverSet(b []byte) (DriverSet, error) {
	var ds DriverSet
	if err := json.Unmarshal(b, &ds); err != nil {
		return DriverSet{}, fmt.Errorf("decode driver set: %w", err)
	}
	return ds, nil
}

// DecodeEventList decodes a persisted events artifact.
func DecodeEventList(b []byte) (EventList, error) {
	var el EventList
	if err := json.Unmarshal(b, &el); err != nil {
		return EventList{}, fmt.Errorf("decode event list: %w", err)
	}
	return el, nil
}

// DecodeRegimeReport decodes a persisted regime artifact.
func DecodeRegimeReport(b []byte) (RegimeReport, error) {
	var rr RegimeReport
	if err := json.Unmarshal(b, &rr); err != nil {
		return RegimeReport{}, fmt.Errorf("decode regime report: %w", err)
	}
	return rr, nil
}

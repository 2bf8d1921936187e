package models

import (
	"fmt"
	"strings"
	"time"
)

// Market is a reference crude benchmark.
type Market string

const (
	MarketWTI   Market = "WTI"
	MarketBrent Market = "Brent"
)

// ParseMarket validates a market query value.
func ParseMarket(s string) (Market, error) {
	switch strings.ToUpper(s) {
	case "WTI":
		return MarketWTI, nil
	case "BRENT":
		return MarketBrent, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMarket, s)
}

// Markets lists all supported benchmarks.
func Markets() []Market {
	return []Market{MarketWTI, MarketBrent}
}

// Kind identifies one of the four derived artifact types.
type Kind string

const (
	KindSnapshot Kind = "snapshot"
	KindDrivers  Kind = "drivers"
	KindRegime   Kind = "regime"
	KindEvents   Kind = "events"
)

// Kinds lists all artifact kinds in refresh order.
func Kinds() []Kind {
	return []Kind{KindSnapshot, KindDrivers, KindRegime, KindEvents}
}

// Source tags where a resolved artifact came from.
type Source string

const (
	SourceCache     Source = "CACHE"
	SourceStore     Source = "STORE"
	SourceGenerated Source = "GENERATED"
)

// MarketKey identifies all cached and persisted artifacts for one market and
// trading day. TradingDay is always midnight UTC of the canonical date.
type MarketKey struct {
	Market     Market
	TradingDay time.Time
}

func NewMarketKey(market Market, tradingDay time.Time) MarketKey {
	y, m, d := tradingDay.UTC().Date()
	return MarketKey{Market: market, TradingDay: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Day returns the trading day as YYYY-MM-DD.
func (k MarketKey) Day() string {
	return k.TradingDay.Format("2006-01-02")
}

func (k MarketKey) String() string {
	return fmt.Sprintf("%s:%s", k.Market, k.Day())
}

// TermState describes the shape of the futures curve.
type TermState string

const (
	TermBackwardation TermState = "BACKWARDATION"
	TermContango      TermState = "CONTANGO"
	TermFlat          TermState = "FLAT"
)

type TermStructure struct {
	State             TermState `json:"state"`
	SpreadFrontSecond float64   `json:"spreadFrontSecond"`
}

type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// SnapshotHistoryPoints is the fixed lookback of the snapshot price history.
const SnapshotHistoryPoints = 30

// Snapshot is the high-frequency price view for one market and trading day.
type Snapshot struct {
	Market        Market        `json:"market"`
	TradingDay    string        `json:"tradingDay"`
	AsOf          time.Time     `json:"asOf"`
	LastPrice     float64       `json:"lastPrice"`
	Change1D      float64       `json:"change1d"`
	PctChange1D   float64       `json:"pctChange1d"`
	Volatility20D float64       `json:"volatility20d"`
	TermStructure TermStructure `json:"termStructure"`
	History       []PricePoint  `json:"history"`
}

// Direction of a driver's price pressure.
type Direction string

const (
	DirectionUp      Direction = "UP"
	DirectionDown    Direction = "DOWN"
	DirectionNeutral Direction = "NEUTRAL"
)

// FactorCategory buckets driver records.
type FactorCategory string

const (
	CategorySupply         FactorCategory = "SUPPLY"
	CategoryDemand         FactorCategory = "DEMAND"
	CategoryMacroFinancial FactorCategory = "MACRO_FINANCIAL"
	CategoryFX             FactorCategory = "FX"
	CategoryEvents         FactorCategory = "EVENTS"
	CategoryOther          FactorCategory = "OTHER"
)

// CategoryPriority ranks categories for tie-breaking, lower is stronger.
func CategoryPriority(c FactorCategory) int {
	switch c {
	case CategorySupply:
		return 0
	case CategoryDemand:
		return 1
	case CategoryMacroFinancial:
		return 2
	case CategoryFX:
		return 3
	case CategoryEvents:
		return 4
	default:
		return 5
	}
}

type DriverRecord struct {
	FactorID   string         `json:"factorId"`
	FactorName string         `json:"factorName"`
	Category   FactorCategory `json:"category"`
	Direction  Direction      `json:"direction"`
	Strength   float64        `json:"strength"`
	Evidence   []string       `json:"evidence"`
}

// DriverSet holds all drivers for a MarketKey plus the derived top-3 subset.
type DriverSet struct {
	Market     Market         `json:"market"`
	TradingDay string         `json:"tradingDay"`
	TopDrivers []DriverRecord `json:"topDrivers"`
	AllDrivers []DriverRecord `json:"allDrivers"`
	Summary    string         `json:"summary"`
}

// Regime classifies what dominates price formation.
type Regime string

const (
	RegimeDemandDriven    Regime = "DEMAND_DRIVEN"
	RegimeSupplyDriven    Regime = "SUPPLY_DRIVEN"
	RegimeEventDriven     Regime = "EVENT_DRIVEN"
	RegimeFinancialDriven Regime = "FINANCIAL_DRIVEN"
	RegimeMixed           Regime = "MIXED"
)

type Stability string

const (
	StabilityHigh   Stability = "HIGH"
	StabilityMedium Stability = "MEDIUM"
	StabilityLow    Stability = "LOW"
)

type RegimeState struct {
	Regime     Regime    `json:"regime"`
	Stability  Stability `json:"stability"`
	Confidence float64   `json:"confidence"`
}

// RegimeTransition is one append-only history entry. Corrections are modeled
// as new transitions, never edits.
type RegimeTransition struct {
	From       Regime    `json:"from"`
	To         Regime    `json:"to"`
	OccurredAt time.Time `json:"occurredAt"`
	Reason     string    `json:"reason"`
}

// RegimeReport is the persisted regime artifact for a MarketKey.
type RegimeReport struct {
	Market         Market             `json:"market"`
	TradingDay     string             `json:"tradingDay"`
	State          RegimeState        `json:"state"`
	RecentSwitches []RegimeTransition `json:"recentSwitches"`
}

// EventType buckets event records.
type EventType string

const (
	EventGeopolitics EventType = "GEOPOLITICS"
	EventPolicy      EventType = "POLICY"
	EventSupply      EventType = "SUPPLY"
	EventDemand      EventType = "DEMAND"
	EventMacro       EventType = "MACRO"
	EventOther       EventType = "OTHER"
)

type Impact string

const (
	ImpactUp        Impact = "UP"
	ImpactDown      Impact = "DOWN"
	ImpactUncertain Impact = "UNCERTAIN"
)

type EventRecord struct {
	EventID       string    `json:"eventId"`
	OccurredAt    time.Time `json:"occurredAt"`
	Title         string    `json:"title"`
	Type          EventType `json:"type"`
	Impact        Impact    `json:"impact"`
	LinkedFactors []string  `json:"linkedFactors,omitempty"`
	// DanglingFactors lists linked factor ids that did not resolve to a known
	// driver. The link set is advisory, so the event is kept either way.
	DanglingFactors []string `json:"danglingFactors,omitempty"`
	Evidence        []string `json:"evidence"`
}

// EventList is the persisted events artifact for a MarketKey.
type EventList struct {
	Market     Market        `json:"market"`
	TradingDay string        `json:"tradingDay"`
	Events     []EventRecord `json:"events"`
}

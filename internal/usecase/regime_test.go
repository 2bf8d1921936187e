package usecase

import (
	"math"
	"testing"
	"time"

	"CrudeDesk/internal/domain/models"
)

func driverSet(drivers ...models.DriverRecord) *models.DriverSet {
	return &models.DriverSet{Market: models.MarketWTI, TradingDay: "2026-02-15", AllDrivers: drivers}
}

func TestRegimeEngineMixedWhenTopTwoClose(t *testing.T) {
	engine := NewRegimeEngine()

	// SUPPLY:10 vs DEMAND:9, gap 10% of leader, below the 15% threshold.
	state := engine.Classify(driverSet(
		models.DriverRecord{FactorID: "a", Category: models.CategorySupply, Direction: models.DirectionUp, Strength: 10},
		models.DriverRecord{FactorID: "b", Category: models.CategoryDemand, Direction: models.DirectionDown, Strength: 9},
	), "")

	if state.Regime != models.RegimeMixed {
		t.Fatalf("regime = %s, want MIXED", state.Regime)
	}
}

func TestRegimeEngineClearLeader(t *testing.T) {
	engine := NewRegimeEngine()

	state := engine.Classify(driverSet(
		models.DriverRecord{FactorID: "a", Category: models.CategorySupply, Direction: models.DirectionUp, Strength: 10},
		models.DriverRecord{FactorID: "b", Category: models.CategoryDemand, Direction: models.DirectionDown, Strength: 5},
	), "")

	if state.Regime != models.RegimeSupplyDriven {
		t.Fatalf("regime = %s, want SUPPLY_DRIVEN", state.Regime)
	}
	if math.Abs(state.Confidence-10.0/15.0) > 1e-9 {
		t.Fatalf("confidence = %f, want 0.667", state.Confidence)
	}
	if state.Stability != models.StabilityMedium {
		t.Fatalf("stability = %s, want MEDIUM", state.Stability)
	}
}

func TestRegimeEngineNeutralContributesZero(t *testing.T) {
	engine := NewRegimeEngine()

	state := engine.Classify(driverSet(
		models.DriverRecord{FactorID: "a", Category: models.CategorySupply, Direction: models.DirectionUp, Strength: 8},
		models.DriverRecord{FactorID: "b", Category: models.CategoryDemand, Direction: models.DirectionNeutral, Strength: 10},
	), "")

	if state.Regime != models.RegimeSupplyDriven {
		t.Fatalf("regime = %s, want SUPPLY_DRIVEN", state.Regime)
	}
	if state.Confidence != 1.0 {
		t.Fatalf("confidence = %f, want 1.0", state.Confidence)
	}
}

func TestRegimeEngineAllZeroTotals(t *testing.T) {
	engine := NewRegimeEngine()

	state := engine.Classify(driverSet(
		models.DriverRecord{FactorID: "a", Category: models.CategorySupply, Direction: models.DirectionNeutral, Strength: 5},
	), "")

	if state.Regime != models.RegimeMixed || state.Stability != models.StabilityLow || state.Confidence != 0 {
		t.Fatalf("got %+v, want MIXED/LOW/0", state)
	}
}

func TestRegimeEngineStabilityHighRequiresUnchanged(t *testing.T) {
	engine := NewRegimeEngine()

	ds := driverSet(
		models.DriverRecord{FactorID: "a", Category: models.CategorySupply, Direction: models.DirectionUp, Strength: 10},
	)

	same := engine.Classify(ds, models.RegimeSupplyDriven)
	if same.Stability != models.StabilityHigh {
		t.Fatalf("unchanged high-confidence stability = %s, want HIGH", same.Stability)
	}

	changed := engine.Classify(ds, models.RegimeDemandDriven)
	if changed.Stability != models.StabilityMedium {
		t.Fatalf("changed high-confidence stability = %s, want MEDIUM", changed.Stability)
	}
}

func TestRegimeEngineFinancialBuckets(t *testing.T) {
	engine := NewRegimeEngine()

	state := engine.Classify(driverSet(
		models.DriverRecord{FactorID: "a", Category: models.CategoryFX, Direction: models.DirectionDown, Strength: 9},
		models.DriverRecord{FactorID: "b", Category: models.CategorySupply, Direction: models.DirectionUp, Strength: 3},
	), "")

	if state.Regime != models.RegimeFinancialDriven {
		t.Fatalf("regime = %s, want FINANCIAL_DRIVEN", state.Regime)
	}
}

func TestRegimeEngineTransitions(t *testing.T) {
	engine := NewRegimeEngine()

	if engine.ShouldTransition(nil, models.RegimeMixed) {
		t.Fatal("empty history with implicit MIXED default should not transition")
	}
	if !engine.ShouldTransition(nil, models.RegimeSupplyDriven) {
		t.Fatal("empty history with non-default regime should transition")
	}

	history := []models.RegimeTransition{
		{From: models.RegimeMixed, To: models.RegimeSupplyDriven, OccurredAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
	}
	if engine.ShouldTransition(history, models.RegimeSupplyDriven) {
		t.Fatal("same regime should not transition")
	}
	if !engine.ShouldTransition(history, models.RegimeDemandDriven) {
		t.Fatal("different regime should transition")
	}
}

func TestRegimeEngineRecentSwitchesWindow(t *testing.T) {
	engine := NewRegimeEngine()
	day := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)

	history := []models.RegimeTransition{
		{To: models.RegimeSupplyDriven, OccurredAt: day.AddDate(0, 0, -45)},
		{To: models.RegimeDemandDriven, OccurredAt: day.AddDate(0, 0, -20)},
		{To: models.RegimeMixed, OccurredAt: day.AddDate(0, 0, -2)},
	}

	got := engine.RecentSwitches(history, day)
	if len(got) != 2 {
		t.Fatalf("got %d switches, want 2", len(got))
	}
	if got[0].To != models.RegimeDemandDriven || got[1].To != models.RegimeMixed {
		t.Fatalf("unexpected window contents: %+v", got)
	}
}

func TestRegimeEnginePriorRegime(t *testing.T) {
	engine := NewRegimeEngine()
	day := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)

	history := []models.RegimeTransition{
		{To: models.RegimeSupplyDriven, OccurredAt: day.AddDate(0, 0, -10)},
		{To: models.RegimeDemandDriven, OccurredAt: day},
	}

	if got := engine.PriorRegime(history, day); got != models.RegimeSupplyDriven {
		t.Fatalf("prior = %s, want SUPPLY_DRIVEN", got)
	}
	if got := engine.PriorRegime(nil, day); got != "" {
		t.Fatalf("prior on empty history = %q, want empty", got)
	}
}

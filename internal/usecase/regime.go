package usecase

import (
	"sort"
	"time"

	"CrudeDesk/internal/domain/models"
)

const (
	// mixedGapRatio: if the top two category totals differ by less than this
	// fraction of the leader, no single category dominates.
	mixedGapRatio = 0.15

	highConfidence   = 0.7
	mediumConfidence = 0.4

	// RecentSwitchLookbackDays bounds the transition suffix returned on the
	// regime report.
	RecentSwitchLookbackDays = 30
)

// RegimeEngine classifies the market regime from a DriverSet and decides when
// a transition is recorded. Histories are append-only; a correction is a new
// transition, never an edit.
type RegimeEngine struct{}

func NewRegimeEngine() *RegimeEngine {
	return &RegimeEngine{}
}

func regimeFor(c models.FactorCategory) models.Regime {
	switch c {
	case models.CategorySupply:
		return models.RegimeSupplyDriven
	case models.CategoryDemand:
		return models.RegimeDemandDriven
	case models.CategoryEvents:
		return models.RegimeEventDriven
	case models.CategoryMacroFinancial, models.CategoryFX:
		return models.RegimeFinancialDriven
	default:
		// OTHER has no dedicated regime.
		return models.RegimeMixed
	}
}

// Classify derives the RegimeState for a trading day. prior is the previous
// trading day's regime, or empty when none exists.
func (e *RegimeEngine) Classify(ds *models.DriverSet, prior models.Regime) models.RegimeState {
	totals := make(map[models.FactorCategory]float64)
	for _, d := range ds.AllDrivers {
		if d.Direction == models.DirectionNeutral {
			continue
		}
		totals[d.Category] += d.Strength
	}

	type ranked struct {
		category models.FactorCategory
		total    float64
	}
	order := make([]ranked, 0, len(totals))
	var sum float64
	for c, v := range totals {
		order = append(order, ranked{category: c, total: v})
		sum += v
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].total != order[j].total {
			return order[i].total > order[j].total
		}
		return models.CategoryPriority(order[i].category) < models.CategoryPriority(order[j].category)
	})

	if sum == 0 {
		return models.RegimeState{Regime: models.RegimeMixed, Stability: models.StabilityLow, Confidence: 0}
	}

	leader := order[0]
	regime := regimeFor(leader.category)
	if len(order) > 1 {
		gap := leader.total - order[1].total
		if gap < mixedGapRatio*leader.total {
			regime = models.RegimeMixed
		}
	}

	confidence := leader.total / sum
	return models.RegimeState{
		Regime:     regime,
		Stability:  stability(confidence, regime, prior),
		Confidence: confidence,
	}
}

func stability(confidence float64, regime, prior models.Regime) models.Stability {
	changed := prior != "" && regime != prior
	switch {
	case confidence >= highConfidence && !changed:
		return models.StabilityHigh
	case confidence >= mediumConfidence:
		return models.StabilityMedium
	default:
		return models.StabilityLow
	}
}

// ShouldTransition reports whether the newly classified regime differs from
// the most recent recorded transition. An empty history records the first
// verdict unless it is the implicit MIXED default.
func (e *RegimeEngine) ShouldTransition(history []models.RegimeTransition, regime models.Regime) bool {
	if len(history) == 0 {
		return regime != models.RegimeMixed
	}
	return history[len(history)-1].To != regime
}

// PriorRegime returns the regime in effect before the given trading day, or
// empty when the history does not reach back that far.
func (e *RegimeEngine) PriorRegime(history []models.RegimeTransition, tradingDay time.Time) models.Regime {
	var prior models.Regime
	for _, tr := range history {
		if !tr.OccurredAt.Before(tradingDay) {
			break
		}
		prior = tr.To
	}
	return prior
}

// RecentSwitches returns the suffix of history within the lookback window
// ending at tradingDay, oldest to newest.
func (e *RegimeEngine) RecentSwitches(history []models.RegimeTransition, tradingDay time.Time) []models.RegimeTransition {
	cutoff := tradingDay.AddDate(0, 0, -RecentSwitchLookbackDays)
	out := make([]models.RegimeTransition, 0, len(history))
	for _, tr := range history {
		if tr.OccurredAt.Before(cutoff) || tr.OccurredAt.After(tradingDay.AddDate(0, 0, 1)) {
			continue
		}
		out = append(out, tr)
	}
	return out
}

package usecase

import (
	"fmt"
	"sort"

	"CrudeDesk/internal/domain/models"
)

// TopDriverCount is the size of the headline driver subset.
const TopDriverCount = 3

// DriverAggregator ranks raw driver records into a DriverSet. Ordering is
// strength descending, then category priority, then arrival order, so the
// same input always yields the same DriverSet.
type DriverAggregator struct{}

func NewDriverAggregator() *DriverAggregator {
	return &DriverAggregator{}
}

// Aggregate builds the DriverSet for one market and trading day. Duplicate
// factor ids in the raw input are rejected rather than silently merged.
func (a *DriverAggregator) Aggregate(key models.MarketKey, raw []models.DriverRecord, summary string) (*models.DriverSet, error) {
	seen := make(map[string]struct{}, len(raw))
	for _, d := range raw {
		if _, dup := seen[d.FactorID]; dup {
			return nil, fmt.Errorf("%w: %q", models.ErrDuplicateFactorID, d.FactorID)
		}
		seen[d.FactorID] = struct{}{}
	}

	all := make([]models.DriverRecord, len(raw))
	copy(all, raw)
	// Stable keeps arrival order as the final tie-break.
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Strength != all[j].Strength {
			return all[i].Strength > all[j].Strength
		}
		return models.CategoryPriority(all[i].Category) < models.CategoryPriority(all[j].Category)
	})

	top := all
	if len(top) > TopDriverCount {
		top = top[:TopDriverCount]
	}
	topCopy := make([]models.DriverRecord, len(top))
	copy(topCopy, top)

	return &models.DriverSet{
		Market:     key.Market,
		TradingDay: key.Day(),
		TopDrivers: topCopy,
		AllDrivers: all,
		Summary:    summary,
	}, nil
}

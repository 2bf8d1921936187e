package usecase

import (
	"fmt"
	"time"

	"CrudeDesk/internal/domain/models"
)

// TradingDayClock converts wall-clock timestamps to the canonical trading day.
// Timestamps before the daily cutoff belong to the previous calendar day; the
// boundary itself is closed on the new-day side. The same normalization is
// applied to asOf query parameters and internal timestamps so that all four
// artifact kinds for one logical day share one MarketKey.
type TradingDayClock struct {
	cutoffMinutes int
	loc           *time.Location
}

// NewTradingDayClock parses a "HH:MM" cutoff in the given IANA timezone.
func NewTradingDayClock(cutoff, timezone string) (*TradingDayClock, error) {
	t, err := time.Parse("15:04", cutoff)
	if err != nil {
		return nil, fmt.Errorf("parse cutoff %q: %w", cutoff, err)
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &TradingDayClock{
		cutoffMinutes: t.Hour()*60 + t.Minute(),
		loc:           loc,
	}, nil
}

// Normalize maps a timestamp to its trading day (midnight UTC of the date).
func (c *TradingDayClock) Normalize(ts time.Time) time.Time {
	local := ts.In(c.loc)
	minutes := local.Hour()*60 + local.Minute()
	y, m, d := local.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if minutes < c.cutoffMinutes {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// Key builds the MarketKey for a market at the given timestamp.
func (c *TradingDayClock) Key(market models.Market, ts time.Time) models.MarketKey {
	return models.NewMarketKey(market, c.Normalize(ts))
}

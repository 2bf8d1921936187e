package usecase

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"CrudeDesk/internal/domain/models"
	"CrudeDesk/pkg/logger"
)

// RefreshSchedule holds the cron specs for the nightly regeneration jobs,
// evaluated in the trading-day timezone. Snapshot runs right after the
// cutoff, drivers ten minutes later, regime and events after that so they
// can lean on the fresh driver set.
type RefreshSchedule struct {
	Snapshot string
	Drivers  string
	Regime   string
	Events   string
}

func (s RefreshSchedule) specFor(kind models.Kind) string {
	switch kind {
	case models.KindSnapshot:
		return s.Snapshot
	case models.KindDrivers:
		return s.Drivers
	case models.KindRegime:
		return s.Regime
	default:
		return s.Events
	}
}

// Refresher proactively regenerates every artifact for the current trading
// day. It goes through the resolver's ForceRefresh entry point, so a
// scheduled run and an on-demand caller for the same key share one
// generation.
type Refresher struct {
	resolver *Resolver
	cron     *cron.Cron
	log      *logger.Logger
	timeout  time.Duration
}

func NewRefresher(resolver *Resolver, schedule RefreshSchedule, loc *time.Location, log *logger.Logger, jobTimeout time.Duration) (*Refresher, error) {
	r := &Refresher{
		resolver: resolver,
		cron:     cron.New(cron.WithLocation(loc)),
		log:      log,
		timeout:  jobTimeout,
	}

	for _, kind := range models.Kinds() {
		kind := kind
		if _, err := r.cron.AddFunc(schedule.specFor(kind), func() { r.refreshAll(kind) }); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Refresher) Start() {
	r.cron.Start()
	r.log.Info("refresh scheduler started")
}

// Stop halts scheduling and waits for running jobs to finish.
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
	r.log.Info("refresh scheduler stopped")
}

func (r *Refresher) refreshAll(kind models.Kind) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	day := r.resolver.Clock().Normalize(time.Now())
	for _, market := range models.Markets() {
		key := models.NewMarketKey(market, day)
		if _, err := r.resolver.ForceRefresh(ctx, key, kind); err != nil {
			r.log.Error("scheduled refresh failed",
				logger.String("market", string(market)),
				logger.String("tradingDay", key.Day()),
				logger.String("kind", string(kind)),
				logger.Error(err))
			continue
		}
		r.log.Info("scheduled refresh completed",
			logger.String("market", string(market)),
			logger.String("tradingDay", key.Day()),
			logger.String("kind", string(kind)))
	}
}

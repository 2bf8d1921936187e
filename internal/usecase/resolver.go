package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"CrudeDesk/internal/domain/models"
	"CrudeDesk/internal/domain/repository"
	"CrudeDesk/pkg/logger"
)

// Resolution is the outcome of one pipeline lookup. Payload is the raw
// artifact JSON exactly as cached and persisted.
type Resolution struct {
	Key     models.MarketKey
	Kind    models.Kind
	Payload json.RawMessage
	Source  models.Source
}

// TTLConfig holds per-kind cache lifetimes.
type TTLConfig struct {
	Snapshot time.Duration
	Drivers  time.Duration
	Regime   time.Duration
	Events   time.Duration
}

func (c TTLConfig) For(kind models.Kind) time.Duration {
	switch kind {
	case models.KindSnapshot:
		return c.Snapshot
	case models.KindDrivers:
		return c.Drivers
	case models.KindRegime:
		return c.Regime
	default:
		return c.Events
	}
}

// Resolver runs the cache → store → generate pipeline for every artifact
// kind. Concurrent resolutions of the same (market, day, kind) share one
// generator invocation; unrelated keys never serialize against each other.
type Resolver struct {
	cache      repository.ArtifactCache
	store      repository.ArtifactStore
	generator  repository.Generator
	clock      *TradingDayClock
	aggregator *DriverAggregator
	engine     *RegimeEngine
	events     *EventIndex
	quotes     repository.QuoteSource
	notifier   repository.Notifier
	metrics    repository.Metrics
	log        *logger.Logger

	ttl        TTLConfig
	genTimeout time.Duration

	flight singleflight.Group
	now    func() time.Time
}

type ResolverOption func(*Resolver)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) { r.now = now }
}

// WithQuoteSource attaches a streamed price feed that overrides the
// generator's last price on snapshot refreshes.
func WithQuoteSource(q repository.QuoteSource) ResolverOption {
	return func(r *Resolver) { r.quotes = q }
}

// WithNotifier attaches a downstream sink for regime transitions.
func WithNotifier(n repository.Notifier) ResolverOption {
	return func(r *Resolver) { r.notifier = n }
}

func NewResolver(
	cache repository.ArtifactCache,
	store repository.ArtifactStore,
	generator repository.Generator,
	clock *TradingDayClock,
	metrics repository.Metrics,
	log *logger.Logger,
	ttl TTLConfig,
	genTimeout time.Duration,
	opts ...ResolverOption,
) *Resolver {
	r := &Resolver{
		cache:      cache,
		store:      store,
		generator:  generator,
		clock:      clock,
		aggregator: NewDriverAggregator(),
		engine:     NewRegimeEngine(),
		events:     NewEventIndex(),
		metrics:    metrics,
		log:        log,
		ttl:        ttl,
		genTimeout: genTimeout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func cacheKey(key models.MarketKey, kind models.Kind) string {
	return fmt.Sprintf("artifact:%s:%s:%s", kind, key.Market, key.Day())
}

// Resolve looks up an artifact through cache, store, and generator tiers.
// Closed past trading days are never re-generated: a full miss on one is
// ErrHistoricalDataUnavailable.
func (r *Resolver) Resolve(ctx context.Context, key models.MarketKey, kind models.Kind) (*Resolution, error) {
	if _, err := models.ParseMarket(string(key.Market)); err != nil {
		return nil, err
	}

	ck := cacheKey(key, kind)
	if payload, ok, err := r.cache.Get(ctx, ck); err != nil {
		r.log.Warn("cache read failed", logger.String("key", ck), logger.Error(err))
	} else if ok {
		r.metrics.RecordResolution(string(kind), string(models.SourceCache))
		return &Resolution{Key: key, Kind: kind, Payload: payload, Source: models.SourceCache}, nil
	}

	payload, err := r.store.Get(ctx, key, kind)
	switch {
	case err == nil:
		if cerr := r.cache.Set(ctx, ck, payload, r.ttl.For(kind)); cerr != nil {
			r.log.Warn("cache write-back failed", logger.String("key", ck), logger.Error(cerr))
		}
		r.metrics.RecordResolution(string(kind), string(models.SourceStore))
		return &Resolution{Key: key, Kind: kind, Payload: payload, Source: models.SourceStore}, nil
	case !errors.Is(err, models.ErrArtifactNotFound):
		r.log.Warn("store read failed", logger.String("key", ck), logger.Error(err))
	}

	if key.TradingDay.Before(r.clock.Normalize(r.now())) {
		return nil, fmt.Errorf("%w: %s %s", models.ErrHistoricalDataUnavailable, key, kind)
	}

	return r.generateShared(ctx, key, kind)
}

// ForceRefresh regenerates an artifact, bypassing cache and store reads. The
// scheduler uses it so the nightly jobs share in-flight deduplication with
// on-demand callers.
func (r *Resolver) ForceRefresh(ctx context.Context, key models.MarketKey, kind models.Kind) (*Resolution, error) {
	if _, err := models.ParseMarket(string(key.Market)); err != nil {
		return nil, err
	}
	if err := r.cache.Delete(ctx, cacheKey(key, kind)); err != nil {
		r.log.Warn("cache invalidation failed", logger.String("key", cacheKey(key, kind)), logger.Error(err))
	}
	return r.generateShared(ctx, key, kind)
}

// generateShared funnels all generation for one (key, kind) through a single
// in-flight call. The generation itself runs detached from the triggering
// caller's context so one client timing out cannot cancel it for the others;
// its lifetime is bounded by genTimeout instead.
func (r *Resolver) generateShared(ctx context.Context, key models.MarketKey, kind models.Kind) (*Resolution, error) {
	ck := cacheKey(key, kind)
	ch := r.flight.DoChan(ck, func() (interface{}, error) {
		genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.genTimeout)
		defer cancel()
		return r.generate(genCtx, key, kind)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			r.metrics.RecordError(string(kind))
			return nil, res.Err
		}
		r.metrics.RecordResolution(string(kind), string(models.SourceGenerated))
		return &Resolution{Key: key, Kind: kind, Payload: res.Val.([]byte), Source: models.SourceGenerated}, nil
	}
}

// generate invokes the generator, validates and post-processes its output,
// then publishes store and cache together before any waiter is released.
func (r *Resolver) generate(ctx context.Context, key models.MarketKey, kind models.Kind) ([]byte, error) {
	started := r.now()
	raw, err := r.generator.Generate(ctx, key.Market, key.TradingDay, kind)
	r.metrics.RecordGeneratorLatency(string(kind), r.now().Sub(started).Seconds())
	if err != nil {
		r.metrics.RecordGeneratorFailure(string(kind))
		return nil, fmt.Errorf("%w: generate %s %s: %v", models.ErrUpstreamFailure, key, kind, err)
	}

	var payload []byte
	switch kind {
	case models.KindSnapshot:
		payload, err = r.buildSnapshot(key, raw)
	case models.KindDrivers:
		payload, err = r.buildDrivers(key, raw)
	case models.KindRegime:
		payload, err = r.buildRegime(ctx, key, raw)
	case models.KindEvents:
		payload, err = r.buildEvents(ctx, key, raw)
	default:
		err = fmt.Errorf("unknown artifact kind %q", kind)
	}
	if err != nil {
		r.metrics.RecordGeneratorFailure(string(kind))
		return nil, err
	}

	if err := r.store.Put(ctx, key, kind, payload); err != nil {
		return nil, fmt.Errorf("persist %s %s: %w", key, kind, err)
	}
	if err := r.cache.Set(ctx, cacheKey(key, kind), payload, r.ttl.For(kind)); err != nil {
		r.log.Warn("cache publish failed", logger.String("key", cacheKey(key, kind)), logger.Error(err))
	}

	r.log.Info("artifact generated",
		logger.String("market", string(key.Market)),
		logger.String("tradingDay", key.Day()),
		logger.String("kind", string(kind)),
		logger.Duration("took", r.now().Sub(started)))
	return payload, nil
}

func (r *Resolver) buildSnapshot(key models.MarketKey, raw []byte) ([]byte, error) {
	snap, err := models.DecodeSnapshot(raw)
	if err != nil {
		return nil, err
	}
	snap.Market = key.Market
	snap.TradingDay = key.Day()
	if snap.AsOf.IsZero() {
		snap.AsOf = r.now().UTC()
	}
	if r.quotes != nil {
		if price, ok := r.quotes.LastPrice(key.Market); ok {
			snap.LastPrice = price
		}
	}
	return json.Marshal(snap)
}

func (r *Resolver) buildDrivers(key models.MarketKey, raw []byte) ([]byte, error) {
	p, err := models.DecodeRawDrivers(raw)
	if err != nil {
		return nil, err
	}
	ds, err := r.aggregator.Aggregate(key, p.Drivers, p.Summary)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ds)
}

// buildRegime classifies from the same trading day's drivers, resolved
// through the pipeline itself. The drivers key is a different in-flight
// entry, so the nested call cannot deadlock against this one.
func (r *Resolver) buildRegime(ctx context.Context, key models.MarketKey, raw []byte) ([]byte, error) {
	narrative, err := models.DecodeRawRegime(raw)
	if err != nil {
		return nil, err
	}

	driversRes, err := r.Resolve(ctx, key, models.KindDrivers)
	if err != nil {
		return nil, fmt.Errorf("resolve drivers for regime: %w", err)
	}
	ds, err := models.DecodeDriverSet(driversRes.Payload)
	if err != nil {
		return nil, err
	}

	history, err := r.store.RegimeHistory(ctx, key.Market)
	if err != nil {
		return nil, fmt.Errorf("load regime history: %w", err)
	}

	prior := r.engine.PriorRegime(history, key.TradingDay)
	state := r.engine.Classify(&ds, prior)

	if r.engine.ShouldTransition(history, state.Regime) {
		from := models.RegimeMixed
		if len(history) > 0 {
			from = history[len(history)-1].To
		}
		transition := models.RegimeTransition{
			From:       from,
			To:         state.Regime,
			OccurredAt: key.TradingDay,
			Reason:     narrative.Narrative,
		}
		if err := r.store.AppendRegimeTransition(ctx, key.Market, transition); err != nil {
			return nil, fmt.Errorf("append regime transition: %w", err)
		}
		history = append(history, transition)

		if r.notifier != nil {
			if nerr := r.notifier.NotifyRegimeChange(ctx, key.Market, transition); nerr != nil {
				r.log.Warn("regime change notification failed",
					logger.String("market", string(key.Market)), logger.Error(nerr))
			}
		}
	}

	report := models.RegimeReport{
		Market:         key.Market,
		TradingDay:     key.Day(),
		State:          state,
		RecentSwitches: r.engine.RecentSwitches(history, key.TradingDay),
	}
	return json.Marshal(report)
}

func (r *Resolver) buildEvents(ctx context.Context, key models.MarketKey, raw []byte) ([]byte, error) {
	p, err := models.DecodeRawEvents(raw)
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{})
	driversRes, err := r.Resolve(ctx, key, models.KindDrivers)
	if err != nil {
		// Links stay advisory: flag everything dangling rather than fail.
		r.log.Warn("resolve drivers for event links failed",
			logger.String("market", string(key.Market)), logger.Error(err))
	} else {
		ds, derr := models.DecodeDriverSet(driversRes.Payload)
		if derr != nil {
			return nil, derr
		}
		for _, d := range ds.AllDrivers {
			known[d.FactorID] = struct{}{}
		}
	}

	list := models.EventList{
		Market:     key.Market,
		TradingDay: key.Day(),
		Events:     r.events.FlagDangling(p.Events, known),
	}
	return json.Marshal(list)
}

// WindowEvents applies the lookback filter to a resolved events artifact.
func (r *Resolver) WindowEvents(payload []byte, asOf time.Time, windowDays int) ([]models.EventRecord, error) {
	list, err := models.DecodeEventList(payload)
	if err != nil {
		return nil, err
	}
	return r.events.Window(list.Events, asOf, windowDays)
}

// Clock exposes the trading-day clock for handlers and the scheduler.
func (r *Resolver) Clock() *TradingDayClock {
	return r.clock
}

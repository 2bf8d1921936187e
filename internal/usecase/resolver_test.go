package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"CrudeDesk/internal/domain/models"
	"CrudeDesk/pkg/logger"
)

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	return b, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key string, payload []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = payload
	return nil
}

func (c *fakeCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *fakeCache) Close() error { return nil }

type fakeStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	history map[models.Market][]models.RegimeTransition
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		data:    make(map[string][]byte),
		history: make(map[models.Market][]models.RegimeTransition),
	}
}

func storeKey(key models.MarketKey, kind models.Kind) string {
	return key.String() + ":" + string(kind)
}

func (s *fakeStore) Init(context.Context) error { return nil }

func (s *fakeStore) Get(_ context.Context, key models.MarketKey, kind models.Kind) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data[storeKey(key, kind)]
	if !ok {
		return nil, models.ErrArtifactNotFound
	}
	return b, nil
}

func (s *fakeStore) Put(_ context.Context, key models.MarketKey, kind models.Kind, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[storeKey(key, kind)] = payload
	return nil
}

func (s *fakeStore) RegimeHistory(_ context.Context, market models.Market) ([]models.RegimeTransition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.RegimeTransition, len(s.history[market]))
	copy(out, s.history[market])
	return out, nil
}

func (s *fakeStore) AppendRegimeTransition(_ context.Context, market models.Market, t models.RegimeTransition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[market] = append(s.history[market], t)
	return nil
}

func (s *fakeStore) Health(context.Context) error { return nil }
func (s *fakeStore) Close() error                 { return nil }

type fakeGenerator struct {
	calls    int64
	generate func(market models.Market, tradingDay time.Time, kind models.Kind) ([]byte, error)
}

func (g *fakeGenerator) Generate(_ context.Context, market models.Market, tradingDay time.Time, kind models.Kind) ([]byte, error) {
	atomic.AddInt64(&g.calls, 1)
	return g.generate(market, tradingDay, kind)
}

func (g *fakeGenerator) callCount() int64 { return atomic.LoadInt64(&g.calls) }

type nopMetrics struct{}

func (nopMetrics) RecordResolution(string, string)       {}
func (nopMetrics) RecordGeneratorLatency(string, float64) {}
func (nopMetrics) RecordGeneratorFailure(string)         {}
func (nopMetrics) RecordError(string)                    {}

type fakeNotifier struct {
	mu          sync.Mutex
	transitions []models.RegimeTransition
}

func (n *fakeNotifier) NotifyRegimeChange(_ context.Context, _ models.Market, t models.RegimeTransition) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transitions = append(n.transitions, t)
	return nil
}

func (n *fakeNotifier) Close() error { return nil }

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger.New failed: %v", err)
	}
	return log
}

var testNow = time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)

func newTestResolver(t *testing.T, gen *fakeGenerator, opts ...ResolverOption) (*Resolver, *fakeCache, *fakeStore) {
	t.Helper()
	clock, err := NewTradingDayClock("01:00", "UTC")
	if err != nil {
		t.Fatalf("NewTradingDayClock failed: %v", err)
	}
	cache := newFakeCache()
	store := newFakeStore()
	ttl := TTLConfig{Snapshot: 300 * time.Second, Drivers: 1800 * time.Second, Regime: 1800 * time.Second, Events: 1800 * time.Second}
	opts = append([]ResolverOption{WithClock(func() time.Time { return testNow })}, opts...)
	r := NewResolver(cache, store, gen, clock, nopMetrics{}, testLogger(t), ttl, 30*time.Second, opts...)
	return r, cache, store
}

func snapshotRaw() []byte {
	return []byte(`{"market":"","tradingDay":"","asOf":"2026-02-15T11:59:00Z","lastPrice":78.4,"change1d":1.2,"pctChange1d":1.55,"volatility20d":0.31,"termStructure":{"state":"BACKWARDATION","spreadFrontSecond":0.42},"history":[{"timestamp":"2026-02-14T00:00:00Z","value":77.2}]}`)
}

func driversRaw() []byte {
	return []byte(`{"drivers":[{"factorId":"opec-cut","factorName":"OPEC+ cut","category":"SUPPLY","direction":"UP","strength":8,"evidence":["statement"]},{"factorId":"fx-dxy","factorName":"Dollar","category":"FX","direction":"DOWN","strength":3,"evidence":[]}],"summary":"supply leads"}`)
}

func TestResolverGenerateOncePerKey(t *testing.T) {
	release := make(chan struct{})
	gen := &fakeGenerator{generate: func(models.Market, time.Time, models.Kind) ([]byte, error) {
		<-release
		return snapshotRaw(), nil
	}}
	r, _, _ := newTestResolver(t, gen)
	key := models.NewMarketKey(models.MarketWTI, testNow)

	const callers = 8
	results := make([][]byte, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := r.Resolve(context.Background(), key, models.KindSnapshot)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = res.Payload
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if !bytes.Equal(results[i], results[0]) {
			t.Fatalf("caller %d got a different payload", i)
		}
	}
	if n := gen.callCount(); n != 1 {
		t.Fatalf("generator invoked %d times, want 1", n)
	}
}

func TestResolverStoreHitWritesBackToCache(t *testing.T) {
	gen := &fakeGenerator{generate: func(models.Market, time.Time, models.Kind) ([]byte, error) {
		t.Fatal("generator must not run on a store hit")
		return nil, nil
	}}
	r, _, store := newTestResolver(t, gen)
	key := models.NewMarketKey(models.MarketWTI, testNow)

	stored := []byte(`{"market":"WTI","stored":true}`)
	if err := store.Put(context.Background(), key, models.KindDrivers, stored); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	res, err := r.Resolve(context.Background(), key, models.KindDrivers)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Source != models.SourceStore {
		t.Fatalf("source = %s, want STORE", res.Source)
	}
	if !bytes.Equal(res.Payload, stored) {
		t.Fatal("store payload altered on the way out")
	}

	res, err = r.Resolve(context.Background(), key, models.KindDrivers)
	if err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if res.Source != models.SourceCache {
		t.Fatalf("second source = %s, want CACHE", res.Source)
	}
}

func TestResolverHistoricalDayNeverGenerates(t *testing.T) {
	gen := &fakeGenerator{generate: func(models.Market, time.Time, models.Kind) ([]byte, error) {
		return snapshotRaw(), nil
	}}
	r, _, _ := newTestResolver(t, gen)
	yesterday := models.NewMarketKey(models.MarketWTI, testNow.AddDate(0, 0, -1))

	_, err := r.Resolve(context.Background(), yesterday, models.KindSnapshot)
	if !errors.Is(err, models.ErrHistoricalDataUnavailable) {
		t.Fatalf("expected ErrHistoricalDataUnavailable, got %v", err)
	}
	if n := gen.callCount(); n != 0 {
		t.Fatalf("generator invoked %d times for a past day, want 0", n)
	}
}

func TestResolverHistoricalDayServedFromStore(t *testing.T) {
	gen := &fakeGenerator{generate: func(models.Market, time.Time, models.Kind) ([]byte, error) {
		t.Fatal("generator must not run")
		return nil, nil
	}}
	r, _, store := newTestResolver(t, gen)
	yesterday := models.NewMarketKey(models.MarketWTI, testNow.AddDate(0, 0, -1))

	stored := []byte(`{"archived":true}`)
	if err := store.Put(context.Background(), yesterday, models.KindEvents, stored); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	res, err := r.Resolve(context.Background(), yesterday, models.KindEvents)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Source != models.SourceStore {
		t.Fatalf("source = %s, want STORE", res.Source)
	}
}

func TestResolverFailureIsRetryable(t *testing.T) {
	var attempt int64
	gen := &fakeGenerator{generate: func(models.Market, time.Time, models.Kind) ([]byte, error) {
		if atomic.AddInt64(&attempt, 1) == 1 {
			return nil, fmt.Errorf("upstream flaked")
		}
		return snapshotRaw(), nil
	}}
	r, cache, store := newTestResolver(t, gen)
	key := models.NewMarketKey(models.MarketWTI, testNow)

	if _, err := r.Resolve(context.Background(), key, models.KindSnapshot); !errors.Is(err, models.ErrUpstreamFailure) {
		t.Fatalf("expected ErrUpstreamFailure, got %v", err)
	}
	if len(cache.data) != 0 || len(store.data) != 0 {
		t.Fatal("failed generation must not publish anything")
	}

	res, err := r.Resolve(context.Background(), key, models.KindSnapshot)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if res.Source != models.SourceGenerated {
		t.Fatalf("retry source = %s, want GENERATED", res.Source)
	}
}

func TestResolverRoundTripByteEquality(t *testing.T) {
	gen := &fakeGenerator{generate: func(models.Market, time.Time, models.Kind) ([]byte, error) {
		return snapshotRaw(), nil
	}}
	r, cache, _ := newTestResolver(t, gen)
	key := models.NewMarketKey(models.MarketWTI, testNow)

	generated, err := r.Resolve(context.Background(), key, models.KindSnapshot)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	fromCache, err := r.Resolve(context.Background(), key, models.KindSnapshot)
	if err != nil {
		t.Fatalf("cache read failed: %v", err)
	}
	if fromCache.Source != models.SourceCache || !bytes.Equal(fromCache.Payload, generated.Payload) {
		t.Fatal("cached payload differs from generated payload")
	}

	// Force cache expiry, the durable copy must be identical.
	if err := cache.Delete(context.Background(), "artifact:snapshot:WTI:2026-02-15"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	fromStore, err := r.Resolve(context.Background(), key, models.KindSnapshot)
	if err != nil {
		t.Fatalf("store read failed: %v", err)
	}
	if fromStore.Source != models.SourceStore || !bytes.Equal(fromStore.Payload, generated.Payload) {
		t.Fatal("stored payload differs from generated payload")
	}
	if n := gen.callCount(); n != 1 {
		t.Fatalf("generator invoked %d times, want 1", n)
	}
}

func TestResolverRejectsInvalidMarket(t *testing.T) {
	gen := &fakeGenerator{generate: func(models.Market, time.Time, models.Kind) ([]byte, error) {
		return snapshotRaw(), nil
	}}
	r, _, _ := newTestResolver(t, gen)
	key := models.MarketKey{Market: "GOLD", TradingDay: testNow}

	if _, err := r.Resolve(context.Background(), key, models.KindSnapshot); !errors.Is(err, models.ErrInvalidMarket) {
		t.Fatalf("expected ErrInvalidMarket, got %v", err)
	}
}

func TestResolverCallerCancellationDoesNotKillGeneration(t *testing.T) {
	release := make(chan struct{})
	gen := &fakeGenerator{generate: func(models.Market, time.Time, models.Kind) ([]byte, error) {
		<-release
		return snapshotRaw(), nil
	}}
	r, _, _ := newTestResolver(t, gen)
	key := models.NewMarketKey(models.MarketWTI, testNow)

	ctx, cancel := context.WithCancel(context.Background())
	impatientErr := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctx, key, models.KindSnapshot)
		impatientErr <- err
	}()

	patientRes := make(chan *Resolution, 1)
	patientErr := make(chan error, 1)
	go func() {
		res, err := r.Resolve(context.Background(), key, models.KindSnapshot)
		patientRes <- res
		patientErr <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	if err := <-impatientErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller got %v, want context.Canceled", err)
	}

	close(release)
	if err := <-patientErr; err != nil {
		t.Fatalf("patient caller failed: %v", err)
	}
	if res := <-patientRes; res == nil || res.Source != models.SourceGenerated {
		t.Fatal("patient caller did not receive the generated artifact")
	}
}

func TestResolverForceRefreshRegenerates(t *testing.T) {
	var version int64
	gen := &fakeGenerator{generate: func(models.Market, time.Time, models.Kind) ([]byte, error) {
		v := atomic.AddInt64(&version, 1)
		return []byte(fmt.Sprintf(`{"market":"","tradingDay":"","asOf":"2026-02-15T1%d:00:00Z","lastPrice":7%d.0,"change1d":0,"pctChange1d":0,"volatility20d":0,"termStructure":{"state":"FLAT","spreadFrontSecond":0},"history":[]}`, v, v)), nil
	}}
	r, _, _ := newTestResolver(t, gen)
	key := models.NewMarketKey(models.MarketWTI, testNow)

	first, err := r.Resolve(context.Background(), key, models.KindSnapshot)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	refreshed, err := r.ForceRefresh(context.Background(), key, models.KindSnapshot)
	if err != nil {
		t.Fatalf("ForceRefresh failed: %v", err)
	}
	if refreshed.Source != models.SourceGenerated {
		t.Fatalf("refresh source = %s, want GENERATED", refreshed.Source)
	}
	if bytes.Equal(first.Payload, refreshed.Payload) {
		t.Fatal("ForceRefresh served the stale artifact")
	}

	after, err := r.Resolve(context.Background(), key, models.KindSnapshot)
	if err != nil {
		t.Fatalf("Resolve after refresh failed: %v", err)
	}
	if !bytes.Equal(after.Payload, refreshed.Payload) {
		t.Fatal("cache still holds the pre-refresh artifact")
	}
}

func TestResolverRegimeTransitionRecordedAndNotified(t *testing.T) {
	gen := &fakeGenerator{generate: func(_ models.Market, _ time.Time, kind models.Kind) ([]byte, error) {
		switch kind {
		case models.KindDrivers:
			return driversRaw(), nil
		case models.KindRegime:
			return []byte(`{"narrative":"OPEC+ extension dominates flows"}`), nil
		}
		return nil, fmt.Errorf("unexpected kind %s", kind)
	}}
	notifier := &fakeNotifier{}
	r, _, store := newTestResolver(t, gen, WithNotifier(notifier))
	key := models.NewMarketKey(models.MarketWTI, testNow)

	res, err := r.Resolve(context.Background(), key, models.KindRegime)
	if err != nil {
		t.Fatalf("Resolve regime failed: %v", err)
	}

	var report models.RegimeReport
	if err := json.Unmarshal(res.Payload, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.State.Regime != models.RegimeSupplyDriven {
		t.Fatalf("regime = %s, want SUPPLY_DRIVEN", report.State.Regime)
	}
	if len(report.RecentSwitches) != 1 || report.RecentSwitches[0].Reason != "OPEC+ extension dominates flows" {
		t.Fatalf("unexpected recentSwitches: %+v", report.RecentSwitches)
	}

	history, err := store.RegimeHistory(context.Background(), models.MarketWTI)
	if err != nil {
		t.Fatalf("RegimeHistory failed: %v", err)
	}
	if len(history) != 1 || history[0].To != models.RegimeSupplyDriven || history[0].From != models.RegimeMixed {
		t.Fatalf("unexpected history: %+v", history)
	}
	if len(notifier.transitions) != 1 {
		t.Fatalf("notifier received %d transitions, want 1", len(notifier.transitions))
	}
}

func TestResolverEventsFlagDanglingLinks(t *testing.T) {
	gen := &fakeGenerator{generate: func(_ models.Market, _ time.Time, kind models.Kind) ([]byte, error) {
		switch kind {
		case models.KindDrivers:
			return driversRaw(), nil
		case models.KindEvents:
			return []byte(`{"events":[{"eventId":"e1","occurredAt":"2026-02-14T08:00:00Z","title":"Pipeline outage","type":"SUPPLY","impact":"UP","linkedFactors":["opec-cut","ghost"],"evidence":["wire"]}]}`), nil
		}
		return nil, fmt.Errorf("unexpected kind %s", kind)
	}}
	r, _, _ := newTestResolver(t, gen)
	key := models.NewMarketKey(models.MarketWTI, testNow)

	res, err := r.Resolve(context.Background(), key, models.KindEvents)
	if err != nil {
		t.Fatalf("Resolve events failed: %v", err)
	}

	var list models.EventList
	if err := json.Unmarshal(res.Payload, &list); err != nil {
		t.Fatalf("decode event list: %v", err)
	}
	if len(list.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(list.Events))
	}
	if len(list.Events[0].DanglingFactors) != 1 || list.Events[0].DanglingFactors[0] != "ghost" {
		t.Fatalf("dangling = %v, want [ghost]", list.Events[0].DanglingFactors)
	}

	windowed, err := r.WindowEvents(res.Payload, testNow, 7)
	if err != nil {
		t.Fatalf("WindowEvents failed: %v", err)
	}
	if len(windowed) != 1 {
		t.Fatalf("windowed %d events, want 1", len(windowed))
	}
}

func TestResolverSnapshotUsesStreamedQuote(t *testing.T) {
	gen := &fakeGenerator{generate: func(models.Market, time.Time, models.Kind) ([]byte, error) {
		return snapshotRaw(), nil
	}}
	quotes := staticQuotes{models.MarketWTI: 81.25}
	r, _, _ := newTestResolver(t, gen, WithQuoteSource(quotes))
	key := models.NewMarketKey(models.MarketWTI, testNow)

	res, err := r.Resolve(context.Background(), key, models.KindSnapshot)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	var snap models.Snapshot
	if err := json.Unmarshal(res.Payload, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.LastPrice != 81.25 {
		t.Fatalf("lastPrice = %f, want streamed 81.25", snap.LastPrice)
	}
	if snap.Market != models.MarketWTI || snap.TradingDay != "2026-02-15" {
		t.Fatalf("snapshot key fields not set: %+v", snap)
	}
}

type staticQuotes map[models.Market]float64

func (q staticQuotes) LastPrice(m models.Market) (float64, bool) {
	v, ok := q[m]
	return v, ok
}

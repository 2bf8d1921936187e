package di

import (
	"context"
	"fmt"
	"time"

	"CrudeDesk/internal/domain/repository"
	internalrepo "CrudeDesk/internal/repository"
	"CrudeDesk/internal/service/generator"
	"CrudeDesk/internal/service/quotes"
	"CrudeDesk/internal/usecase"
	pkgcache "CrudeDesk/pkg/cache"
	pkgch "CrudeDesk/pkg/clickhouse"
	"CrudeDesk/pkg/config"
	pkgkafka "CrudeDesk/pkg/kafka"
	applogger "CrudeDesk/pkg/logger"
	"CrudeDesk/pkg/metrics"
	"CrudeDesk/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideArtifactStore creates the durable artifact store and its schema.
func ProvideArtifactStore(chClient *pkgch.Client, log *applogger.Logger) (*internalrepo.CHArtifactStore, error) {
	store := internalrepo.NewCHArtifactStore(chClient)
	store.SetLogger(log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideArtifactCache creates the layered redis+memory cache.
func ProvideArtifactCache(cfg *config.Config) (repository.ArtifactCache, error) {
	redisCache, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(cfg.Cache.Redis.Host, cfg.Cache.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
		pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
		pkgcache.WithRedisPool(cfg.Cache.Redis.PoolSize, cfg.Cache.Redis.MinIdleConns, cfg.Cache.Redis.PoolTimeout),
		pkgcache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return pkgcache.NewLayeredCache(redisCache,
		pkgcache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize),
	), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideGenerator creates the analysis service client.
func ProvideGenerator(cfg *config.Config) repository.Generator {
	return generator.NewClient(cfg)
}

// ProvideTradingDayClock builds the clock from the configured cutoff.
func ProvideTradingDayClock(cfg *config.Config) (*usecase.TradingDayClock, error) {
	return usecase.NewTradingDayClock(cfg.TradingDay.Cutoff, cfg.TradingDay.Timezone)
}

// ProvideQuoteStream creates the WebSocket quote stream, or nil when the
// feed is disabled.
func ProvideQuoteStream(cfg *config.Config, log *applogger.Logger) *quotes.Stream {
	if !cfg.Quotes.Enabled {
		return nil
	}
	return quotes.New(cfg.Quotes.APIKey, cfg.Quotes.WebSocketURL,
		cfg.Quotes.ReconnectDelay, cfg.Quotes.PingInterval, log)
}

// ProvideNotifier creates the Kafka regime-change notifier, or nil when
// Kafka is disabled.
func ProvideNotifier(cfg *config.Config) (*internalrepo.KafkaNotifier, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaNotifier(producer, cfg.Kafka.Topic), nil
}

// ProvideResolver wires the resolution pipeline.
func ProvideResolver(
	cfg *config.Config,
	cache repository.ArtifactCache,
	store *internalrepo.CHArtifactStore,
	gen repository.Generator,
	clock *usecase.TradingDayClock,
	m repository.Metrics,
	log *applogger.Logger,
	quotesStream *quotes.Stream,
	notifier *internalrepo.KafkaNotifier,
) *usecase.Resolver {
	ttl := usecase.TTLConfig{
		Snapshot: cfg.Cache.TTL.Snapshot,
		Drivers:  cfg.Cache.TTL.Drivers,
		Regime:   cfg.Cache.TTL.Regime,
		Events:   cfg.Cache.TTL.Events,
	}
	opts := []usecase.ResolverOption{}
	if quotesStream != nil {
		opts = append(opts, usecase.WithQuoteSource(quotesStream))
	}
	if notifier != nil {
		opts = append(opts, usecase.WithNotifier(notifier))
	}
	return usecase.NewResolver(cache, store, gen, clock, m, log, ttl, cfg.Generator.Timeout, opts...)
}

// ProvideRefresher creates the nightly refresh scheduler, or nil when
// disabled.
func ProvideRefresher(cfg *config.Config, resolver *usecase.Resolver, log *applogger.Logger) (*usecase.Refresher, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	loc, err := time.LoadLocation(cfg.TradingDay.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone: %w", err)
	}
	schedule := usecase.RefreshSchedule{
		Snapshot: cfg.Scheduler.Snapshot,
		Drivers:  cfg.Scheduler.Drivers,
		Regime:   cfg.Scheduler.Regime,
		Events:   cfg.Scheduler.Events,
	}
	return usecase.NewRefresher(resolver, schedule, loc, log, cfg.Generator.Timeout*2)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	resolver *usecase.Resolver,
	refresher *usecase.Refresher,
	quotesStream *quotes.Stream,
	chClient *pkgch.Client,
	store *internalrepo.CHArtifactStore,
	notifier *internalrepo.KafkaNotifier,
	cache repository.ArtifactCache,
) *server.App {
	return server.New(cfg, log, resolver, refresher, quotesStream, chClient, store, notifier, cache)
}

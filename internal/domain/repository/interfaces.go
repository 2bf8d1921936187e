package repository

import (
	"context"
	"time"

	"CrudeDesk/internal/domain/models"
)

// ArtifactCache is the fast TTL-bound tier of the resolution pipeline.
// Implementations store raw payload bytes; expiry is checked on read.
type ArtifactCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// ArtifactStore is the durable tier. Entries never expire automatically.
type ArtifactStore interface {
	Init(ctx context.Context) error
	Get(ctx context.Context, key models.MarketKey, kind models.Kind) ([]byte, error)
	Put(ctx context.Context, key models.MarketKey, kind models.Kind, payload []byte) error
	RegimeHistory(ctx context.Context, market models.Market) ([]models.RegimeTransition, error)
	AppendRegimeTransition(ctx context.Context, market models.Market, t models.RegimeTransition) error
	Health(ctx context.Context) error
	Close() error
}

// Generator produces a fresh raw analysis payload for one (market, trading
// day, kind). Implementations are slow (tens of seconds) and opaque; the
// pipeline deduplicates and validates around them.
type Generator interface {
	Generate(ctx context.Context, market models.Market, tradingDay time.Time, kind models.Kind) ([]byte, error)
}

// QuoteSource exposes the freshest streamed price per market, if any.
type QuoteSource interface {
	LastPrice(market models.Market) (float64, bool)
}

// Notifier pushes regime transitions to downstream consumers.
type Notifier interface {
	NotifyRegimeChange(ctx context.Context, market models.Market, t models.RegimeTransition) error
	Close() error
}

// Metrics records pipeline observability signals.
type Metrics interface {
	RecordResolution(kind, source string)
	RecordGeneratorLatency(kind string, seconds float64)
	RecordGeneratorFailure(kind string)
	RecordError(kind string)
}

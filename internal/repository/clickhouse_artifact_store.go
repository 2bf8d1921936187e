package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"CrudeDesk/internal/domain/models"
	pkgch "CrudeDesk/pkg/clickhouse"
	applogger "CrudeDesk/pkg/logger"
)

// CHArtifactStore is the durable artifact tier backed by ClickHouse.
// market_artifacts keeps the latest payload per (market, day, kind);
// regime_transitions is append-only.
type CHArtifactStore struct {
	ch *pkgch.Client
	db *sql.DB
	l  *applogger.Logger
}

func NewCHArtifactStore(ch *pkgch.Client) *CHArtifactStore {
	return &CHArtifactStore{ch: ch, db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHArtifactStore) SetLogger(l *applogger.Logger) { s.l = l }

var schemaStmts = []string{
	`CREATE DATABASE IF NOT EXISTS crudedesk`,
	`CREATE TABLE IF NOT EXISTS crudedesk.market_artifacts (
        market      LowCardinality(String),
        trading_day Date,
        kind        LowCardinality(String),
        payload     String,
        written_at  DateTime64(3) DEFAULT now64(3)
    ) ENGINE = ReplacingMergeTree(written_at)
    ORDER BY (market, trading_day, kind)`,
	`CREATE TABLE IF NOT EXISTS crudedesk.regime_transitions (
        market       LowCardinality(String),
        from_regime  LowCardinality(String),
        to_regime    LowCardinality(String),
        occurred_at  DateTime64(3),
        reason       String,
        written_at   DateTime64(3) DEFAULT now64(3)
    ) ENGINE = MergeTree
    ORDER BY (market, occurred_at)`,
}

// Init creates the database and tables (idempotent).
func (s *CHArtifactStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, schemaStmts)
}

func (s *CHArtifactStore) Get(ctx context.Context, key models.MarketKey, kind models.Kind) ([]byte, error) {
	const q = `
        SELECT payload
        FROM crudedesk.market_artifacts FINAL
        WHERE market = ? AND trading_day = ? AND kind = ?
        LIMIT 1
    `
	var payload string
	err := s.db.QueryRowContext(ctx, q, string(key.Market), key.TradingDay, string(kind)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrArtifactNotFound
	}
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse artifact query error",
				applogger.String("market", string(key.Market)),
				applogger.String("tradingDay", key.Day()),
				applogger.String("kind", string(kind)),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	return []byte(payload), nil
}

func (s *CHArtifactStore) Put(ctx context.Context, key models.MarketKey, kind models.Kind, payload []byte) error {
	start := time.Now()
	const q = `
        INSERT INTO crudedesk.market_artifacts (market, trading_day, kind, payload)
        VALUES (?, ?, ?, ?)
    `
	if _, err := s.db.ExecContext(ctx, q, string(key.Market), key.TradingDay, string(kind), string(payload)); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse artifact insert error",
				applogger.String("market", string(key.Market)),
				applogger.String("tradingDay", key.Day()),
				applogger.String("kind", string(kind)),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("put artifact: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse artifact insert ok",
			applogger.String("market", string(key.Market)),
			applogger.String("tradingDay", key.Day()),
			applogger.String("kind", string(kind)),
			applogger.Int("bytes", len(payload)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHArtifactStore) RegimeHistory(ctx context.Context, market models.Market) ([]models.RegimeTransition, error) {
	const q = `
        SELECT from_regime, to_regime, occurred_at, reason
        FROM crudedesk.regime_transitions
        WHERE market = ?
        ORDER BY occurred_at ASC
    `
	rows, err := s.db.QueryContext(ctx, q, string(market))
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse regime history query error",
				applogger.String("market", string(market)),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("regime history: %w", err)
	}
	defer rows.Close()

	out := make([]models.RegimeTransition, 0, 32)
	for rows.Next() {
		var t models.RegimeTransition
		var from, to string
		if err := rows.Scan(&from, &to, &t.OccurredAt, &t.Reason); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t.From = models.Regime(from)
		t.To = models.Regime(to)
		t.OccurredAt = t.OccurredAt.UTC()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHArtifactStore) AppendRegimeTransition(ctx context.Context, market models.Market, t models.RegimeTransition) error {
	const q = `
        INSERT INTO crudedesk.regime_transitions (market, from_regime, to_regime, occurred_at, reason)
        VALUES (?, ?, ?, ?, ?)
    `
	if _, err := s.db.ExecContext(ctx, q, string(market), string(t.From), string(t.To), t.OccurredAt, t.Reason); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse transition insert error",
				applogger.String("market", string(market)),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("append transition: %w", err)
	}
	return nil
}

func (s *CHArtifactStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

func (s *CHArtifactStore) Close() error {
	return s.ch.Close()
}

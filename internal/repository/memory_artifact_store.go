package repository

import (
	"context"
	"sync"

	"CrudeDesk/internal/domain/models"
)

// MemoryArtifactStore is an in-process ArtifactStore used in development and
// handler tests. Semantics match the ClickHouse store: latest payload wins
// per (market, day, kind), regime history is append-only.
type MemoryArtifactStore struct {
	mu        sync.RWMutex
	artifacts map[string][]byte
	history   map[models.Market][]models.RegimeTransition
}

func NewMemoryArtifactStore() *MemoryArtifactStore {
	return &MemoryArtifactStore{
		artifacts: make(map[string][]byte),
		history:   make(map[models.Market][]models.RegimeTransition),
	}
}

func artifactKey(key models.MarketKey, kind models.Kind) string {
	return key.String() + ":" + string(kind)
}

func (s *MemoryArtifactStore) Init(context.Context) error { return nil }

func (s *MemoryArtifactStore) Get(_ context.Context, key models.MarketKey, kind models.Kind) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.artifacts[artifactKey(key, kind)]
	if !ok {
		return nil, models.ErrArtifactNotFound
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}

func (s *MemoryArtifactStore) Put(_ context.Context, key models.MarketKey, kind models.Kind, payload []byte) error {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[artifactKey(key, kind)] = cp
	return nil
}

func (s *MemoryArtifactStore) RegimeHistory(_ context.Context, market models.Market) ([]models.RegimeTransition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.RegimeTransition, len(s.history[market]))
	copy(out, s.history[market])
	return out, nil
}

func (s *MemoryArtifactStore) AppendRegimeTransition(_ context.Context, market models.Market, t models.RegimeTransition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[market] = append(s.history[market], t)
	return nil
}

func (s *MemoryArtifactStore) Health(context.Context) error { return nil }
func (s *MemoryArtifactStore) Close() error                 { return nil }

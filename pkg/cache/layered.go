package cache

import (
	"context"
	"time"
)

// LayeredCache implements two-level cache (L1: Memory, L2: Redis).
type LayeredCache struct {
	memCache   *MemoryCache
	redisCache *RedisCache
}

// NewLayeredCache creates a layered cache with memory and Redis.
func NewLayeredCache(redisCache *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{
		MemoryMaxSize: 1000,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return &LayeredCache{
		memCache:   NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		redisCache: redisCache,
	}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	// Write-through: Redis first, then memory
	if err := lc.redisCache.Set(ctx, key, payload, ttl); err != nil {
		return err
	}
	_ = lc.memCache.Set(ctx, key, payload, ttl)
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	// L1: Try memory first
	if b, ok, err := lc.memCache.Get(ctx, key); err == nil && ok {
		return b, true, nil
	}

	// L2: Try Redis
	b, ok, err := lc.redisCache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}

	// Promote with the remaining TTL so L1 never outlives L2
	if ttl, terr := lc.redisCache.Client().PTTL(ctx, lc.redisCache.wrapKey(key)).Result(); terr == nil && ttl > 0 {
		_ = lc.memCache.Set(ctx, key, b, ttl)
	}
	return b, true, nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.memCache.Delete(ctx, keys...)
	return lc.redisCache.Delete(ctx, keys...)
}

// Close closes both cache layers.
func (lc *LayeredCache) Close() error {
	_ = lc.memCache.Close()
	return lc.redisCache.Close()
}

package orderbook

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/p2pex/backend/internal/contracts"
	"github.com/wonny/p2pex/backend/pkg/redis"
)

// cachedSnapshot is the wire form of a snapshot in Redis
type cachedSnapshot struct {
	Orders    []contracts.Order `json:"orders"`
	Source    string            `json:"source"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// SnapshotCache shares the last good snapshot between instances
type SnapshotCache struct {
	cache *redis.Cache
	ttl   time.Duration
}

// NewSnapshotCache creates a snapshot cache. ttl <= 0 uses redis.TTLSnapshot.
func NewSnapshotCache(cache *redis.Cache, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = redis.TTLSnapshot
	}
	return &SnapshotCache{cache: cache, ttl: ttl}
}

// Save stores the snapshot
func (c *SnapshotCache) Save(ctx context.Context, s *Snapshot) error {
	value := cachedSnapshot{
		Orders:    s.Orders(),
		Source:    s.Source(),
		FetchedAt: s.FetchedAt(),
	}
	if err := c.cache.Set(ctx, redis.OrderbookSnapshotKey(), value, c.ttl); err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}
	return nil
}

// Load returns the cached snapshot, or nil when there is none
func (c *SnapshotCache) Load(ctx context.Context) (*Snapshot, error) {
	var value cachedSnapshot
	found, err := c.cache.Get(ctx, redis.OrderbookSnapshotKey(), &value)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached snapshot: %w", err)
	}
	if !found {
		return nil, nil
	}
	return NewSnapshot(value.Orders, value.Source+"+cache", value.FetchedAt), nil
}

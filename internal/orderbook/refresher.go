package orderbook

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/p2pex/backend/internal/contracts"
	"github.com/wonny/p2pex/backend/internal/metrics"
	"github.com/wonny/p2pex/backend/pkg/logger"
)

// Mirror persists orders fetched from an upstream feed
type Mirror interface {
	UpsertOrders(ctx context.Context, orders []contracts.Order) error
}

// Refresher rebuilds the live snapshot from a source.
// On source failure it falls back to the shared cache when the cached
// snapshot is newer than the live one; otherwise the live snapshot stays.
type Refresher struct {
	source  Source
	store   *Store
	cache   *SnapshotCache // optional
	mirror  Mirror         // optional
	metrics *metrics.Metrics
	logger  *logger.Logger
	now     func() time.Time
}

// NewRefresher creates a refresher
func NewRefresher(source Source, store *Store, log *logger.Logger) *Refresher {
	if log == nil {
		log = logger.Nop()
	}
	return &Refresher{
		source: source,
		store:  store,
		logger: log,
		now:    time.Now,
	}
}

// WithCache shares snapshots through Redis
func (r *Refresher) WithCache(cache *SnapshotCache) *Refresher {
	r.cache = cache
	return r
}

// WithMirror writes every fetched order set to the mirror
func (r *Refresher) WithMirror(mirror Mirror) *Refresher {
	r.mirror = mirror
	return r
}

// WithMetrics records snapshot size and refresh failures
func (r *Refresher) WithMetrics(m *metrics.Metrics) *Refresher {
	r.metrics = m
	return r
}

// Refresh loads a new snapshot and swaps it in
func (r *Refresher) Refresh(ctx context.Context) (*Snapshot, error) {
	orders, err := r.source.LoadOrders(ctx)
	if err != nil {
		r.metrics.IncRefreshError(r.source.Name())
		if fallback := r.fromCache(ctx); fallback != nil {
			r.logger.WithError(err).Warn("Order source failed, serving cached snapshot")
			return fallback, nil
		}
		return nil, fmt.Errorf("refresh from %s failed: %w", r.source.Name(), err)
	}

	snapshot := NewSnapshot(orders, r.source.Name(), r.now())

	if r.mirror != nil {
		if err := r.mirror.UpsertOrders(ctx, orders); err != nil {
			// The snapshot is still served; the mirror catches up next round.
			r.logger.WithError(err).Warn("Failed to mirror orders")
		}
	}

	r.store.Replace(snapshot)
	r.metrics.SetSnapshot(snapshot.Len(), snapshot.FetchedAt())

	if r.cache != nil {
		if err := r.cache.Save(ctx, snapshot); err != nil {
			r.logger.WithError(err).Warn("Failed to cache snapshot")
		}
	}

	r.logger.WithFields(map[string]interface{}{
		"source": snapshot.Source(),
		"orders": snapshot.Len(),
		"active": len(contracts.Active(orders)),
	}).Debug("Order snapshot refreshed")

	return snapshot, nil
}

// fromCache swaps in the cached snapshot when it is newer than the live one
func (r *Refresher) fromCache(ctx context.Context) *Snapshot {
	if r.cache == nil {
		return nil
	}

	cached, err := r.cache.Load(ctx)
	if err != nil {
		r.logger.WithError(err).Warn("Failed to read cached snapshot")
		return nil
	}
	if cached == nil || !cached.FetchedAt().After(r.store.Current().FetchedAt()) {
		return nil
	}

	r.store.Replace(cached)
	r.metrics.SetSnapshot(cached.Len(), cached.FetchedAt())
	return cached
}

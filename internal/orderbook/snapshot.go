package orderbook

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/wonny/p2pex/backend/internal/contracts"
)

// Source loads the full order set from one upstream
type Source interface {
	Name() string
	LoadOrders(ctx context.Context) ([]contracts.Order, error)
}

// Snapshot is an immutable view of the order book at one instant
type Snapshot struct {
	orders    []contracts.Order
	byID      map[string]int
	fetchedAt time.Time
	source    string
}

// NewSnapshot copies orders into a new snapshot
func NewSnapshot(orders []contracts.Order, source string, fetchedAt time.Time) *Snapshot {
	s := &Snapshot{
		orders:    make([]contracts.Order, len(orders)),
		byID:      make(map[string]int, len(orders)),
		fetchedAt: fetchedAt,
		source:    source,
	}
	copy(s.orders, orders)
	for i, o := range s.orders {
		s.byID[o.ID] = i
	}
	return s
}

// Orders returns a copy of the snapshot's orders
func (s *Snapshot) Orders() []contracts.Order {
	if s == nil {
		return nil
	}
	out := make([]contracts.Order, len(s.orders))
	copy(out, s.orders)
	return out
}

// Get returns one order by id
func (s *Snapshot) Get(id string) (contracts.Order, bool) {
	if s == nil {
		return contracts.Order{}, false
	}
	i, ok := s.byID[id]
	if !ok {
		return contracts.Order{}, false
	}
	return s.orders[i], true
}

// Len returns the number of orders
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.orders)
}

// FetchedAt returns when the snapshot was loaded
func (s *Snapshot) FetchedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.fetchedAt
}

// Source returns the name of the upstream that produced the snapshot
func (s *Snapshot) Source() string {
	if s == nil {
		return ""
	}
	return s.source
}

// Store holds the live snapshot. Readers never block writers:
// a refresh builds a new snapshot and swaps the pointer.
// ⭐ SSOT: 현재 주문 스냅샷은 여기서만 보관
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore creates a store holding an empty snapshot
func NewStore() *Store {
	s := &Store{}
	s.current.Store(NewSnapshot(nil, "empty", time.Time{}))
	return s
}

// Current returns the live snapshot
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Replace swaps in a new snapshot and returns the previous one
func (s *Store) Replace(next *Snapshot) *Snapshot {
	return s.current.Swap(next)
}

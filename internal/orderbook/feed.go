package orderbook

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/wonny/p2pex/backend/internal/contracts"
	"github.com/wonny/p2pex/backend/pkg/httputil"
	"github.com/wonny/p2pex/backend/pkg/logger"
)

// Feed reads orders from the escrow contract indexer over HTTP
type Feed struct {
	client *httputil.Client
	url    string
	logger *logger.Logger
}

// NewFeed creates an indexer feed. The client carries throttling and retry.
func NewFeed(client *httputil.Client, url string, log *logger.Logger) *Feed {
	if log == nil {
		log = logger.Nop()
	}
	return &Feed{
		client: client,
		url:    url,
		logger: log,
	}
}

// Name implements Source
func (f *Feed) Name() string {
	return "indexer"
}

// LoadOrders implements Source. Rows that cannot be decoded are skipped;
// the rest are returned newest id first.
func (f *Feed) LoadOrders(ctx context.Context) ([]contracts.Order, error) {
	var rows []ChainOrder
	if err := f.client.GetJSON(ctx, f.url, &rows); err != nil {
		return nil, fmt.Errorf("failed to fetch orders from indexer: %w", err)
	}

	orders := make([]contracts.Order, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		order, err := row.ToOrder()
		if err != nil {
			skipped++
			f.logger.WithError(err).Warn("Skipping undecodable chain order")
			continue
		}
		orders = append(orders, order)
	}

	sort.SliceStable(orders, func(i, j int) bool {
		return orderIDGreater(orders[i].ID, orders[j].ID)
	})

	f.logger.WithFields(map[string]interface{}{
		"requested": len(rows),
		"loaded":    len(orders),
		"skipped":   skipped,
	}).Debug("Loaded chain orders")

	return orders, nil
}

// orderIDGreater compares numeric ids numerically, others lexically
func orderIDGreater(a, b string) bool {
	da, errA := decimal.NewFromString(a)
	db, errB := decimal.NewFromString(b)
	if errA == nil && errB == nil {
		return da.GreaterThan(db)
	}
	return a > b
}

package orderbook

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/p2pex/backend/internal/contracts"
	"github.com/wonny/p2pex/backend/pkg/config"
	"github.com/wonny/p2pex/backend/pkg/database"
)

func openRepository(t *testing.T) *Repository {
	t.Helper()

	// Skip if DATABASE_URL is not set
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	db, err := database.New(cfg)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.EnsureSchema(context.Background()))
	return NewRepository(db.Pool)
}

func TestRepository_RoundTripAndCAS(t *testing.T) {
	repo := openRepository(t)
	ctx := context.Background()

	o := order("it-"+time.Now().Format("150405.000000"), contracts.StatusAwaitingFiller)
	require.NoError(t, repo.UpsertOrders(ctx, []contracts.Order{o}))

	got, err := repo.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, o.Amount.Equal(got.Amount))
	assert.Equal(t, contracts.StatusAwaitingFiller, got.Status)

	taken := got
	taken.Filler = "B"
	taken.Status = contracts.StatusAwaitingPayment
	past := time.Now().Add(-time.Minute).UTC()
	taken.FiatTransferDeadline = &past

	applied, err := repo.CompareAndSwap(ctx, got, taken, "take", "B")
	require.NoError(t, err)
	assert.True(t, applied)

	// Same precondition again: the stored row moved on
	applied, err = repo.CompareAndSwap(ctx, got, taken, "take", "C")
	require.NoError(t, err)
	assert.False(t, applied)

	timedOut, err := repo.ListTimedOut(ctx, time.Now())
	require.NoError(t, err)
	ids := make([]string, 0, len(timedOut))
	for _, row := range timedOut {
		ids = append(ids, row.ID)
	}
	assert.Contains(t, ids, o.ID)

	_, err = repo.GetOrder(ctx, "does-not-exist")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestRepository_InsertOrderNeverOverwrites(t *testing.T) {
	repo := openRepository(t)
	ctx := context.Background()

	o := order("ins-"+time.Now().Format("150405.000000"), contracts.StatusAwaitingFiller)
	inserted, err := repo.InsertOrder(ctx, o, o.Creator)
	require.NoError(t, err)
	assert.True(t, inserted)

	done := o
	done.Filler = "B"
	done.Status = contracts.StatusCompleted
	applied, err := repo.CompareAndSwap(ctx, o, done, "confirm_payment", o.Creator)
	require.NoError(t, err)
	require.True(t, applied)

	again := o
	again.Creator = "X"
	inserted, err = repo.InsertOrder(ctx, again, "X")
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := repo.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusCompleted, got.Status)
	assert.Equal(t, "B", got.Filler)
	assert.Equal(t, o.Creator, got.Creator)
}

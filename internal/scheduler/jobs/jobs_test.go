package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/p2pex/backend/internal/contracts"
	"github.com/wonny/p2pex/backend/internal/orderbook"
	"github.com/wonny/p2pex/backend/internal/scheduler"
	"github.com/wonny/p2pex/backend/internal/settlement"
)

type stubRefresher struct {
	snapshot *orderbook.Snapshot
	err      error
}

func (s *stubRefresher) Refresh(ctx context.Context) (*orderbook.Snapshot, error) {
	return s.snapshot, s.err
}

type stubSweeper struct {
	result settlement.SweepResult
	err    error
	actor  string
}

func (s *stubSweeper) SweepTimeouts(ctx context.Context, actor string) (settlement.SweepResult, error) {
	s.actor = actor
	return s.result, s.err
}

// Compile-time checks that the jobs satisfy the scheduler interface
var (
	_ scheduler.Job = (*SnapshotRefreshJob)(nil)
	_ scheduler.Job = (*FiatTimeoutJob)(nil)
	_ scheduler.Job = (*SnapshotWatchdogJob)(nil)
)

func TestSnapshotRefreshJob(t *testing.T) {
	snap := orderbook.NewSnapshot([]contracts.Order{{ID: "1"}}, "indexer", time.Now())
	job := NewSnapshotRefreshJob(&stubRefresher{snapshot: snap}, "*/5 * * * * *", nil)

	assert.Equal(t, "snapshot_refresh", job.Name())
	assert.Equal(t, "*/5 * * * * *", job.Schedule())
	assert.NoError(t, job.Run(context.Background()))

	failing := NewSnapshotRefreshJob(&stubRefresher{err: errors.New("indexer down")}, "@every 5s", nil)
	assert.ErrorContains(t, failing.Run(context.Background()), "indexer down")
}

func TestFiatTimeoutJob(t *testing.T) {
	sweeper := &stubSweeper{result: settlement.SweepResult{Checked: 2, Refunded: 1, Skipped: 1}}
	job := NewFiatTimeoutJob(sweeper, nil)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, SweepActor, sweeper.actor)

	sweeper.err = errors.New("db down")
	assert.Error(t, job.Run(context.Background()))
}

func TestSnapshotWatchdogJob(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := orderbook.NewStore()

	job := NewSnapshotWatchdogJob(store, time.Minute, nil)
	job.now = func() time.Time { return now }

	assert.True(t, job.Stale(), "empty store is stale")
	assert.NoError(t, job.Run(context.Background()))

	store.Replace(orderbook.NewSnapshot(nil, "indexer", now.Add(-30*time.Second)))
	assert.False(t, job.Stale())

	store.Replace(orderbook.NewSnapshot(nil, "indexer", now.Add(-2*time.Minute)))
	assert.True(t, job.Stale())
	assert.NoError(t, job.Run(context.Background()), "staleness is reported, not failed")
}

func TestJobsRunUnderScheduler(t *testing.T) {
	s := scheduler.New(nil, scheduler.WithRetry(0, time.Millisecond))
	sweeper := &stubSweeper{}
	require.NoError(t, s.AddJob(NewFiatTimeoutJob(sweeper, nil)))

	result, err := s.RunJobSync(context.Background(), "fiat_timeout_sweep")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, SweepActor, sweeper.actor)
}

package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/p2pex/backend/internal/orderbook"
	"github.com/wonny/p2pex/backend/pkg/logger"
)

// Refresher rebuilds the live order snapshot
type Refresher interface {
	Refresh(ctx context.Context) (*orderbook.Snapshot, error)
}

// SnapshotRefreshJob keeps the in-memory order snapshot current
// ⭐ SSOT: 스냅샷 갱신 스케줄은 이 Job에서만
type SnapshotRefreshJob struct {
	refresher Refresher
	schedule  string
	logger    *logger.Logger
}

// NewSnapshotRefreshJob creates a snapshot refresh job.
// schedule is a cron expression with seconds, e.g. "*/5 * * * * *".
func NewSnapshotRefreshJob(refresher Refresher, schedule string, log *logger.Logger) *SnapshotRefreshJob {
	if log == nil {
		log = logger.Nop()
	}
	return &SnapshotRefreshJob{
		refresher: refresher,
		schedule:  schedule,
		logger:    log,
	}
}

// Name returns the job name
func (j *SnapshotRefreshJob) Name() string {
	return "snapshot_refresh"
}

// Schedule returns the configured cron schedule
func (j *SnapshotRefreshJob) Schedule() string {
	return j.schedule
}

// Run refreshes the snapshot once
func (j *SnapshotRefreshJob) Run(ctx context.Context) error {
	snapshot, err := j.refresher.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh snapshot: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"orders": snapshot.Len(),
		"source": snapshot.Source(),
	}).Debug("Order snapshot refreshed")

	return nil
}

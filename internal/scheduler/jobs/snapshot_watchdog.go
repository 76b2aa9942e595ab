package jobs

import (
	"context"
	"time"

	"github.com/wonny/p2pex/backend/internal/orderbook"
	"github.com/wonny/p2pex/backend/pkg/logger"
)

// SnapshotWatchdogJob warns when the live snapshot stops advancing
type SnapshotWatchdogJob struct {
	store  *orderbook.Store
	maxAge time.Duration
	now    func() time.Time
	logger *logger.Logger
}

// NewSnapshotWatchdogJob creates a staleness check for store
func NewSnapshotWatchdogJob(store *orderbook.Store, maxAge time.Duration, log *logger.Logger) *SnapshotWatchdogJob {
	if log == nil {
		log = logger.Nop()
	}
	return &SnapshotWatchdogJob{
		store:  store,
		maxAge: maxAge,
		now:    time.Now,
		logger: log,
	}
}

// Name returns the job name
func (j *SnapshotWatchdogJob) Name() string {
	return "snapshot_watchdog"
}

// Schedule returns the cron schedule (every 30 seconds)
func (j *SnapshotWatchdogJob) Schedule() string {
	return "*/30 * * * * *"
}

// Run checks the snapshot age. A stale snapshot is reported, not treated as a job failure.
func (j *SnapshotWatchdogJob) Run(ctx context.Context) error {
	current := j.store.Current()
	if current.FetchedAt().IsZero() {
		j.logger.Warn("No order snapshot loaded yet")
		return nil
	}

	age := j.now().Sub(current.FetchedAt())
	if age > j.maxAge {
		j.logger.WithFields(map[string]interface{}{
			"age":     age.String(),
			"max_age": j.maxAge.String(),
			"source":  current.Source(),
		}).Warn("Order snapshot is stale")
	}

	return nil
}

// Stale reports whether the current snapshot is older than the limit
func (j *SnapshotWatchdogJob) Stale() bool {
	fetched := j.store.Current().FetchedAt()
	return fetched.IsZero() || j.now().Sub(fetched) > j.maxAge
}

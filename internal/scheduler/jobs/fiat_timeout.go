package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/p2pex/backend/internal/settlement"
	"github.com/wonny/p2pex/backend/pkg/logger"
)

// SweepActor is recorded as the actor of automatic refunds
const SweepActor = "scheduler"

// Sweeper refunds orders whose fiat transfer window elapsed
type Sweeper interface {
	SweepTimeouts(ctx context.Context, actor string) (settlement.SweepResult, error)
}

// FiatTimeoutJob refunds taken orders nobody paid for in time
type FiatTimeoutJob struct {
	sweeper Sweeper
	logger  *logger.Logger
}

// NewFiatTimeoutJob creates a fiat transfer timeout job
func NewFiatTimeoutJob(sweeper Sweeper, log *logger.Logger) *FiatTimeoutJob {
	if log == nil {
		log = logger.Nop()
	}
	return &FiatTimeoutJob{
		sweeper: sweeper,
		logger:  log,
	}
}

// Name returns the job name
func (j *FiatTimeoutJob) Name() string {
	return "fiat_timeout_sweep"
}

// Schedule returns the cron schedule (every minute)
func (j *FiatTimeoutJob) Schedule() string {
	return "0 * * * * *"
}

// Run executes one sweep
func (j *FiatTimeoutJob) Run(ctx context.Context) error {
	result, err := j.sweeper.SweepTimeouts(ctx, SweepActor)
	if err != nil {
		return fmt.Errorf("sweep fiat timeouts: %w", err)
	}

	if result.Refunded > 0 {
		j.logger.WithField("refunded", result.Refunded).Info("Refunded orders past their fiat transfer deadline")
	}

	return nil
}

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/facegate/facegate-core/internal/events"
	"github.com/facegate/facegate-core/internal/infrastructure/logging"
	"github.com/facegate/facegate-core/internal/job"
)

// Requeuer returns rested failed jobs to the pending queue.
type Requeuer struct {
	logger     *logging.Logger
	clock      Clock
	jobs       job.Repository
	events     *events.Publisher
	restPeriod time.Duration
	maxRetries int
}

// NewRequeuer creates a failure requeuer. A non-positive maxRetries falls
// back to the standard delivery attempt budget.
func NewRequeuer(
	logger *logging.Logger,
	clock Clock,
	jobs job.Repository,
	publisher *events.Publisher,
	restPeriod time.Duration,
	maxRetries int,
) *Requeuer {
	if maxRetries <= 0 {
		maxRetries = job.DefaultMaxRetries
	}
	return &Requeuer{
		logger:     logger,
		clock:      clock,
		jobs:       jobs,
		events:     publisher,
		restPeriod: restPeriod,
		maxRetries: maxRetries,
	}
}

// Tick requeues failed jobs that have rested past the threshold and still
// have retry budget. Jobs at the budget stay failed as dead-letters,
// visible for inspection but never retried.
func (r *Requeuer) Tick(ctx context.Context) error {
	now := r.clock.Now()

	n, err := r.jobs.RequeueFailed(ctx, now.Add(-r.restPeriod), r.maxRetries, now)
	if err != nil {
		return fmt.Errorf("requeueing failed jobs: %w", err)
	}

	if n > 0 {
		r.logger.Info("failed jobs requeued", "count", n)
		r.events.JobsRequeued(n)
	}

	r.reportQueueDepth(ctx)

	return nil
}

// reportQueueDepth publishes queue gauges to the telemetry sink. Counting
// failures must not fail the tick; the gauges are best-effort.
func (r *Requeuer) reportQueueDepth(ctx context.Context) {
	pending, err := r.jobs.CountByState(ctx, job.StatePending)
	if err != nil {
		r.logger.Warn("counting pending jobs", "error", err)
		return
	}
	failed, err := r.jobs.CountByState(ctx, job.StateFailed)
	if err != nil {
		r.logger.Warn("counting failed jobs", "error", err)
		return
	}
	r.events.QueueDepth(pending, failed)
}

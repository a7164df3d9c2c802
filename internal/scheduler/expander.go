package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/facegate/facegate-core/internal/infrastructure/logging"
	"github.com/facegate/facegate-core/internal/job"
	"github.com/facegate/facegate-core/internal/schedule"
)

// Expander turns due schedules into pending jobs.
type Expander struct {
	logger      *logging.Logger
	clock       Clock
	schedules   schedule.Repository
	jobs        job.Repository
	due         schedule.DueEvaluator
	dedupWindow time.Duration
}

// NewExpander creates a schedule expander.
func NewExpander(
	logger *logging.Logger,
	clock Clock,
	schedules schedule.Repository,
	jobs job.Repository,
	due schedule.DueEvaluator,
	dedupWindow time.Duration,
) *Expander {
	return &Expander{
		logger:      logger,
		clock:       clock,
		schedules:   schedules,
		jobs:        jobs,
		due:         due,
		dedupWindow: dedupWindow,
	}
}

// Tick expands every active, in-window, due schedule into pending jobs for
// its target devices, subject to the per-pair dedup rules.
func (e *Expander) Tick(ctx context.Context) error {
	now := e.clock.Now()

	schedules, err := e.schedules.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("listing active schedules: %w", err)
	}

	for i := range schedules {
		sched := &schedules[i]

		if !sched.InWindow(now) {
			continue
		}
		if sched.Recurring() && !e.due.Due(sched.Cron, now) {
			continue
		}

		targets, err := e.schedules.ListTargets(ctx, sched.ID)
		if err != nil {
			return fmt.Errorf("listing targets for schedule %s: %w", sched.ID, err)
		}

		for _, deviceID := range targets {
			skip, err := e.alreadyCovered(ctx, sched, deviceID, now)
			if err != nil {
				return err
			}
			if skip {
				continue
			}

			id, err := e.jobs.Create(ctx, sched.ID, deviceID, now)
			if err != nil {
				return fmt.Errorf("creating job for schedule %s device %s: %w", sched.ID, deviceID, err)
			}
			e.logger.Debug("job created",
				"job_id", id, "schedule_id", sched.ID, "device_id", deviceID,
				"payload", string(sched.Payload),
			)
		}
	}

	return nil
}

// alreadyCovered applies the per-pair dedup policy.
//
// Fire-once schedules get exactly one job ever. Recurring schedules are
// suppressed while a job for the pair was touched inside the dedup window
// (several expander ticks land in the same due minute) or while a pending
// job is still in flight.
func (e *Expander) alreadyCovered(ctx context.Context, sched *schedule.Schedule, deviceID string, now time.Time) (bool, error) {
	if !sched.Recurring() {
		exists, err := e.jobs.ExistsForPair(ctx, sched.ID, deviceID)
		if err != nil {
			return false, fmt.Errorf("checking pair %s/%s: %w", sched.ID, deviceID, err)
		}
		return exists, nil
	}

	recent, err := e.jobs.ExistsRecentForPair(ctx, sched.ID, deviceID, now.Add(-e.dedupWindow))
	if err != nil {
		return false, fmt.Errorf("checking recent pair %s/%s: %w", sched.ID, deviceID, err)
	}
	if recent {
		return true, nil
	}

	pending, err := e.jobs.ExistsPendingForPair(ctx, sched.ID, deviceID)
	if err != nil {
		return false, fmt.Errorf("checking pending pair %s/%s: %w", sched.ID, deviceID, err)
	}
	return pending, nil
}

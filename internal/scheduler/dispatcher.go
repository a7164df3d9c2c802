package scheduler

import (
	"context"
	"fmt"

	"github.com/facegate/facegate-core/internal/audit"
	"github.com/facegate/facegate-core/internal/events"
	"github.com/facegate/facegate-core/internal/gateway"
	"github.com/facegate/facegate-core/internal/infrastructure/logging"
	"github.com/facegate/facegate-core/internal/job"
	"github.com/facegate/facegate-core/internal/schedule"
)

// Dispatcher delivers pending jobs to connected terminals.
type Dispatcher struct {
	logger   *logging.Logger
	clock    Clock
	jobs     job.Repository
	registry *gateway.Registry
	audits   audit.Repository
	events   *events.Publisher
	batch    int
}

// NewDispatcher creates a job dispatcher.
func NewDispatcher(
	logger *logging.Logger,
	clock Clock,
	jobs job.Repository,
	registry *gateway.Registry,
	audits audit.Repository,
	publisher *events.Publisher,
	batch int,
) *Dispatcher {
	return &Dispatcher{
		logger:   logger,
		clock:    clock,
		jobs:     jobs,
		registry: registry,
		audits:   audits,
		events:   publisher,
		batch:    batch,
	}
}

// Tick delivers one batch of pending jobs, oldest first.
//
// An offline device leaves its job pending untouched: not yet deliverable
// is not a failure. Send errors and unknown payload kinds go through the
// failure path so the requeue budget bounds them.
func (d *Dispatcher) Tick(ctx context.Context) error {
	work, err := d.jobs.ListPendingWork(ctx, d.batch)
	if err != nil {
		return fmt.Errorf("listing pending work: %w", err)
	}

	for _, w := range work {
		conn, ok := d.registry.Get(w.DeviceID)
		if !ok {
			continue
		}

		frame, err := buildPush(w)
		if err != nil {
			d.fail(ctx, w, err.Error())
			continue
		}

		if err := conn.Send(frame); err != nil {
			d.fail(ctx, w, err.Error())
			continue
		}

		if err := d.jobs.MarkSent(ctx, w.JobID, d.clock.Now()); err != nil {
			return fmt.Errorf("marking job %d sent: %w", w.JobID, err)
		}
		d.logger.Info("job dispatched",
			"job_id", w.JobID, "device_id", w.DeviceID, "method", frame.Method)

		if err := d.audits.Create(ctx, &audit.Entry{
			Action:     audit.ActionDispatch,
			EntityType: "job",
			EntityID:   fmt.Sprintf("%d", w.JobID),
			Details:    map[string]any{"device_id": w.DeviceID, "method": frame.Method},
		}); err != nil {
			d.logger.Warn("audit write failed", "error", err)
		}
		d.events.JobSent(w.JobID, w.ScheduleID, w.DeviceID)
	}

	return nil
}

// fail transitions a job to failed and publishes the outcome. Repository
// errors here are logged, not returned: one bad job must not abort the
// rest of the batch.
func (d *Dispatcher) fail(ctx context.Context, w job.Work, reason string) {
	if err := d.jobs.MarkFailed(ctx, w.JobID, reason, d.clock.Now()); err != nil {
		d.logger.Error("marking job failed", "job_id", w.JobID, "error", err)
		return
	}
	d.logger.Warn("job dispatch failed",
		"job_id", w.JobID, "device_id", w.DeviceID, "reason", reason)
	d.events.JobFailed(w.JobID, w.ScheduleID, w.DeviceID, reason)
}

// buildPush maps a job's payload kind to its wire frame.
func buildPush(w job.Work) (gateway.Frame, error) {
	switch w.Payload {
	case schedule.PayloadImage:
		// A missing image reference sends a null Url; deployed terminals
		// treat that as "clear the display".
		return gateway.NewPush(gateway.MethodPushDisplayImage, map[string]any{
			"Url": w.ImageURL,
		}), nil
	case schedule.PayloadFace:
		return gateway.NewPush(gateway.MethodInsertPerson, map[string]any{}), nil
	default:
		return gateway.Frame{}, fmt.Errorf("unknown payload kind %q", w.Payload)
	}
}

package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/facegate/facegate-core/internal/infrastructure/config"
	"github.com/facegate/facegate-core/internal/infrastructure/logging"
	"github.com/facegate/facegate-core/internal/job"
)

// Cancelling the start context must stop all three loops; Stop returns
// once they have drained.
func TestEngineStartStop(t *testing.T) {
	f := newFixture(t)
	cfg := config.SchedulerConfig{
		ExpandInterval:   1,
		DispatchInterval: 1,
		RequeueInterval:  1,
		DispatchBatch:    50,
		MaxRetries:       job.DefaultMaxRetries,
		RequeueAfter:     30,
		CronDedupWindow:  55,
	}

	engine := NewEngine(logging.Default(), cfg, f.expander, f.dispatcher, f.requeuer)

	ctx, cancel := context.WithCancel(context.Background())
	engine.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		engine.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop after context cancellation")
	}
}

// A tick that ticks over a live database must not disturb an idle system.
func TestEngineTicksRunClean(t *testing.T) {
	f := newFixture(t)

	if err := f.expander.Tick(context.Background()); err != nil {
		t.Errorf("expander tick on empty database: %v", err)
	}
	if err := f.dispatcher.Tick(context.Background()); err != nil {
		t.Errorf("dispatcher tick on empty database: %v", err)
	}
	if err := f.requeuer.Tick(context.Background()); err != nil {
		t.Errorf("requeuer tick on empty database: %v", err)
	}

	if len(f.jobStates(t)) != 0 {
		t.Errorf("expected no jobs, got %v", f.jobStates(t))
	}
}

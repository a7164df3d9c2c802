package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/facegate/facegate-core/internal/infrastructure/config"
	"github.com/facegate/facegate-core/internal/infrastructure/logging"
)

// task is one periodic loop body.
type task func(ctx context.Context) error

// Engine owns the three periodic loops and their lifecycle.
type Engine struct {
	logger     *logging.Logger
	cfg        config.SchedulerConfig
	expander   *Expander
	dispatcher *Dispatcher
	requeuer   *Requeuer

	wg sync.WaitGroup
}

// NewEngine creates the scheduler engine.
func NewEngine(
	logger *logging.Logger,
	cfg config.SchedulerConfig,
	expander *Expander,
	dispatcher *Dispatcher,
	requeuer *Requeuer,
) *Engine {
	return &Engine{
		logger:     logger,
		cfg:        cfg,
		expander:   expander,
		dispatcher: dispatcher,
		requeuer:   requeuer,
	}
}

// Start launches the three loops. They stop when ctx is cancelled; call
// Stop to wait for them to drain.
func (e *Engine) Start(ctx context.Context) {
	e.launch(ctx, "expander", e.cfg.ExpandEvery(), e.expander.Tick)
	e.launch(ctx, "dispatcher", e.cfg.DispatchEvery(), e.dispatcher.Tick)
	e.launch(ctx, "requeuer", e.cfg.RequeueEvery(), e.requeuer.Tick)

	e.logger.Info("scheduler started",
		"expand_every", e.cfg.ExpandEvery(),
		"dispatch_every", e.cfg.DispatchEvery(),
		"requeue_every", e.cfg.RequeueEvery(),
	)
}

// Stop blocks until all loops have exited. Start's context must already be
// cancelled or Stop blocks forever.
func (e *Engine) Stop() {
	e.wg.Wait()
	e.logger.Info("scheduler stopped")
}

// launch runs one loop on its own ticker. A tick error is logged and
// aborts only that tick; the loop keeps going.
func (e *Engine) launch(ctx context.Context, name string, every time.Duration, tick task) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := tick(ctx); err != nil {
					e.logger.Error("scheduler tick failed", "task", name, "error", err)
				}
			}
		}
	}()
}

package escrow

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-verify/core"
)

// Runner drives the coordinator on a fixed cadence. It is the single
// scheduling loop of the pipeline: one tick at a time, an immediate first
// pass, then the configured interval until the context is canceled.
type Runner struct {
	coordinator *Coordinator
	interval    time.Duration
	logger      core.Logger
}

func NewRunner(coordinator *Coordinator, interval time.Duration, logger core.Logger) (*Runner, error) {
	if coordinator == nil {
		return nil, fmt.Errorf("escrow: coordinator is required")
	}
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Runner{
		coordinator: coordinator,
		interval:    interval,
		logger:      glog.Ensure(logger),
	}, nil
}

// Start blocks until ctx is canceled. An in-flight tick always completes;
// cancellation only stops the next one from being scheduled.
func (r *Runner) Start(ctx context.Context) {
	r.tick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("escrow runner stopped")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// tick shields the loop from anything a coordinator pass might throw; the
// loop itself is never allowed to terminate from a processing error.
func (r *Runner) tick(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("escrow tick panicked", "panic", rec)
		}
	}()
	r.coordinator.Tick(ctx)
}

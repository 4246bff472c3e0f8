package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/rehostd/rehostd/internal/config"
	"github.com/rehostd/rehostd/internal/store"
)

// Reaper periodically requeues tasks stranded in processing by crashed or
// killed workers. It is a safety net, not a scheduler: under normal operation
// it finds nothing.
type Reaper struct {
	tasks    store.TaskStore
	stuckAge time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// NewReaper builds a reaper that scans at half the stuck age, so a stranded
// task waits at most 1.5x the configured age before becoming claimable.
func NewReaper(tasks store.TaskStore, cfg config.WorkerConfig, log *slog.Logger) *Reaper {
	interval := cfg.StuckAge / 2
	if interval < time.Second {
		interval = time.Second
	}
	return &Reaper{
		tasks:    tasks,
		stuckAge: cfg.StuckAge,
		interval: interval,
		logger:   log.With("component", "reaper"),
	}
}

// Run scans on a ticker until ctx is canceled. Scan errors are logged and
// absorbed; the next tick retries.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("stuck task reaper started", "stuck_age", r.stuckAge, "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stuck task reaper stopped")
			return nil
		case <-ticker.C:
			ids, err := r.tasks.ReapStuck(ctx, r.stuckAge)
			if err != nil {
				if ctx.Err() == nil {
					r.logger.Error("reap scan failed", "error", err)
				}
				continue
			}
			if len(ids) > 0 {
				r.logger.Warn("requeued stuck tasks", "count", len(ids), "task_ids", ids)
			}
		}
	}
}

package aggregation

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler ticks the aggregation runner on a periodic interval. Each tick
// drains the event backlog in batches; boundary closure happens inside the
// run, so a tick with no new events still finalizes elapsed windows.
type Scheduler struct {
	interval time.Duration
	runner   *Runner
	logger   *slog.Logger
}

// NewScheduler creates a periodic driver for one runner.
func NewScheduler(interval time.Duration, runner *Runner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{interval: interval, runner: runner, logger: logger}
}

// Start begins periodic aggregation. Runs until the context is cancelled,
// then performs a final drain so in-flight backlog is not stranded.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("[Scheduler] Starting aggregation scheduler", "interval", s.interval)

	// Initial drain to catch up with any backlog from downtime.
	s.drainBacklog(ctx)

	for {
		select {
		case <-ticker.C:
			s.drainBacklog(ctx)
		case <-ctx.Done():
			s.logger.Info("[Scheduler] Stopping (context cancelled)")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			s.logger.Info("[Scheduler] Running final drain before shutdown...")
			s.drainBacklog(shutdownCtx)
			s.logger.Info("[Scheduler] Final drain complete")

			return nil
		}
	}
}

// drainBacklog processes pending events in batches until the backlog is
// empty. This prevents unbounded staleness during burst ingestion.
func (s *Scheduler) drainBacklog(ctx context.Context) {
	batchCount := 0
	maxConsecutiveBatches := 100 // Safety limit to prevent infinite loop

	for batchCount < maxConsecutiveBatches {
		select {
		case <-ctx.Done():
			s.logger.Info("[Scheduler] Drain interrupted by context cancellation",
				"batches_processed", batchCount)
			return
		default:
		}

		processed, err := s.runner.RunOnce(ctx, time.Now().UTC())
		if err != nil {
			s.logger.Error("[Scheduler] Aggregation run failed",
				"error", err, "batch_number", batchCount+1)
			return
		}

		batchCount++

		// Fewer events than a full batch means the backlog is drained.
		if processed < s.runner.cfg.BatchSize {
			if batchCount > 1 {
				s.logger.Info("[Scheduler] Backlog drained", "total_batches", batchCount)
			}
			return
		}

		s.logger.Info("[Scheduler] Backlog detected, continuing to drain",
			"batches_so_far", batchCount)
	}

	s.logger.Warn("[Scheduler] Max consecutive batches reached, pausing drain",
		"max_batches", maxConsecutiveBatches,
		"note", "Will resume on next tick")
}

package usecase

import (
	"context"
	"log/slog"
	"time"

	"PaperDigest/internal/ports"
)

// Job is one scheduled run.
type Job func(ctx context.Context, trigger time.Time) error

// Scheduler wires the ticker driver with a job such as fetch-then-build.
type Scheduler struct {
	driver ports.Scheduler
	job    Job
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, job Job, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, job: job, logger: logger}
}

// Start registers the job with the provided scheduler. A failed run is logged and
// the next tick runs again.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.job == nil {
		return nil
	}

	run := func(trigger time.Time) {
		if err := s.job(ctx, trigger); err != nil && s.logger != nil {
			s.logger.Error("scheduled run failed", "trigger", trigger.Format(time.RFC3339), "error", err)
		}
	}

	return s.driver.Start(ctx, run)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

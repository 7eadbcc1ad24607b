package usecase

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"CircularsDesk/internal/ports"
)

// Scheduler runs the scrape pipeline whenever the driver fires. A trigger that
// arrives while a run is still publishing is skipped.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	logger   *slog.Logger
	// after runs once a scheduled run has published, e.g. to reload readers.
	after func(context.Context, RunReport)

	running atomic.Bool
}

// NewScheduler ties driver to pipeline. after may be nil.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, logger *slog.Logger, after func(context.Context, RunReport)) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline, logger: logger, after: after}
}

// Start hands the run job to the driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}
	return s.driver.Start(ctx, func(trigger time.Time) { s.run(ctx, trigger) })
}

// Stop waits for the driver to wind down.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}

func (s *Scheduler) run(ctx context.Context, trigger time.Time) {
	if !s.running.CompareAndSwap(false, true) {
		s.log(slog.LevelWarn, "scheduled run skipped, previous run still active", "trigger", trigger)
		return
	}
	defer s.running.Store(false)

	report, err := s.pipeline.ProcessRun(ctx)
	if err != nil {
		s.log(slog.LevelError, "scheduled run failed", "trigger", trigger, "error", err)
		return
	}
	s.log(slog.LevelDebug, "scheduled run finished", "trigger", trigger, "run_id", report.RunID, "status", report.Status)
	if s.after != nil {
		s.after(ctx, report)
	}
}

func (s *Scheduler) log(level slog.Level, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Log(context.Background(), level, msg, args...)
	}
}

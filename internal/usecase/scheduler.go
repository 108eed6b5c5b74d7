package usecase

import (
	"context"
	"log/slog"
	"time"

	"ShortsIntel/internal/config"
	"ShortsIntel/internal/ports"
)

// Scheduler wires the cron driver with the pipeline use case. Each trigger
// runs every configured brand in order; one brand failing never blocks the
// next.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	brands   []config.BrandConfig
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring runs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, brands []config.BrandConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		driver:   driver,
		pipeline: pipeline,
		brands:   brands,
		logger:   logger.With("component", "scheduler"),
	}
}

// Start registers the brand loop with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.logger.Info("scheduled run triggered", "at", trigger, "brands", len(s.brands))
		for _, brand := range s.brands {
			if err := s.pipeline.Run(ctx, brand); err != nil {
				s.logger.Error("scheduled run failed", "brand", brand.Name, "error", err)
			}
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

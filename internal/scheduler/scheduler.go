// Package scheduler triggers the fetch cycle on a fixed interval and the
// retention cleanup on its own interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-radar-service/internal/observability"
	"github.com/couchcryptid/storm-radar-service/internal/pipeline"
	"github.com/couchcryptid/storm-radar-service/internal/radar"
	"github.com/go-co-op/gocron"
)

// Runner is the work the scheduler drives. *pipeline.Cycle implements it.
type Runner interface {
	Run(ctx context.Context) (radar.Snapshot, error)
	Cleanup(ctx context.Context) (int64, error)
}

// Scheduler runs the fetch job once at start and then every FetchInterval.
// The fetch job is in singleton mode, so a slow cycle delays the next one
// instead of overlapping it.
type Scheduler struct {
	scheduler       *gocron.Scheduler
	runner          Runner
	fetchInterval   time.Duration
	cleanupInterval time.Duration
	metrics         *observability.Metrics
	logger          *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Scheduler. Nothing runs until Start.
func New(runner Runner, fetchInterval, cleanupInterval time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler:       gocron.NewScheduler(time.UTC),
		runner:          runner,
		fetchInterval:   fetchInterval,
		cleanupInterval: cleanupInterval,
		metrics:         metrics,
		logger:          logger,
	}
}

// Start registers both jobs and starts the scheduler in the background.
// Jobs run under a context derived from ctx that Stop cancels.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.fetchInterval <= 0 || s.cleanupInterval <= 0 {
		return errors.New("scheduler: intervals must be positive")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	if _, err := s.scheduler.Every(s.fetchInterval).SingletonMode().Tag("fetch").Do(s.fetch); err != nil {
		return fmt.Errorf("scheduler: fetch job: %w", err)
	}
	if _, err := s.scheduler.Every(s.cleanupInterval).WaitForSchedule().Tag("cleanup").Do(s.cleanup); err != nil {
		return fmt.Errorf("scheduler: cleanup job: %w", err)
	}

	s.scheduler.StartAsync()
	s.metrics.PipelineRunning.Set(1)
	s.logger.Info("scheduler started", "fetch_interval", s.fetchInterval, "cleanup_interval", s.cleanupInterval)
	return nil
}

// Stop cancels running jobs and stops future ones.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.scheduler.Stop()
	s.metrics.PipelineRunning.Set(0)
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) fetch() {
	// a cycle may not outlive its interval
	ctx, cancel := context.WithTimeout(s.ctx, s.fetchInterval)
	defer cancel()

	if _, err := s.runner.Run(ctx); err != nil && !errors.Is(err, pipeline.ErrCycleRunning) {
		s.logger.Error("scheduled fetch cycle failed", "error", err)
	}
}

func (s *Scheduler) cleanup() {
	ctx, cancel := context.WithTimeout(s.ctx, s.cleanupInterval)
	defer cancel()

	if _, err := s.runner.Cleanup(ctx); err != nil {
		s.logger.Error("scheduled cleanup failed", "error", err)
	}
}

package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Reloader is anything that can refresh its rules.
type Reloader interface {
	Reload(ctx context.Context) (*LoadResult, error)
}

// Scheduler reloads rules on a cron schedule. It serves sources that cannot
// be watched on disk, such as git remotes, SQLite and Redis.
type Scheduler struct {
	target   Reloader
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a scheduler that calls target.Reload per schedule.
// The schedule uses standard 5-field cron syntax:
//   - "*/5 * * * *" - Every 5 minutes
//   - "0 * * * *"   - Hourly
//   - "@every 30s"  - Fixed interval
func NewScheduler(target Reloader, schedule string, logger *slog.Logger) (*Scheduler, error) {
	if target == nil {
		return nil, fmt.Errorf("reload target cannot be nil")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		target:   target,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger.With("component", "repository.scheduler"),
	}, nil
}

// Start begins scheduled reloads. They stop when ctx is cancelled or Stop is
// called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.runReload(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule reload: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("Reload scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Scheduler) runReload(ctx context.Context) {
	s.logger.Debug("starting scheduled reload")

	result, err := s.target.Reload(ctx)
	if err != nil {
		s.logger.Error("scheduled reload failed", "error", err)
		return
	}
	s.logger.Debug("scheduled reload completed",
		"count", result.RuleCount,
		"version", result.Version,
	)
}

// Stop stops the scheduler and waits for a running reload to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("Reload scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled reload time.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}

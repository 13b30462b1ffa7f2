package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"discourse-search-platform/internal/logger"
)

// Scheduler manages periodic corpus scans
type Scheduler struct {
	scheduler *gocron.Scheduler
	cancel    context.CancelFunc
	ctx       context.Context
}

// NewScheduler creates a new scan scheduler
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &Scheduler{
		scheduler: s,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	if s.cancel != nil {
		s.cancel()
	}
}

// ScheduleScan runs discovery at the given interval. SingletonMode keeps a
// long scan from overlapping the next tick.
func (s *Scheduler) ScheduleScan(interval time.Duration, discovery *Discovery) error {
	_, err := s.scheduler.Every(interval).Tag("corpus-scan").SingletonMode().Do(func() {
		stats, err := discovery.Scan(s.ctx)
		if err != nil {
			logger.Error("Scheduled scan failed", "error", err)
			return
		}
		logger.Debug("Scheduled scan finished",
			"new", stats.New,
			"content_changed", stats.ContentChanged,
			"config_changed", stats.ConfigChanged,
			"deleted", stats.Deleted,
			"failed", stats.Failed)
	})
	return err
}

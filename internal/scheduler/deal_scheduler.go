// internal/scheduler/deal_scheduler.go
package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/dealflow-backend/internal/config"
	"github.com/javajoker/dealflow-backend/internal/metrics"
	"github.com/javajoker/dealflow-backend/internal/models"
)

const (
	jobCompleteElapsed = "complete_elapsed_deals"
	jobExpireListings  = "expire_stale_listings"
)

// DealJobs is the part of the deal engine the scheduler drives.
type DealJobs interface {
	CompleteElapsedDeals(ctx context.Context) (int, error)
	ExpireStaleListings(ctx context.Context) (int, error)
}

// DealScheduler runs the periodic deal maintenance jobs.
type DealScheduler struct {
	jobs     DealJobs
	config   config.SchedulerConfig
	systemID uuid.UUID
	metrics  *metrics.Recorder
	logger   *logrus.Logger
	timeout  time.Duration
	cron     *cron.Cron
	mu       sync.Mutex
	running  bool
}

func NewDealScheduler(jobs DealJobs, cfg config.SchedulerConfig, systemID uuid.UUID, rec *metrics.Recorder, logger *logrus.Logger) *DealScheduler {
	return &DealScheduler{
		jobs:     jobs,
		config:   cfg,
		systemID: systemID,
		metrics:  rec,
		logger:   logger,
		timeout:  10 * time.Minute,
	}
}

// Start registers both jobs and starts the cron runner.
func (s *DealScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if !s.config.Enabled {
		s.logger.Info("Deal scheduler is disabled")
		return nil
	}

	s.cron = cron.New(cron.WithSeconds())

	entries := []struct {
		name     string
		schedule string
		fallback string
		run      func(context.Context) (int, error)
	}{
		{jobCompleteElapsed, s.config.CompletionSchedule, "0 15 2 * * *", s.jobs.CompleteElapsedDeals},
		{jobExpireListings, s.config.ExpirySchedule, "0 45 2 * * *", s.jobs.ExpireStaleListings},
	}
	for _, entry := range entries {
		name, run := entry.name, entry.run
		schedule := normalizeSchedule(entry.schedule, entry.fallback)
		if _, err := s.cron.AddFunc(schedule, func() { s.RunJob(name, run) }); err != nil {
			s.logger.WithError(err).WithField("job", name).Error("Failed to schedule deal job")
			return err
		}
	}

	s.cron.Start()
	s.running = true

	s.logger.WithFields(logrus.Fields{
		"completion_schedule": s.config.CompletionSchedule,
		"expiry_schedule":     s.config.ExpirySchedule,
	}).Info("Deal scheduler started")
	return nil
}

// Stop waits for running jobs to finish.
func (s *DealScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.cron == nil {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info("Deal scheduler stopped")
}

// RunJob executes one job as the system actor and records the outcome.
func (s *DealScheduler) RunJob(name string, run func(context.Context) (int, error)) {
	ctx, cancel := context.WithTimeout(models.ContextWithSystemActor(context.Background(), s.systemID), s.timeout)
	defer cancel()

	started := time.Now()
	affected, err := run(ctx)
	s.metrics.JobRun(name, err)

	entry := s.logger.WithFields(logrus.Fields{
		"job":         name,
		"affected":    affected,
		"duration_ms": time.Since(started).Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("Deal job failed")
		return
	}
	if affected > 0 {
		entry.Info("Deal job completed")
		return
	}
	entry.Debug("Deal job found nothing to do")
}

// normalizeSchedule accepts standard 5-field expressions as well as the
// 6-field form with seconds.
func normalizeSchedule(schedule, fallback string) string {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		return fallback
	}
	if len(strings.Fields(schedule)) == 5 {
		return "0 " + schedule
	}
	return schedule
}

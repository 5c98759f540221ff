// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package summary

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/echolog/internal/database"
	"github.com/tomtom215/echolog/internal/logging"
	"github.com/tomtom215/echolog/internal/metrics"
	"github.com/tomtom215/echolog/internal/models"
)

// SchedulerConfig holds the cron scheduler's settings.
type SchedulerConfig struct {
	// Enabled controls whether scheduled generation runs at all.
	Enabled bool

	// CronSchedule is the 5-field cron expression for scheduled runs
	// (default: "0 7 * * 1", Mondays at 07:00).
	CronSchedule string

	// CheckInterval is how often the loop checks for a due run
	// (default: 1 minute).
	CheckInterval time.Duration

	// ExecutionTimeout bounds one user's summary generation
	// (default: 5 minutes).
	ExecutionTimeout time.Duration

	// MaxConcurrent limits how many users are summarized at once
	// (default: 5).
	MaxConcurrent int
}

// Scheduler generates the previous ISO week's summary for every user
// with entries in that week, on a cron schedule in the service's
// timezone.
type Scheduler struct {
	service  *Service
	db       *database.DB
	schedule *CronSchedule
	logger   zerolog.Logger
	config   SchedulerConfig

	// now is swapped in tests
	now func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler creates the weekly summary scheduler.
func NewScheduler(service *Service, config SchedulerConfig) (*Scheduler, error) {
	if config.CronSchedule == "" {
		config.CronSchedule = "0 7 * * 1"
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Minute
	}
	if config.ExecutionTimeout <= 0 {
		config.ExecutionTimeout = 5 * time.Minute
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 5
	}

	schedule, err := ParseCron(config.CronSchedule)
	if err != nil {
		return nil, fmt.Errorf("summary: parse cron schedule %q: %w", config.CronSchedule, err)
	}

	return &Scheduler{
		service:  service,
		db:       service.db,
		schedule: schedule,
		logger:   logging.Logger().With().Str("component", "summary-scheduler").Logger(),
		config:   config,
		now:      time.Now,
	}, nil
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("summary scheduler already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	if !s.config.Enabled {
		s.logger.Info().Msg("Summary scheduler disabled")
		go func() {
			defer close(s.doneCh)
			<-s.stopCh
		}()
		return nil
	}

	s.logger.Info().
		Str("cron", s.config.CronSchedule).
		Str("timezone", s.service.loc.String()).
		Dur("check_interval", s.config.CheckInterval).
		Int("max_concurrent", s.config.MaxConcurrent).
		Msg("Starting summary scheduler")

	go s.run(ctx)
	return nil
}

// Stop stops the scheduler loop and waits for it to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.logger.Info().Msg("Stopping summary scheduler...")
	close(s.stopCh)
	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info().Msg("Summary scheduler stopped")
	return nil
}

// IsRunning reports whether the scheduler loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// run is the main scheduler loop. It tracks the next firing of the cron
// schedule and triggers a scheduled run once that moment has passed.
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	nextRun := s.schedule.Next(s.now(), s.service.loc)
	s.logger.Info().Time("next_run", nextRun).Msg("Summary run scheduled")

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := s.now()
			if now.Before(nextRun) {
				continue
			}
			s.RunScheduled(ctx)
			nextRun = s.schedule.Next(now, s.service.loc)
			s.logger.Info().Time("next_run", nextRun).Msg("Summary run scheduled")
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunScheduled generates the previous ISO week's summary for every user
// who recorded entries in that week. Failures for one user do not stop
// the others.
func (s *Scheduler) RunScheduled(ctx context.Context) {
	year, week := models.PreviousISOWeek(s.now())
	start, end := models.ISOWeekBounds(year, week)

	logger := s.logger.With().Str("week", models.FormatWeekKey(year, week)).Logger()

	userIDs, err := s.db.ListUserIDsWithEntriesBetween(ctx, start, end)
	if err != nil {
		metrics.SummaryErrors.WithLabelValues("database").Inc()
		logger.Error().Err(err).Msg("Failed to list users for scheduled summaries")
		return
	}
	if len(userIDs) == 0 {
		logger.Debug().Msg("No users with entries, skipping scheduled summaries")
		return
	}

	logger.Info().Int("users", len(userIDs)).Msg("Generating scheduled summaries")

	sem := make(chan struct{}, s.config.MaxConcurrent)
	var wg sync.WaitGroup

	for _, userID := range userIDs {
		wg.Add(1)
		sem <- struct{}{}

		go func(userID string) {
			defer wg.Done()
			defer func() { <-sem }()

			execCtx, cancel := context.WithTimeout(ctx, s.config.ExecutionTimeout)
			defer cancel()

			if _, err := s.service.GenerateWeeklySummary(execCtx, userID, year, week, "scheduled"); err != nil {
				logger.Error().Err(err).Str("user_id", userID).Msg("Scheduled summary failed")
			}
		}(userID)
	}
	wg.Wait()

	logger.Info().Int("users", len(userIDs)).Msg("Scheduled summary run complete")
}

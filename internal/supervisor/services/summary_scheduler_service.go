// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package services

import (
	"context"
	"fmt"
)

// SummarySchedulerManager matches the summary scheduler's lifecycle.
// Satisfied by *summary.Scheduler.
type SummarySchedulerManager interface {
	Start(ctx context.Context) error
	Stop() error
}

// SummarySchedulerService wraps the weekly summary scheduler as a
// supervised service, adapting its Start/Stop lifecycle to suture's
// Serve pattern.
type SummarySchedulerService struct {
	manager SummarySchedulerManager
	name    string
}

// NewSummarySchedulerService creates a summary scheduler service wrapper.
func NewSummarySchedulerService(manager SummarySchedulerManager) *SummarySchedulerService {
	return &SummarySchedulerService{
		manager: manager,
		name:    "summary-scheduler",
	}
}

// Serve implements suture.Service. If Start fails, the error is
// returned immediately so suture restarts the service with backoff.
func (s *SummarySchedulerService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("summary scheduler start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.manager.Stop(); err != nil {
		return fmt.Errorf("summary scheduler stop failed: %w", err)
	}

	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logging.
func (s *SummarySchedulerService) String() string {
	return s.name
}

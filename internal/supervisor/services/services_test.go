// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

type mockScheduler struct {
	startErr error
	stopErr  error
	started  atomic.Int32
	stopped  atomic.Int32
}

func (m *mockScheduler) Start(_ context.Context) error {
	m.started.Add(1)
	return m.startErr
}

func (m *mockScheduler) Stop() error {
	m.stopped.Add(1)
	return m.stopErr
}

func TestSummarySchedulerServiceInterface(t *testing.T) {
	var _ suture.Service = (*SummarySchedulerService)(nil)
	var _ suture.Service = (*WebSocketHubService)(nil)
	var _ suture.Service = (*CacheGCService)(nil)
}

func TestSummarySchedulerServiceLifecycle(t *testing.T) {
	sched := &mockScheduler{}
	svc := NewSummarySchedulerService(sched)

	if svc.String() != "summary-scheduler" {
		t.Errorf("unexpected name %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Serve(ctx)
	}()

	// Give Start a moment to land before cancelling
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}

	if sched.started.Load() != 1 {
		t.Errorf("expected 1 Start call, got %d", sched.started.Load())
	}
	if sched.stopped.Load() != 1 {
		t.Errorf("expected 1 Stop call, got %d", sched.stopped.Load())
	}
}

func TestSummarySchedulerServiceStartFailure(t *testing.T) {
	startErr := errors.New("bad cron expression")
	sched := &mockScheduler{startErr: startErr}
	svc := NewSummarySchedulerService(sched)

	err := svc.Serve(context.Background())
	if !errors.Is(err, startErr) {
		t.Errorf("expected start error, got %v", err)
	}
	if sched.stopped.Load() != 0 {
		t.Error("Stop should not run when Start fails")
	}
}

type mockHub struct {
	ran atomic.Int32
}

func (m *mockHub) RunWithContext(ctx context.Context) error {
	m.ran.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func TestWebSocketHubService(t *testing.T) {
	hub := &mockHub{}
	svc := NewWebSocketHubService(hub)

	if svc.String() != "websocket-hub" {
		t.Errorf("unexpected name %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Serve(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}

	if hub.ran.Load() != 1 {
		t.Errorf("expected 1 RunWithContext call, got %d", hub.ran.Load())
	}
}

type mockSweeper struct {
	sweeps atomic.Int32
}

func (m *mockSweeper) Sweep() {
	m.sweeps.Add(1)
}

func TestCacheGCServiceSweeps(t *testing.T) {
	sweeper := &mockSweeper{}
	svc := NewCacheGCService(nil, sweeper, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := svc.Serve(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}

	if sweeper.sweeps.Load() == 0 {
		t.Error("memory cache was never swept")
	}
}

func TestCacheGCServiceNilCollaborators(t *testing.T) {
	svc := NewCacheGCService(nil, nil, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := svc.Serve(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

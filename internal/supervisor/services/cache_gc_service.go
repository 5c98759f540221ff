// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package services

import (
	"context"
	"time"
)

// CacheGC matches the Badger cache's garbage collection loop.
type CacheGC interface {
	RunGC(ctx context.Context, interval time.Duration)
}

// MemorySweeper matches the in-process cache's expiry sweep.
type MemorySweeper interface {
	Sweep()
}

// CacheGCService runs periodic cache maintenance: BadgerDB value log
// garbage collection plus expired-entry sweeps of the memory cache.
// Either collaborator may be nil when that cache is disabled.
type CacheGCService struct {
	cache    CacheGC
	memory   MemorySweeper
	interval time.Duration
	name     string
}

// NewCacheGCService creates a cache maintenance service wrapper.
func NewCacheGCService(cache CacheGC, memory MemorySweeper, interval time.Duration) *CacheGCService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CacheGCService{
		cache:    cache,
		memory:   memory,
		interval: interval,
		name:     "cache-gc",
	}
}

// Serve implements suture.Service.
func (s *CacheGCService) Serve(ctx context.Context) error {
	if s.cache != nil {
		go s.cache.RunGC(ctx, s.interval)
	}

	if s.memory == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.memory.Sweep()
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *CacheGCService) String() string {
	return s.name
}

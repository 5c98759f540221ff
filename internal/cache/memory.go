// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package cache

import (
	"sync"
	"time"

	"github.com/tomtom215/echolog/internal/metrics"
)

// Memory is a small in-process TTL cache for values that are cheap to
// recompute but read often, like the activity tracker. Unlike the
// Badger cache it holds live Go values and never touches disk.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value   interface{}
	expires time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

// Get returns the cached value for key, or nil and false when absent
// or expired. Records hit/miss metrics under cacheType.
func (m *Memory) Get(key, cacheType string) (interface{}, bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || time.Now().After(entry.expires) {
		metrics.CacheMisses.WithLabelValues(cacheType).Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues(cacheType).Inc()
	return entry.value, true
}

// Set stores value under key for ttl.
func (m *Memory) Set(key string, value interface{}, ttl time.Duration) {
	m.mu.Lock()
	m.entries[key] = memoryEntry{value: value, expires: time.Now().Add(ttl)}
	m.mu.Unlock()
}

// Delete removes a key.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

// Sweep drops expired entries. Called periodically so long-idle keys
// do not pin memory.
func (m *Memory) Sweep() {
	now := time.Now()
	m.mu.Lock()
	for key, entry := range m.entries {
		if now.After(entry.expires) {
			delete(m.entries, key)
		}
	}
	m.mu.Unlock()
}

// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/echolog/internal/config"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(config.CacheConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSetGetDelete(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.Set("k1", []byte("v1"), 0))

	got, err := c.Get("k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, c.Delete("k1"))
	_, err = c.Get("k1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent key is fine
	assert.NoError(t, c.Delete("never-existed"))
}

func TestGetMissing(t *testing.T) {
	c := newTestCache(t)
	_, err := c.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.Set("ephemeral", []byte("x"), 50*time.Millisecond))

	_, err := c.Get("ephemeral")
	require.NoError(t, err)

	time.Sleep(120 * time.Millisecond)
	_, err = c.Get("ephemeral")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJSONRoundTrip(t *testing.T) {
	c := newTestCache(t)

	type payload struct {
		Name  string `json:"name"`
		Score int    `json:"score"`
	}

	require.NoError(t, c.SetJSON("p", payload{Name: "morning run", Score: 3}, time.Minute))

	var got payload
	require.NoError(t, c.GetJSON("p", &got, "llm"))
	assert.Equal(t, payload{Name: "morning run", Score: 3}, got)

	var missing payload
	assert.ErrorIs(t, c.GetJSON("absent", &missing, "llm"), ErrNotFound)
}

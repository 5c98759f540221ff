// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package transcribe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomtom215/echolog/internal/config"
)

func testTranscribeConfig(baseURL string) *config.TranscribeConfig {
	return &config.TranscribeConfig{
		Enabled:      true,
		BaseURL:      baseURL,
		APIKey:       "test-key",
		PollInterval: 10 * time.Millisecond,
		PollTimeout:  2 * time.Second,
		Timeout:      5 * time.Second,
	}
}

func TestNewClientDisabled(t *testing.T) {
	cfg := testTranscribeConfig("http://unused.invalid")
	cfg.Enabled = false
	_, err := NewClient(cfg)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	cfg := testTranscribeConfig("http://unused.invalid")
	cfg.APIKey = ""
	_, err := NewClient(cfg)
	assert.Error(t, err)
}

func TestTranscribeCompletesAfterPolling(t *testing.T) {
	var polls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("apikey"))

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/public/file":
			w.Write([]byte(`{"data":{"id":"job-1","status":"in_progress"}}`))
		case r.Method == http.MethodGet && r.URL.Path == "/public/file/job-1":
			if polls.Add(1) < 3 {
				w.Write([]byte(`{"data":{"id":"job-1","status":"in_progress"}}`))
				return
			}
			w.Write([]byte(`{"data":{"id":"job-1","status":"completed","transcript":"went for a long run this morning"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client, err := NewClient(testTranscribeConfig(server.URL))
	require.NoError(t, err)

	transcript, err := client.Transcribe(context.Background(), "https://example.com/audio.mp3")
	require.NoError(t, err)
	assert.Equal(t, "went for a long run this morning", transcript)
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestTranscribeJobFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Write([]byte(`{"data":{"id":"job-2","status":"in_progress"}}`))
			return
		}
		w.Write([]byte(`{"data":{"id":"job-2","status":"failed","error":"unsupported codec"}}`))
	}))
	defer server.Close()

	client, err := NewClient(testTranscribeConfig(server.URL))
	require.NoError(t, err)

	_, err = client.Transcribe(context.Background(), "https://example.com/audio.mp3")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrJobFailed)
	assert.Contains(t, err.Error(), "unsupported codec")
}

func TestTranscribePollTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Write([]byte(`{"data":{"id":"job-3","status":"in_progress"}}`))
			return
		}
		w.Write([]byte(`{"data":{"id":"job-3","status":"in_progress"}}`))
	}))
	defer server.Close()

	cfg := testTranscribeConfig(server.URL)
	cfg.PollTimeout = 50 * time.Millisecond
	client, err := NewClient(cfg)
	require.NoError(t, err)

	_, err = client.Transcribe(context.Background(), "https://example.com/audio.mp3")
	assert.ErrorIs(t, err, ErrPollTimeout)
}

func TestSubmitRetriesRateLimit(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"data":{"id":"job-4","status":"in_progress"}}`))
	}))
	defer server.Close()

	client, err := NewClient(testTranscribeConfig(server.URL))
	require.NoError(t, err)

	jobID, err := client.Submit(context.Background(), "https://example.com/audio.mp3")
	require.NoError(t, err)
	assert.Equal(t, "job-4", jobID)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestSubmitServerErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client, err := NewClient(testTranscribeConfig(server.URL))
	require.NoError(t, err)

	_, err = client.Submit(context.Background(), "https://example.com/audio.mp3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), attempts.Load())
}

func TestBreakerClientPassesThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Write([]byte(`{"data":{"id":"job-5","status":"in_progress"}}`))
			return
		}
		w.Write([]byte(`{"data":{"id":"job-5","status":"completed","transcript":"finished the quarterly report"}}`))
	}))
	defer server.Close()

	client, err := NewClient(testTranscribeConfig(server.URL))
	require.NoError(t, err)

	breaker := NewBreakerClient(client)
	transcript, err := breaker.Transcribe(context.Background(), "https://example.com/audio.mp3")
	require.NoError(t, err)
	assert.Equal(t, "finished the quarterly report", transcript)
}

func TestStateConversionHelpers(t *testing.T) {
	assert.Equal(t, "closed", stateToString(0))
	assert.Equal(t, float64(0), stateToFloat(0))
	assert.Equal(t, float64(2), stateToFloat(2))
}

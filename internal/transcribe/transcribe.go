// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

// Package transcribe converts uploaded audio to text through the OnDemand
// media API. Jobs are asynchronous: a submit call returns a job ID which is
// polled until the transcript is ready or the poll window expires.
package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/tomtom215/echolog/internal/config"
	"github.com/tomtom215/echolog/internal/logging"
	"github.com/tomtom215/echolog/internal/metrics"
)

var (
	// ErrDisabled is returned when transcription is turned off in config.
	ErrDisabled = errors.New("transcribe: disabled")

	// ErrJobFailed is returned when the provider reports a failed job.
	ErrJobFailed = errors.New("transcribe: job failed")

	// ErrPollTimeout is returned when a job does not finish within the poll window.
	ErrPollTimeout = errors.New("transcribe: poll timeout")
)

// Job statuses reported by the provider.
const (
	statusCompleted = "completed"
	statusFailed    = "failed"
	statusError     = "error"
)

// Client submits audio for transcription and polls for the result.
type Client struct {
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	pollTimeout  time.Duration
	httpClient   *http.Client
}

// NewClient creates an OnDemand transcription client from configuration.
func NewClient(cfg *config.TranscribeConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if cfg.APIKey == "" {
		return nil, errors.New("transcribe: api key is required")
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 3 * time.Minute
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		httpClient:   &http.Client{Timeout: timeout},
	}, nil
}

type submitRequest struct {
	URL          string `json:"url"`
	ResponseType string `json:"responseType"`
}

type jobResponse struct {
	Data struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		Transcript string `json:"transcript"`
		Error      string `json:"error"`
	} `json:"data"`
}

// Submit registers a transcription job for the given audio URL and
// returns the provider's job ID.
func (c *Client) Submit(ctx context.Context, audioURL string) (string, error) {
	payload, err := json.Marshal(submitRequest{URL: audioURL, ResponseType: "text"})
	if err != nil {
		return "", fmt.Errorf("transcribe: marshal submit request: %w", err)
	}

	body, err := c.doWithBackoff(ctx, http.MethodPost, c.baseURL+"/public/file", payload)
	if err != nil {
		return "", err
	}

	var resp jobResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("transcribe: parse submit response: %w", err)
	}
	if resp.Data.ID == "" {
		return "", fmt.Errorf("transcribe: submit response missing job id")
	}
	return resp.Data.ID, nil
}

// JobStatus describes the state of an in-flight transcription job.
type JobStatus struct {
	ID         string
	Status     string
	Transcript string
	Err        string
}

// Status fetches the current state of a job.
func (c *Client) Status(ctx context.Context, jobID string) (*JobStatus, error) {
	body, err := c.doWithBackoff(ctx, http.MethodGet, c.baseURL+"/public/file/"+jobID, nil)
	if err != nil {
		return nil, err
	}

	var resp jobResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("transcribe: parse status response: %w", err)
	}
	return &JobStatus{
		ID:         resp.Data.ID,
		Status:     resp.Data.Status,
		Transcript: resp.Data.Transcript,
		Err:        resp.Data.Error,
	}, nil
}

// Transcribe runs the full submit-and-poll cycle and returns the transcript.
func (c *Client) Transcribe(ctx context.Context, audioURL string) (string, error) {
	start := time.Now()

	jobID, err := c.Submit(ctx, audioURL)
	if err != nil {
		metrics.TranscriptionJobs.WithLabelValues("failed").Inc()
		return "", err
	}

	logging.Ctx(ctx).Debug().Str("job_id", jobID).Msg("Transcription job submitted")

	deadline := time.NewTimer(c.pollTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			metrics.TranscriptionJobs.WithLabelValues("failed").Inc()
			return "", ctx.Err()
		case <-deadline.C:
			metrics.TranscriptionJobs.WithLabelValues("timeout").Inc()
			return "", fmt.Errorf("%w: job %s after %s", ErrPollTimeout, jobID, c.pollTimeout)
		case <-ticker.C:
			status, err := c.Status(ctx, jobID)
			if err != nil {
				// Transient poll errors are retried until the deadline.
				logging.Ctx(ctx).Warn().Err(err).Str("job_id", jobID).Msg("Transcription poll failed")
				continue
			}

			switch status.Status {
			case statusCompleted:
				metrics.TranscriptionJobs.WithLabelValues("completed").Inc()
				metrics.TranscriptionDuration.Observe(time.Since(start).Seconds())
				return status.Transcript, nil
			case statusFailed, statusError:
				metrics.TranscriptionJobs.WithLabelValues("failed").Inc()
				return "", fmt.Errorf("%w: job %s: %s", ErrJobFailed, jobID, status.Err)
			}
		}
	}
}

// doWithBackoff executes a request, retrying 429 responses with
// exponential backoff (1s, 2s, 4s).
func (c *Client) doWithBackoff(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	const maxRetries = 3
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return nil, fmt.Errorf("transcribe: create request: %w", err)
		}
		req.Header.Set("apikey", c.apiKey)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("transcribe: request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("transcribe: read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("transcribe: rate limited (429)")
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("transcribe: %s %s returned status %d: %s", method, url, resp.StatusCode, truncate(body, 256))
		}
		return body, nil
	}

	return nil, fmt.Errorf("transcribe: max retries exceeded: %w", lastErr)
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

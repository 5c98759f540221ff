// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

// Package tts narrates weekly summaries through the ElevenLabs API.
// Narration is strictly best-effort: callers log synthesis failures and
// keep the text summary.
package tts

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
	"github.com/tomtom215/echolog/internal/metrics"
)

// ErrDisabled is returned when narration is turned off in config.
var ErrDisabled = errors.New("tts: disabled")

// Client synthesizes speech from text.
type Client struct {
	baseURL    string
	apiKey     string
	voiceID    string
	modelID    string
	httpClient *http.Client
}

// New creates an ElevenLabs client from configuration.
func New(cfg *config.TTSConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if cfg.APIKey == "" || cfg.VoiceID == "" {
		return nil, errors.New("tts: api key and voice id are required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	modelID := cfg.ModelID
	if modelID == "" {
		modelID = "eleven_multilingual_v2"
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		voiceID:    cfg.VoiceID,
		modelID:    modelID,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type synthesizeRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize converts text to MP3 audio bytes.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		metrics.TTSRequests.WithLabelValues("skipped").Inc()
		return nil, errors.New("tts: empty text")
	}

	payload, err := json.Marshal(synthesizeRequest{Text: text, ModelID: c.modelID})
	if err != nil {
		return nil, fmt.Errorf("tts: marshal request: %w", err)
	}

	url := c.baseURL + "/text-to-speech/" + c.voiceID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("tts: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.TTSRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("tts: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		metrics.TTSRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("tts: synthesis failed with status %d: %s", resp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		metrics.TTSRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("tts: read audio: %w", err)
	}
	if len(audio) == 0 {
		metrics.TTSRequests.WithLabelValues("error").Inc()
		return nil, errors.New("tts: empty audio response")
	}

	metrics.TTSRequests.WithLabelValues("success").Inc()
	return audio, nil
}

// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package tts

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomtom215/echolog/internal/config"
)

func testTTSConfig(baseURL string) *config.TTSConfig {
	return &config.TTSConfig{
		Enabled: true,
		BaseURL: baseURL,
		APIKey:  "xi-key",
		VoiceID: "voice-1",
		ModelID: "eleven_multilingual_v2",
		Timeout: 5 * time.Second,
	}
}

func TestNewDisabled(t *testing.T) {
	cfg := testTTSConfig("http://unused.invalid")
	cfg.Enabled = false
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestNewRequiresVoice(t *testing.T) {
	cfg := testTTSConfig("http://unused.invalid")
	cfg.VoiceID = ""
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestSynthesize(t *testing.T) {
	var gotPath, gotAPIKey, gotText, gotModel string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("xi-api-key")

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req map[string]string
		require.NoError(t, json.Unmarshal(body, &req))
		gotText = req["text"]
		gotModel = req["model_id"]

		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3bytes"))
	}))
	defer server.Close()

	client, err := New(testTTSConfig(server.URL))
	require.NoError(t, err)

	audio, err := client.Synthesize(context.Background(), "You had a productive week.")
	require.NoError(t, err)

	assert.Equal(t, "/text-to-speech/voice-1", gotPath)
	assert.Equal(t, "xi-key", gotAPIKey)
	assert.Equal(t, "You had a productive week.", gotText)
	assert.Equal(t, "eleven_multilingual_v2", gotModel)
	assert.Equal(t, []byte("mp3bytes"), audio)
}

func TestSynthesizeEmptyText(t *testing.T) {
	client, err := New(testTTSConfig("http://unused.invalid"))
	require.NoError(t, err)

	_, err = client.Synthesize(context.Background(), "   ")
	assert.Error(t, err)
}

func TestSynthesizeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := New(testTTSConfig(server.URL))
	require.NoError(t, err)

	_, err = client.Synthesize(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

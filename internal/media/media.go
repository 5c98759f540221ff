// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

// Package media uploads journal audio to Cloudinary and returns durable URLs.
// All uploads use signed requests; the API secret never leaves the server.
package media

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/tomtom215/echolog/internal/config"
	"github.com/tomtom215/echolog/internal/logging"
)

const defaultBaseURL = "https://api.cloudinary.com"

// ErrUploadTooLarge is returned when the audio payload exceeds the configured limit.
var ErrUploadTooLarge = errors.New("media: upload exceeds size limit")

// ErrNotConfigured is returned when credentials are missing.
var ErrNotConfigured = errors.New("media: cloudinary credentials not configured")

// UploadResult describes a stored asset.
type UploadResult struct {
	SecureURL string  `json:"secure_url"`
	PublicID  string  `json:"public_id"`
	Bytes     int64   `json:"bytes"`
	Duration  float64 `json:"duration"`
}

// Client is a Cloudinary upload client. Audio is stored under the video
// resource type, which is how Cloudinary handles standalone audio files.
type Client struct {
	cloudName    string
	apiKey       string
	apiSecret    string
	uploadFolder string
	maxBytes     int64
	baseURL      string
	httpClient   *http.Client

	// now is replaceable for deterministic signatures in tests.
	now func() time.Time
}

// New creates a Cloudinary client from configuration.
func New(cfg *config.MediaConfig) (*Client, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, ErrNotConfigured
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	maxMB := cfg.MaxUploadMB
	if maxMB <= 0 {
		maxMB = 25
	}

	return &Client{
		cloudName:    cfg.CloudName,
		apiKey:       cfg.APIKey,
		apiSecret:    cfg.APISecret,
		uploadFolder: cfg.UploadFolder,
		maxBytes:     maxMB * 1024 * 1024,
		baseURL:      defaultBaseURL,
		httpClient:   &http.Client{Timeout: timeout},
		now:          time.Now,
	}, nil
}

// MaxUploadBytes returns the configured upload size limit in bytes.
func (c *Client) MaxUploadBytes() int64 {
	return c.maxBytes
}

// signature computes the Cloudinary request signature: SHA-1 of the
// alphabetically sorted key=value pairs joined with '&', with the API
// secret appended. The file, api_key and signature fields are never
// part of the signed string.
func (c *Client) signature(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + c.apiSecret))
	return hex.EncodeToString(sum[:])
}

// Upload stores an audio file and returns its secure URL and public ID.
// filename is used only as the multipart part name hint; Cloudinary
// assigns the public ID from the folder and a generated suffix.
func (c *Client) Upload(ctx context.Context, filename string, audio io.Reader, size int64) (*UploadResult, error) {
	if size > c.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrUploadTooLarge, size, c.maxBytes)
	}

	timestamp := strconv.FormatInt(c.now().UTC().Unix(), 10)
	signed := map[string]string{
		"timestamp": timestamp,
	}
	if c.uploadFolder != "" {
		signed["folder"] = c.uploadFolder
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for k, v := range signed {
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("media: write field %s: %w", k, err)
		}
	}
	if err := writer.WriteField("api_key", c.apiKey); err != nil {
		return nil, fmt.Errorf("media: write field api_key: %w", err)
	}
	if err := writer.WriteField("signature", c.signature(signed)); err != nil {
		return nil, fmt.Errorf("media: write field signature: %w", err)
	}

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("media: create file part: %w", err)
	}
	written, err := io.Copy(part, io.LimitReader(audio, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("media: read audio: %w", err)
	}
	if written > c.maxBytes {
		return nil, fmt.Errorf("%w: limit %d", ErrUploadTooLarge, c.maxBytes)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("media: finalize multipart body: %w", err)
	}

	uploadURL := fmt.Sprintf("%s/v1_1/%s/video/upload", c.baseURL, c.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &body)
	if err != nil {
		return nil, fmt.Errorf("media: create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media: upload request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("media: read upload response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media: upload failed with status %d: %s", resp.StatusCode, truncate(respBody, 256))
	}

	var result UploadResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("media: parse upload response: %w", err)
	}
	if result.SecureURL == "" {
		return nil, fmt.Errorf("media: upload response missing secure_url")
	}

	logging.Ctx(ctx).Debug().
		Str("public_id", result.PublicID).
		Int64("bytes", written).
		Dur("elapsed", time.Since(start)).
		Msg("Audio uploaded")

	return &result, nil
}

// Destroy removes a previously uploaded asset. Used when an entry is
// deleted so orphaned audio does not accumulate.
func (c *Client) Destroy(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}

	timestamp := strconv.FormatInt(c.now().UTC().Unix(), 10)
	signed := map[string]string{
		"public_id": publicID,
		"timestamp": timestamp,
	}

	form := url.Values{}
	for k, v := range signed {
		form.Set(k, v)
	}
	form.Set("api_key", c.apiKey)
	form.Set("signature", c.signature(signed))

	destroyURL := fmt.Sprintf("%s/v1_1/%s/video/destroy", c.baseURL, c.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destroyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("media: create destroy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("media: destroy request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("media: read destroy response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("media: destroy failed with status %d: %s", resp.StatusCode, truncate(respBody, 256))
	}

	var result struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("media: parse destroy response: %w", err)
	}
	// "not found" counts as success; the asset is already gone.
	if result.Result != "ok" && result.Result != "not found" {
		return fmt.Errorf("media: destroy returned %q", result.Result)
	}

	logging.Ctx(ctx).Debug().Str("public_id", publicID).Msg("Audio destroyed")
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

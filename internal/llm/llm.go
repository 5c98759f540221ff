// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

// Package llm extracts activities from transcripts and writes weekly
// narratives using the Gemini API. Responses are cached by prompt hash
// so re-running the pipeline over the same transcript is free.
package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/tomtom215/echolog/internal/cache"
	"github.com/tomtom215/echolog/internal/config"
	"github.com/tomtom215/echolog/internal/logging"
	"github.com/tomtom215/echolog/internal/metrics"
	"github.com/tomtom215/echolog/internal/models"
)

// ErrNotConfigured is returned when the Gemini API key is missing.
var ErrNotConfigured = errors.New("llm: gemini api key not configured")

const (
	extractSystemPrompt = `You classify journal entries. Extract every concrete activity the
author describes into one of five categories:
  growth: learning, reading, practicing skills, building things
  health: exercise, sleep, meditation, nutrition, medical care
  work: job tasks, meetings, professional obligations
  consumption: passive media, browsing, shopping, entertainment
  other: anything that fits none of the above
Respond with ONLY a JSON array of objects with "name" and "category"
fields. Activity names are short noun phrases. Return [] when the
transcript describes no activities.`

	narrativeSystemPrompt = `You write short weekly reflections for a voice journal app. Given a
week of activity statistics, respond with ONLY a JSON object:
  {"narrative": "...", "phase": "..."}
The narrative is 2-4 warm, second-person sentences about how the week
went. The phase is a 2-4 word label for the week's character, such as
"Deep Work Sprint" or "Recovery and Rest".`
)

// generator abstracts the model call so tests can stub it.
type generator interface {
	generate(ctx context.Context, system, prompt string) (string, error)
}

// Client wraps the Gemini API for activity extraction and narratives.
type Client struct {
	gen        generator
	cache      *cache.Cache
	cacheTTL   time.Duration
	timeout    time.Duration
	maxRetries int
	limiter    *rate.Limiter
}

// New creates a Gemini-backed LLM client. The cache may be nil, in
// which case every call hits the API.
func New(ctx context.Context, cfg *config.LLMConfig, c *cache.Cache) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}

	// Throttle outbound calls to stay under API quota. Cache hits
	// bypass the limiter entirely.
	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(
			rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)),
			cfg.RequestsPerMinute,
		)
	}

	return &Client{
		gen: &genaiGenerator{
			client:      genaiClient,
			model:       model,
			temperature: cfg.Temperature,
		},
		cache:      c,
		cacheTTL:   cfg.CacheTTL,
		timeout:    timeout,
		maxRetries: cfg.MaxRetries,
		limiter:    limiter,
	}, nil
}

// extractedActivity is the wire shape the model returns for extraction.
type extractedActivity struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// ExtractActivities classifies a transcript into activities. An empty
// transcript returns no activities without calling the model.
func (c *Client) ExtractActivities(ctx context.Context, transcript string) ([]models.Activity, error) {
	trimmed := strings.TrimSpace(transcript)
	if trimmed == "" {
		return nil, nil
	}

	prompt := "Transcript:\n" + trimmed
	cacheKey := "llm:extract:" + promptHash(extractSystemPrompt+"\n"+prompt)

	var raw []extractedActivity
	if c.cache != nil {
		if err := c.cache.GetJSON(cacheKey, &raw, "llm"); err == nil {
			metrics.RecordLLMRequest("extract", "cached", 0)
			return mapActivities(raw), nil
		}
	}

	start := time.Now()
	response, err := c.generateWithRetries(ctx, extractSystemPrompt, prompt)
	if err != nil {
		metrics.RecordLLMRequest("extract", "error", time.Since(start))
		return nil, err
	}

	if err := json.Unmarshal([]byte(stripCodeFence(response)), &raw); err != nil {
		metrics.RecordLLMRequest("extract", "error", time.Since(start))
		return nil, fmt.Errorf("llm: parse extraction response: %w", err)
	}
	metrics.RecordLLMRequest("extract", "success", time.Since(start))

	if c.cache != nil {
		if err := c.cache.SetJSON(cacheKey, raw, c.cacheTTL); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Failed to cache extraction result")
		}
	}

	return mapActivities(raw), nil
}

// narrativeResult is the wire shape the model returns for narratives.
type narrativeResult struct {
	Narrative string `json:"narrative"`
	Phase     string `json:"phase"`
}

// WeeklyNarrative writes a short reflection and a phase label for a
// week of metrics.
func (c *Client) WeeklyNarrative(ctx context.Context, m *models.WeeklyMetrics) (string, string, error) {
	prompt, err := narrativePrompt(m)
	if err != nil {
		return "", "", err
	}
	cacheKey := "llm:narrative:" + promptHash(narrativeSystemPrompt+"\n"+prompt)

	var result narrativeResult
	if c.cache != nil {
		if err := c.cache.GetJSON(cacheKey, &result, "llm"); err == nil {
			metrics.RecordLLMRequest("narrative", "cached", 0)
			return result.Narrative, strings.TrimSpace(result.Phase), nil
		}
	}

	start := time.Now()
	response, err := c.generateWithRetries(ctx, narrativeSystemPrompt, prompt)
	if err != nil {
		metrics.RecordLLMRequest("narrative", "error", time.Since(start))
		return "", "", err
	}

	if err := json.Unmarshal([]byte(stripCodeFence(response)), &result); err != nil {
		metrics.RecordLLMRequest("narrative", "error", time.Since(start))
		return "", "", fmt.Errorf("llm: parse narrative response: %w", err)
	}
	if result.Narrative == "" {
		metrics.RecordLLMRequest("narrative", "error", time.Since(start))
		return "", "", fmt.Errorf("llm: narrative response missing narrative field")
	}
	metrics.RecordLLMRequest("narrative", "success", time.Since(start))

	if c.cache != nil {
		if err := c.cache.SetJSON(cacheKey, result, c.cacheTTL); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Failed to cache narrative result")
		}
	}

	return result.Narrative, strings.TrimSpace(result.Phase), nil
}

// narrativePrompt renders weekly metrics into a compact prompt.
func narrativePrompt(m *models.WeeklyMetrics) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Entries recorded: %d\n", m.EntryCount)
	fmt.Fprintf(&b, "Activities classified: %d\n", m.ActivityCount)
	fmt.Fprintf(&b, "Total audio recorded: %d seconds\n", m.TotalDurationSecs)

	b.WriteString("Category points:\n")
	for _, cs := range m.Categories {
		fmt.Fprintf(&b, "  %s: %d\n", cs.Category, cs.Points)
	}

	if len(m.TopActivities) > 0 {
		b.WriteString("Most frequent activities:\n")
		for _, a := range m.TopActivities {
			fmt.Fprintf(&b, "  %s (%s) x%d\n", a.Name, a.Category, a.Count)
		}
	}
	return b.String(), nil
}

func (c *Client) generateWithRetries(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	retries := c.maxRetries
	if retries < 0 {
		retries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		response, err := c.gen.generate(ctx, system, prompt)
		if err == nil {
			return response, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("llm: generate failed after %d attempts: %w", retries+1, lastErr)
}

func mapActivities(raw []extractedActivity) []models.Activity {
	activities := make([]models.Activity, 0, len(raw))
	for _, r := range raw {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			continue
		}
		category := models.ParseCategory(r.Category)
		activities = append(activities, models.Activity{
			Name:     name,
			Category: category,
			Points:   category.Weight(),
		})
	}
	return activities
}

// stripCodeFence removes a surrounding markdown code fence if the model
// wrapped its JSON despite the response MIME type.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func promptHash(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// genaiGenerator is the production generator backed by the Gemini SDK.
type genaiGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
}

func (g *genaiGenerator) generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature:       genai.Ptr(g.temperature),
			ResponseMIMEType:  "application/json",
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		},
	)
	if err != nil {
		return "", fmt.Errorf("llm: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("llm: empty response from model %s", g.model)
	}
	return text, nil
}

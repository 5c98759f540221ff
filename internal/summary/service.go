// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

// Package summary generates weekly journal summaries: aggregated metrics
// for one ISO week, an LLM narrative with a phase label, and an optional
// TTS narration. Summaries are produced by a Monday cron scheduler and
// on demand through the API; regeneration keeps the share token stable.
package summary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/echolog/internal/config"
	"github.com/tomtom215/echolog/internal/database"
	"github.com/tomtom215/echolog/internal/logging"
	"github.com/tomtom215/echolog/internal/media"
	"github.com/tomtom215/echolog/internal/metrics"
	"github.com/tomtom215/echolog/internal/models"
)

var (
	// ErrNoEntries is returned when the requested week has no journal entries.
	ErrNoEntries = errors.New("summary: no entries recorded for that week")

	// ErrInvalidWeek is returned for ISO week numbers outside 1-53.
	ErrInvalidWeek = errors.New("summary: week must be between 1 and 53")
)

// Narrator writes the weekly narrative and phase label from metrics.
type Narrator interface {
	WeeklyNarrative(ctx context.Context, m *models.WeeklyMetrics) (narrative, phase string, err error)
}

// Synthesizer renders narrative text to MP3 audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Uploader stores narration audio and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, filename string, audio io.Reader, size int64) (*media.UploadResult, error)
}

// Notifier pushes summary_ready events to connected clients.
type Notifier interface {
	NotifySummaryReady(userID string, year, week int, phase, audioURL string)
}

// Deps collects the service's collaborators. Narrator is required.
// Synthesizer and Uploader may be nil, in which case summaries are
// generated without narration. Notifier may be nil in tests.
type Deps struct {
	DB          *database.DB
	Narrator    Narrator
	Synthesizer Synthesizer
	Uploader    Uploader
	Notifier    Notifier
}

// Service generates and persists weekly summaries.
type Service struct {
	db       *database.DB
	narrator Narrator
	synth    Synthesizer
	uploader Uploader
	notifier Notifier
	loc      *time.Location
}

// NewService creates the summary service. The timezone from cfg governs
// where scheduled week boundaries are observed; an empty timezone means
// UTC.
func NewService(deps Deps, cfg *config.SummaryConfig) (*Service, error) {
	if deps.DB == nil {
		return nil, errors.New("summary: database is required")
	}
	if deps.Narrator == nil {
		return nil, errors.New("summary: narrator is required")
	}

	loc := time.UTC
	if cfg != nil && cfg.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("summary: invalid timezone %q: %w", cfg.Timezone, err)
		}
	}

	return &Service{
		db:       deps.DB,
		narrator: deps.Narrator,
		synth:    deps.Synthesizer,
		uploader: deps.Uploader,
		notifier: deps.Notifier,
		loc:      loc,
	}, nil
}

// GenerateWeeklySummary builds and stores the summary for one user and
// ISO week. The trigger ("scheduled" or "manual") is recorded in
// metrics. TTS narration is best effort: a narration failure is logged
// and the summary still succeeds.
func (s *Service) GenerateWeeklySummary(ctx context.Context, userID string, year, week int, trigger string) (*models.WeeklySummary, error) {
	if week < 1 || week > 53 {
		return nil, ErrInvalidWeek
	}

	start := time.Now()
	logger := logging.Ctx(ctx).With().
		Str("user_id", userID).
		Str("week", models.FormatWeekKey(year, week)).
		Str("trigger", trigger).
		Logger()

	weekStart, weekEnd := models.ISOWeekBounds(year, week)

	m, err := s.db.WeeklyMetrics(ctx, userID, weekStart, weekEnd)
	if err != nil {
		metrics.SummaryErrors.WithLabelValues("database").Inc()
		return nil, fmt.Errorf("summary: aggregate week metrics: %w", err)
	}
	if m.EntryCount == 0 {
		return nil, ErrNoEntries
	}

	narrative, phase, err := s.narrator.WeeklyNarrative(ctx, m)
	if err != nil {
		metrics.SummaryErrors.WithLabelValues("llm").Inc()
		return nil, fmt.Errorf("summary: weekly narrative: %w", err)
	}

	summary := &models.WeeklySummary{
		UserID:            userID,
		Year:              year,
		Week:              week,
		WeekStart:         weekStart,
		WeekEnd:           weekEnd,
		EntryCount:        m.EntryCount,
		ActivityCount:     m.ActivityCount,
		TotalDurationSecs: m.TotalDurationSecs,
		Categories:        m.Categories,
		TopActivities:     m.TopActivities,
		Narrative:         narrative,
		Phase:             phase,
		Highlights:        buildHighlights(m),
		ShareToken:        uuid.NewString(),
		GeneratedAt:       time.Now().UTC(),
	}

	// The upsert keeps a pre-existing id and share token, so regenerating
	// a week does not break links that were already shared.
	if err := s.db.UpsertWeeklySummary(ctx, summary); err != nil {
		metrics.SummaryErrors.WithLabelValues("database").Inc()
		return nil, fmt.Errorf("summary: store summary: %w", err)
	}

	audioURL := s.attachNarration(ctx, summary, narrative)

	metrics.SummariesGenerated.WithLabelValues(trigger).Inc()
	metrics.SummaryGenerationDuration.Observe(time.Since(start).Seconds())

	logger.Info().
		Str("phase", phase).
		Int("entries", summary.EntryCount).
		Bool("narrated", audioURL != "").
		Dur("duration", time.Since(start)).
		Msg("Weekly summary generated")

	if s.notifier != nil {
		s.notifier.NotifySummaryReady(userID, year, week, phase, audioURL)
	}
	return summary, nil
}

// GetSummary returns one stored summary.
func (s *Service) GetSummary(ctx context.Context, userID string, year, week int) (*models.WeeklySummary, error) {
	return s.db.GetWeeklySummary(ctx, userID, year, week)
}

// GetSharedSummary resolves a summary by its public share token.
func (s *Service) GetSharedSummary(ctx context.Context, token string) (*models.WeeklySummary, error) {
	return s.db.GetWeeklySummaryByShareToken(ctx, token)
}

// ListSummaries returns the user's summaries, newest week first.
func (s *Service) ListSummaries(ctx context.Context, userID string, limit int) ([]*models.WeeklySummary, error) {
	return s.db.ListWeeklySummaries(ctx, userID, limit)
}

// Location returns the timezone scheduled runs are evaluated in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// attachNarration synthesizes the narrative to audio, uploads it, and
// records the URL on the summary. Every step is best effort; a failure
// leaves the summary without narration.
func (s *Service) attachNarration(ctx context.Context, summary *models.WeeklySummary, narrative string) string {
	if s.synth == nil || s.uploader == nil {
		return ""
	}
	logger := logging.Ctx(ctx)

	audio, err := s.synth.Synthesize(ctx, narrative)
	if err != nil {
		metrics.SummaryErrors.WithLabelValues("tts").Inc()
		logger.Warn().Err(err).Str("summary_id", summary.ID.String()).
			Msg("Summary narration synthesis failed, continuing without audio")
		return ""
	}

	filename := fmt.Sprintf("summary-%s.mp3", summary.ID)
	result, err := s.uploader.Upload(ctx, filename, bytes.NewReader(audio), int64(len(audio)))
	if err != nil {
		metrics.SummaryErrors.WithLabelValues("tts").Inc()
		logger.Warn().Err(err).Str("summary_id", summary.ID.String()).
			Msg("Summary narration upload failed, continuing without audio")
		return ""
	}

	if err := s.db.SetSummaryAudioURL(ctx, summary.ID, result.SecureURL); err != nil {
		metrics.SummaryErrors.WithLabelValues("database").Inc()
		logger.Warn().Err(err).Str("summary_id", summary.ID.String()).
			Msg("Failed to record summary narration URL")
		return ""
	}

	summary.AudioURL = &result.SecureURL
	return result.SecureURL
}

// buildHighlights derives up to five short bullet points from the
// week's aggregates.
func buildHighlights(m *models.WeeklyMetrics) []string {
	highlights := []string{
		fmt.Sprintf("%d entries with %d activities logged", m.EntryCount, m.ActivityCount),
	}

	if m.TotalDurationSecs >= 60 {
		highlights = append(highlights,
			fmt.Sprintf("%d minutes of audio recorded", (m.TotalDurationSecs+30)/60))
	}

	var top *models.CategoryStat
	for i := range m.Categories {
		if m.Categories[i].Points > 0 && (top == nil || m.Categories[i].Points > top.Points) {
			top = &m.Categories[i]
		}
	}
	if top != nil {
		highlights = append(highlights,
			fmt.Sprintf("Most points in %s (%d)", top.Category, top.Points))
	}

	for i, a := range m.TopActivities {
		if i == 2 || len(highlights) == 5 {
			break
		}
		highlights = append(highlights, fmt.Sprintf("%q came up %d times", a.Name, a.Count))
	}
	return highlights
}

// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

// Package tracker runs the entry pipeline and serves the rolling
// activity tracker.
//
// Voice entries flow upload -> transcribe -> classify -> store; typed
// entries skip straight to classification. Every stage writes its
// result before the next starts, so a crashed or failed pipeline can be
// re-run for the same entry without duplicating anything: activities
// are replaced wholesale and transcription is skipped once a transcript
// exists.
package tracker

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/echolog/internal/cache"
	"github.com/tomtom215/echolog/internal/config"
	"github.com/tomtom215/echolog/internal/database"
	"github.com/tomtom215/echolog/internal/logging"
	"github.com/tomtom215/echolog/internal/media"
	"github.com/tomtom215/echolog/internal/metrics"
	"github.com/tomtom215/echolog/internal/models"
)

// trackerCacheTTL bounds how stale a cached tracker may be. Writes
// invalidate eagerly; the TTL only covers missed invalidations.
const trackerCacheTTL = 30 * time.Second

// Uploader stores audio and returns a durable URL.
type Uploader interface {
	Upload(ctx context.Context, filename string, audio io.Reader, size int64) (*media.UploadResult, error)
	MaxUploadBytes() int64
}

// Transcriber converts an audio URL to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) (string, error)
}

// Extractor classifies a transcript into activities.
type Extractor interface {
	ExtractActivities(ctx context.Context, transcript string) ([]models.Activity, error)
}

// Notifier pushes pipeline progress to connected clients.
type Notifier interface {
	NotifyEntryTranscribed(userID, entryID, status, transcript, errMsg string)
	NotifyTrackerUpdated(userID string, tracker interface{})
}

// Deps collects the service's collaborators. Uploader and Transcriber
// may be nil when voice entries are disabled; Notifier may be nil in
// tests.
type Deps struct {
	DB          *database.DB
	Uploader    Uploader
	Transcriber Transcriber
	Extractor   Extractor
	Notifier    Notifier
	Memory      *cache.Memory
}

// Service owns entry creation, the classification pipeline, and
// tracker reads.
type Service struct {
	db          *database.DB
	uploader    Uploader
	transcriber Transcriber
	extractor   Extractor
	notifier    Notifier
	memory      *cache.Memory
	windowSize  int
}

// NewService creates the pipeline service.
func NewService(deps Deps, cfg *config.TrackerConfig) *Service {
	windowSize := cfg.WindowSize
	if windowSize <= 0 {
		windowSize = 20
	}
	return &Service{
		db:          deps.DB,
		uploader:    deps.Uploader,
		transcriber: deps.Transcriber,
		extractor:   deps.Extractor,
		notifier:    deps.Notifier,
		memory:      deps.Memory,
		windowSize:  windowSize,
	}
}

// CreateTextEntry stores a typed entry and classifies it in the
// background.
func (s *Service) CreateTextEntry(ctx context.Context, userID, title, text string, mood *string) (*models.Entry, error) {
	entry := &models.Entry{
		ID:                  uuid.New(),
		UserID:              userID,
		Title:               title,
		Transcript:          text,
		Mood:                mood,
		TranscriptionStatus: models.TranscriptionSkipped,
	}
	if err := s.db.InsertEntry(ctx, entry); err != nil {
		return nil, err
	}
	metrics.EntriesCreated.WithLabelValues("text").Inc()

	s.processDetached(ctx, userID, entry.ID)
	return entry, nil
}

// CreateVoiceEntry uploads the audio, stores a pending entry, and runs
// the transcribe-and-classify pipeline in the background.
func (s *Service) CreateVoiceEntry(ctx context.Context, userID, title, filename string, mood *string, audio io.Reader, size int64, durationSecs int) (*models.Entry, error) {
	if s.uploader == nil {
		return nil, fmt.Errorf("tracker: media storage is not configured")
	}

	result, err := s.uploader.Upload(ctx, filename, audio, size)
	if err != nil {
		return nil, err
	}

	if durationSecs <= 0 && result.Duration > 0 {
		durationSecs = int(result.Duration + 0.5)
	}

	entry := &models.Entry{
		ID:                  uuid.New(),
		UserID:              userID,
		Title:               title,
		AudioURL:            &result.SecureURL,
		DurationSecs:        durationSecs,
		Mood:                mood,
		TranscriptionStatus: models.TranscriptionPending,
	}
	if err := s.db.InsertEntry(ctx, entry); err != nil {
		return nil, err
	}
	metrics.EntriesCreated.WithLabelValues("voice").Inc()

	s.processDetached(ctx, userID, entry.ID)
	return entry, nil
}

// MaxUploadBytes returns the upload size limit, or 0 when uploads are
// disabled.
func (s *Service) MaxUploadBytes() int64 {
	if s.uploader == nil {
		return 0
	}
	return s.uploader.MaxUploadBytes()
}

// processDetached runs Process on a background context that carries
// the request's correlation ID, so the HTTP response never waits on
// external services.
func (s *Service) processDetached(ctx context.Context, userID string, entryID uuid.UUID) {
	bg := context.Background()
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		bg = logging.ContextWithCorrelationID(bg, id)
	}
	go func() {
		if err := s.Process(bg, userID, entryID); err != nil {
			logging.Ctx(bg).Error().Err(err).
				Str("entry_id", entryID.String()).
				Msg("Entry pipeline failed")
		}
	}()
}

// Process runs the pipeline for one entry. It is idempotent: a
// transcribed entry skips transcription, and classification replaces
// the entry's activities wholesale.
func (s *Service) Process(ctx context.Context, userID string, entryID uuid.UUID) error {
	start := time.Now()

	entry, err := s.db.GetEntry(ctx, userID, entryID)
	if err != nil {
		return err
	}

	transcript := entry.Transcript
	if entry.HasAudio() && strings.TrimSpace(transcript) == "" {
		transcript, err = s.transcribeEntry(ctx, entry)
		if err != nil {
			return err
		}
	}

	if strings.TrimSpace(transcript) == "" {
		// Nothing to classify; an empty voice note is still a valid entry.
		return nil
	}

	if err := s.classifyEntry(ctx, entry, transcript); err != nil {
		return err
	}

	metrics.EntryPipelineDuration.Observe(time.Since(start).Seconds())

	if _, err := s.RecomputeTracker(ctx, userID); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Tracker recompute after pipeline failed")
	}
	return nil
}

func (s *Service) transcribeEntry(ctx context.Context, entry *models.Entry) (string, error) {
	if s.transcriber == nil {
		msg := "transcription is not configured"
		_ = s.db.UpdateEntryTranscription(ctx, entry.ID, models.TranscriptionFailed, "", nil, &msg)
		s.notifyTranscribed(entry, models.TranscriptionFailed, "", msg)
		return "", fmt.Errorf("tracker: %s", msg)
	}

	if err := s.db.UpdateEntryTranscription(ctx, entry.ID, models.TranscriptionProcessing, "", entry.TranscriptionJobID, nil); err != nil {
		return "", err
	}

	transcript, err := s.transcriber.Transcribe(ctx, *entry.AudioURL)
	if err != nil {
		msg := err.Error()
		if dbErr := s.db.UpdateEntryTranscription(ctx, entry.ID, models.TranscriptionFailed, "", entry.TranscriptionJobID, &msg); dbErr != nil {
			logging.Ctx(ctx).Error().Err(dbErr).Msg("Failed to record transcription failure")
		}
		s.notifyTranscribed(entry, models.TranscriptionFailed, "", msg)
		return "", fmt.Errorf("tracker: transcribe entry %s: %w", entry.ID, err)
	}

	if err := s.db.UpdateEntryTranscription(ctx, entry.ID, models.TranscriptionCompleted, transcript, entry.TranscriptionJobID, nil); err != nil {
		return "", err
	}
	s.notifyTranscribed(entry, models.TranscriptionCompleted, transcript, "")
	return transcript, nil
}

func (s *Service) classifyEntry(ctx context.Context, entry *models.Entry, transcript string) error {
	if s.extractor == nil {
		return fmt.Errorf("tracker: classifier is not configured")
	}

	activities, err := s.extractor.ExtractActivities(ctx, transcript)
	if err != nil {
		return fmt.Errorf("tracker: classify entry %s: %w", entry.ID, err)
	}

	if err := s.db.ReplaceEntryActivities(ctx, entry.ID, entry.UserID, activities); err != nil {
		return err
	}
	for _, a := range activities {
		metrics.ActivitiesExtracted.WithLabelValues(string(a.Category)).Inc()
	}

	logging.Ctx(ctx).Info().
		Str("entry_id", entry.ID.String()).
		Int("activities", len(activities)).
		Msg("Entry classified")
	return nil
}

func (s *Service) notifyTranscribed(entry *models.Entry, status models.TranscriptionStatus, transcript, errMsg string) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyEntryTranscribed(entry.UserID, entry.ID.String(), string(status), transcript, errMsg)
}

func trackerCacheKey(userID string) string {
	return "tracker:" + userID
}

// GetTracker returns the user's rolling tracker, served from the
// in-process cache when fresh.
func (s *Service) GetTracker(ctx context.Context, userID string) (*models.ActivityTracker, error) {
	key := trackerCacheKey(userID)
	if s.memory != nil {
		if cached, ok := s.memory.Get(key, "tracker"); ok {
			if tracker, ok := cached.(*models.ActivityTracker); ok {
				return tracker, nil
			}
		}
	}

	tracker, err := s.db.GetActivityTracker(ctx, userID, s.windowSize)
	if err != nil {
		return nil, err
	}
	if s.memory != nil {
		s.memory.Set(key, tracker, trackerCacheTTL)
	}
	return tracker, nil
}

// RecomputeTracker recomputes the tracker, refreshes the cache, and
// pushes the result to the user's connected clients.
func (s *Service) RecomputeTracker(ctx context.Context, userID string) (*models.ActivityTracker, error) {
	if s.memory != nil {
		s.memory.Delete(trackerCacheKey(userID))
	}

	tracker, err := s.db.GetActivityTracker(ctx, userID, s.windowSize)
	if err != nil {
		return nil, err
	}
	if s.memory != nil {
		s.memory.Set(trackerCacheKey(userID), tracker, trackerCacheTTL)
	}
	if s.notifier != nil {
		s.notifier.NotifyTrackerUpdated(userID, tracker)
	}
	return tracker, nil
}

// DeleteEntry removes an entry, its stored audio, and refreshes the
// tracker. Audio removal is best-effort.
func (s *Service) DeleteEntry(ctx context.Context, userID string, entryID uuid.UUID) error {
	entry, err := s.db.GetEntry(ctx, userID, entryID)
	if err != nil {
		return err
	}

	if err := s.db.DeleteEntry(ctx, userID, entryID); err != nil {
		return err
	}

	if entry.HasAudio() {
		if destroyer, ok := s.uploader.(interface {
			Destroy(ctx context.Context, publicID string) error
		}); ok {
			if publicID := publicIDFromURL(*entry.AudioURL); publicID != "" {
				if err := destroyer.Destroy(ctx, publicID); err != nil {
					logging.Ctx(ctx).Warn().Err(err).Str("entry_id", entryID.String()).Msg("Failed to remove audio for deleted entry")
				}
			}
		}
	}

	if _, err := s.RecomputeTracker(ctx, userID); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Tracker recompute after delete failed")
	}
	return nil
}

// publicIDFromURL recovers the Cloudinary public ID from a delivery URL:
// everything after the version segment, minus the file extension.
func publicIDFromURL(secureURL string) string {
	idx := strings.Index(secureURL, "/upload/")
	if idx < 0 {
		return ""
	}
	rest := strings.TrimPrefix(secureURL[idx+len("/upload/"):], "/")

	// Skip the version segment (v1234567890/).
	if strings.HasPrefix(rest, "v") {
		if slash := strings.Index(rest, "/"); slash > 0 {
			if _, err := fmt.Sscanf(rest[1:slash], "%d", new(int64)); err == nil {
				rest = rest[slash+1:]
			}
		}
	}

	if dot := strings.LastIndex(rest, "."); dot > strings.LastIndex(rest, "/") {
		rest = rest[:dot]
	}
	return rest
}

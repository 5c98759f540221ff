// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package tracker

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/echolog/internal/cache"
	"github.com/tomtom215/echolog/internal/config"
	"github.com/tomtom215/echolog/internal/database"
	"github.com/tomtom215/echolog/internal/media"
	"github.com/tomtom215/echolog/internal/models"
)

// testDBSemaphore serializes DuckDB lifecycles; concurrent CGO opens
// can hang under CI resource pressure.
var testDBSemaphore = make(chan struct{}, 1)

var testDBMutex sync.Mutex

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	cfg := &config.DatabaseConfig{Path: ":memory:", MaxMemory: "1GB"}

	testDBMutex.Lock()
	db, err := database.New(cfg)
	testDBMutex.Unlock()
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })
	return db
}

type stubUploader struct {
	result *media.UploadResult
	err    error
}

func (s *stubUploader) Upload(_ context.Context, _ string, _ io.Reader, _ int64) (*media.UploadResult, error) {
	return s.result, s.err
}

func (s *stubUploader) MaxUploadBytes() int64 { return 25 << 20 }

type stubTranscriber struct {
	transcript string
	err        error
	calls      int
}

func (s *stubTranscriber) Transcribe(_ context.Context, _ string) (string, error) {
	s.calls++
	return s.transcript, s.err
}

type stubExtractor struct {
	activities []models.Activity
	err        error
	calls      int
}

func (s *stubExtractor) ExtractActivities(_ context.Context, _ string) ([]models.Activity, error) {
	s.calls++
	return s.activities, s.err
}

type notification struct {
	kind    string
	userID  string
	entryID string
	status  string
}

type stubNotifier struct {
	mu     sync.Mutex
	events []notification
}

func (s *stubNotifier) NotifyEntryTranscribed(userID, entryID, status, _, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, notification{kind: "transcribed", userID: userID, entryID: entryID, status: status})
}

func (s *stubNotifier) NotifyTrackerUpdated(userID string, _ interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, notification{kind: "tracker", userID: userID})
}

func (s *stubNotifier) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]string, 0, len(s.events))
	for _, e := range s.events {
		kinds = append(kinds, e.kind)
	}
	return kinds
}

func newTestService(t *testing.T, deps Deps) *Service {
	t.Helper()
	if deps.DB == nil {
		deps.DB = setupTestDB(t)
	}
	if deps.Memory == nil {
		deps.Memory = cache.NewMemory()
	}
	return NewService(deps, &config.TrackerConfig{WindowSize: 20})
}

func waitForStatus(t *testing.T, db *database.DB, userID string, entry *models.Entry, want models.TranscriptionStatus) *models.Entry {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		got, err := db.GetEntry(context.Background(), userID, entry.ID)
		require.NoError(t, err)
		if got.TranscriptionStatus == want {
			return got
		}
		select {
		case <-deadline:
			t.Fatalf("entry never reached status %s (at %s)", want, got.TranscriptionStatus)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestCreateTextEntryClassifies(t *testing.T) {
	extractor := &stubExtractor{activities: []models.Activity{
		{Name: "morning run", Category: models.CategoryHealth, Points: 3},
		{Name: "standup", Category: models.CategoryWork, Points: 2},
	}}
	notifier := &stubNotifier{}
	db := setupTestDB(t)
	svc := newTestService(t, Deps{DB: db, Extractor: extractor, Notifier: notifier})

	entry, err := svc.CreateTextEntry(context.Background(), "user-1", "Busy day", "ran then had standup", nil)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.TranscriptionSkipped, entry.TranscriptionStatus)

	// Background classification populates activities.
	deadline := time.After(5 * time.Second)
	for {
		got, err := db.GetEntry(context.Background(), "user-1", entry.ID)
		require.NoError(t, err)
		if len(got.Activities) == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("activities never appeared")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestCreateVoiceEntryPipeline(t *testing.T) {
	audioURL := "https://res.cloudinary.com/test/video/upload/v1/echolog/audio/x.mp3"
	uploader := &stubUploader{result: &media.UploadResult{
		SecureURL: audioURL,
		PublicID:  "echolog/audio/x",
		Duration:  12.4,
	}}
	transcriber := &stubTranscriber{transcript: "did yoga and answered email"}
	extractor := &stubExtractor{activities: []models.Activity{
		{Name: "yoga", Category: models.CategoryHealth, Points: 3},
	}}
	notifier := &stubNotifier{}
	db := setupTestDB(t)
	svc := newTestService(t, Deps{DB: db, Uploader: uploader, Transcriber: transcriber, Extractor: extractor, Notifier: notifier})

	entry, err := svc.CreateVoiceEntry(context.Background(), "user-1", "Voice note", "note.webm", nil, strings.NewReader("audio"), 100, 0)
	require.NoError(t, err)
	require.NotNil(t, entry.AudioURL)
	assert.Equal(t, audioURL, *entry.AudioURL)
	assert.Equal(t, 12, entry.DurationSecs) // rounded from upload metadata

	got := waitForStatus(t, db, "user-1", entry, models.TranscriptionCompleted)
	assert.Equal(t, "did yoga and answered email", got.Transcript)

	// Classification lands shortly after the transcript.
	deadline := time.After(5 * time.Second)
	for {
		got, err = db.GetEntry(context.Background(), "user-1", entry.ID)
		require.NoError(t, err)
		if len(got.Activities) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("activities never appeared")
		case <-time.After(10 * time.Millisecond):
		}
	}

	assert.Contains(t, notifier.kinds(), "transcribed")
	assert.Contains(t, notifier.kinds(), "tracker")
}

func TestProcessTranscriptionFailureRecordsError(t *testing.T) {
	uploader := &stubUploader{result: &media.UploadResult{
		SecureURL: "https://res.cloudinary.com/test/video/upload/v1/a.mp3",
	}}
	transcriber := &stubTranscriber{err: errors.New("provider down")}
	notifier := &stubNotifier{}
	db := setupTestDB(t)
	svc := newTestService(t, Deps{DB: db, Uploader: uploader, Transcriber: transcriber, Extractor: &stubExtractor{}, Notifier: notifier})

	entry, err := svc.CreateVoiceEntry(context.Background(), "user-1", "", "note.webm", nil, strings.NewReader("audio"), 10, 5)
	require.NoError(t, err)

	got := waitForStatus(t, db, "user-1", entry, models.TranscriptionFailed)
	require.NotNil(t, got.TranscriptionError)
	assert.Contains(t, *got.TranscriptionError, "provider down")
	assert.Empty(t, got.Activities)
}

func TestProcessIsRerunnable(t *testing.T) {
	transcriber := &stubTranscriber{transcript: "unused"}
	extractor := &stubExtractor{activities: []models.Activity{
		{Name: "reading", Category: models.CategoryGrowth, Points: 3},
	}}
	db := setupTestDB(t)
	svc := newTestService(t, Deps{DB: db, Transcriber: transcriber, Extractor: extractor})

	// Entry already has its transcript; Process must not transcribe again.
	audioURL := "https://res.cloudinary.com/test/video/upload/v1/b.mp3"
	entry := &models.Entry{
		UserID:              "user-1",
		Transcript:          "read two chapters",
		AudioURL:            &audioURL,
		TranscriptionStatus: models.TranscriptionCompleted,
	}
	require.NoError(t, db.InsertEntry(context.Background(), entry))

	require.NoError(t, svc.Process(context.Background(), "user-1", entry.ID))
	require.NoError(t, svc.Process(context.Background(), "user-1", entry.ID))

	assert.Zero(t, transcriber.calls)
	assert.Equal(t, 2, extractor.calls)

	got, err := db.GetEntry(context.Background(), "user-1", entry.ID)
	require.NoError(t, err)
	assert.Len(t, got.Activities, 1) // replaced, not appended
}

func TestProcessEmptyTranscriptSkipsClassification(t *testing.T) {
	extractor := &stubExtractor{}
	db := setupTestDB(t)
	svc := newTestService(t, Deps{DB: db, Extractor: extractor})

	entry := &models.Entry{
		UserID:              "user-1",
		Transcript:          "",
		TranscriptionStatus: models.TranscriptionSkipped,
	}
	require.NoError(t, db.InsertEntry(context.Background(), entry))

	require.NoError(t, svc.Process(context.Background(), "user-1", entry.ID))
	assert.Zero(t, extractor.calls)
}

func TestGetTrackerUsesCache(t *testing.T) {
	db := setupTestDB(t)
	memory := cache.NewMemory()
	svc := newTestService(t, Deps{DB: db, Memory: memory})

	entry := &models.Entry{
		UserID:              "user-1",
		Transcript:          "ran",
		TranscriptionStatus: models.TranscriptionSkipped,
		Activities: []models.Activity{
			{Name: "run", Category: models.CategoryHealth},
		},
	}
	require.NoError(t, db.InsertEntry(context.Background(), entry))

	first, err := svc.GetTracker(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, first.TotalPoints)

	// A second read comes from cache: the same pointer.
	second, err := svc.GetTracker(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestRecomputeTrackerInvalidatesCacheAndNotifies(t *testing.T) {
	db := setupTestDB(t)
	memory := cache.NewMemory()
	notifier := &stubNotifier{}
	svc := newTestService(t, Deps{DB: db, Memory: memory, Notifier: notifier})

	_, err := svc.GetTracker(context.Background(), "user-1")
	require.NoError(t, err)

	entry := &models.Entry{
		UserID:              "user-1",
		Transcript:          "deep work",
		TranscriptionStatus: models.TranscriptionSkipped,
		Activities: []models.Activity{
			{Name: "focus block", Category: models.CategoryWork},
		},
	}
	require.NoError(t, db.InsertEntry(context.Background(), entry))

	tracker, err := svc.RecomputeTracker(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, tracker.TotalPoints)
	assert.Contains(t, notifier.kinds(), "tracker")

	// The refreshed value is now served from cache.
	cached, err := svc.GetTracker(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Same(t, tracker, cached)
}

func TestDeleteEntryRecomputesTracker(t *testing.T) {
	db := setupTestDB(t)
	notifier := &stubNotifier{}
	svc := newTestService(t, Deps{DB: db, Notifier: notifier})

	entry := &models.Entry{
		UserID:              "user-1",
		Transcript:          "ran",
		TranscriptionStatus: models.TranscriptionSkipped,
		Activities: []models.Activity{
			{Name: "run", Category: models.CategoryHealth},
		},
	}
	require.NoError(t, db.InsertEntry(context.Background(), entry))

	require.NoError(t, svc.DeleteEntry(context.Background(), "user-1", entry.ID))

	_, err := db.GetEntry(context.Background(), "user-1", entry.ID)
	assert.ErrorIs(t, err, database.ErrEntryNotFound)

	tracker, err := svc.GetTracker(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Zero(t, tracker.TotalPoints)
	assert.Equal(t, models.PhaseGettingStarted, tracker.Phase)
}

func TestPublicIDFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://res.cloudinary.com/cloud/video/upload/v1712345/echolog/audio/abc.mp3", "echolog/audio/abc"},
		{"https://res.cloudinary.com/cloud/video/upload/echolog/audio/abc.mp3", "echolog/audio/abc"},
		{"https://example.com/nothing-here.mp3", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, publicIDFromURL(tc.url), tc.url)
	}
}

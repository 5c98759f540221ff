// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/echolog/internal/config"
	"github.com/tomtom215/echolog/internal/models"
)

// testDBSemaphore fully serializes database lifecycles. Concurrent DuckDB
// CGO calls from parallel tests can hang under CI resource pressure.
var testDBSemaphore = make(chan struct{}, 1)

var testDBMutex sync.Mutex

// setupTestDB creates a new in-memory test database. The semaphore is held
// for the whole test lifecycle via t.Cleanup, not just creation.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := &config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "1GB",
	}

	testDBMutex.Lock()
	db, err := New(cfg)
	testDBMutex.Unlock()
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })
	return db
}

// insertTestEntry inserts an entry with the given activities for userID.
func insertTestEntry(t *testing.T, db *DB, userID, transcript string, createdAt time.Time, activities ...models.Activity) *models.Entry {
	t.Helper()
	entry := &models.Entry{
		UserID:              userID,
		Transcript:          transcript,
		TranscriptionStatus: models.TranscriptionSkipped,
		CreatedAt:           createdAt,
		Activities:          activities,
	}
	require.NoError(t, db.InsertEntry(context.Background(), entry))
	return entry
}

func TestInsertAndGetEntry(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	entry := &models.Entry{
		UserID:              "auth0|alice",
		Title:               "Morning",
		Transcript:          "ran 5k then read a book",
		DurationSecs:        42,
		TranscriptionStatus: models.TranscriptionSkipped,
		Activities: []models.Activity{
			{Name: "5k run", Category: models.CategoryHealth},
			{Name: "reading", Category: models.CategoryGrowth},
		},
	}
	require.NoError(t, db.InsertEntry(ctx, entry))

	got, err := db.GetEntry(ctx, "auth0|alice", entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "Morning", got.Title)
	assert.Equal(t, "ran 5k then read a book", got.Transcript)
	assert.Equal(t, 42, got.DurationSecs)
	assert.Equal(t, models.TranscriptionSkipped, got.TranscriptionStatus)
	require.Len(t, got.Activities, 2)
	assert.Equal(t, "5k run", got.Activities[0].Name)
	assert.Equal(t, models.CategoryHealth, got.Activities[0].Category)
	// Points are the category weight, assigned at insert
	assert.Equal(t, 3, got.Activities[0].Points)
	assert.Equal(t, 3, got.Activities[1].Points)
}

func TestGetEntryScopedToUser(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	entry := insertTestEntry(t, db, "auth0|alice", "private note", time.Now().UTC())

	_, err := db.GetEntry(ctx, "auth0|mallory", entry.ID)
	assert.ErrorIs(t, err, ErrEntryNotFound)

	_, err = db.GetEntry(ctx, "auth0|alice", uuid.New())
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestListEntriesPagination(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		insertTestEntry(t, db, "auth0|alice", "entry", base.Add(time.Duration(i)*time.Hour))
	}
	// Another user's entries must not leak into the page
	insertTestEntry(t, db, "auth0|bob", "other", base)

	page1, cursor, err := db.ListEntries(ctx, "auth0|alice", ListEntriesOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.NotEmpty(t, cursor)
	// Newest first
	assert.True(t, page1[0].CreatedAt.After(page1[1].CreatedAt))

	page2, cursor, err := db.ListEntries(ctx, "auth0|alice", ListEntriesOptions{Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, page2, 2)
	require.NotEmpty(t, cursor)
	assert.True(t, page1[1].CreatedAt.After(page2[0].CreatedAt))

	page3, cursor, err := db.ListEntries(ctx, "auth0|alice", ListEntriesOptions{Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Empty(t, cursor)
}

func TestListEntriesCursorTiebreaksOnID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// Identical timestamps force the id half of the keyset predicate to
	// order the pages.
	at := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		insertTestEntry(t, db, "auth0|alice", "entry", at)
	}

	seen := make(map[uuid.UUID]bool)
	cursor := ""
	for {
		page, next, err := db.ListEntries(ctx, "auth0|alice", ListEntriesOptions{Limit: 1, Cursor: cursor})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.False(t, seen[page[0].ID], "entry returned twice across pages")
		seen[page[0].ID] = true
		if next == "" {
			break
		}
		cursor = next
	}
	assert.Len(t, seen, 3)
}

func TestListEntriesOffsetPagination(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		insertTestEntry(t, db, "auth0|alice", "entry", base.Add(time.Duration(i)*time.Hour))
	}

	all, _, err := db.ListEntries(ctx, "auth0|alice", ListEntriesOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 4)

	offset, _, err := db.ListEntries(ctx, "auth0|alice", ListEntriesOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, offset, 2)
	assert.Equal(t, all[2].ID, offset[0].ID)
	assert.Equal(t, all[3].ID, offset[1].ID)
}

func TestListEntriesDateRange(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	insertTestEntry(t, db, "auth0|alice", "before", base.Add(-time.Hour))
	inRange := insertTestEntry(t, db, "auth0|alice", "inside", base.Add(time.Hour))
	insertTestEntry(t, db, "auth0|alice", "after", base.Add(25*time.Hour))

	to := base.Add(24 * time.Hour)
	entries, _, err := db.ListEntries(ctx, "auth0|alice", ListEntriesOptions{Limit: 10, From: &base, To: &to})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, inRange.ID, entries[0].ID)
}

func TestListEntriesCategoryFilter(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	now := time.Now().UTC()
	insertTestEntry(t, db, "auth0|alice", "workout", now.Add(-2*time.Hour),
		models.Activity{Name: "gym", Category: models.CategoryHealth})
	insertTestEntry(t, db, "auth0|alice", "tv night", now.Add(-1*time.Hour),
		models.Activity{Name: "series", Category: models.CategoryConsumption})

	health := models.CategoryHealth
	entries, _, err := db.ListEntries(ctx, "auth0|alice", ListEntriesOptions{Limit: 10, Category: &health})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "workout", entries[0].Transcript)
}

func TestListEntriesInvalidCursor(t *testing.T) {
	db := setupTestDB(t)
	_, _, err := db.ListEntries(context.Background(), "auth0|alice", ListEntriesOptions{Cursor: "garbage!!"})
	assert.Error(t, err)
}

func TestUpdateEntry(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	entry := insertTestEntry(t, db, "auth0|alice", "first draft", time.Now().UTC())

	title := "Renamed"
	mood := "upbeat"
	require.NoError(t, db.UpdateEntry(ctx, "auth0|alice", entry.ID, EntryUpdate{Title: &title, Mood: &mood}))

	got, err := db.GetEntry(ctx, "auth0|alice", entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	// Transcript untouched when the field is nil
	assert.Equal(t, "first draft", got.Transcript)
	require.NotNil(t, got.Mood)
	assert.Equal(t, "upbeat", *got.Mood)

	transcript := "second draft"
	require.NoError(t, db.UpdateEntry(ctx, "auth0|alice", entry.ID, EntryUpdate{Transcript: &transcript}))
	got, err = db.GetEntry(ctx, "auth0|alice", entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "second draft", got.Transcript)

	// Other users cannot edit
	assert.ErrorIs(t,
		db.UpdateEntry(ctx, "auth0|mallory", entry.ID, EntryUpdate{Title: &title}),
		ErrEntryNotFound)
}

func TestUpdateEntryTranscription(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	audioURL := "https://res.cloudinary.com/demo/video/upload/v1/echolog/audio/note.webm"
	entry := &models.Entry{
		UserID:              "auth0|alice",
		AudioURL:            &audioURL,
		TranscriptionStatus: models.TranscriptionPending,
	}
	require.NoError(t, db.InsertEntry(ctx, entry))

	jobID := "job-123"
	require.NoError(t, db.UpdateEntryTranscription(ctx, entry.ID,
		models.TranscriptionProcessing, "", &jobID, nil))

	got, err := db.GetEntry(ctx, "auth0|alice", entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TranscriptionProcessing, got.TranscriptionStatus)

	// Completion writes the transcript into the entry
	require.NoError(t, db.UpdateEntryTranscription(ctx, entry.ID,
		models.TranscriptionCompleted, "went hiking with friends", &jobID, nil))

	got, err = db.GetEntry(ctx, "auth0|alice", entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TranscriptionCompleted, got.TranscriptionStatus)
	assert.Equal(t, "went hiking with friends", got.Transcript)
	assert.Nil(t, got.TranscriptionError)

	// Failure records the error without touching the transcript
	failMsg := "upstream timeout"
	require.NoError(t, db.UpdateEntryTranscription(ctx, entry.ID,
		models.TranscriptionFailed, "", &jobID, &failMsg))

	got, err = db.GetEntry(ctx, "auth0|alice", entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TranscriptionFailed, got.TranscriptionStatus)
	require.NotNil(t, got.TranscriptionError)
	assert.Equal(t, "upstream timeout", *got.TranscriptionError)
	assert.Equal(t, "went hiking with friends", got.Transcript)
}

func TestReplaceEntryActivities(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	entry := insertTestEntry(t, db, "auth0|alice", "mixed day", time.Now().UTC(),
		models.Activity{Name: "old", Category: models.CategoryOther})

	require.NoError(t, db.ReplaceEntryActivities(ctx, entry.ID, "auth0|alice", []models.Activity{
		{Name: "coding side project", Category: models.CategoryGrowth},
		{Name: "team sync", Category: models.CategoryWork},
	}))

	got, err := db.GetEntry(ctx, "auth0|alice", entry.ID)
	require.NoError(t, err)
	require.Len(t, got.Activities, 2)
	assert.Equal(t, "coding side project", got.Activities[0].Name)
}

func TestDeleteEntry(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	entry := insertTestEntry(t, db, "auth0|alice", "to delete", time.Now().UTC(),
		models.Activity{Name: "x", Category: models.CategoryOther})

	require.NoError(t, db.DeleteEntry(ctx, "auth0|alice", entry.ID))
	_, err := db.GetEntry(ctx, "auth0|alice", entry.ID)
	assert.ErrorIs(t, err, ErrEntryNotFound)

	// Deleting again reports not found
	assert.ErrorIs(t, db.DeleteEntry(ctx, "auth0|alice", entry.ID), ErrEntryNotFound)
}

func TestGetActivityTracker(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	insertTestEntry(t, db, "auth0|alice", "day 1", base,
		models.Activity{Name: "run", Category: models.CategoryHealth},   // 3
		models.Activity{Name: "meeting", Category: models.CategoryWork}, // 2
	)
	insertTestEntry(t, db, "auth0|alice", "day 2", base.Add(24*time.Hour),
		models.Activity{Name: "course", Category: models.CategoryGrowth},  // 3
		models.Activity{Name: "tv", Category: models.CategoryConsumption}, // 1
	)
	// Entry without activities is invisible to the tracker window
	insertTestEntry(t, db, "auth0|alice", "unclassified", base.Add(48*time.Hour))

	tracker, err := db.GetActivityTracker(ctx, "auth0|alice", 20)
	require.NoError(t, err)

	assert.Equal(t, 2, tracker.EntryCount)
	assert.Equal(t, 4, tracker.ActivityCount)
	assert.Equal(t, 9, tracker.TotalPoints)
	require.Len(t, tracker.Categories, 5)

	byCat := make(map[models.Category]models.CategoryStat)
	for _, s := range tracker.Categories {
		byCat[s.Category] = s
	}
	assert.Equal(t, 3, byCat[models.CategoryHealth].Points)
	assert.Equal(t, 3, byCat[models.CategoryGrowth].Points)
	assert.Equal(t, 2, byCat[models.CategoryWork].Points)
	assert.Equal(t, 1, byCat[models.CategoryConsumption].Points)
	assert.Equal(t, 0, byCat[models.CategoryOther].Points)
	assert.InDelta(t, 100.0/3, byCat[models.CategoryHealth].Percent, 0.01)

	// Growth and health tie at 3; display order puts growth first
	assert.Equal(t, models.CategoryGrowth, tracker.DominantCategory)
	assert.Equal(t, "Growth Phase", tracker.Phase)
}

func TestGetActivityTrackerWindowLimit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	// Oldest entry is pure consumption; with window 2 it must fall out
	insertTestEntry(t, db, "auth0|alice", "old", base,
		models.Activity{Name: "tv", Category: models.CategoryConsumption})
	insertTestEntry(t, db, "auth0|alice", "mid", base.Add(time.Hour),
		models.Activity{Name: "run", Category: models.CategoryHealth})
	insertTestEntry(t, db, "auth0|alice", "new", base.Add(2*time.Hour),
		models.Activity{Name: "course", Category: models.CategoryGrowth})

	tracker, err := db.GetActivityTracker(ctx, "auth0|alice", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, tracker.EntryCount)
	assert.Equal(t, 2, tracker.ActivityCount)
	assert.Equal(t, 6, tracker.TotalPoints)

	for _, s := range tracker.Categories {
		if s.Category == models.CategoryConsumption {
			assert.Zero(t, s.Points)
		}
	}
}

func TestGetActivityTrackerEmpty(t *testing.T) {
	db := setupTestDB(t)

	tracker, err := db.GetActivityTracker(context.Background(), "auth0|nobody", 20)
	require.NoError(t, err)
	assert.Zero(t, tracker.EntryCount)
	assert.Zero(t, tracker.TotalPoints)
	assert.Empty(t, tracker.DominantCategory)
	assert.Equal(t, models.PhaseGettingStarted, tracker.Phase)
	require.Len(t, tracker.Categories, 5)
	for _, s := range tracker.Categories {
		assert.Zero(t, s.Percent)
	}
}

func TestWeeklySummaryUpsertPreservesShareToken(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	start, end := models.ISOWeekBounds(2026, 35)
	s := &models.WeeklySummary{
		UserID:     "auth0|alice",
		Year:       2026,
		Week:       35,
		WeekStart:  start,
		WeekEnd:    end,
		EntryCount: 3,
		Narrative:  "A balanced week.",
		Phase:      "Finding Rhythm",
		Highlights: []string{"ran twice"},
		ShareToken: "token-original",
		Categories: []models.CategoryStat{},
	}
	require.NoError(t, db.UpsertWeeklySummary(ctx, s))

	// Regeneration proposes a new token, which must be ignored
	regen := &models.WeeklySummary{
		UserID:     "auth0|alice",
		Year:       2026,
		Week:       35,
		WeekStart:  start,
		WeekEnd:    end,
		EntryCount: 4,
		Narrative:  "An even better week.",
		Phase:      "Building Momentum",
		ShareToken: "token-new",
		Categories: []models.CategoryStat{},
	}
	require.NoError(t, db.UpsertWeeklySummary(ctx, regen))
	assert.Equal(t, "token-original", regen.ShareToken)
	assert.Equal(t, s.ID, regen.ID)

	got, err := db.GetWeeklySummary(ctx, "auth0|alice", 2026, 35)
	require.NoError(t, err)
	assert.Equal(t, "An even better week.", got.Narrative)
	assert.Equal(t, "Building Momentum", got.Phase)
	assert.Equal(t, "token-original", got.ShareToken)
	assert.Equal(t, 4, got.EntryCount)

	// Share token lookup works without user scoping
	shared, err := db.GetWeeklySummaryByShareToken(ctx, "token-original")
	require.NoError(t, err)
	assert.Equal(t, got.ID, shared.ID)

	_, err = db.GetWeeklySummaryByShareToken(ctx, "token-new")
	assert.ErrorIs(t, err, ErrSummaryNotFound)
}

func TestListWeeklySummariesOrder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, week := range []int{33, 35, 34} {
		start, end := models.ISOWeekBounds(2026, week)
		require.NoError(t, db.UpsertWeeklySummary(ctx, &models.WeeklySummary{
			UserID:     "auth0|alice",
			Year:       2026,
			Week:       week,
			WeekStart:  start,
			WeekEnd:    end,
			ShareToken: models.FormatWeekKey(2026, week),
			Categories: []models.CategoryStat{},
		}))
	}

	summaries, err := db.ListWeeklySummaries(ctx, "auth0|alice", 10)
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	assert.Equal(t, 35, summaries[0].Week)
	assert.Equal(t, 34, summaries[1].Week)
	assert.Equal(t, 33, summaries[2].Week)
}

func TestWeeklyMetrics(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	start, end := models.ISOWeekBounds(2026, 35)

	run := &models.Entry{
		UserID:              "auth0|alice",
		Transcript:          "in week",
		DurationSecs:        30,
		TranscriptionStatus: models.TranscriptionSkipped,
		CreatedAt:           start.Add(12 * time.Hour),
		Activities: []models.Activity{
			{Name: "Morning Run", Category: models.CategoryHealth},
		},
	}
	require.NoError(t, db.InsertEntry(ctx, run))

	insertTestEntry(t, db, "auth0|alice", "also in week", start.Add(36*time.Hour),
		models.Activity{Name: "morning run", Category: models.CategoryHealth},
		models.Activity{Name: "work sprint", Category: models.CategoryWork})

	// Outside the window
	insertTestEntry(t, db, "auth0|alice", "next week", end.Add(time.Hour),
		models.Activity{Name: "late", Category: models.CategoryGrowth})

	m, err := db.WeeklyMetrics(ctx, "auth0|alice", start, end)
	require.NoError(t, err)
	assert.Equal(t, 2, m.EntryCount)
	assert.Equal(t, 3, m.ActivityCount)
	assert.Equal(t, 30, m.TotalDurationSecs)
	require.Len(t, m.Categories, 5)

	total := 0
	for _, s := range m.Categories {
		total += s.Points
	}
	assert.Equal(t, 8, total)

	// "Morning Run" and "morning run" merge case-insensitively
	require.NotEmpty(t, m.TopActivities)
	assert.Equal(t, 2, m.TopActivities[0].Count)
	assert.Equal(t, models.CategoryHealth, m.TopActivities[0].Category)
}

func TestUpsertUserBySubject(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertUserBySubject(ctx, "auth0|alice", "alice", models.RoleUser, strPtr("a@example.com"), nil))

	u, err := db.GetUserBySubject(ctx, "auth0|alice")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, models.RoleUser, u.Role)
	require.NotNil(t, u.Email)
	assert.Equal(t, "a@example.com", *u.Email)
	firstSeen := u.CreatedAt
	firstID := u.ID

	// Second upsert keeps id, created_at and existing email when nil passed
	require.NoError(t, db.UpsertUserBySubject(ctx, "auth0|alice", "", models.RoleUser, nil, strPtr("Alice")))
	u, err = db.GetUserBySubject(ctx, "auth0|alice")
	require.NoError(t, err)
	assert.Equal(t, firstID, u.ID)
	assert.Equal(t, firstSeen, u.CreatedAt)
	assert.Equal(t, "alice", u.Username)
	require.NotNil(t, u.Email)
	assert.Equal(t, "a@example.com", *u.Email)
	require.NotNil(t, u.DisplayName)
	assert.Equal(t, "Alice", *u.DisplayName)

	byID, err := db.GetUser(ctx, firstID)
	require.NoError(t, err)
	assert.Equal(t, "auth0|alice", byID.Subject)

	_, err = db.GetUserBySubject(ctx, "auth0|nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCursorRoundTrip(t *testing.T) {
	id := uuid.New()
	ts := time.Date(2026, 8, 25, 9, 30, 0, 123456789, time.UTC)

	cursor := EncodeCursor(ts, id)
	gotTime, gotID, err := DecodeCursor(cursor)
	require.NoError(t, err)
	assert.True(t, ts.Equal(gotTime))
	assert.Equal(t, id, gotID)

	_, _, err = DecodeCursor("not base64 at all!!!")
	assert.Error(t, err)
}

func TestMigrationsTableEmptyPreRelease(t *testing.T) {
	db := setupTestDB(t)

	version, err := db.GetCurrentSchemaVersion()
	require.NoError(t, err)
	assert.Zero(t, version)
}

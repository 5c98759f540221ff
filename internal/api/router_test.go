// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/echolog/internal/auth"
	"github.com/tomtom215/echolog/internal/config"
	"github.com/tomtom215/echolog/internal/database"
	"github.com/tomtom215/echolog/internal/models"
	"github.com/tomtom215/echolog/internal/summary"
	"github.com/tomtom215/echolog/internal/tracker"
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

type stubExtractor struct{}

func (stubExtractor) ExtractActivities(_ context.Context, _ string) ([]models.Activity, error) {
	return []models.Activity{
		{ID: uuid.New(), Name: "reading", Category: models.CategoryGrowth, Points: 3},
	}, nil
}

type stubNarrator struct{}

func (stubNarrator) WeeklyNarrative(_ context.Context, _ *models.WeeklyMetrics) (string, string, error) {
	return "A steady week of learning.", "Deep Focus", nil
}

type testEnv struct {
	router chi.Router
	db     *database.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := setupTestDB(t)

	cfg := &config.Config{
		API:      config.APIConfig{DefaultPageSize: 20, MaxPageSize: 100},
		Security: config.SecurityConfig{RateLimitDisabled: true},
	}

	trackerSvc := tracker.NewService(tracker.Deps{
		DB:        db,
		Extractor: stubExtractor{},
	}, &cfg.Tracker)

	summarySvc, err := summary.NewService(summary.Deps{
		DB:       db,
		Narrator: stubNarrator{},
	}, &cfg.Summary)
	require.NoError(t, err)

	handler := NewHandler(HandlerDeps{
		DB:        db,
		Tracker:   trackerSvc,
		Summaries: summarySvc,
		Config:    cfg,
	})

	return &testEnv{
		router: NewRouter(handler, auth.NoneAuthenticator{}).Setup(),
		db:     db,
	}
}

// envelope mirrors APIResponse with raw data for per-test decoding.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, *envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, &env
}

func (e *testEnv) createEntry(t *testing.T, title, text string) *models.Entry {
	t.Helper()

	rec, env := e.do(t, http.MethodPost, "/api/v1/entries", CreateEntryRequest{Title: title, Text: text})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var entry models.Entry
	require.NoError(t, json.Unmarshal(env.Data, &entry))
	return &entry
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/v1/health", "/api/v1/health/live", "/api/v1/health/ready"} {
		rec, body := env.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.True(t, body.Success, path)
	}
}

func TestHealthIncludesDatabaseCheck(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, http.MethodGet, "/api/v1/health", nil)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(body.Data, &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "healthy", status.Checks["database"])
}

func TestRequestIDHeaderSet(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodGet, "/api/v1/health/live", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodGet, "/api/v1/health/live", nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestCreateEntry(t *testing.T) {
	env := newTestEnv(t)

	entry := env.createEntry(t, "Morning pages", "Read two chapters and went for a run.")

	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.Equal(t, "dev|local", entry.UserID)
	assert.Equal(t, "Morning pages", entry.Title)
	assert.Equal(t, models.TranscriptionSkipped, entry.TranscriptionStatus)
}

func TestCreateEntryValidation(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/api/v1/entries", map[string]string{"title": "no text"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, ErrCodeValidationFailed, body.Error.Code)
}

func TestCreateEntryEmptyBody(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/api/v1/entries", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, ErrCodeBadRequest, body.Error.Code)
}

func TestGetEntry(t *testing.T) {
	env := newTestEnv(t)
	created := env.createEntry(t, "t", "some text")

	rec, body := env.do(t, http.MethodGet, "/api/v1/entries/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entry models.Entry
	require.NoError(t, json.Unmarshal(body.Data, &entry))
	assert.Equal(t, created.ID, entry.ID)
}

func TestGetEntryInvalidID(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodGet, "/api/v1/entries/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetEntryNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodGet, "/api/v1/entries/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, ErrCodeNotFound, body.Error.Code)
}

func TestListEntriesPagination(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 3; i++ {
		env.createEntry(t, fmt.Sprintf("entry %d", i), "text")
	}

	rec, body := env.do(t, http.MethodGet, "/api/v1/entries?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []*models.Entry
	require.NoError(t, json.Unmarshal(body.Data, &entries))
	assert.Len(t, entries, 2)

	require.NotNil(t, body.Meta)
	require.NotNil(t, body.Meta.Pagination)
	assert.Equal(t, int64(3), body.Meta.Pagination.Total)
	assert.Equal(t, 2, body.Meta.Pagination.Count)
	assert.True(t, body.Meta.Pagination.HasMore)
	require.NotEmpty(t, body.Meta.Pagination.NextCursor)

	rec, body = env.do(t, http.MethodGet, "/api/v1/entries?limit=2&cursor="+body.Meta.Pagination.NextCursor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(body.Data, &entries))
	assert.Len(t, entries, 1)
	assert.False(t, body.Meta.Pagination.HasMore)
}

func TestListEntriesRejectsBadParams(t *testing.T) {
	env := newTestEnv(t)

	for _, qs := range []string{"?limit=0", "?limit=abc", "?offset=-1", "?category=sleep", "?from=yesterday"} {
		rec, _ := env.do(t, http.MethodGet, "/api/v1/entries"+qs, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, qs)
	}
}

func TestUpdateEntry(t *testing.T) {
	env := newTestEnv(t)
	created := env.createEntry(t, "old title", "original text")

	newTitle := "new title"
	rec, body := env.do(t, http.MethodPut, "/api/v1/entries/"+created.ID.String(), UpdateEntryRequest{Title: &newTitle})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var entry models.Entry
	require.NoError(t, json.Unmarshal(body.Data, &entry))
	assert.Equal(t, newTitle, entry.Title)
	assert.Equal(t, "original text", entry.Transcript)
}

func TestUpdateEntryTranscriptReclassifies(t *testing.T) {
	env := newTestEnv(t)
	created := env.createEntry(t, "t", "original text")

	transcript := "spent the evening reading a novel"
	rec, body := env.do(t, http.MethodPut, "/api/v1/entries/"+created.ID.String(), UpdateEntryRequest{Transcript: &transcript})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var entry models.Entry
	require.NoError(t, json.Unmarshal(body.Data, &entry))
	assert.Equal(t, transcript, entry.Transcript)
	require.NotEmpty(t, entry.Activities)
	assert.Equal(t, "reading", entry.Activities[0].Name)
}

func TestUpdateEntryRequiresField(t *testing.T) {
	env := newTestEnv(t)
	created := env.createEntry(t, "t", "text")

	rec, _ := env.do(t, http.MethodPut, "/api/v1/entries/"+created.ID.String(), map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteEntry(t *testing.T) {
	env := newTestEnv(t)
	created := env.createEntry(t, "t", "text")

	rec, _ := env.do(t, http.MethodDelete, "/api/v1/entries/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/entries/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTranscriptionForTextEntry(t *testing.T) {
	env := newTestEnv(t)
	created := env.createEntry(t, "t", "typed, never transcribed")

	rec, body := env.do(t, http.MethodGet, "/api/v1/entries/"+created.ID.String()+"/transcription", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var job models.TranscriptionJob
	require.NoError(t, json.Unmarshal(body.Data, &job))
	assert.Equal(t, created.ID, job.EntryID)
	assert.Equal(t, models.TranscriptionSkipped, job.Status)
}

func TestGetTracker(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodGet, "/api/v1/tracker", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var trk models.ActivityTracker
	require.NoError(t, json.Unmarshal(body.Data, &trk))
	assert.Equal(t, 0, trk.EntryCount)
	assert.Len(t, trk.Categories, len(models.AllCategories))
}

func TestRecomputeTracker(t *testing.T) {
	env := newTestEnv(t)
	env.createEntry(t, "t", "went for a run")

	// The pipeline classifies in the background; poll until the tracker
	// reflects the entry.
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec, body := env.do(t, http.MethodPost, "/api/v1/tracker/recompute", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var trk models.ActivityTracker
		require.NoError(t, json.Unmarshal(body.Data, &trk))
		if trk.ActivityCount > 0 {
			assert.Equal(t, models.CategoryGrowth, trk.DominantCategory)
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("tracker never picked up the classified entry")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestSummaryLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.createEntry(t, "t", "read a book and did a workout")

	year, week := time.Now().UTC().ISOWeek()
	base := fmt.Sprintf("/api/v1/summaries/%d/%d", year, week)

	// Not generated yet
	rec, _ := env.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body := env.do(t, http.MethodPost, base+"/generate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var s models.WeeklySummary
	require.NoError(t, json.Unmarshal(body.Data, &s))
	assert.Equal(t, "A steady week of learning.", s.Narrative)
	assert.Equal(t, "Deep Focus", s.Phase)
	require.NotEmpty(t, s.ShareToken)

	// Now retrievable
	rec, _ = env.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Listed
	rec, body = env.do(t, http.MethodGet, "/api/v1/summaries", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []*models.WeeklySummary
	require.NoError(t, json.Unmarshal(body.Data, &list))
	assert.Len(t, list, 1)

	// Publicly shareable without auth
	rec, body = env.do(t, http.MethodGet, "/api/v1/summaries/share/"+s.ShareToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var shared models.WeeklySummary
	require.NoError(t, json.Unmarshal(body.Data, &shared))
	assert.Equal(t, s.ID, shared.ID)
}

func TestGenerateSummaryEmptyWeek(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/api/v1/summaries/2020/10/generate", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, body.Error)
}

func TestGenerateSummaryBadWeek(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodPost, "/api/v1/summaries/2026/60/generate", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSharedSummaryNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodGet, "/api/v1/summaries/share/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)

	// First authenticated request upserts the user row.
	env.do(t, http.MethodGet, "/api/v1/tracker", nil)

	rec, body := env.do(t, http.MethodGet, "/api/v1/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var user models.User
	require.NoError(t, json.Unmarshal(body.Data, &user))
	assert.Equal(t, "dev|local", user.Subject)
	assert.Equal(t, "dev", user.Username)
}

func TestLoginDisabled(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{Username: "admin", Password: "whatever1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogin(t *testing.T) {
	db := setupTestDB(t)

	secCfg := &config.SecurityConfig{
		AuthMode:       "jwt",
		JWTSecret:      "0123456789abcdef0123456789abcdef",
		AdminUsername:  "admin",
		AdminPassword:  "correct-horse-battery",
		SessionTimeout: time.Hour,
	}
	tokens, err := auth.NewJWTManager(secCfg)
	require.NoError(t, err)
	login, err := auth.NewLoginManager(secCfg, tokens)
	require.NoError(t, err)

	cfg := &config.Config{
		API:      config.APIConfig{DefaultPageSize: 20, MaxPageSize: 100},
		Security: config.SecurityConfig{RateLimitDisabled: true},
	}
	trackerSvc := tracker.NewService(tracker.Deps{DB: db, Extractor: stubExtractor{}}, &cfg.Tracker)
	summarySvc, err := summary.NewService(summary.Deps{DB: db, Narrator: stubNarrator{}}, &cfg.Summary)
	require.NoError(t, err)

	handler := NewHandler(HandlerDeps{DB: db, Tracker: trackerSvc, Summaries: summarySvc, Login: login, Config: cfg})
	env := &testEnv{router: NewRouter(handler, tokens).Setup(), db: db}

	// Wrong password
	rec, _ := env.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{Username: "admin", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Correct credentials
	rec, body := env.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{Username: "admin", Password: "correct-horse-battery"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(body.Data, &resp))
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, "admin", resp.Username)

	// Data routes reject without a token
	rec, _ = env.do(t, http.MethodGet, "/api/v1/tracker", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// And accept with one
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tracker", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	recorder := httptest.NewRecorder()
	env.router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestVoiceUploadDisabled(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/entries/voice", strings.NewReader("not really multipart"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

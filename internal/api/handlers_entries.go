// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/echolog/internal/auth"
	"github.com/tomtom215/echolog/internal/database"
	"github.com/tomtom215/echolog/internal/models"
)

// requireSubject extracts the authenticated subject or writes a 401.
func requireSubject(rw *ResponseWriter, r *http.Request) (*auth.Subject, bool) {
	subject := auth.SubjectFromContext(r.Context())
	if subject == nil {
		rw.Unauthorized("Authentication required")
		return nil, false
	}
	return subject, true
}

// entryIDParam parses the {id} path segment.
func entryIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

// CreateEntry creates a typed text entry. Classification runs in the
// background; the response carries the entry in its initial state.
// POST /api/v1/entries
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	subject, ok := requireSubject(rw, r)
	if !ok {
		return
	}

	var req CreateEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validateRequest(&req); verr != nil {
		rw.ValidationError(verr.Message, verr.Details)
		return
	}

	entry, err := h.tracker.CreateTextEntry(r.Context(), subject.UserID, req.Title, req.Text, req.Mood)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Created(entry)
}

// CreateVoiceEntry accepts a multipart voice note upload. The audio file
// goes to media storage and transcription is queued; clients follow
// progress over the websocket or by polling the transcription endpoint.
// POST /api/v1/entries/voice
func (h *Handler) CreateVoiceEntry(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	subject, ok := requireSubject(rw, r)
	if !ok {
		return
	}

	maxBytes := h.tracker.MaxUploadBytes()
	if maxBytes <= 0 {
		rw.ServiceUnavailable("Voice uploads are not enabled")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	// Parse the form with a small memory threshold; large audio spools
	// to temp files.
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			rw.PayloadTooLarge("Audio upload exceeds the size limit")
			return
		}
		rw.BadRequest("Invalid multipart form: " + err.Error())
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("audio")
	if err != nil {
		rw.BadRequest("Missing audio file field")
		return
	}
	defer file.Close()

	title := strings.TrimSpace(r.FormValue("title"))
	var mood *string
	if m := strings.TrimSpace(r.FormValue("mood")); m != "" {
		mood = &m
	}

	durationSecs := 0
	if raw := r.FormValue("duration_secs"); raw != "" {
		durationSecs, err = strconv.Atoi(raw)
		if err != nil || durationSecs < 0 {
			rw.BadRequest("duration_secs must be a non-negative integer")
			return
		}
	}

	entry, err := h.tracker.CreateVoiceEntry(r.Context(), subject.UserID, title, header.Filename, mood, file, header.Size, durationSecs)
	if err != nil {
		rw.ExternalServiceError("media", err)
		return
	}

	rw.Accepted(entry)
}

// ListEntries returns the user's entries, newest first, with cursor or
// offset pagination and optional date/category filters.
// GET /api/v1/entries
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	subject, ok := requireSubject(rw, r)
	if !ok {
		return
	}

	defaultSize, maxSize := h.pageSizes()
	query, err := parseListEntriesQuery(r, defaultSize, maxSize)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	entries, nextCursor, err := h.db.ListEntries(r.Context(), subject.UserID, query.opts)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	total, err := h.db.CountEntries(r.Context(), subject.UserID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.SuccessWithPagination(entries, &PaginationMeta{
		Total:      int64(total),
		Count:      len(entries),
		Offset:     query.offset,
		Limit:      query.limit,
		HasMore:    nextCursor != "",
		NextCursor: nextCursor,
	})
}

// GetEntry returns a single entry with its extracted activities.
// GET /api/v1/entries/{id}
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	subject, ok := requireSubject(rw, r)
	if !ok {
		return
	}

	entryID, err := entryIDParam(r)
	if err != nil {
		rw.BadRequest("Invalid entry ID")
		return
	}

	entry, err := h.db.GetEntry(r.Context(), subject.UserID, entryID)
	if err != nil {
		if errors.Is(err, database.ErrEntryNotFound) {
			rw.NotFound("Entry not found")
			return
		}
		rw.DatabaseError(err)
		return
	}

	rw.Success(entry)
}

// UpdateEntry edits an entry's title, transcript, or mood. Transcript
// changes re-run activity extraction so the tracker stays consistent.
// PUT /api/v1/entries/{id}
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	subject, ok := requireSubject(rw, r)
	if !ok {
		return
	}

	entryID, err := entryIDParam(r)
	if err != nil {
		rw.BadRequest("Invalid entry ID")
		return
	}

	var req UpdateEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validateRequest(&req); verr != nil {
		rw.ValidationError(verr.Message, verr.Details)
		return
	}
	if req.Empty() {
		rw.BadRequest("At least one of title, transcript, or mood must be provided")
		return
	}

	update := database.EntryUpdate{
		Title:      req.Title,
		Transcript: req.Transcript,
		Mood:       req.Mood,
	}
	if err := h.db.UpdateEntry(r.Context(), subject.UserID, entryID, update); err != nil {
		if errors.Is(err, database.ErrEntryNotFound) {
			rw.NotFound("Entry not found")
			return
		}
		rw.DatabaseError(err)
		return
	}

	if req.Transcript != nil {
		if err := h.tracker.Process(r.Context(), subject.UserID, entryID); err != nil {
			rw.ExternalServiceError("classifier", err)
			return
		}
	}

	entry, err := h.db.GetEntry(r.Context(), subject.UserID, entryID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(entry)
}

// DeleteEntry removes an entry, its activities, and its stored audio.
// DELETE /api/v1/entries/{id}
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	subject, ok := requireSubject(rw, r)
	if !ok {
		return
	}

	entryID, err := entryIDParam(r)
	if err != nil {
		rw.BadRequest("Invalid entry ID")
		return
	}

	if err := h.tracker.DeleteEntry(r.Context(), subject.UserID, entryID); err != nil {
		if errors.Is(err, database.ErrEntryNotFound) {
			rw.NotFound("Entry not found")
			return
		}
		rw.DatabaseError(err)
		return
	}

	rw.NoContent()
}

// GetTranscription reports the transcription state of a voice entry.
// GET /api/v1/entries/{id}/transcription
func (h *Handler) GetTranscription(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	subject, ok := requireSubject(rw, r)
	if !ok {
		return
	}

	entryID, err := entryIDParam(r)
	if err != nil {
		rw.BadRequest("Invalid entry ID")
		return
	}

	entry, err := h.db.GetEntry(r.Context(), subject.UserID, entryID)
	if err != nil {
		if errors.Is(err, database.ErrEntryNotFound) {
			rw.NotFound("Entry not found")
			return
		}
		rw.DatabaseError(err)
		return
	}

	job := models.TranscriptionJob{
		EntryID: entry.ID,
		Status:  entry.TranscriptionStatus,
	}
	if entry.TranscriptionJobID != nil {
		job.ID = *entry.TranscriptionJobID
	}
	if entry.TranscriptionStatus == models.TranscriptionCompleted {
		job.Transcript = entry.Transcript
	}
	if entry.TranscriptionError != nil {
		job.Error = *entry.TranscriptionError
	}

	rw.Success(job)
}

// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/echolog/internal/database"
	"github.com/tomtom215/echolog/internal/summary"
)

// ListSummaries returns the user's weekly summaries, newest first.
// GET /api/v1/summaries
func (h *Handler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	subject, ok := requireSubject(rw, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			rw.BadRequest("limit must be a positive integer")
			return
		}
		limit = v
	}

	summaries, err := h.summaries.ListSummaries(r.Context(), subject.UserID, limit)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.SuccessWithPagination(summaries, &PaginationMeta{
		Count:   len(summaries),
		HasMore: false,
	})
}

// GetSummary returns one weekly summary by ISO year and week.
// GET /api/v1/summaries/{year}/{week}
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	subject, ok := requireSubject(rw, r)
	if !ok {
		return
	}

	year, week, err := parseWeekParams(chi.URLParam(r, "year"), chi.URLParam(r, "week"))
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	s, err := h.summaries.GetSummary(r.Context(), subject.UserID, year, week)
	if err != nil {
		if errors.Is(err, database.ErrSummaryNotFound) {
			rw.NotFound("No summary for that week")
			return
		}
		rw.DatabaseError(err)
		return
	}

	rw.Success(s)
}

// GenerateSummary triggers on-demand generation for a specific week.
// Regeneration overwrites the stored narrative but keeps the share token.
// POST /api/v1/summaries/{year}/{week}/generate
func (h *Handler) GenerateSummary(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	subject, ok := requireSubject(rw, r)
	if !ok {
		return
	}

	year, week, err := parseWeekParams(chi.URLParam(r, "year"), chi.URLParam(r, "week"))
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	s, err := h.summaries.GenerateWeeklySummary(r.Context(), subject.UserID, year, week, "manual")
	if err != nil {
		switch {
		case errors.Is(err, summary.ErrInvalidWeek):
			rw.BadRequest(err.Error())
		case errors.Is(err, summary.ErrNoEntries):
			rw.Error(http.StatusUnprocessableEntity, ErrCodeValidationFailed, "No entries recorded for that week")
		default:
			rw.ExternalServiceError("summary", err)
		}
		return
	}

	rw.Success(s)
}

// GetSharedSummary resolves a public share link. No authentication; the
// token itself is the capability.
// GET /api/v1/summaries/share/{token}
func (h *Handler) GetSharedSummary(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	token := chi.URLParam(r, "token")
	if token == "" {
		rw.BadRequest("Missing share token")
		return
	}

	s, err := h.summaries.GetSharedSummary(r.Context(), token)
	if err != nil {
		if errors.Is(err, database.ErrSummaryNotFound) {
			rw.NotFound("Share link not found")
			return
		}
		rw.DatabaseError(err)
		return
	}

	rw.Success(s)
}

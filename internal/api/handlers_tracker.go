// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package api

import (
	"net/http"
)

// GetTracker returns the user's activity tracker aggregate over the
// configured rolling window.
// GET /api/v1/tracker
func (h *Handler) GetTracker(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	subject, ok := requireSubject(rw, r)
	if !ok {
		return
	}

	tracker, err := h.tracker.GetTracker(r.Context(), subject.UserID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(tracker)
}

// RecomputeTracker forces a fresh aggregation, bypassing the cache.
// POST /api/v1/tracker/recompute
func (h *Handler) RecomputeTracker(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	subject, ok := requireSubject(rw, r)
	if !ok {
		return
	}

	tracker, err := h.tracker.RecomputeTracker(r.Context(), subject.UserID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(tracker)
}

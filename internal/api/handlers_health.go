// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package api

import (
	"context"
	"net/http"
	"time"
)

func contextWithTimeout(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}

// HealthStatus is the health check response payload.
type HealthStatus struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	UptimeSec int64             `json:"uptime_seconds"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Health reports overall service health including the database check.
// GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	checks := map[string]string{}
	status := "healthy"

	dbCtx, dbCancel := contextWithTimeout(r, 2*time.Second)
	defer dbCancel()
	if err := h.db.Ping(dbCtx); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		status = "degraded"
	} else {
		checks["database"] = "healthy"
	}

	payload := HealthStatus{
		Status:    status,
		UptimeSec: int64(time.Since(h.startTime).Seconds()),
		Checks:    checks,
	}

	if status != "healthy" {
		rw.writeJSON(http.StatusServiceUnavailable, APIResponse{Success: false, Data: payload})
		return
	}

	rw.Success(payload)
}

// Liveness is a minimal probe that only confirms the process is serving.
// GET /api/v1/health/live
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}

// Readiness reports whether the service can accept traffic.
// GET /api/v1/health/ready
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	ctx, cancel := contextWithTimeout(r, 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		rw.ServiceUnavailable("Database not reachable")
		return
	}

	rw.Success(map[string]string{"status": "ready"})
}

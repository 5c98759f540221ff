// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package api

import (
	"net/http"
	"net/url"

	"github.com/tomtom215/echolog/internal/logging"
	ws "github.com/tomtom215/echolog/internal/websocket"
)

// WebSocket upgrades the connection and registers the client with the
// hub for transcription, tracker, and summary push events.
// GET /api/v1/ws
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	subject, ok := requireSubject(NewResponseWriter(w, r), r)
	if !ok {
		return
	}

	if h.hub == nil {
		NewResponseWriter(w, r).ServiceUnavailable("Realtime updates are not enabled")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn, subject.UserID)
	h.hub.Register <- client
	client.Start()
}

// checkWebSocketOrigin accepts same-host connections and any origin in
// the configured CORS allowlist.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}

	if h.cfg != nil {
		for _, allowed := range h.cfg.Security.CORSOrigins {
			if allowed == "*" || allowed == origin {
				return true
			}
		}
	}

	return false
}

// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package api

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/echolog/internal/auth"
	"github.com/tomtom215/echolog/internal/config"
	"github.com/tomtom215/echolog/internal/database"
	"github.com/tomtom215/echolog/internal/summary"
	"github.com/tomtom215/echolog/internal/tracker"
	ws "github.com/tomtom215/echolog/internal/websocket"
)

// Handler holds the dependencies for all API endpoints.
type Handler struct {
	db        *database.DB
	tracker   *tracker.Service
	summaries *summary.Service
	hub       *ws.Hub
	login     *auth.LoginManager
	cfg       *config.Config
	upgrader  websocket.Upgrader
	startTime time.Time
}

// HandlerDeps bundles the constructor dependencies. Login and hub are
// optional; endpoints depending on them return 503 when absent.
type HandlerDeps struct {
	DB        *database.DB
	Tracker   *tracker.Service
	Summaries *summary.Service
	Hub       *ws.Hub
	Login     *auth.LoginManager
	Config    *config.Config
}

// NewHandler creates the API handler set.
func NewHandler(deps HandlerDeps) *Handler {
	h := &Handler{
		db:        deps.DB,
		tracker:   deps.Tracker,
		summaries: deps.Summaries,
		hub:       deps.Hub,
		login:     deps.Login,
		cfg:       deps.Config,
		startTime: time.Now(),
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkWebSocketOrigin,
	}

	return h
}

// pageSizes returns the configured default and max page sizes with
// sane fallbacks.
func (h *Handler) pageSizes() (int, int) {
	defaultSize, maxSize := 20, 100
	if h.cfg != nil {
		if h.cfg.API.DefaultPageSize > 0 {
			defaultSize = h.cfg.API.DefaultPageSize
		}
		if h.cfg.API.MaxPageSize > 0 {
			maxSize = h.cfg.API.MaxPageSize
		}
	}
	return defaultSize, maxSize
}

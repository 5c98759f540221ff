// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/echolog/internal/auth"
	"github.com/tomtom215/echolog/internal/logging"
	"github.com/tomtom215/echolog/internal/middleware"
)

// Router assembles the chi route tree from the handler set, the
// authentication middleware, and the chi-native middleware stack.
type Router struct {
	handler *Handler
	authMW  *auth.Middleware
	chiMW   *ChiMiddleware
}

// NewRouter creates a router. The authenticated user is upserted into
// the users table on every successful authentication.
func NewRouter(handler *Handler, authenticator auth.Authenticator) *Router {
	authMW := auth.NewMiddleware(authenticator)
	authMW.OnAuthenticated = func(r *http.Request, subject *auth.Subject) {
		var email, name *string
		if subject.Email != "" {
			email = &subject.Email
		}
		if subject.Name != "" {
			name = &subject.Name
		}
		if err := handler.db.UpsertUserBySubject(r.Context(), subject.UserID, subject.Username, subject.Role, email, name); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Failed to upsert user")
		}
	}

	var cors []string
	var rateReqs int
	var rateWindow = RateLimitAPI.Window
	var rateDisabled bool
	if handler.cfg != nil {
		cors = handler.cfg.Security.CORSOrigins
		rateReqs = handler.cfg.Security.RateLimitReqs
		if handler.cfg.Security.RateLimitWindow > 0 {
			rateWindow = handler.cfg.Security.RateLimitWindow
		}
		rateDisabled = handler.cfg.Security.RateLimitDisabled
	}

	return &Router{
		handler: handler,
		authMW:  authMW,
		chiMW: NewChiMiddleware(ChiMiddlewareConfig{
			CORSAllowedOrigins: cors,
			RateLimitRequests:  rateReqs,
			RateLimitWindow:    rateWindow,
			RateLimitDisabled:  rateDisabled,
		}),
	}
}

// Setup builds the route tree.
func (rt *Router) Setup() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(rt.chiMW.CORS())
	r.Use(APISecurityHeaders())

	// Prometheus scrape endpoint
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		// Health endpoints stay open for orchestrator probes
		r.Group(func(r chi.Router) {
			r.Use(rt.chiMW.RateLimitCustom(RateLimitHealth))
			r.Get("/health", rt.handler.Health)
			r.Get("/health/live", rt.handler.Liveness)
			r.Get("/health/ready", rt.handler.Readiness)
		})

		// Local login, tightly rate limited
		r.Group(func(r chi.Router) {
			r.Use(rt.chiMW.RateLimitCustom(RateLimitLogin))
			r.Post("/auth/login", rt.handler.Login)
		})

		// Public share links, no authentication
		r.Group(func(r chi.Router) {
			r.Use(rt.chiMW.RateLimit())
			r.Get("/summaries/share/{token}", rt.handler.GetSharedSummary)
		})

		// Authenticated API
		r.Group(func(r chi.Router) {
			r.Use(rt.chiMW.RateLimit())
			r.Use(rt.authMW.Require)

			r.Get("/me", rt.handler.Me)

			r.Route("/entries", func(r chi.Router) {
				r.Get("/", rt.handler.ListEntries)
				r.Post("/", rt.handler.CreateEntry)
				r.Post("/voice", rt.handler.CreateVoiceEntry)
				r.Get("/{id}", rt.handler.GetEntry)
				r.Put("/{id}", rt.handler.UpdateEntry)
				r.Delete("/{id}", rt.handler.DeleteEntry)
				r.Get("/{id}/transcription", rt.handler.GetTranscription)
			})

			r.Route("/tracker", func(r chi.Router) {
				r.Get("/", rt.handler.GetTracker)
				r.Post("/recompute", rt.handler.RecomputeTracker)
			})

			r.Route("/summaries", func(r chi.Router) {
				r.Get("/", rt.handler.ListSummaries)
				r.Get("/{year}/{week}", rt.handler.GetSummary)
				r.Post("/{year}/{week}/generate", rt.handler.GenerateSummary)
			})

			r.Get("/ws", rt.handler.WebSocket)
		})
	})

	return r
}

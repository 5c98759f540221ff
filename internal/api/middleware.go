// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/echolog/internal/logging"
)

// ChiMiddlewareConfig configures the chi-native middleware stack.
type ChiMiddlewareConfig struct {
	// CORSAllowedOrigins is the list of allowed origins. Empty means
	// same-origin only.
	CORSAllowedOrigins []string

	// RateLimitRequests is the default number of requests allowed per window.
	RateLimitRequests int

	// RateLimitWindow is the default rate limit window.
	RateLimitWindow time.Duration

	// RateLimitDisabled disables rate limiting entirely.
	RateLimitDisabled bool
}

// RateLimitConfig describes an endpoint-specific rate limit.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Endpoint-specific rate limits. Login is kept tight to slow down
// credential stuffing; health stays permissive for load balancer probes.
var (
	RateLimitLogin  = RateLimitConfig{Requests: 5, Window: 5 * time.Minute}
	RateLimitHealth = RateLimitConfig{Requests: 1000, Window: time.Minute}
	RateLimitAPI    = RateLimitConfig{Requests: 100, Window: time.Minute}
)

// ChiMiddleware provides chi-native middleware constructors.
type ChiMiddleware struct {
	config ChiMiddlewareConfig
}

// NewChiMiddleware creates the middleware stack from configuration.
func NewChiMiddleware(config ChiMiddlewareConfig) *ChiMiddleware {
	if config.RateLimitRequests <= 0 {
		config.RateLimitRequests = RateLimitAPI.Requests
	}
	if config.RateLimitWindow <= 0 {
		config.RateLimitWindow = RateLimitAPI.Window
	}
	return &ChiMiddleware{config: config}
}

// CORS returns the CORS middleware built from the configured origins.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	origins := m.config.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// RateLimit returns the default per-IP rate limiter.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	return m.RateLimitCustom(RateLimitConfig{
		Requests: m.config.RateLimitRequests,
		Window:   m.config.RateLimitWindow,
	})
}

// RateLimitCustom returns a per-IP rate limiter with the given config.
func (m *ChiMiddleware) RateLimitCustom(limit RateLimitConfig) func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return passthrough
	}

	return httprate.Limit(
		limit.Requests,
		limit.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			logging.Ctx(r.Context()).Warn().
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("Rate limit exceeded")
			NewResponseWriter(w, r).Error(http.StatusTooManyRequests, ErrCodeTooManyRequests, "Rate limit exceeded, try again later")
		}),
	)
}

func passthrough(next http.Handler) http.Handler {
	return next
}

// APISecurityHeaders sets standard security headers on API responses.
// HSTS is only set when the request arrived over TLS.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// chiMiddleware adapts HandlerFunc-style middleware to chi's
// http.Handler-based middleware signature.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

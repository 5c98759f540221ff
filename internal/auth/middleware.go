// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package auth

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/echolog/internal/logging"
)

// Middleware enforces authentication on protected routes. Every request
// passing through it carries an authenticated Subject in its context.
type Middleware struct {
	authenticator Authenticator

	// OnAuthenticated runs after a successful authentication, outside
	// the request's critical path concerns. Used to upsert user rows.
	OnAuthenticated func(r *http.Request, subject *Subject)
}

// NewMiddleware creates authentication middleware backed by the given
// authenticator.
func NewMiddleware(authenticator Authenticator) *Middleware {
	return &Middleware{authenticator: authenticator}
}

// Require wraps a handler, rejecting requests without valid credentials.
func (m *Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, err := m.authenticator.Authenticate(r.Context(), r)
		if err != nil {
			m.writeUnauthorized(w, r, err)
			return
		}

		if m.OnAuthenticated != nil {
			m.OnAuthenticated(r, subject)
		}

		ctx := ContextWithSubject(r.Context(), subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) writeUnauthorized(w http.ResponseWriter, r *http.Request, err error) {
	logging.Ctx(r.Context()).Debug().
		Err(err).
		Str("authenticator", m.authenticator.Name()).
		Str("path", r.URL.Path).
		Msg("Authentication failed")

	code := "UNAUTHORIZED"
	message := "Authentication required"

	switch {
	case errors.Is(err, ErrExpiredCredentials):
		code = "TOKEN_EXPIRED"
		message = "Credentials have expired"
	case errors.Is(err, ErrInvalidCredentials):
		message = "Invalid credentials"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

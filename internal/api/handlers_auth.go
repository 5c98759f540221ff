// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/echolog/internal/auth"
	"github.com/tomtom215/echolog/internal/database"
	"github.com/tomtom215/echolog/internal/logging"
)

// LoginResponse carries the issued token and the authenticated identity.
type LoginResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Login exchanges local credentials for a JWT.
// POST /api/v1/auth/login
//
// Only available in jwt auth mode; oidc deployments authenticate against
// the identity provider directly.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.login == nil {
		rw.NotFound("Local login is not enabled")
		return
	}

	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validateRequest(&req); verr != nil {
		rw.ValidationError(verr.Message, verr.Details)
		return
	}

	token, subject, err := h.login.Login(req.Username, req.Password)
	if err != nil {
		logging.Ctx(r.Context()).Warn().
			Str("username", req.Username).
			Msg("Failed login attempt")
		rw.Unauthorized("Invalid username or password")
		return
	}

	rw.Success(LoginResponse{
		Token:    token,
		UserID:   subject.UserID,
		Username: subject.Username,
		Role:     subject.Role,
	})
}

// Me returns the authenticated user's profile.
// GET /api/v1/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	subject := auth.SubjectFromContext(r.Context())
	if subject == nil {
		rw.Unauthorized("Authentication required")
		return
	}

	user, err := h.db.GetUserBySubject(r.Context(), subject.UserID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			// First request after authentication; the upsert hook has not
			// landed yet. Fall back to the token claims.
			rw.Success(map[string]interface{}{
				"subject":  subject.UserID,
				"username": subject.Username,
				"role":     subject.Role,
			})
			return
		}
		rw.DatabaseError(err)
		return
	}

	rw.Success(user)
}

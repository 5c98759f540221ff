// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

// Package auth provides request authentication for the API.
//
// Three modes are supported, selected by AUTH_MODE:
//   - jwt:  locally issued HS256 tokens (development and self-hosted setups)
//   - oidc: resource-server validation of RS256 tokens from an external
//     issuer (Auth0-style) via discovery and a cached JWKS
//   - none: every request runs as a fixed development subject
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Authentication errors. Middleware maps these onto 401 responses; the
// distinction matters only for logging.
var (
	ErrNoCredentials      = errors.New("no credentials provided")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrExpiredCredentials = errors.New("expired credentials")
)

// Subject is the authenticated identity attached to a request.
type Subject struct {
	UserID   string // stable identifier, e.g. "auth0|abc123"
	Username string
	Email    string
	Name     string
	Role     string
}

// Authenticator validates the credentials on a request and returns the
// authenticated subject.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (*Subject, error)
	Name() string
}

type subjectContextKey struct{}

// ContextWithSubject attaches the authenticated subject to a context.
func ContextWithSubject(ctx context.Context, s *Subject) context.Context {
	return context.WithValue(ctx, subjectContextKey{}, s)
}

// SubjectFromContext returns the authenticated subject, or nil when the
// request was not authenticated.
func SubjectFromContext(ctx context.Context) *Subject {
	if s, ok := ctx.Value(subjectContextKey{}).(*Subject); ok {
		return s
	}
	return nil
}

// tokenCookieName is the fallback cookie checked when no Authorization
// header is present. Lets the SPA use an httpOnly cookie instead of
// holding the token in script-reachable storage.
const tokenCookieName = "echolog_token"

// extractBearerToken pulls the token out of the Authorization header,
// falling back to the token cookie.
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
		return ""
	}

	if cookie, err := r.Cookie(tokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// NoneAuthenticator authenticates every request as a fixed development
// subject. Refused in production by config validation.
type NoneAuthenticator struct{}

// Authenticate returns the fixed development subject.
func (NoneAuthenticator) Authenticate(_ context.Context, _ *http.Request) (*Subject, error) {
	return &Subject{UserID: "dev|local", Username: "dev", Name: "Local Developer", Role: "admin"}, nil
}

// Name returns the authenticator name.
func (NoneAuthenticator) Name() string { return "none" }

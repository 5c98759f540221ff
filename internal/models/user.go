// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package models

import "time"

// User roles. The local admin login always carries RoleAdmin; subjects
// from an external issuer default to RoleUser.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is the local projection of an authenticated subject. Rows are
// upserted lazily on first sight of a subject; identity itself lives at
// the token issuer (or in config for the local admin).
type User struct {
	ID          string    `json:"id"`      // internal UUID
	Subject     string    `json:"subject"` // token subject, e.g. "auth0|abc123"
	Username    string    `json:"username"`
	Email       *string   `json:"email,omitempty"`
	DisplayName *string   `json:"display_name,omitempty"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

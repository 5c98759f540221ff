// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/echolog/internal/models"
)

// UpsertUserBySubject creates or refreshes the user row for an
// authenticated subject and bumps last_seen_at. Called by the auth
// middleware on first sight of a subject, so it must stay a single
// cheap statement. Entry rows are scoped by the subject itself; the
// users table is a projection for display and role lookups.
func (db *DB) UpsertUserBySubject(ctx context.Context, subject, username, role string, email, displayName *string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	now := time.Now().UTC()
	_, err := db.conn.ExecContext(ctx, `INSERT INTO users (id, subject, username, email, display_name, role, created_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (subject) DO UPDATE SET
			last_seen_at = EXCLUDED.last_seen_at,
			username = CASE WHEN EXCLUDED.username != '' THEN EXCLUDED.username ELSE users.username END,
			email = COALESCE(EXCLUDED.email, users.email),
			display_name = COALESCE(EXCLUDED.display_name, users.display_name)`,
		uuid.NewString(), subject, username, email, displayName, role, now, now)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

const userSelectColumns = `id, subject, username, email, display_name, role, created_at, last_seen_at`

// GetUserBySubject returns the stored projection for an auth subject.
func (db *DB) GetUserBySubject(ctx context.Context, subject string) (*models.User, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userSelectColumns+` FROM users WHERE subject = ?`, subject)
	return scanUser(row)
}

// GetUser returns a user by internal ID.
func (db *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userSelectColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func scanUser(row scanTarget) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Subject, &u.Username, &u.Email, &u.DisplayName, &u.Role, &u.CreatedAt, &u.LastSeenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// ListUserIDsWithEntriesBetween returns the IDs of users who journaled in
// [start, end). The weekly scheduler uses this to know whose summaries
// to generate.
func (db *DB) ListUserIDsWithEntriesBetween(ctx context.Context, start, end time.Time) ([]string, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM entries WHERE created_at >= ? AND created_at < ? ORDER BY user_id`,
		start, end)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

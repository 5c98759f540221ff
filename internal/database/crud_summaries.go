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

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/echolog/internal/models"
)

// UpsertWeeklySummary inserts or replaces the summary for (user, year, week).
// On regeneration the existing share token is preserved so previously
// shared links keep working; the caller's token is only used for new rows.
func (db *DB) UpsertWeeklySummary(ctx context.Context, s *models.WeeklySummary) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.GeneratedAt.IsZero() {
		s.GeneratedAt = time.Now().UTC()
	}

	categoriesJSON, err := json.Marshal(s.Categories)
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}
	topActivitiesJSON, err := json.Marshal(s.TopActivities)
	if err != nil {
		return fmt.Errorf("marshal top activities: %w", err)
	}
	highlightsJSON, err := json.Marshal(s.Highlights)
	if err != nil {
		return fmt.Errorf("marshal highlights: %w", err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert summary: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Keep the prior share token and id if this week was generated
	// before. The existence check runs in the same transaction as the
	// write, so the update-or-insert branch below cannot race a second
	// generation of the same week.
	var existingID uuid.UUID
	var existingToken string
	err = tx.QueryRowContext(ctx,
		`SELECT id, share_token FROM weekly_summaries WHERE user_id = ? AND year = ? AND week = ?`,
		s.UserID, s.Year, s.Week).Scan(&existingID, &existingToken)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `INSERT INTO weekly_summaries (
			id, user_id, year, week, week_start, week_end,
			entry_count, activity_count, total_duration_secs,
			categories_json, top_activities_json,
			narrative, phase, highlights_json, audio_url, share_token, generated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, s.UserID, s.Year, s.Week, s.WeekStart, s.WeekEnd,
			s.EntryCount, s.ActivityCount, s.TotalDurationSecs,
			string(categoriesJSON), string(topActivitiesJSON),
			s.Narrative, s.Phase, string(highlightsJSON), s.AudioURL, s.ShareToken, s.GeneratedAt,
		)
		if err != nil {
			return fmt.Errorf("insert summary: %w", err)
		}
	case err != nil:
		return fmt.Errorf("check existing summary: %w", err)
	default:
		s.ID = existingID
		s.ShareToken = existingToken
		_, err = tx.ExecContext(ctx, `UPDATE weekly_summaries SET
			week_start = ?, week_end = ?,
			entry_count = ?, activity_count = ?, total_duration_secs = ?,
			categories_json = ?, top_activities_json = ?,
			narrative = ?, phase = ?, highlights_json = ?,
			audio_url = ?, generated_at = ?
		WHERE id = ?`,
			s.WeekStart, s.WeekEnd,
			s.EntryCount, s.ActivityCount, s.TotalDurationSecs,
			string(categoriesJSON), string(topActivitiesJSON),
			s.Narrative, s.Phase, string(highlightsJSON),
			s.AudioURL, s.GeneratedAt, s.ID,
		)
		if err != nil {
			return fmt.Errorf("update summary: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert summary: %w", err)
	}
	return nil
}

// GetWeeklySummary returns the summary for the given user and ISO week.
func (db *DB) GetWeeklySummary(ctx context.Context, userID string, year, week int) (*models.WeeklySummary, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, summarySelectColumns+
		` FROM weekly_summaries WHERE user_id = ? AND year = ? AND week = ?`,
		userID, year, week)
	return scanSummary(row)
}

// GetWeeklySummaryByShareToken returns a summary via its public share
// token. No user scoping: share links are deliberately cross-user readable.
func (db *DB) GetWeeklySummaryByShareToken(ctx context.Context, token string) (*models.WeeklySummary, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, summarySelectColumns+
		` FROM weekly_summaries WHERE share_token = ?`, token)
	return scanSummary(row)
}

// ListWeeklySummaries returns the user's summaries, newest week first.
func (db *DB) ListWeeklySummaries(ctx context.Context, userID string, limit int) ([]*models.WeeklySummary, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	rows, err := db.conn.QueryContext(ctx, summarySelectColumns+
		` FROM weekly_summaries WHERE user_id = ? ORDER BY year DESC, week DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*models.WeeklySummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// SetSummaryAudioURL attaches the TTS narration URL after generation.
func (db *DB) SetSummaryAudioURL(ctx context.Context, summaryID uuid.UUID, audioURL string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE weekly_summaries SET audio_url = ? WHERE id = ?`, audioURL, summaryID)
	if err != nil {
		return fmt.Errorf("set summary audio: %w", err)
	}
	return requireRowAffected(res, ErrSummaryNotFound)
}

const summarySelectColumns = `SELECT
	id, user_id, year, week, week_start, week_end,
	entry_count, activity_count, total_duration_secs,
	categories_json, top_activities_json,
	narrative, phase, highlights_json, audio_url, share_token, generated_at`

// scanSummary scans one weekly_summaries row in the canonical column order.
func scanSummary(row scanTarget) (*models.WeeklySummary, error) {
	var s models.WeeklySummary
	var categoriesJSON, topActivitiesJSON, highlightsJSON string

	err := row.Scan(
		&s.ID, &s.UserID, &s.Year, &s.Week, &s.WeekStart, &s.WeekEnd,
		&s.EntryCount, &s.ActivityCount, &s.TotalDurationSecs,
		&categoriesJSON, &topActivitiesJSON,
		&s.Narrative, &s.Phase, &highlightsJSON, &s.AudioURL, &s.ShareToken, &s.GeneratedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSummaryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan summary: %w", err)
	}

	if err := json.Unmarshal([]byte(categoriesJSON), &s.Categories); err != nil {
		return nil, fmt.Errorf("unmarshal categories: %w", err)
	}
	if err := json.Unmarshal([]byte(topActivitiesJSON), &s.TopActivities); err != nil {
		return nil, fmt.Errorf("unmarshal top activities: %w", err)
	}
	if err := json.Unmarshal([]byte(highlightsJSON), &s.Highlights); err != nil {
		return nil, fmt.Errorf("unmarshal highlights: %w", err)
	}
	return &s, nil
}

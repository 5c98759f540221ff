// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/echolog/internal/metrics"
	"github.com/tomtom215/echolog/internal/models"
)

// trackerWindowQuery aggregates activities over the newest N entries that
// have at least one activity. Entries still awaiting transcription or
// classification carry no activities and are invisible to the window.
const trackerWindowQuery = `
WITH window_entries AS (
	SELECT e.id, e.created_at
	FROM entries e
	WHERE e.user_id = ?
	  AND EXISTS (SELECT 1 FROM entry_activities a WHERE a.entry_id = e.id)
	ORDER BY e.created_at DESC, e.id DESC
	LIMIT ?
)
SELECT a.category, COUNT(*) AS activity_count, SUM(a.points) AS points
FROM entry_activities a
JOIN window_entries w ON a.entry_id = w.id
GROUP BY a.category`

const trackerEntryCountQuery = `
SELECT COUNT(*) FROM (
	SELECT e.id
	FROM entries e
	WHERE e.user_id = ?
	  AND EXISTS (SELECT 1 FROM entry_activities a WHERE a.entry_id = e.id)
	ORDER BY e.created_at DESC, e.id DESC
	LIMIT ?
)`

// GetActivityTracker aggregates the rolling activity tracker for a user
// over the most recent windowSize classified entries. The result always
// carries all five categories in display order, zero-filled where the
// window has no activity. Percentages are point shares.
func (db *DB) GetActivityTracker(ctx context.Context, userID string, windowSize int) (*models.ActivityTracker, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()

	stmt, err := db.getPreparedStmt(ctx, trackerWindowQuery)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, userID, windowSize)
	metrics.RecordDBQuery("select", "entry_activities", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("compute tracker: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Category]int)
	points := make(map[models.Category]int)
	for rows.Next() {
		var rawCategory string
		var count, pts int
		if err := rows.Scan(&rawCategory, &count, &pts); err != nil {
			return nil, fmt.Errorf("scan tracker row: %w", err)
		}
		cat := models.ParseCategory(rawCategory)
		counts[cat] += count
		points[cat] += pts
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracker rows: %w", err)
	}

	tracker := &models.ActivityTracker{
		UserID:     userID,
		WindowSize: windowSize,
		ComputedAt: time.Now().UTC(),
	}

	for _, cat := range models.AllCategories {
		tracker.ActivityCount += counts[cat]
		tracker.TotalPoints += points[cat]
	}

	tracker.Categories = make([]models.CategoryStat, 0, len(models.AllCategories))
	for _, cat := range models.AllCategories {
		stat := models.CategoryStat{
			Category:      cat,
			ActivityCount: counts[cat],
			Points:        points[cat],
		}
		if tracker.TotalPoints > 0 {
			stat.Percent = float64(stat.Points) / float64(tracker.TotalPoints) * 100
		}
		tracker.Categories = append(tracker.Categories, stat)

		// Ties resolve to the earlier category in display order
		if stat.Points > 0 {
			if tracker.DominantCategory == "" || stat.Points > pointsOf(tracker.Categories, tracker.DominantCategory) {
				tracker.DominantCategory = cat
			}
		}
	}
	tracker.Phase = models.PhaseForCategory(tracker.DominantCategory)

	countStmt, err := db.getPreparedStmt(ctx, trackerEntryCountQuery)
	if err != nil {
		return nil, err
	}
	if err := countStmt.QueryRowContext(ctx, userID, windowSize).Scan(&tracker.EntryCount); err != nil {
		return nil, fmt.Errorf("count tracker entries: %w", err)
	}

	return tracker, nil
}

// pointsOf finds the points of a category in an already-built stat slice.
func pointsOf(stats []models.CategoryStat, cat models.Category) int {
	for _, s := range stats {
		if s.Category == cat {
			return s.Points
		}
	}
	return 0
}

// WeeklyMetrics computes the aggregates a weekly summary is built from:
// entry/activity counts, total recorded audio duration, category stats
// and the most frequent activity names in [start, end).
func (db *DB) WeeklyMetrics(ctx context.Context, userID string, start, end time.Time) (*models.WeeklyMetrics, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT a.category, COUNT(*) AS activity_count, SUM(a.points) AS points
		FROM entry_activities a
		JOIN entries e ON a.entry_id = e.id
		WHERE e.user_id = ? AND e.created_at >= ? AND e.created_at < ?
		GROUP BY a.category`,
		userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("aggregate categories: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Category]int)
	points := make(map[models.Category]int)
	for rows.Next() {
		var rawCategory string
		var count, pts int
		if err := rows.Scan(&rawCategory, &count, &pts); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		cat := models.ParseCategory(rawCategory)
		counts[cat] += count
		points[cat] += pts
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	m := &models.WeeklyMetrics{}
	totalPoints := 0
	for _, cat := range models.AllCategories {
		m.ActivityCount += counts[cat]
		totalPoints += points[cat]
	}

	m.Categories = make([]models.CategoryStat, 0, len(models.AllCategories))
	for _, cat := range models.AllCategories {
		stat := models.CategoryStat{
			Category:      cat,
			ActivityCount: counts[cat],
			Points:        points[cat],
		}
		if totalPoints > 0 {
			stat.Percent = float64(stat.Points) / float64(totalPoints) * 100
		}
		m.Categories = append(m.Categories, stat)
	}

	err = db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(duration_secs), 0) FROM entries WHERE user_id = ? AND created_at >= ? AND created_at < ?`,
		userID, start, end).Scan(&m.EntryCount, &m.TotalDurationSecs)
	if err != nil {
		return nil, fmt.Errorf("count week entries: %w", err)
	}

	top, err := db.topActivitiesBetween(ctx, userID, start, end, 5)
	if err != nil {
		return nil, err
	}
	m.TopActivities = top

	return m, nil
}

// topActivitiesBetween ranks activity names by frequency within a window.
// Names are compared case-insensitively so "Morning Run" and "morning run"
// count as one activity.
func (db *DB) topActivitiesBetween(ctx context.Context, userID string, start, end time.Time, limit int) ([]models.TopActivity, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT MIN(a.name) AS name, MIN(a.category) AS category, COUNT(*) AS cnt
		FROM entry_activities a
		JOIN entries e ON a.entry_id = e.id
		WHERE e.user_id = ? AND e.created_at >= ? AND e.created_at < ?
		GROUP BY LOWER(a.name)
		ORDER BY cnt DESC, name
		LIMIT ?`,
		userID, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("top activities: %w", err)
	}
	defer rows.Close()

	var top []models.TopActivity
	for rows.Next() {
		var t models.TopActivity
		var rawCategory string
		if err := rows.Scan(&t.Name, &rawCategory, &t.Count); err != nil {
			return nil, fmt.Errorf("scan top activity: %w", err)
		}
		t.Category = models.ParseCategory(rawCategory)
		top = append(top, t)
	}
	return top, rows.Err()
}

// ListEntriesBetween returns all of a user's entries in [start, end),
// oldest first, with activities attached. Used to build the narrative
// prompt for weekly summaries.
func (db *DB) ListEntriesBetween(ctx context.Context, userID string, start, end time.Time) ([]*models.Entry, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT
		id, user_id, title, transcript, audio_url, duration_secs,
		transcription_status, transcription_job_id, transcription_error,
		mood, created_at, updated_at
	FROM entries
	WHERE user_id = ? AND created_at >= ? AND created_at < ?
	ORDER BY created_at, id`, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list week entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := db.attachActivities(ctx, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

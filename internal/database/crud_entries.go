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

	"github.com/tomtom215/echolog/internal/metrics"
	"github.com/tomtom215/echolog/internal/models"
)

// InsertEntry inserts a new journal entry together with any activities
// already extracted for it. Entry and activities commit atomically.
func (db *DB) InsertEntry(ctx context.Context, entry *models.Entry) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	start := time.Now()
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert entry: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO entries (
		id, user_id, title, transcript, audio_url, duration_secs,
		transcription_status, transcription_job_id, transcription_error,
		mood, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.Title, entry.Transcript, entry.AudioURL, entry.DurationSecs,
		entry.TranscriptionStatus, entry.TranscriptionJobID, entry.TranscriptionError,
		entry.Mood, entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		metrics.RecordDBQuery("insert", "entries", time.Since(start), err)
		return fmt.Errorf("insert entry: %w", err)
	}

	if err := insertActivitiesTx(ctx, tx, entry.ID, entry.UserID, entry.Activities); err != nil {
		return err
	}

	err = tx.Commit()
	metrics.RecordDBQuery("insert", "entries", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("commit insert entry: %w", err)
	}
	return nil
}

// insertActivitiesTx inserts activities for an entry inside an open transaction.
func insertActivitiesTx(ctx context.Context, tx *sql.Tx, entryID uuid.UUID, userID string, activities []models.Activity) error {
	for i := range activities {
		a := &activities[i]
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		a.EntryID = entryID

		if a.Points == 0 {
			a.Points = a.Category.Weight()
		}

		_, err := tx.ExecContext(ctx, `INSERT INTO entry_activities (
			id, entry_id, user_id, name, category, points
		) VALUES (?, ?, ?, ?, ?, ?)`,
			a.ID, a.EntryID, userID, a.Name, a.Category, a.Points,
		)
		if err != nil {
			return fmt.Errorf("insert activity %q: %w", a.Name, err)
		}
	}
	return nil
}

// ReplaceEntryActivities atomically swaps an entry's activities for the
// given set. Used when classification completes after the entry row
// already exists (the voice pipeline) and on reclassification.
func (db *DB) ReplaceEntryActivities(ctx context.Context, entryID uuid.UUID, userID string, activities []models.Activity) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace activities: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entry_activities WHERE entry_id = ?`, entryID); err != nil {
		return fmt.Errorf("clear activities: %w", err)
	}

	if err := insertActivitiesTx(ctx, tx, entryID, userID, activities); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE entries SET updated_at = ? WHERE id = ?`, time.Now().UTC(), entryID); err != nil {
		return fmt.Errorf("touch entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace activities: %w", err)
	}
	return nil
}

// GetEntry returns a single entry with its activities. Returns
// ErrEntryNotFound when the entry does not exist or belongs to another user.
func (db *DB) GetEntry(ctx context.Context, userID string, entryID uuid.UUID) (*models.Entry, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `SELECT
		id, user_id, title, transcript, audio_url, duration_secs,
		transcription_status, transcription_job_id, transcription_error,
		mood, created_at, updated_at
	FROM entries WHERE id = ? AND user_id = ?`, entryID, userID)

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("get entry: %w", err)
	}

	if err := db.attachActivities(ctx, []*models.Entry{entry}); err != nil {
		return nil, err
	}
	return entry, nil
}

// ListEntriesOptions controls ListEntries filtering and pagination.
// Cursor and Offset are alternatives; when both are set the cursor wins
// since it is the stable one under concurrent writes.
type ListEntriesOptions struct {
	Limit    int
	Cursor   string           // opaque keyset cursor, empty for first page
	Offset   int              // plain offset pagination, ignored when Cursor is set
	From     *time.Time       // inclusive lower bound on created_at
	To       *time.Time       // exclusive upper bound on created_at
	Category *models.Category // only entries having an activity in this category
}

// ListEntries returns a page of the user's entries, newest first, with a
// cursor for the next page. The returned cursor is empty on the last page.
func (db *DB) ListEntries(ctx context.Context, userID string, opts ListEntriesOptions) ([]*models.Entry, string, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT
		e.id, e.user_id, e.title, e.transcript, e.audio_url, e.duration_secs,
		e.transcription_status, e.transcription_job_id, e.transcription_error,
		e.mood, e.created_at, e.updated_at
	FROM entries e
	WHERE e.user_id = ?`
	args := []interface{}{userID}

	if opts.Cursor != "" {
		afterTime, afterID, err := DecodeCursor(opts.Cursor)
		if err != nil {
			return nil, "", err
		}
		// google/uuid binds through driver.Valuer as a string, and DuckDB
		// will not compare a (TIMESTAMP, UUID) row value against
		// (TIMESTAMP, VARCHAR) without an explicit cast.
		query += ` AND (e.created_at, e.id) < (?, CAST(? AS UUID))`
		args = append(args, afterTime, afterID)
	}

	if opts.From != nil {
		query += ` AND e.created_at >= ?`
		args = append(args, opts.From.UTC())
	}
	if opts.To != nil {
		query += ` AND e.created_at < ?`
		args = append(args, opts.To.UTC())
	}

	if opts.Category != nil {
		query += ` AND EXISTS (
			SELECT 1 FROM entry_activities a
			WHERE a.entry_id = e.id AND a.category = ?
		)`
		args = append(args, *opts.Category)
	}

	// Fetch one extra row to detect whether another page exists
	query += ` ORDER BY e.created_at DESC, e.id DESC LIMIT ?`
	args = append(args, limit+1)

	if opts.Cursor == "" && opts.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, opts.Offset)
	}

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("select", "entries", time.Since(start), err)
	if err != nil {
		return nil, "", fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, "", fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("iterate entries: %w", err)
	}

	nextCursor := ""
	if len(entries) > limit {
		entries = entries[:limit]
		last := entries[len(entries)-1]
		nextCursor = EncodeCursor(last.CreatedAt, last.ID)
	}

	if err := db.attachActivities(ctx, entries); err != nil {
		return nil, "", err
	}
	return entries, nextCursor, nil
}

// EntryUpdate describes a partial edit to an entry. Nil fields are left
// untouched.
type EntryUpdate struct {
	Title      *string
	Transcript *string
	Mood       *string
}

// UpdateEntry applies a partial user edit. Callers are expected to
// trigger reclassification when the transcript changed.
func (db *DB) UpdateEntry(ctx context.Context, userID string, entryID uuid.UUID, update EntryUpdate) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	set := "updated_at = ?"
	args := []interface{}{time.Now().UTC()}

	if update.Title != nil {
		set += ", title = ?"
		args = append(args, *update.Title)
	}
	if update.Transcript != nil {
		set += ", transcript = ?"
		args = append(args, *update.Transcript)
	}
	if update.Mood != nil {
		set += ", mood = ?"
		args = append(args, *update.Mood)
	}
	args = append(args, entryID, userID)

	res, err := db.conn.ExecContext(ctx,
		`UPDATE entries SET `+set+` WHERE id = ? AND user_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	return requireRowAffected(res, ErrEntryNotFound)
}

// UpdateEntryTranscription advances an entry's transcription lifecycle.
// On completion the transcript replaces the entry text.
func (db *DB) UpdateEntryTranscription(ctx context.Context, entryID uuid.UUID, status models.TranscriptionStatus, transcript string, jobID, transcriptionErr *string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var res sql.Result
	var err error
	if status == models.TranscriptionCompleted {
		res, err = db.conn.ExecContext(ctx,
			`UPDATE entries SET transcription_status = ?, transcription_job_id = ?, transcription_error = NULL, transcript = ?, updated_at = ? WHERE id = ?`,
			status, jobID, transcript, time.Now().UTC(), entryID)
	} else {
		res, err = db.conn.ExecContext(ctx,
			`UPDATE entries SET transcription_status = ?, transcription_job_id = ?, transcription_error = ?, updated_at = ? WHERE id = ?`,
			status, jobID, transcriptionErr, time.Now().UTC(), entryID)
	}
	if err != nil {
		return fmt.Errorf("update transcription: %w", err)
	}
	return requireRowAffected(res, ErrEntryNotFound)
}

// SetEntryMood records the classifier's inferred mood label.
func (db *DB) SetEntryMood(ctx context.Context, entryID uuid.UUID, mood string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE entries SET mood = ?, updated_at = ? WHERE id = ?`,
		mood, time.Now().UTC(), entryID)
	if err != nil {
		return fmt.Errorf("set mood: %w", err)
	}
	return requireRowAffected(res, ErrEntryNotFound)
}

// DeleteEntry removes an entry and its activities.
func (db *DB) DeleteEntry(ctx context.Context, userID string, entryID uuid.UUID) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete entry: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE id = ? AND user_id = ?`, entryID, userID)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if err := requireRowAffected(res, ErrEntryNotFound); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM entry_activities WHERE entry_id = ?`, entryID); err != nil {
		return fmt.Errorf("delete entry activities: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete entry: %w", err)
	}
	return nil
}

// CountEntries returns the user's total entry count.
func (db *DB) CountEntries(ctx context.Context, userID string) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var count int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return count, nil
}

// scanTarget abstracts *sql.Row and *sql.Rows for shared scan code.
type scanTarget interface {
	Scan(dest ...interface{}) error
}

// scanEntry scans one entries row in the canonical column order.
func scanEntry(row scanTarget) (*models.Entry, error) {
	var e models.Entry
	err := row.Scan(
		&e.ID, &e.UserID, &e.Title, &e.Transcript, &e.AudioURL, &e.DurationSecs,
		&e.TranscriptionStatus, &e.TranscriptionJobID, &e.TranscriptionError,
		&e.Mood, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Activities = []models.Activity{}
	return &e, nil
}

// ListActivitiesForEntries loads activities for a batch of entry IDs in
// one query, keyed by entry.
func (db *DB) ListActivitiesForEntries(ctx context.Context, entryIDs []uuid.UUID) (map[uuid.UUID][]models.Activity, error) {
	result := make(map[uuid.UUID][]models.Activity, len(entryIDs))
	if len(entryIDs) == 0 {
		return result, nil
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	placeholders := ""
	args := make([]interface{}, 0, len(entryIDs))
	for i, id := range entryIDs {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args = append(args, id)
	}

	query := `SELECT id, entry_id, name, category, points
		FROM entry_activities WHERE entry_id IN (` + placeholders + `) ORDER BY created_at, id`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load activities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a models.Activity
		var rawCategory string
		if err := rows.Scan(&a.ID, &a.EntryID, &a.Name, &rawCategory, &a.Points); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.Category = models.ParseCategory(rawCategory)
		result[a.EntryID] = append(result[a.EntryID], a)
	}
	return result, rows.Err()
}

// attachActivities hangs loaded activities off a batch of entries.
func (db *DB) attachActivities(ctx context.Context, entries []*models.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}

	byEntry, err := db.ListActivitiesForEntries(ctx, ids)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if activities, ok := byEntry[e.ID]; ok {
			e.Activities = activities
		}
	}
	return nil
}

// requireRowAffected converts a zero-row update into notFound.
func requireRowAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

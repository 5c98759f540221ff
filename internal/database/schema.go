// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

/*
schema.go - Database Schema Management

This file manages the DuckDB database schema including table creation
and index management.

Tables:
  - users: Local projection of authenticated subjects
  - entries: Journal entries (text and voice) with transcription lifecycle
  - entry_activities: Classified activities extracted from entries
  - weekly_summaries: One row per user per ISO week

Schema Strategy (Pre-Release):
All columns are defined in the initial CREATE TABLE statements. Versioned
migrations in migrations.go stay empty until the first public release;
after release, schema changes go there instead.

Index Strategy:
Indexes cover the keyset pagination order (user_id, created_at DESC, id),
the tracker window scan, and the per-week summary lookup.
*/

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}

	return nil
}

// tableCreationQueries returns the table creation SQL statements
func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			subject TEXT NOT NULL UNIQUE,
			username TEXT NOT NULL DEFAULT '',
			email TEXT,
			display_name TEXT,
			role TEXT NOT NULL DEFAULT 'user',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_seen_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS entries (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			transcript TEXT NOT NULL,
			audio_url TEXT,
			duration_secs INTEGER NOT NULL DEFAULT 0,
			transcription_status TEXT NOT NULL DEFAULT 'skipped',
			transcription_job_id TEXT,
			transcription_error TEXT,
			mood TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS entry_activities (
			id UUID PRIMARY KEY,
			entry_id UUID NOT NULL,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			points INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS weekly_summaries (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL,
			year INTEGER NOT NULL,
			week INTEGER NOT NULL,
			week_start TIMESTAMP NOT NULL,
			week_end TIMESTAMP NOT NULL,
			entry_count INTEGER NOT NULL DEFAULT 0,
			activity_count INTEGER NOT NULL DEFAULT 0,
			total_duration_secs INTEGER NOT NULL DEFAULT 0,
			categories_json TEXT NOT NULL DEFAULT '[]',
			top_activities_json TEXT NOT NULL DEFAULT '[]',
			narrative TEXT NOT NULL DEFAULT '',
			phase TEXT NOT NULL DEFAULT '',
			highlights_json TEXT NOT NULL DEFAULT '[]',
			audio_url TEXT,
			share_token TEXT NOT NULL,
			generated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, year, week)
		)`,
	}
}

// createIndexes creates indexes for common query patterns
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		// Keyset pagination and tracker window scans
		`CREATE INDEX IF NOT EXISTS idx_entries_user_created ON entries (user_id, created_at DESC, id)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_status ON entries (transcription_status)`,

		// Activity lookups per entry and per user window
		`CREATE INDEX IF NOT EXISTS idx_activities_entry ON entry_activities (entry_id)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_user ON entry_activities (user_id, category)`,

		// Summary lookups by week and by share token
		`CREATE INDEX IF NOT EXISTS idx_summaries_user_week ON weekly_summaries (user_id, year, week)`,
		`CREATE INDEX IF NOT EXISTS idx_summaries_share_token ON weekly_summaries (share_token)`,
	}

	for _, query := range indexes {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", query, err)
		}
	}

	return nil
}

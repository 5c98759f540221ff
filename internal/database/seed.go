// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/echolog/internal/logging"
	"github.com/tomtom215/echolog/internal/models"
)

// seedMockData populates the database with demo journal data for local
// development (SEED_MOCK_DATA=true). Idempotent: skips when entries exist.
func (db *DB) seedMockData() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const demoUser = "demo|local"

	count, err := db.CountEntries(ctx, demoUser)
	if err != nil {
		return err
	}
	if count > 0 {
		logging.Debug().Msg("Mock data already seeded, skipping")
		return nil
	}

	if err := db.UpsertUserBySubject(ctx, demoUser, "demo", models.RoleUser, strPtr("demo@example.com"), strPtr("Demo User")); err != nil {
		return err
	}

	type seedActivity struct {
		name     string
		category models.Category
	}
	seeds := []struct {
		title      string
		transcript string
		mood       string
		daysAgo    int
		activities []seedActivity
	}{
		{
			title:      "Run and reports",
			transcript: "Went for a morning run before standup, then spent the afternoon deep in the quarterly report.",
			mood:       "energized", daysAgo: 1,
			activities: []seedActivity{
				{"morning run", models.CategoryHealth},
				{"quarterly report", models.CategoryWork},
			},
		},
		{
			title:      "Study evening",
			transcript: "Finished two chapters of the Go book and watched a series in the evening.",
			mood:       "content", daysAgo: 2,
			activities: []seedActivity{
				{"reading Go book", models.CategoryGrowth},
				{"watching series", models.CategoryConsumption},
			},
		},
		{
			title:      "Meeting marathon",
			transcript: "Long day of meetings. Squeezed in a guitar practice session before bed.",
			mood:       "tired", daysAgo: 3,
			activities: []seedActivity{
				{"meetings", models.CategoryWork},
				{"guitar practice", models.CategoryGrowth},
			},
		},
		{
			title:      "Rest day",
			transcript: "Rest day. Meal prepped for the week and called my parents.",
			mood:       "calm", daysAgo: 4,
			activities: []seedActivity{
				{"meal prep", models.CategoryHealth},
				{"family call", models.CategoryOther},
			},
		},
	}

	for _, s := range seeds {
		entry := &models.Entry{
			UserID:              demoUser,
			Title:               s.title,
			Transcript:          s.transcript,
			Mood:                strPtr(s.mood),
			TranscriptionStatus: models.TranscriptionSkipped,
			CreatedAt:           time.Now().UTC().AddDate(0, 0, -s.daysAgo),
		}
		for _, a := range s.activities {
			entry.Activities = append(entry.Activities, models.Activity{
				Name:     a.name,
				Category: a.category,
			})
		}
		if err := db.InsertEntry(ctx, entry); err != nil {
			return fmt.Errorf("seed entry: %w", err)
		}
	}

	logging.Info().Int("entries", len(seeds)).Msg("Seeded mock journal data")
	return nil
}

func strPtr(s string) *string { return &s }

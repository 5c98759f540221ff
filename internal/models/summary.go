// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WeeklySummary captures one ISO week of a user's journal as an AI narrative
// plus category aggregates. Summaries are generated by the Monday scheduler
// and can be regenerated on demand; regeneration replaces the narrative but
// keeps the share token stable so existing share links survive.
type WeeklySummary struct {
	ID     uuid.UUID `json:"id"`
	UserID string    `json:"user_id"`

	// ISO 8601 week identification
	Year int `json:"year"`
	Week int `json:"week"` // 1-53

	WeekStart time.Time `json:"week_start"` // Monday 00:00 UTC
	WeekEnd   time.Time `json:"week_end"`   // next Monday 00:00 UTC, exclusive

	EntryCount        int            `json:"entry_count"`
	ActivityCount     int            `json:"activity_count"`
	TotalDurationSecs int            `json:"total_duration_secs"`
	Categories        []CategoryStat `json:"categories"`

	// TopActivities are the most frequent activity names of the week,
	// most frequent first.
	TopActivities []TopActivity `json:"top_activities,omitempty"`

	// Narrative is the LLM-written recap of the week
	Narrative string `json:"narrative"`

	// Phase is the LLM's 2-4 word label for the week
	Phase string `json:"phase"`

	// Highlights are 3-5 short bullet points pulled from the narrative pass
	Highlights []string `json:"highlights,omitempty"`

	// AudioURL points at the optional TTS narration of the narrative
	AudioURL *string `json:"audio_url,omitempty"`

	// ShareToken makes the summary reachable without authentication at
	// the public share endpoint. Stable across regenerations.
	ShareToken string `json:"share_token"`

	GeneratedAt time.Time `json:"generated_at"`
}

// TopActivity is one ranked activity name in a weekly summary.
type TopActivity struct {
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Count    int      `json:"count"`
}

// WeeklyMetrics holds the aggregates a summary is built from.
type WeeklyMetrics struct {
	EntryCount        int            `json:"entry_count"`
	ActivityCount     int            `json:"activity_count"`
	TotalDurationSecs int            `json:"total_duration_secs"`
	Categories        []CategoryStat `json:"categories"`
	TopActivities     []TopActivity  `json:"top_activities"`
}

// WeekKey returns the canonical "2026-W35" identifier for the summary's week.
func (s *WeeklySummary) WeekKey() string {
	return FormatWeekKey(s.Year, s.Week)
}

// FormatWeekKey renders an ISO year and week as "YYYY-Www".
func FormatWeekKey(year, week int) string {
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// ISOWeekBounds returns the UTC start (Monday 00:00) and exclusive end of
// the given ISO week.
func ISOWeekBounds(year, week int) (start, end time.Time) {
	// Jan 4 is always in ISO week 1
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	week1Monday := jan4.AddDate(0, 0, 1-weekday)
	start = week1Monday.AddDate(0, 0, (week-1)*7)
	end = start.AddDate(0, 0, 7)
	return start, end
}

// PreviousISOWeek returns the ISO year and week immediately before the
// week containing t.
func PreviousISOWeek(t time.Time) (year, week int) {
	return t.UTC().AddDate(0, 0, -7).ISOWeek()
}

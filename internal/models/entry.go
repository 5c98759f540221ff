// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

// Package models defines data structures used throughout the Echolog application.
// These models represent journal entries, extracted activities, tracker aggregates,
// weekly summaries, and API responses.

package models

import (
	"time"

	"github.com/google/uuid"
)

// Category classifies an extracted activity into one of five fixed buckets.
type Category string

// The five activity categories. Every activity the classifier emits is
// mapped onto exactly one of these; anything unrecognized becomes Other.
const (
	CategoryGrowth      Category = "growth"      // learning, skill building, personal development
	CategoryHealth      Category = "health"      // exercise, sleep, nutrition, mental health
	CategoryWork        Category = "work"        // job tasks, meetings, professional output
	CategoryConsumption Category = "consumption" // passive intake: TV, scrolling, gaming
	CategoryOther       Category = "other"       // everything that fits nowhere else
)

// CategoryWeights maps each category to its scoring weight. Growth and
// health score highest, passive consumption lowest. Weighted scores feed
// the tracker's productivity index.
var CategoryWeights = map[Category]int{
	CategoryGrowth:      3,
	CategoryHealth:      3,
	CategoryWork:        2,
	CategoryConsumption: 1,
	CategoryOther:       1,
}

// AllCategories lists every category in display order.
var AllCategories = []Category{
	CategoryGrowth,
	CategoryHealth,
	CategoryWork,
	CategoryConsumption,
	CategoryOther,
}

// ParseCategory normalizes a raw classifier label to a known Category.
// Unknown labels map to CategoryOther rather than failing the entry.
func ParseCategory(raw string) Category {
	switch Category(raw) {
	case CategoryGrowth, CategoryHealth, CategoryWork, CategoryConsumption, CategoryOther:
		return Category(raw)
	default:
		return CategoryOther
	}
}

// Weight returns the scoring weight for the category.
func (c Category) Weight() int {
	if w, ok := CategoryWeights[c]; ok {
		return w
	}
	return CategoryWeights[CategoryOther]
}

// TranscriptionStatus tracks the lifecycle of an entry's speech-to-text job.
type TranscriptionStatus string

const (
	TranscriptionPending    TranscriptionStatus = "pending"
	TranscriptionProcessing TranscriptionStatus = "processing"
	TranscriptionCompleted  TranscriptionStatus = "completed"
	TranscriptionFailed     TranscriptionStatus = "failed"
	TranscriptionSkipped    TranscriptionStatus = "skipped" // text-only entries never transcribe
)

// Entry represents a single journal entry.
//
// An entry is created either from typed text or from an uploaded voice note.
// Voice entries carry the Cloudinary audio URL and move through the
// transcription lifecycle; once a transcript exists, activities are extracted
// and the entry becomes visible to the tracker aggregation.
type Entry struct {
	ID     uuid.UUID `json:"id"`
	UserID string    `json:"user_id"`

	// Content. Transcript holds either the typed text or the finished
	// speech-to-text output.
	Title        string  `json:"title"`
	Transcript   string  `json:"transcript"`
	AudioURL     *string `json:"audio_url,omitempty"` // Cloudinary secure URL, voice entries only
	DurationSecs int     `json:"duration_secs"`       // audio length, 0 for typed entries

	// Transcription lifecycle (voice entries)
	TranscriptionStatus TranscriptionStatus `json:"transcription_status"`
	TranscriptionJobID  *string             `json:"transcription_job_id,omitempty"`
	TranscriptionError  *string             `json:"transcription_error,omitempty"`

	// Extracted activities, populated after classification
	Activities []Activity `json:"activities"`

	// Mood is a free-form label the classifier infers from the transcript
	Mood *string `json:"mood,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasAudio reports whether the entry originated from a voice note.
func (e *Entry) HasAudio() bool {
	return e.AudioURL != nil && *e.AudioURL != ""
}

// Activity is a single classified activity extracted from an entry's text.
// Points equal the category weight; they are assigned at insert time so
// historical rows keep their score if weights ever change.
type Activity struct {
	ID       uuid.UUID `json:"id"`
	EntryID  uuid.UUID `json:"entry_id"`
	Name     string    `json:"name"`     // short label, e.g. "morning run"
	Category Category  `json:"category"` // one of the five fixed categories
	Points   int       `json:"points"`
}

// TranscriptionJob is the API view of an entry's transcription state.
type TranscriptionJob struct {
	ID         string              `json:"id"` // provider job ID, empty until submitted
	EntryID    uuid.UUID           `json:"entry_id"`
	Status     TranscriptionStatus `json:"status"`
	Transcript string              `json:"transcript,omitempty"`
	Error      string              `json:"error,omitempty"`
}

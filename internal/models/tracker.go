// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package models

import "time"

// CategoryStat aggregates one category's share of the tracker window.
type CategoryStat struct {
	Category      Category `json:"category"`
	ActivityCount int      `json:"activity_count"`
	Points        int      `json:"points"`
	Percent       float64  `json:"percent"` // share of total points, 0-100
}

// PhaseGettingStarted labels a tracker with no classified activity yet.
const PhaseGettingStarted = "Getting Started"

// categoryPhases maps the dominant category to a human-readable phase
// label shown on the dashboard. The mapping is fixed; the LLM is never
// consulted for tracker phases.
var categoryPhases = map[Category]string{
	CategoryGrowth:      "Growth Phase",
	CategoryHealth:      "Wellness Phase",
	CategoryWork:        "Deep Work Phase",
	CategoryConsumption: "Recharge Phase",
	CategoryOther:       "Exploration Phase",
}

// PhaseForCategory returns the phase label for a dominant category.
// An empty category means an empty window.
func PhaseForCategory(c Category) string {
	if phase, ok := categoryPhases[c]; ok {
		return phase
	}
	return PhaseGettingStarted
}

// ActivityTracker is the rolling aggregate over a user's most recent entries.
//
// The tracker considers the newest WindowSize entries that have at least one
// extracted activity. Percentages are computed over the weighted score total,
// so a growth activity moves the needle three times as far as a consumption
// one. Recomputed on demand from the entries table, never stored.
type ActivityTracker struct {
	UserID        string         `json:"user_id"`
	WindowSize    int            `json:"window_size"`
	EntryCount    int            `json:"entry_count"` // entries actually in the window, <= WindowSize
	ActivityCount int            `json:"activity_count"`
	TotalPoints   int            `json:"total_points"`
	Categories    []CategoryStat `json:"categories"` // always all five, zero-filled, display order

	// DominantCategory is the highest-scoring category, empty when the
	// window has no activities. Ties resolve to the earlier category in
	// display order.
	DominantCategory Category `json:"dominant_category,omitempty"`

	// Phase is derived from DominantCategory via PhaseForCategory.
	Phase string `json:"phase"`

	ComputedAt time.Time `json:"computed_at"`
}

// ProductivityIndex returns the average points per activity, normalized
// to 0-100 against the maximum category weight. An empty window yields 0.
func (t *ActivityTracker) ProductivityIndex() float64 {
	if t.ActivityCount == 0 {
		return 0
	}
	maxWeight := CategoryWeights[CategoryGrowth]
	return float64(t.TotalPoints) / float64(t.ActivityCount) / float64(maxWeight) * 100
}

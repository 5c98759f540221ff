// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseCategory(t *testing.T) {
	assert.Equal(t, CategoryGrowth, ParseCategory("growth"))
	assert.Equal(t, CategoryHealth, ParseCategory("health"))
	assert.Equal(t, CategoryWork, ParseCategory("work"))
	assert.Equal(t, CategoryConsumption, ParseCategory("consumption"))
	assert.Equal(t, CategoryOther, ParseCategory("other"))

	// Unknown labels degrade to Other instead of erroring
	assert.Equal(t, CategoryOther, ParseCategory("Leisure"))
	assert.Equal(t, CategoryOther, ParseCategory(""))
	assert.Equal(t, CategoryOther, ParseCategory("GROWTH"))
}

func TestCategoryWeight(t *testing.T) {
	assert.Equal(t, 3, CategoryGrowth.Weight())
	assert.Equal(t, 3, CategoryHealth.Weight())
	assert.Equal(t, 2, CategoryWork.Weight())
	assert.Equal(t, 1, CategoryConsumption.Weight())
	assert.Equal(t, 1, CategoryOther.Weight())
	assert.Equal(t, 1, Category("bogus").Weight())
}

func TestEntryHasAudio(t *testing.T) {
	e := Entry{}
	assert.False(t, e.HasAudio())

	empty := ""
	e.AudioURL = &empty
	assert.False(t, e.HasAudio())

	url := "https://res.cloudinary.com/demo/video/upload/v1/echolog/audio/x.webm"
	e.AudioURL = &url
	assert.True(t, e.HasAudio())
}

func TestProductivityIndex(t *testing.T) {
	empty := ActivityTracker{}
	assert.Zero(t, empty.ProductivityIndex())

	// All-growth window pegs the index at 100
	allGrowth := ActivityTracker{ActivityCount: 4, TotalPoints: 12}
	assert.InDelta(t, 100.0, allGrowth.ProductivityIndex(), 0.001)

	// All-consumption window sits at the floor
	allConsumption := ActivityTracker{ActivityCount: 5, TotalPoints: 5}
	assert.InDelta(t, 33.333, allConsumption.ProductivityIndex(), 0.01)
}

func TestPhaseForCategory(t *testing.T) {
	assert.Equal(t, "Growth Phase", PhaseForCategory(CategoryGrowth))
	assert.Equal(t, "Wellness Phase", PhaseForCategory(CategoryHealth))
	assert.Equal(t, "Deep Work Phase", PhaseForCategory(CategoryWork))
	assert.Equal(t, "Recharge Phase", PhaseForCategory(CategoryConsumption))
	assert.Equal(t, "Exploration Phase", PhaseForCategory(CategoryOther))
	assert.Equal(t, PhaseGettingStarted, PhaseForCategory(""))
}

func TestFormatWeekKey(t *testing.T) {
	assert.Equal(t, "2026-W35", FormatWeekKey(2026, 35))
	assert.Equal(t, "2027-W01", FormatWeekKey(2027, 1))
}

func TestISOWeekBounds(t *testing.T) {
	// 2026-W35 starts Monday 2026-08-24
	start, end := ISOWeekBounds(2026, 35)
	assert.Equal(t, time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, time.August, 31, 0, 0, 0, 0, time.UTC), end)
	assert.Equal(t, time.Monday, start.Weekday())

	// Round-trip every day of the bounded week back to the same ISO week
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		y, w := d.ISOWeek()
		assert.Equal(t, 2026, y)
		assert.Equal(t, 35, w)
	}

	// Year boundary: 2021-W01 starts Monday 2021-01-04
	start, _ = ISOWeekBounds(2021, 1)
	assert.Equal(t, time.Date(2021, time.January, 4, 0, 0, 0, 0, time.UTC), start)

	// 2020-W53 is a long-year week containing 2021-01-01
	start, end = ISOWeekBounds(2020, 53)
	jan1 := time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, !jan1.Before(start) && jan1.Before(end))
}

func TestPreviousISOWeek(t *testing.T) {
	// Monday 2026-08-31 07:00 looks back to week 35
	y, w := PreviousISOWeek(time.Date(2026, time.August, 31, 7, 0, 0, 0, time.UTC))
	assert.Equal(t, 2026, y)
	assert.Equal(t, 35, w)

	// First Monday of 2026 looks back into 2026-W01
	y, w = PreviousISOWeek(time.Date(2026, time.January, 5, 7, 0, 0, 0, time.UTC))
	assert.Equal(t, 2026, y)
	assert.Equal(t, 1, w)
}

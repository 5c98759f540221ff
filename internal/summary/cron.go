// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package summary

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CronSchedule is a parsed standard 5-field cron expression:
// minute hour day-of-month month day-of-week.
//
// Supported syntax per field: * / n / n-m / n,m,o / */s / n-m/s.
// Day-of-week 7 is normalized to 0 (Sunday). The default summary
// schedule "0 7 * * 1" fires Mondays at 07:00 in the configured
// timezone.
type CronSchedule struct {
	Minutes     []int // 0-59
	Hours       []int // 0-23
	DaysOfMonth []int // 1-31
	Months      []int // 1-12
	DaysOfWeek  []int // 0-6, 0 = Sunday
}

// ParseCron parses a 5-field cron expression.
func ParseCron(expr string) (*CronSchedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}

	minutes, err := parseCronField(fields[0], 0, 59)
	if err != nil {
		return nil, fmt.Errorf("invalid minute field: %w", err)
	}
	hours, err := parseCronField(fields[1], 0, 23)
	if err != nil {
		return nil, fmt.Errorf("invalid hour field: %w", err)
	}
	daysOfMonth, err := parseCronField(fields[2], 1, 31)
	if err != nil {
		return nil, fmt.Errorf("invalid day-of-month field: %w", err)
	}
	months, err := parseCronField(fields[3], 1, 12)
	if err != nil {
		return nil, fmt.Errorf("invalid month field: %w", err)
	}
	daysOfWeek, err := parseCronField(fields[4], 0, 7)
	if err != nil {
		return nil, fmt.Errorf("invalid day-of-week field: %w", err)
	}

	// Normalize day 7 (Sunday) to day 0
	normalized := make([]int, 0, len(daysOfWeek))
	for _, d := range daysOfWeek {
		if d == 7 {
			d = 0
		}
		normalized = append(normalized, d)
	}

	return &CronSchedule{
		Minutes:     minutes,
		Hours:       hours,
		DaysOfMonth: daysOfMonth,
		Months:      months,
		DaysOfWeek:  dedupeInts(normalized),
	}, nil
}

// Next returns the first matching time strictly after the given time.
// A nil location means UTC. The search walks minute by minute and is
// capped at four years; a zero time is returned if nothing matches.
func (c *CronSchedule) Next(after time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t := after.In(loc).Add(time.Minute)
	t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, loc)

	maxIterations := 365 * 24 * 60 * 4
	for i := 0; i < maxIterations; i++ {
		if c.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}
}

// matches reports whether t satisfies the schedule. Day-of-month and
// day-of-week follow standard cron semantics: when both are restricted,
// either one matching is sufficient.
func (c *CronSchedule) matches(t time.Time) bool {
	if !hasInt(c.Minutes, t.Minute()) {
		return false
	}
	if !hasInt(c.Hours, t.Hour()) {
		return false
	}
	if !hasInt(c.Months, int(t.Month())) {
		return false
	}

	domMatch := hasInt(c.DaysOfMonth, t.Day())
	dowMatch := hasInt(c.DaysOfWeek, int(t.Weekday()))

	// A full-range field is a wildcard
	domWildcard := len(c.DaysOfMonth) == 31
	dowWildcard := len(c.DaysOfWeek) == 7

	switch {
	case domWildcard && dowWildcard:
		return true
	case domWildcard:
		return dowMatch
	case dowWildcard:
		return domMatch
	default:
		return domMatch || dowMatch
	}
}

// NextRunAfter parses expr and returns its first firing after the given
// time in the named IANA timezone (UTC when empty).
func NextRunAfter(expr string, after time.Time, timezone string) (time.Time, error) {
	schedule, err := ParseCron(expr)
	if err != nil {
		return time.Time{}, err
	}

	var loc *time.Location
	if timezone != "" {
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
		}
	}
	return schedule.Next(after, loc), nil
}

func parseCronField(field string, minVal, maxVal int) ([]int, error) {
	if field == "*" {
		return spanInts(minVal, maxVal), nil
	}

	if strings.Contains(field, ",") {
		var result []int
		for _, part := range strings.Split(field, ",") {
			values, err := parseCronPart(part, minVal, maxVal)
			if err != nil {
				return nil, err
			}
			result = append(result, values...)
		}
		return dedupeInts(result), nil
	}

	return parseCronPart(field, minVal, maxVal)
}

// parseCronPart parses one non-list part of a field: a wildcard or
// value or range, optionally with a step.
func parseCronPart(part string, minVal, maxVal int) ([]int, error) {
	if strings.Contains(part, "/") {
		pieces := strings.SplitN(part, "/", 2)
		step, err := strconv.Atoi(pieces[1])
		if err != nil || step <= 0 {
			return nil, fmt.Errorf("invalid step value: %s", pieces[1])
		}

		var rangeStart, rangeEnd int
		switch {
		case pieces[0] == "*":
			rangeStart, rangeEnd = minVal, maxVal
		case strings.Contains(pieces[0], "-"):
			bounds := strings.SplitN(pieces[0], "-", 2)
			rangeStart, err = strconv.Atoi(bounds[0])
			if err != nil {
				return nil, fmt.Errorf("invalid range start: %s", bounds[0])
			}
			rangeEnd, err = strconv.Atoi(bounds[1])
			if err != nil {
				return nil, fmt.Errorf("invalid range end: %s", bounds[1])
			}
		default:
			rangeStart, err = strconv.Atoi(pieces[0])
			if err != nil {
				return nil, fmt.Errorf("invalid value: %s", pieces[0])
			}
			rangeEnd = maxVal
		}

		var result []int
		for i := rangeStart; i <= rangeEnd; i += step {
			if i >= minVal && i <= maxVal {
				result = append(result, i)
			}
		}
		return result, nil
	}

	if strings.Contains(part, "-") {
		bounds := strings.SplitN(part, "-", 2)
		start, err := strconv.Atoi(bounds[0])
		if err != nil {
			return nil, fmt.Errorf("invalid range start: %s", bounds[0])
		}
		end, err := strconv.Atoi(bounds[1])
		if err != nil {
			return nil, fmt.Errorf("invalid range end: %s", bounds[1])
		}
		if start > end || start < minVal || end > maxVal {
			return nil, fmt.Errorf("invalid range: %d-%d (allowed %d-%d)", start, end, minVal, maxVal)
		}
		return spanInts(start, end), nil
	}

	val, err := strconv.Atoi(part)
	if err != nil {
		return nil, fmt.Errorf("invalid value: %s", part)
	}
	if val < minVal || val > maxVal {
		return nil, fmt.Errorf("value out of range: %d (allowed %d-%d)", val, minVal, maxVal)
	}
	return []int{val}, nil
}

func spanInts(start, end int) []int {
	result := make([]int, end-start+1)
	for i := range result {
		result[i] = start + i
	}
	return result
}

func hasInt(values []int, val int) bool {
	for _, v := range values {
		if v == val {
			return true
		}
	}
	return false
}

func dedupeInts(values []int) []int {
	seen := make(map[int]bool, len(values))
	var result []int
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	sort.Ints(result)
	return result
}

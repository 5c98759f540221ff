// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/echolog/internal/database"
	"github.com/tomtom215/echolog/internal/models"
	"github.com/tomtom215/echolog/internal/validation"
)

// validateRequest runs struct validation and translates failures into the
// API error shape.
func validateRequest(s interface{}) *validation.APIError {
	if verr := validation.ValidateStruct(s); verr != nil {
		return verr.ToAPIError()
	}
	return nil
}

// maxJSONBodyBytes caps JSON request bodies. Voice uploads go through
// multipart and have their own limit.
const maxJSONBodyBytes = 1 << 20 // 1 MiB

// LoginRequest is the credential payload for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=200"`
}

// CreateEntryRequest creates a typed (text) journal entry.
type CreateEntryRequest struct {
	Title string  `json:"title" validate:"max=200"`
	Text  string  `json:"text" validate:"required,max=20000"`
	Mood  *string `json:"mood,omitempty" validate:"omitempty,max=50"`
}

// UpdateEntryRequest updates an existing entry. All fields are optional;
// at least one must be present.
type UpdateEntryRequest struct {
	Title      *string `json:"title,omitempty" validate:"omitempty,max=200"`
	Transcript *string `json:"transcript,omitempty" validate:"omitempty,max=20000"`
	Mood       *string `json:"mood,omitempty" validate:"omitempty,max=50"`
}

// Empty reports whether the update carries no changes.
func (r *UpdateEntryRequest) Empty() bool {
	return r.Title == nil && r.Transcript == nil && r.Mood == nil
}

// decodeJSON reads and unmarshals a JSON request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxBytesErr.Limit)
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}

	return nil
}

// listEntriesQuery holds the parsed query parameters for GET /entries.
type listEntriesQuery struct {
	opts   database.ListEntriesOptions
	limit  int
	offset int
}

// parseListEntriesQuery parses pagination and filter parameters.
// Cursor-based and offset-based pagination are mutually exclusive; when
// both are supplied the cursor wins.
func parseListEntriesQuery(r *http.Request, defaultPageSize, maxPageSize int) (*listEntriesQuery, error) {
	q := r.URL.Query()

	limit := defaultPageSize
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return nil, errors.New("limit must be a positive integer")
		}
		limit = v
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	offset := 0
	if raw := q.Get("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return nil, errors.New("offset must be a non-negative integer")
		}
		offset = v
	}

	opts := database.ListEntriesOptions{
		Limit:  limit,
		Offset: offset,
		Cursor: q.Get("cursor"),
	}

	if raw := q.Get("from"); raw != "" {
		t, err := parseTimeParam(raw)
		if err != nil {
			return nil, fmt.Errorf("from: %w", err)
		}
		opts.From = &t
	}

	if raw := q.Get("to"); raw != "" {
		t, err := parseTimeParam(raw)
		if err != nil {
			return nil, fmt.Errorf("to: %w", err)
		}
		opts.To = &t
	}

	if raw := q.Get("category"); raw != "" {
		cat := models.Category(raw)
		valid := false
		for _, c := range models.AllCategories {
			if c == cat {
				valid = true
				break
			}
		}
		if !valid {
			return nil, fmt.Errorf("category must be one of: %v", models.AllCategories)
		}
		opts.Category = &cat
	}

	return &listEntriesQuery{opts: opts, limit: limit, offset: offset}, nil
}

// parseTimeParam accepts RFC3339 timestamps or bare dates (2026-01-31).
func parseTimeParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, errors.New("must be RFC3339 or YYYY-MM-DD")
}

// parseWeekParams parses the {year}/{week} path segments for summary routes.
func parseWeekParams(yearRaw, weekRaw string) (int, int, error) {
	year, err := strconv.Atoi(yearRaw)
	if err != nil || year < 2000 || year > 2200 {
		return 0, 0, errors.New("year must be a four-digit year")
	}
	week, err := strconv.Atoi(weekRaw)
	if err != nil || week < 1 || week > 53 {
		return 0, 0, errors.New("week must be between 1 and 53")
	}
	return year, week, nil
}

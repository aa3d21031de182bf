// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for decoding and validating JSON request
// bodies into service inputs.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tripledger/internal/core"
	"tripledger/internal/services"
)

const maxBodyBytes = 1 << 20

// badRequestError marks a body that could not be decoded at all, as
// opposed to one that decoded into invalid values (422).
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

// decodeJSON reads exactly one JSON object from the body into dst,
// rejecting unknown fields and bodies over 1 MiB.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return badRequest("content type must be application/json")
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return badRequest("request body is empty")
		case errors.As(err, &maxErr):
			return badRequest("request body too large")
		case errors.As(err, &syntaxErr):
			return badRequest("malformed JSON at offset %d", syntaxErr.Offset)
		case errors.As(err, &typeErr):
			return badRequest("field %q has the wrong type", typeErr.Field)
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return badRequest("unknown field %s", strings.TrimPrefix(err.Error(), "json: unknown field "))
		default:
			return badRequest("malformed request body")
		}
	}
	if dec.More() {
		return badRequest("request body must contain a single JSON object")
	}
	return nil
}

// amount accepts a JSON number or string ("12.34", "12,34").
type amount string

func (a *amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*a = amount(n.String())
	return nil
}

func (a amount) money() (core.Money, error) {
	m, err := core.ParseMoney(string(a))
	if err != nil {
		return core.Money{}, fmt.Errorf("amount %q: %w", string(a), err)
	}
	return m, nil
}

type tripPayload struct {
	Name        string  `json:"name"`
	Destination string  `json:"destination"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	Budget      *amount `json:"budget,omitempty"`
	TimeZone    string  `json:"time_zone,omitempty"`
}

// input converts the payload. Dates are calendar days in the trip's time
// zone, or def when the trip has none.
func (p tripPayload) input(def *time.Location) (services.TripInput, error) {
	in := services.TripInput{
		Name:        sanitizeInput(p.Name),
		Destination: sanitizeInput(p.Destination),
		TimeZone:    strings.TrimSpace(p.TimeZone),
	}

	loc := def
	if in.TimeZone != "" {
		l, err := time.LoadLocation(in.TimeZone)
		if err != nil {
			return in, fmt.Errorf("%w: %q", core.ErrInvalidTimeZone, in.TimeZone)
		}
		loc = l
	}

	var err error
	if in.StartDate, err = parseDay(p.StartDate, loc); err != nil {
		return in, fmt.Errorf("start_date: %w", err)
	}
	if in.EndDate, err = parseDay(p.EndDate, loc); err != nil {
		return in, fmt.Errorf("end_date: %w", err)
	}
	if p.Budget != nil && *p.Budget != "" {
		b, err := p.Budget.money()
		if err != nil {
			return in, fmt.Errorf("budget: %w", err)
		}
		in.Budget = &b
	}
	return in, nil
}

type locationPayload struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Name      string   `json:"name,omitempty"`
}

type expensePayload struct {
	Amount   amount           `json:"amount"`
	Category string           `json:"category"`
	Date     string           `json:"date"`
	Location *locationPayload `json:"location,omitempty"`
	Notes    string           `json:"notes,omitempty"`
	ImageURL string           `json:"image_url,omitempty"`
}

// input converts the payload. A date without a time is midnight in loc,
// the trip's display zone.
func (p expensePayload) input(loc *time.Location) (services.ExpenseInput, error) {
	var in services.ExpenseInput

	m, err := p.Amount.money()
	if err != nil {
		return in, err
	}
	in.Amount = m

	if in.Category, err = core.ParseCategory(p.Category); err != nil {
		return in, err
	}
	if in.Date, err = parseTimestamp(p.Date, loc); err != nil {
		return in, fmt.Errorf("date: %w", err)
	}

	if p.Location != nil {
		if p.Location.Latitude == nil || p.Location.Longitude == nil {
			return in, fmt.Errorf("%w: latitude and longitude are both required", core.ErrInvalidLocation)
		}
		in.Location = &core.Location{
			Latitude:  *p.Location.Latitude,
			Longitude: *p.Location.Longitude,
			Name:      sanitizeInput(p.Location.Name),
		}
	}

	in.Notes = sanitizeInput(p.Notes)
	in.ImageURL = strings.TrimSpace(p.ImageURL)
	return in, nil
}

// parseDay parses YYYY-MM-DD as midnight in loc.
func parseDay(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q, want YYYY-MM-DD", core.ErrInvalidDate, s)
	}
	return t, nil
}

// parseTimestamp accepts RFC 3339 or a bare YYYY-MM-DD.
func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return parseDay(s, loc)
}

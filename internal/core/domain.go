package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type (
	// Location is where an expense happened. Name is an optional place name.
	Location struct {
		Latitude  float64
		Longitude float64
		Name      string
	}

	Expense struct {
		ID        string
		TripID    string
		Amount    Money
		Category  Category
		Date      time.Time
		Location  *Location
		Notes     string
		ImageURL  string // opaque receipt reference, owned by the file store
		CreatedAt time.Time
		UserID    string
	}

	Trip struct {
		ID          string
		Name        string
		Destination string
		StartDate   time.Time
		EndDate     time.Time
		Budget      *Money // nil means no budget
		TimeZone    string // IANA name used for daily grouping; empty means server default
		CreatedAt   time.Time
		UserID      string
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidDateRange = errors.New("start date must not be after end date")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidLocation  = errors.New("invalid location")
	ErrInvalidTimeZone  = errors.New("invalid time zone")
	ErrEmptyName        = errors.New("empty trip name")
	ErrEmptyDestination = errors.New("empty destination")
	ErrEmptyTripID      = errors.New("empty trip id")
	ErrFieldTooLong     = errors.New("field too long")
	ErrNotFound         = errors.New("not found")
)

var validationErrors = []error{
	ErrInvalidAmount, ErrInvalidCategory, ErrInvalidDateRange, ErrInvalidDate,
	ErrInvalidLocation, ErrInvalidTimeZone, ErrEmptyName, ErrEmptyDestination,
	ErrEmptyTripID, ErrFieldTooLong,
}

// IsValidation reports whether err is caused by invalid user input.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

const (
	maxNameLen  = 200
	maxNotesLen = 1000
)

func (l Location) Validate() error {
	if l.Latitude < -90 || l.Latitude > 90 || l.Longitude < -180 || l.Longitude > 180 {
		return ErrInvalidLocation
	}
	if len(l.Name) > maxNameLen {
		return fmt.Errorf("location name: %w (max %d characters)", ErrFieldTooLong, maxNameLen)
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.TripID) == "" {
		return ErrEmptyTripID
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := e.Category.Validate(); err != nil {
		return err
	}
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	if e.Location != nil {
		if err := e.Location.Validate(); err != nil {
			return err
		}
	}
	if len(e.Notes) > maxNotesLen {
		return fmt.Errorf("notes: %w (max %d characters)", ErrFieldTooLong, maxNotesLen)
	}
	return nil
}

// HasLocation reports whether the expense can be placed on a map.
func (e Expense) HasLocation() bool {
	return e.Location != nil
}

func (t Trip) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	if len(t.Name) > maxNameLen {
		return fmt.Errorf("name: %w (max %d characters)", ErrFieldTooLong, maxNameLen)
	}
	if strings.TrimSpace(t.Destination) == "" {
		return ErrEmptyDestination
	}
	if len(t.Destination) > maxNameLen {
		return fmt.Errorf("destination: %w (max %d characters)", ErrFieldTooLong, maxNameLen)
	}
	if t.StartDate.IsZero() || t.EndDate.IsZero() {
		return ErrInvalidDate
	}
	if t.StartDate.After(t.EndDate) {
		return ErrInvalidDateRange
	}
	if t.Budget != nil {
		if err := t.Budget.Validate(); err != nil {
			return fmt.Errorf("budget: %w", err)
		}
	}
	if t.TimeZone != "" {
		if _, err := time.LoadLocation(t.TimeZone); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidTimeZone, t.TimeZone)
		}
	}
	return nil
}

// Location returns the trip's display time zone, falling back to def
// (and to UTC when def is nil).
func (t Trip) Location(def *time.Location) *time.Location {
	if t.TimeZone != "" {
		if loc, err := time.LoadLocation(t.TimeZone); err == nil {
			return loc
		}
	}
	if def != nil {
		return def
	}
	return time.UTC
}

// ActiveAt reports whether at falls on a calendar day between the start
// and end dates, inclusive, in the trip's time zone.
func (t Trip) ActiveAt(at time.Time, def *time.Location) bool {
	loc := t.Location(def)
	day := DayKey(at, loc)
	return day >= DayKey(t.StartDate, loc) && day <= DayKey(t.EndDate, loc)
}

// DayKey formats the calendar day of ts in loc as YYYY-MM-DD.
func DayKey(ts time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return ts.In(loc).Format(time.DateOnly)
}

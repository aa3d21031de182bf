package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTripValidate(t *testing.T) {
	budget := Money{Cents: 100000}
	negative := Money{Cents: -1}
	good := Trip{
		Name:        "Lisbon",
		Destination: "Portugal",
		StartDate:   day(2024, 5, 1),
		EndDate:     day(2024, 5, 7),
		Budget:      &budget,
		TimeZone:    "Europe/Lisbon",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	sameDay := good
	sameDay.EndDate = sameDay.StartDate
	if err := sameDay.Validate(); err != nil {
		t.Fatalf("single-day trip should be valid, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Trip)
		want   error
	}{
		{"empty name", func(tr *Trip) { tr.Name = "  " }, ErrEmptyName},
		{"empty destination", func(tr *Trip) { tr.Destination = "" }, ErrEmptyDestination},
		{"long name", func(tr *Trip) { tr.Name = strings.Repeat("x", 201) }, ErrFieldTooLong},
		{"inverted dates", func(tr *Trip) { tr.StartDate = day(2024, 5, 8) }, ErrInvalidDateRange},
		{"zero end date", func(tr *Trip) { tr.EndDate = time.Time{} }, ErrInvalidDate},
		{"negative budget", func(tr *Trip) { tr.Budget = &negative }, ErrInvalidAmount},
		{"unknown zone", func(tr *Trip) { tr.TimeZone = "Mars/Olympus" }, ErrInvalidTimeZone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := good
			tc.mutate(&tr)
			if err := tr.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		TripID:   "trip-1",
		Amount:   Money{Cents: 1250},
		Category: CategoryFood,
		Date:     day(2024, 5, 2),
		Location: &Location{Latitude: 38.72, Longitude: -9.14, Name: "Time Out Market"},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	free := good
	free.Amount = Money{}
	if err := free.Validate(); err != nil {
		t.Fatalf("zero amount should be valid, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Expense)
		want   error
	}{
		{"missing trip", func(e *Expense) { e.TripID = "" }, ErrEmptyTripID},
		{"negative amount", func(e *Expense) { e.Amount = Money{Cents: -5} }, ErrInvalidAmount},
		{"unknown category", func(e *Expense) { e.Category = "fuel" }, ErrInvalidCategory},
		{"zero date", func(e *Expense) { e.Date = time.Time{} }, ErrInvalidDate},
		{"latitude out of range", func(e *Expense) { e.Location = &Location{Latitude: 91} }, ErrInvalidLocation},
		{"longitude out of range", func(e *Expense) { e.Location = &Location{Longitude: -181} }, ErrInvalidLocation},
		{"long notes", func(e *Expense) { e.Notes = strings.Repeat("n", 1001) }, ErrFieldTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := good
			tc.mutate(&e)
			if err := e.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestTripActiveAt(t *testing.T) {
	trip := Trip{StartDate: day(2024, 5, 1), EndDate: day(2024, 5, 3), TimeZone: "UTC"}

	cases := []struct {
		at   time.Time
		want bool
	}{
		{time.Date(2024, 4, 30, 23, 59, 0, 0, time.UTC), false},
		{time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), true},
		{time.Date(2024, 5, 3, 23, 0, 0, 0, time.UTC), true},
		{time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC), false},
	}
	for i, tc := range cases {
		if got := trip.ActiveAt(tc.at, nil); got != tc.want {
			t.Fatalf("case %d: ActiveAt(%s) = %v, want %v", i, tc.at, got, tc.want)
		}
	}
}

func TestTripLocationFallback(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skip("tzdata not available")
	}
	if got := (Trip{}).Location(rome); got != rome {
		t.Fatalf("expected fallback location, got %v", got)
	}
	if got := (Trip{}).Location(nil); got != time.UTC {
		t.Fatalf("expected UTC, got %v", got)
	}
	if got := (Trip{TimeZone: "Europe/Rome"}).Location(time.UTC); got.String() != "Europe/Rome" {
		t.Fatalf("expected trip zone, got %v", got)
	}
}

func TestIsValidation(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{ErrInvalidAmount, true},
		{fmt.Errorf("budget: %w", ErrInvalidAmount), true},
		{fmt.Errorf("%w: %q", ErrInvalidCategory, "boats"), true},
		{ErrNotFound, false},
		{errors.New("disk full"), false},
		{nil, false},
	}
	for _, c := range cases {
		if got := IsValidation(c.err); got != c.want {
			t.Errorf("IsValidation(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

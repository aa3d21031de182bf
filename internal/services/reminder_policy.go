package services

import (
	"fmt"
	"time"

	"tripledger/internal/core"
)

// ReminderPolicy decides whether an "add your expenses" reminder is due
// for a trip, given when the previous one was sent.
type ReminderPolicy interface {
	IsDue(lastSent, now time.Time, trip core.Trip) bool
}

// IntervalPolicy reminds at most once per Every.
type IntervalPolicy struct {
	Every time.Duration
}

func (p IntervalPolicy) IsDue(lastSent, now time.Time, _ core.Trip) bool {
	if lastSent.IsZero() {
		return true
	}
	return now.Sub(lastSent) >= p.Every
}

// DailyPolicy reminds once per calendar day of the trip's time zone.
type DailyPolicy struct {
	Default *time.Location
}

func (p DailyPolicy) IsDue(lastSent, now time.Time, trip core.Trip) bool {
	if lastSent.IsZero() {
		return true
	}
	loc := trip.Location(p.Default)
	return core.DayKey(lastSent, loc) != core.DayKey(now, loc)
}

// NewReminderPolicy picks the policy for a reminder interval. Intervals of
// a whole day or more remind once per local day.
func NewReminderPolicy(every time.Duration, def *time.Location) (ReminderPolicy, error) {
	switch {
	case every <= 0:
		return nil, fmt.Errorf("reminder interval must be positive, got %s", every)
	case every >= 24*time.Hour:
		return DailyPolicy{Default: def}, nil
	default:
		return IntervalPolicy{Every: every}, nil
	}
}

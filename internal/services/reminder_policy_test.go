package services

import (
	"testing"
	"time"

	"tripledger/internal/core"
)

func TestIntervalPolicy(t *testing.T) {
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	p := IntervalPolicy{Every: 6 * time.Hour}

	tests := []struct {
		name     string
		lastSent time.Time
		now      time.Time
		expected bool
	}{
		{"never sent", time.Time{}, base, true},
		{"just sent", base, base.Add(time.Minute), false},
		{"just before interval", base, base.Add(6*time.Hour - time.Second), false},
		{"at interval", base, base.Add(6 * time.Hour), true},
		{"long after", base, base.Add(30 * time.Hour), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.IsDue(tt.lastSent, tt.now, core.Trip{}); got != tt.expected {
				t.Errorf("IsDue() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDailyPolicy(t *testing.T) {
	tokyo := core.Trip{TimeZone: "Asia/Tokyo"}
	p := DailyPolicy{Default: time.UTC}

	// 14:00 UTC is 23:00 in Tokyo; 16:00 UTC is already the next day there.
	last := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)
	next := time.Date(2024, 6, 1, 16, 0, 0, 0, time.UTC)

	if !p.IsDue(last, next, tokyo) {
		t.Error("expected reminder due after local midnight in Tokyo")
	}
	if p.IsDue(last, next, core.Trip{}) {
		t.Error("expected no reminder on the same UTC day")
	}
	if !p.IsDue(time.Time{}, next, core.Trip{}) {
		t.Error("expected reminder when none was sent")
	}
}

func TestNewReminderPolicy(t *testing.T) {
	if _, err := NewReminderPolicy(0, nil); err == nil {
		t.Error("expected error for zero interval")
	}

	p, err := NewReminderPolicy(6*time.Hour, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.(IntervalPolicy); !ok {
		t.Errorf("expected IntervalPolicy, got %T", p)
	}

	p, err = NewReminderPolicy(24*time.Hour, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.(DailyPolicy); !ok {
		t.Errorf("expected DailyPolicy, got %T", p)
	}
}

// Package memory is an in-process storage backend. Nothing survives a
// restart; it backs the server when no database is configured and the tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tripledger/internal/core"
	"tripledger/internal/storage"
)

type Store struct {
	mu        sync.Mutex
	trips     map[string]core.Trip
	expenses  map[string]core.Expense
	outbox    []storage.OutboxItem
	reminders map[string]storage.ReminderRecord
	nextID    int64
	now       func() time.Time
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		trips:     map[string]core.Trip{},
		expenses:  map[string]core.Expense{},
		reminders: map[string]storage.ReminderRecord{},
		now:       time.Now,
	}
}

// WithClock replaces the store clock. Used by tests driving the outbox.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// truncate keeps the same timestamp precision as the SQLite backend.
func truncate(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli()).UTC()
}

func cloneTrip(t core.Trip) core.Trip {
	if t.Budget != nil {
		b := *t.Budget
		t.Budget = &b
	}
	return t
}

func cloneExpense(e core.Expense) core.Expense {
	if e.Location != nil {
		l := *e.Location
		e.Location = &l
	}
	return e
}

// --- trips ---

func (s *Store) CreateTrip(_ context.Context, t core.Trip) (core.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if _, ok := s.trips[t.ID]; ok {
		return core.Trip{}, fmt.Errorf("insert trip: duplicate id %s", t.ID)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	t.StartDate = truncate(t.StartDate)
	t.EndDate = truncate(t.EndDate)
	t.CreatedAt = truncate(t.CreatedAt)
	s.trips[t.ID] = cloneTrip(t)
	return cloneTrip(t), nil
}

func (s *Store) GetTrip(_ context.Context, id string) (core.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[id]
	if !ok {
		return core.Trip{}, fmt.Errorf("get trip %s: %w", id, storage.ErrNotFound)
	}
	return cloneTrip(t), nil
}

func (s *Store) ListTrips(_ context.Context, userID string) ([]core.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Trip{}
	for _, t := range s.trips {
		if t.UserID == userID {
			out = append(out, cloneTrip(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ListTripsOverlapping(_ context.Context, from, to time.Time) ([]core.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Trip{}
	for _, t := range s.trips {
		if !t.StartDate.After(to) && !t.EndDate.Before(from) {
			out = append(out, cloneTrip(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateTrip(_ context.Context, t core.Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.trips[t.ID]
	if !ok {
		return fmt.Errorf("trip %s: %w", t.ID, storage.ErrNotFound)
	}
	cur.Name = t.Name
	cur.Destination = t.Destination
	cur.StartDate = truncate(t.StartDate)
	cur.EndDate = truncate(t.EndDate)
	cur.Budget = t.Budget
	cur.TimeZone = t.TimeZone
	s.trips[t.ID] = cloneTrip(cur)
	return nil
}

func (s *Store) DeleteTrip(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trips[id]; !ok {
		return 0, fmt.Errorf("trip %s: %w", id, storage.ErrNotFound)
	}

	var removed []core.Expense
	for _, e := range s.expenses {
		if e.TripID == id {
			removed = append(removed, e)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].ID < removed[j].ID })

	now := s.now()
	for _, e := range removed {
		s.enqueueLocked(storage.OutboxItem{Kind: storage.OutboxUnexport, TripID: id, ExpenseID: e.ID}, now)
		if e.ImageURL != "" {
			s.enqueueLocked(storage.OutboxItem{Kind: storage.OutboxReceiptPurge, TripID: id, ExpenseID: e.ID, ImageURL: e.ImageURL}, now)
		}
		delete(s.expenses, e.ID)
	}
	for k, r := range s.reminders {
		if r.TripID == id {
			delete(s.reminders, k)
		}
	}
	delete(s.trips, id)
	return len(removed), nil
}

// --- expenses ---

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trips[e.TripID]; !ok {
		return core.Expense{}, fmt.Errorf("insert expense: trip %s: %w", e.TripID, storage.ErrNotFound)
	}
	if e.Amount.Cents < 0 {
		return core.Expense{}, fmt.Errorf("insert expense: %w", core.ErrInvalidAmount)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	e.Date = truncate(e.Date)
	e.CreatedAt = truncate(e.CreatedAt)
	s.expenses[e.ID] = cloneExpense(e)
	s.enqueueLocked(storage.OutboxItem{Kind: storage.OutboxExport, TripID: e.TripID, ExpenseID: e.ID}, s.now())
	return cloneExpense(e), nil
}

func (s *Store) GetExpense(_ context.Context, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, fmt.Errorf("get expense %s: %w", id, storage.ErrNotFound)
	}
	return cloneExpense(e), nil
}

func (s *Store) ListExpenses(_ context.Context, tripID string) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Expense{}
	for _, e := range s.expenses {
		if e.TripID == tripID {
			out = append(out, cloneExpense(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.expenses[e.ID]
	if !ok {
		return fmt.Errorf("update expense %s: %w", e.ID, storage.ErrNotFound)
	}
	oldImage := cur.ImageURL

	cur.Amount = e.Amount
	cur.Category = e.Category
	cur.Date = truncate(e.Date)
	cur.Location = e.Location
	cur.Notes = e.Notes
	cur.ImageURL = e.ImageURL
	s.expenses[e.ID] = cloneExpense(cur)

	now := s.now()
	s.enqueueLocked(storage.OutboxItem{Kind: storage.OutboxExport, TripID: cur.TripID, ExpenseID: e.ID}, now)
	if oldImage != "" && oldImage != e.ImageURL {
		s.enqueueLocked(storage.OutboxItem{Kind: storage.OutboxReceiptPurge, TripID: cur.TripID, ExpenseID: e.ID, ImageURL: oldImage}, now)
	}
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok {
		return fmt.Errorf("delete expense %s: %w", id, storage.ErrNotFound)
	}
	delete(s.expenses, id)

	now := s.now()
	s.enqueueLocked(storage.OutboxItem{Kind: storage.OutboxUnexport, TripID: e.TripID, ExpenseID: id}, now)
	if e.ImageURL != "" {
		s.enqueueLocked(storage.OutboxItem{Kind: storage.OutboxReceiptPurge, TripID: e.TripID, ExpenseID: id, ImageURL: e.ImageURL}, now)
	}
	return nil
}

// --- reminders ---

func reminderKey(tripID, kind string) string { return tripID + "\x00" + kind }

func (s *Store) GetReminder(_ context.Context, tripID, kind string) (storage.ReminderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.reminders[reminderKey(tripID, kind)]; ok {
		return r, nil
	}
	return storage.ReminderRecord{TripID: tripID, Kind: kind}, nil
}

func (s *Store) SaveReminder(_ context.Context, r storage.ReminderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.SentAt = truncate(r.SentAt)
	s.reminders[reminderKey(r.TripID, r.Kind)] = r
	return nil
}

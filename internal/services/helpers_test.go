package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tripledger/internal/amqp"
	"tripledger/internal/core"
	"tripledger/internal/sheets"
	memstore "tripledger/internal/storage/memory"
)

// fakeBroker records everything published through it.
type fakeBroker struct {
	mu      sync.Mutex
	wakes   []string
	notes   []amqp.NotificationMessage
	purged  []string
	failing bool
}

var errBroker = errors.New("broker unreachable")

func (f *fakeBroker) PublishOutboxWake(_ context.Context, reason, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errBroker
	}
	f.wakes = append(f.wakes, reason)
	return nil
}

func (f *fakeBroker) PublishNotification(_ context.Context, msg amqp.NotificationMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errBroker
	}
	f.notes = append(f.notes, msg)
	return nil
}

func (f *fakeBroker) PurgeReceipt(_ context.Context, _, imageURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errBroker
	}
	f.purged = append(f.purged, imageURL)
	return nil
}

func (f *fakeBroker) notifications() []amqp.NotificationMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]amqp.NotificationMessage(nil), f.notes...)
}

// flakyExporter fails every call with err.
type flakyExporter struct{ err error }

var _ sheets.ExpenseExporter = flakyExporter{}

func (x flakyExporter) ExportExpense(context.Context, core.Trip, core.Expense) (string, error) {
	return "", x.err
}

func (x flakyExporter) RemoveExpense(context.Context, string) error { return x.err }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func budget(cents int64) *core.Money {
	return &core.Money{Cents: cents}
}

func tripInput(name string, b *core.Money) TripInput {
	return TripInput{
		Name:        name,
		Destination: "Somewhere",
		StartDate:   date(2024, 6, 1),
		EndDate:     date(2024, 6, 10),
		Budget:      b,
	}
}

func expenseInput(cat core.Category, cents int64, at time.Time) ExpenseInput {
	return ExpenseInput{Amount: core.Money{Cents: cents}, Category: cat, Date: at}
}

type fixture struct {
	store    *memstore.Store
	broker   *fakeBroker
	trips    *TripService
	expenses *ExpenseService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	broker := &fakeBroker{}
	trips := NewTripService(store, broker, time.UTC)
	return &fixture{
		store:    store,
		broker:   broker,
		trips:    trips,
		expenses: NewExpenseService(store, trips, broker),
	}
}

func (f *fixture) trip(t *testing.T, userID, name string, b *core.Money) core.Trip {
	t.Helper()
	trip, err := f.trips.CreateTrip(context.Background(), userID, tripInput(name, b))
	require.NoError(t, err)
	return trip
}

func (f *fixture) expense(t *testing.T, userID, tripID string, in ExpenseInput) core.Expense {
	t.Helper()
	e, err := f.expenses.CreateExpense(context.Background(), userID, tripID, in)
	require.NoError(t, err)
	return e
}

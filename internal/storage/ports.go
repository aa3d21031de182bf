package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tripledger/internal/core"
)

// ErrNotFound is returned when a trip or expense does not exist.
// It wraps core.ErrNotFound so callers may test either.
var ErrNotFound = fmt.Errorf("storage: %w", core.ErrNotFound)

// IsNotFound reports whether err means a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}

type TripStore interface {
	CreateTrip(ctx context.Context, t core.Trip) (core.Trip, error)
	GetTrip(ctx context.Context, id string) (core.Trip, error)
	// ListTrips returns the trips of a user, newest first.
	ListTrips(ctx context.Context, userID string) ([]core.Trip, error)
	// ListTripsOverlapping returns trips whose date range intersects [from, to].
	ListTripsOverlapping(ctx context.Context, from, to time.Time) ([]core.Trip, error)
	UpdateTrip(ctx context.Context, t core.Trip) error
	// DeleteTrip removes a trip with all its expenses atomically and queues
	// the external cleanup. It returns the number of expenses removed.
	DeleteTrip(ctx context.Context, id string) (int, error)
}

type ExpenseStore interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	GetExpense(ctx context.Context, id string) (core.Expense, error)
	// ListExpenses returns the expenses of a trip, most recent date first.
	ListExpenses(ctx context.Context, tripID string) ([]core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) error
	DeleteExpense(ctx context.Context, id string) error
}

// OutboxKind is the side effect an outbox item stands for.
type OutboxKind string

const (
	OutboxExport       OutboxKind = "export"        // upsert the expense row in the sheet
	OutboxUnexport     OutboxKind = "unexport"      // remove the expense row from the sheet
	OutboxReceiptPurge OutboxKind = "receipt_purge" // delete the receipt image from file storage
)

// OutboxStatus is the processing state of an outbox item.
type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "pending"
	OutboxProcessing OutboxStatus = "processing"
	OutboxCompleted  OutboxStatus = "completed"
	OutboxFailed     OutboxStatus = "failed"
)

type OutboxItem struct {
	ID            int64
	Kind          OutboxKind
	TripID        string
	ExpenseID     string
	ImageURL      string
	Status        OutboxStatus
	Attempts      int64
	LastError     string
	NextAttemptAt time.Time
	CreatedAt     time.Time
}

type OutboxStats struct {
	Pending    int64
	Processing int64
	Completed  int64
	Failed     int64
}

type Outbox interface {
	// DequeueOutboxBatch returns pending items that are due, oldest first.
	DequeueOutboxBatch(ctx context.Context, limit int) ([]OutboxItem, error)
	MarkOutboxProcessing(ctx context.Context, id int64) error
	MarkOutboxComplete(ctx context.Context, id int64) error
	MarkOutboxFailed(ctx context.Context, id int64, lastError string) error
	// IncrementOutboxAttempt puts the item back to pending until next.
	IncrementOutboxAttempt(ctx context.Context, id int64, lastError string, next time.Time) error
	// ResetStaleProcessing returns items stuck in processing to pending.
	ResetStaleProcessing(ctx context.Context) error
	CleanupCompletedOutbox(ctx context.Context, before time.Time) error
	OutboxStats(ctx context.Context) (OutboxStats, error)
	RetryFailedOutbox(ctx context.Context) error
}

// ReminderRecord remembers the last notification of a kind sent for a trip.
type ReminderRecord struct {
	TripID string
	Kind   string
	SentAt time.Time
	State  string
}

type ReminderLog interface {
	// GetReminder returns the zero record when nothing was sent yet.
	GetReminder(ctx context.Context, tripID, kind string) (ReminderRecord, error)
	SaveReminder(ctx context.Context, r ReminderRecord) error
}

// Store is everything a backend provides.
type Store interface {
	TripStore
	ExpenseStore
	Outbox
	ReminderLog
	Ping(ctx context.Context) error
	Close() error
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tripledger/internal/core"
	applog "tripledger/internal/log"
)

// ExpenseInput carries the user-editable fields of an expense.
type ExpenseInput struct {
	Amount   core.Money
	Category core.Category
	Date     time.Time
	Location *core.Location
	Notes    string
	ImageURL string
}

func (in ExpenseInput) apply(e *core.Expense) {
	e.Amount = in.Amount
	e.Category = in.Category
	e.Date = in.Date
	e.Location = in.Location
	e.Notes = strings.TrimSpace(in.Notes)
	e.ImageURL = strings.TrimSpace(in.ImageURL)
}

// ExpenseService orchestrates expense operations across the store and AMQP.
// The store queues sheet export in the same transaction as the write; the
// wake-up published afterwards only shortens the worker's delay.
type ExpenseService struct {
	repo      Repository
	trips     *TripService
	publisher WakePublisher
}

func NewExpenseService(repo Repository, trips *TripService, publisher WakePublisher) *ExpenseService {
	return &ExpenseService{repo: repo, trips: trips, publisher: publisher}
}

func (s *ExpenseService) CreateExpense(ctx context.Context, userID, tripID string, in ExpenseInput) (core.Expense, error) {
	if _, err := s.trips.GetTrip(ctx, userID, tripID); err != nil {
		return core.Expense{}, err
	}
	e := core.Expense{TripID: tripID, UserID: userID}
	in.apply(&e)
	if err := e.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("validate expense: %w", err)
	}

	created, err := s.repo.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	s.logSaved(ctx, applog.OpCreate, created)
	s.publishWake(ctx, "expense_created", tripID)
	return created, nil
}

// GetExpense returns the expense if userID owns it.
func (s *ExpenseService) GetExpense(ctx context.Context, userID, expenseID string) (core.Expense, error) {
	e, err := s.repo.GetExpense(ctx, expenseID)
	if err != nil {
		return core.Expense{}, err
	}
	if e.UserID != userID {
		return core.Expense{}, fmt.Errorf("expense %s: %w", expenseID, core.ErrNotFound)
	}
	return e, nil
}

func (s *ExpenseService) ListExpenses(ctx context.Context, userID, tripID string) ([]core.Expense, error) {
	if _, err := s.trips.GetTrip(ctx, userID, tripID); err != nil {
		return nil, err
	}
	out, err := s.repo.ListExpenses(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return out, nil
}

func (s *ExpenseService) UpdateExpense(ctx context.Context, userID, expenseID string, in ExpenseInput) (core.Expense, error) {
	e, err := s.GetExpense(ctx, userID, expenseID)
	if err != nil {
		return core.Expense{}, err
	}
	in.apply(&e)
	if err := e.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("validate expense: %w", err)
	}
	if err := s.repo.UpdateExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	s.logSaved(ctx, applog.OpUpdate, e)
	s.publishWake(ctx, "expense_updated", e.TripID)
	return s.repo.GetExpense(ctx, expenseID)
}

func (s *ExpenseService) DeleteExpense(ctx context.Context, userID, expenseID string) error {
	e, err := s.GetExpense(ctx, userID, expenseID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteExpense(ctx, expenseID); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	slog.InfoContext(ctx, "Expense deleted", "user_id", userID, "trip_id", e.TripID, "expense_id", expenseID)
	s.publishWake(ctx, "expense_deleted", e.TripID)
	return nil
}

func (s *ExpenseService) logSaved(ctx context.Context, op string, e core.Expense) {
	applog.NewStructuredLogger(applog.FromContext(ctx)).LogExpenseSaved(ctx, op, applog.ExpenseRecord{
		UserID:      e.UserID,
		TripID:      e.TripID,
		ExpenseID:   e.ID,
		Category:    string(e.Category),
		AmountCents: e.Amount.Cents,
	})
}

func (s *ExpenseService) publishWake(ctx context.Context, reason, tripID string) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, worker will pick up changes on its next poll")
		return
	}
	// Don't fail the request - the outbox item is already stored
	if err := wake(ctx, s.publisher, reason, tripID); err != nil {
		slog.WarnContext(ctx, "Failed to publish outbox wake-up", "trip_id", tripID, "error", err)
	}
}

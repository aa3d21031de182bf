package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"tripledger/internal/amqp"
	"tripledger/internal/core"
	"tripledger/internal/storage"
)

// Reminder kinds recorded in the reminder log.
const (
	ReminderKindBudget   = "budget"
	ReminderKindExpenses = "expenses"
)

// tripWindow widens the active-trip query so every time zone is covered;
// the exact check is done per trip.
const tripWindow = 36 * time.Hour

// ReminderResult summarizes one pass of the reminder processor.
type ReminderResult struct {
	ActiveTrips  int
	BudgetAlerts int
	Reminders    int
}

// ReminderProcessor notifies travellers about their budget and reminds them
// to log expenses while a trip is active.
type ReminderProcessor struct {
	repo        Repository
	log         storage.ReminderLog
	notifier    Notifier
	policy      ReminderPolicy
	loc         *time.Location
	concurrency int
}

func NewReminderProcessor(repo Repository, log storage.ReminderLog, notifier Notifier, policy ReminderPolicy, loc *time.Location) *ReminderProcessor {
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderProcessor{
		repo:        repo,
		log:         log,
		notifier:    notifier,
		policy:      policy,
		loc:         loc,
		concurrency: 4,
	}
}

// ProcessDue evaluates every trip active at now.
func (p *ReminderProcessor) ProcessDue(ctx context.Context, now time.Time) (ReminderResult, error) {
	if p.repo == nil || p.log == nil || p.notifier == nil || p.policy == nil {
		return ReminderResult{}, fmt.Errorf("processor not properly initialized")
	}

	candidates, err := p.repo.ListTripsOverlapping(ctx, now.Add(-tripWindow), now.Add(tripWindow))
	if err != nil {
		return ReminderResult{}, fmt.Errorf("list active trips: %w", err)
	}

	var (
		result           ReminderResult
		alerts, reminded atomic.Int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, trip := range candidates {
		if !trip.ActiveAt(now, p.loc) {
			continue
		}
		result.ActiveTrips++
		g.Go(func() error {
			alerted, sent, err := p.processTrip(gctx, trip, now)
			if err != nil {
				// one trip must not block the others
				slog.ErrorContext(gctx, "Failed to process trip reminders", "trip_id", trip.ID, "error", err)
				return nil
			}
			if alerted {
				alerts.Add(1)
			}
			if sent {
				reminded.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	result.BudgetAlerts = int(alerts.Load())
	result.Reminders = int(reminded.Load())

	slog.InfoContext(ctx, "Reminder processing complete",
		"active_trips", result.ActiveTrips,
		"budget_alerts", result.BudgetAlerts,
		"reminders", result.Reminders)
	return result, nil
}

func (p *ReminderProcessor) processTrip(ctx context.Context, trip core.Trip, now time.Time) (alerted, reminded bool, err error) {
	expenses, err := p.repo.ListExpenses(ctx, trip.ID)
	if err != nil {
		return false, false, fmt.Errorf("list expenses: %w", err)
	}

	alerted, err = p.checkBudget(ctx, trip, core.EvaluateBudget(trip, expenses), now)
	if err != nil {
		return false, false, err
	}
	reminded, err = p.checkReminder(ctx, trip, now)
	return alerted, reminded, err
}

// checkBudget notifies when the alert state changes into warning or
// exceeded. Returning to normal is recorded silently so that crossing the
// threshold again notifies again.
func (p *ReminderProcessor) checkBudget(ctx context.Context, trip core.Trip, status core.BudgetStatus, now time.Time) (bool, error) {
	rec, err := p.log.GetReminder(ctx, trip.ID, ReminderKindBudget)
	if err != nil {
		return false, fmt.Errorf("get budget reminder: %w", err)
	}
	state := string(status.State)
	if state == rec.State || (rec.State == "" && !status.Actionable()) {
		return false, nil
	}

	notified := false
	if status.Actionable() {
		msg := budgetNotification(trip, status)
		if err := p.notifier.PublishNotification(ctx, msg); err != nil {
			return false, fmt.Errorf("publish budget notification: %w", err)
		}
		notified = true
		slog.InfoContext(ctx, "Budget alert sent",
			"trip_id", trip.ID,
			"user_id", trip.UserID,
			"alert_state", state,
			"percentage", status.Percentage)
	}

	rec.State = state
	rec.SentAt = now
	if err := p.log.SaveReminder(ctx, rec); err != nil {
		return notified, fmt.Errorf("save budget reminder: %w", err)
	}
	return notified, nil
}

func (p *ReminderProcessor) checkReminder(ctx context.Context, trip core.Trip, now time.Time) (bool, error) {
	rec, err := p.log.GetReminder(ctx, trip.ID, ReminderKindExpenses)
	if err != nil {
		return false, fmt.Errorf("get expense reminder: %w", err)
	}
	if !p.policy.IsDue(rec.SentAt, now, trip) {
		return false, nil
	}

	msg := amqp.NotificationMessage{
		Kind:      amqp.NotificationReminder,
		UserID:    trip.UserID,
		TripID:    trip.ID,
		Title:     "Don't forget to log your expenses",
		Body:      fmt.Sprintf("Add today's expenses for %s.", trip.Name),
		Timestamp: now,
	}
	if err := p.notifier.PublishNotification(ctx, msg); err != nil {
		return false, fmt.Errorf("publish reminder: %w", err)
	}

	rec.SentAt = now
	if err := p.log.SaveReminder(ctx, rec); err != nil {
		return true, fmt.Errorf("save expense reminder: %w", err)
	}
	return true, nil
}

func budgetNotification(trip core.Trip, status core.BudgetStatus) amqp.NotificationMessage {
	msg := amqp.NotificationMessage{
		Kind:   amqp.NotificationBudget,
		UserID: trip.UserID,
		TripID: trip.ID,
		State:  string(status.State),
	}
	switch status.State {
	case core.AlertExceeded:
		msg.Title = "Budget exceeded"
		msg.Body = fmt.Sprintf("%s is %s over its budget of %s.", trip.Name, status.Overrun(), status.Budget)
	default:
		msg.Title = "Budget warning"
		msg.Body = fmt.Sprintf("You've used %.0f%% of the budget for %s (%s of %s).",
			status.Percentage, trip.Name, status.Spent, status.Budget)
	}
	return msg
}

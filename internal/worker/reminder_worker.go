package worker

import (
	"context"
	"time"

	applog "tripledger/internal/log"
	"tripledger/internal/services"
)

// ReminderRunner evaluates budget alerts and logging reminders at now.
type ReminderRunner interface {
	ProcessDue(ctx context.Context, now time.Time) (services.ReminderResult, error)
}

// ReminderWorker calls the runner once at start-up and then on every tick.
type ReminderWorker struct {
	runner   ReminderRunner
	interval time.Duration
	logger   *applog.Logger
	now      func() time.Time
}

func NewReminderWorker(runner ReminderRunner, interval time.Duration, logger *applog.Logger) *ReminderWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &ReminderWorker{
		runner:   runner,
		interval: interval,
		logger:   logger.WithComponent(applog.ComponentReminder),
		now:      time.Now,
	}
}

// RunOnce performs a single pass and logs its outcome.
func (w *ReminderWorker) RunOnce(ctx context.Context) (services.ReminderResult, error) {
	now := w.now()
	res, err := w.runner.ProcessDue(ctx, now)
	if err != nil {
		w.logger.ErrorContext(ctx, "Reminder pass failed", applog.FieldError, err)
		return res, err
	}
	w.logger.InfoContext(ctx, "Reminder pass complete",
		"active_trips", res.ActiveTrips,
		"budget_alerts", res.BudgetAlerts,
		"reminders", res.Reminders,
		"next_check", now.Add(w.interval).Format("15:04:05"))
	return res, nil
}

// Run blocks until ctx is cancelled. A failed pass is logged and retried on
// the next tick.
func (w *ReminderWorker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Reminder worker started", "interval", w.interval)
	_, _ = w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Reminder worker stopped")
			return nil
		case <-ticker.C:
			_, _ = w.RunOnce(ctx)
		}
	}
}

package services

import (
	"context"

	"tripledger/internal/amqp"
	"tripledger/internal/storage"
)

// Repository is the part of the store the request path needs.
type Repository interface {
	storage.TripStore
	storage.ExpenseStore
}

// WakePublisher nudges the sync worker after a write. Optional.
type WakePublisher interface {
	PublishOutboxWake(ctx context.Context, reason, tripID string) error
}

// ReceiptPurger deletes receipt images nobody references anymore.
type ReceiptPurger interface {
	PurgeReceipt(ctx context.Context, expenseID, imageURL string) error
}

// Notifier delivers user notifications.
type Notifier interface {
	PublishNotification(ctx context.Context, msg amqp.NotificationMessage) error
}

// wake publishes a best-effort wake-up; failures are logged by the caller.
func wake(ctx context.Context, p WakePublisher, reason, tripID string) error {
	if p == nil {
		return nil
	}
	return p.PublishOutboxWake(ctx, reason, tripID)
}

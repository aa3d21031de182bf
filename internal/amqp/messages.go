package amqp

import (
	"encoding/json"
	"time"
)

// Routing keys on the exchange besides the wake-up queue name.
const (
	RoutingReceiptPurge  = "receipts.purge"
	RoutingNotifications = "notifications"
)

// OutboxWakeMessage asks the sync worker to drain the outbox now instead of
// waiting for its next poll. It carries no payload the worker relies on.
type OutboxWakeMessage struct {
	Reason    string    `json:"reason"`
	TripID    string    `json:"trip_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewOutboxWakeMessage(reason, tripID string) *OutboxWakeMessage {
	return &OutboxWakeMessage{Reason: reason, TripID: tripID, Timestamp: time.Now()}
}

// ReceiptPurgeMessage tells the image store to delete a receipt that no
// expense references anymore.
type ReceiptPurgeMessage struct {
	ExpenseID string    `json:"expense_id"`
	ImageURL  string    `json:"image_url"`
	Timestamp time.Time `json:"timestamp"`
}

func NewReceiptPurgeMessage(expenseID, imageURL string) *ReceiptPurgeMessage {
	return &ReceiptPurgeMessage{ExpenseID: expenseID, ImageURL: imageURL, Timestamp: time.Now()}
}

// Notification kinds.
const (
	NotificationBudget   = "budget"
	NotificationReminder = "reminder"
)

// NotificationMessage is delivered to the user's device by the push gateway.
type NotificationMessage struct {
	Kind      string    `json:"kind"`
	UserID    string    `json:"user_id"`
	TripID    string    `json:"trip_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	State     string    `json:"state,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes
func (m *OutboxWakeMessage) ToJSON() ([]byte, error) { return json.Marshal(m) }

func (m *ReceiptPurgeMessage) ToJSON() ([]byte, error) { return json.Marshal(m) }

func (m *NotificationMessage) ToJSON() ([]byte, error) { return json.Marshal(m) }

// OutboxWakeMessageFromJSON creates a message from JSON bytes
func OutboxWakeMessageFromJSON(data []byte) (*OutboxWakeMessage, error) {
	var msg OutboxWakeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func NotificationMessageFromJSON(data []byte) (*NotificationMessage, error) {
	var msg NotificationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

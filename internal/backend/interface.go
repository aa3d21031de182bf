package backend

import (
	"context"

	"tripledger/internal/amqp"
	"tripledger/internal/services"
	"tripledger/internal/sheets"
	"tripledger/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store, the optional broker and the cleanup
// function releasing both.
type BackendResult struct {
	Store storage.Store
	// Broker is nil when AMQP is not configured or unreachable.
	Broker *amqp.Client
	// Persistent is false for the in-process memory store.
	Persistent bool
	Cleanup    CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	// CreateExporter returns the sheet exporter, or nil when export is off.
	CreateExporter(ctx context.Context, config Config) (sheets.ExpenseExporter, error)
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// The accessors below return nil interfaces when no broker is connected.

func (r *BackendResult) WakePublisher() services.WakePublisher {
	if r.Broker == nil {
		return nil
	}
	return r.Broker
}

func (r *BackendResult) ReceiptPurger() services.ReceiptPurger {
	if r.Broker == nil {
		return nil
	}
	return r.Broker
}

func (r *BackendResult) Notifier() services.Notifier {
	if r.Broker == nil {
		return nil
	}
	return r.Broker
}

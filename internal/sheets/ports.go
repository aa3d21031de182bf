package sheets

import (
	"context"

	"tripledger/internal/core"
)

// Ports for outbound adapters.
type (
	// ExpenseExporter mirrors expenses into an external spreadsheet, one row
	// per expense keyed by expense ID.
	ExpenseExporter interface {
		// ExportExpense inserts or replaces the row of e.
		ExportExpense(ctx context.Context, trip core.Trip, e core.Expense) (rowRef string, err error)
		// RemoveExpense deletes the row of expenseID. A missing row is not an error.
		RemoveExpense(ctx context.Context, expenseID string) error
	}
)

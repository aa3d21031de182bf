package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tripledger/internal/core"
	"tripledger/internal/sheets"
)

// Exporter keeps exported rows in memory, in insertion order.
type Exporter struct {
	mu   sync.Mutex
	loc  *time.Location
	rows [][]string
}

var _ sheets.ExpenseExporter = (*Exporter)(nil)

func New(loc *time.Location) *Exporter {
	return &Exporter{loc: loc}
}

func (x *Exporter) indexOf(expenseID string) int {
	for i, r := range x.rows {
		if r[0] == expenseID {
			return i
		}
	}
	return -1
}

// ExportExpense stores the row and returns a synthetic row reference.
func (x *Exporter) ExportExpense(_ context.Context, trip core.Trip, e core.Expense) (string, error) {
	if e.ID == "" {
		return "", fmt.Errorf("export expense: missing id")
	}
	row := sheets.ExpenseRow(trip, e, x.loc)

	x.mu.Lock()
	defer x.mu.Unlock()
	if i := x.indexOf(e.ID); i >= 0 {
		x.rows[i] = row
		return fmt.Sprintf("mem:%d", i+1), nil
	}
	x.rows = append(x.rows, row)
	return fmt.Sprintf("mem:%d", len(x.rows)), nil
}

func (x *Exporter) RemoveExpense(_ context.Context, expenseID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if i := x.indexOf(expenseID); i >= 0 {
		x.rows = append(x.rows[:i], x.rows[i+1:]...)
	}
	return nil
}

// Rows returns a copy of the exported rows.
func (x *Exporter) Rows() [][]string {
	x.mu.Lock()
	defer x.mu.Unlock()
	out := make([][]string, len(x.rows))
	for i, r := range x.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

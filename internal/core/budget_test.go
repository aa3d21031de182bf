package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateBudgetTotal(t *testing.T) {
	budget := Money{Cents: 100000}
	zero := Money{}

	cases := []struct {
		name      string
		budget    *Money
		spent     int64
		state     AlertState
		pct       float64
		remaining int64
	}{
		{"no budget", nil, 50000, AlertNone, 0, 0},
		{"zero budget", &zero, 50000, AlertNone, 0, 0},
		{"nothing spent", &budget, 0, AlertNormal, 0, 100000},
		{"just below warning", &budget, 79999, AlertNormal, 79.999, 20001},
		{"warning boundary", &budget, 80000, AlertWarning, 80, 20000},
		{"just below exceeded", &budget, 99999, AlertWarning, 99.999, 1},
		{"exceeded boundary", &budget, 100000, AlertExceeded, 100, 0},
		{"over budget", &budget, 120000, AlertExceeded, 120, -20000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := EvaluateBudgetTotal(tc.budget, Money{Cents: tc.spent})
			assert.Equal(t, tc.state, got.State)
			assert.InDelta(t, tc.pct, got.Percentage, 1e-9)
			assert.Equal(t, Money{Cents: tc.remaining}, got.Remaining)
			assert.Equal(t, Money{Cents: tc.spent}, got.Spent)
		})
	}
}

func TestBudgetStatusHelpers(t *testing.T) {
	budget := Money{Cents: 1000}

	over := EvaluateBudgetTotal(&budget, Money{Cents: 1200})
	assert.True(t, over.Actionable())
	assert.Equal(t, Money{}, over.Available())
	assert.Equal(t, Money{Cents: 200}, over.Overrun())

	under := EvaluateBudgetTotal(&budget, Money{Cents: 100})
	assert.False(t, under.Actionable())
	assert.Equal(t, Money{Cents: 900}, under.Available())
	assert.Equal(t, Money{}, under.Overrun())

	assert.False(t, EvaluateBudgetTotal(nil, Money{Cents: 1}).Actionable())
}

func TestEvaluateBudgetFromExpenses(t *testing.T) {
	budget := Money{Cents: 100000}
	trip := Trip{Budget: &budget}
	at := day(2024, 1, 1)
	got := EvaluateBudget(trip, []Expense{exp(CategoryFood, 60000, at), exp(CategoryTravel, 20000, at)})
	assert.Equal(t, AlertWarning, got.State)
	assert.Equal(t, Money{Cents: 20000}, got.Remaining)
}

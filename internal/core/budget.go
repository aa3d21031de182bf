package core

import "github.com/shopspring/decimal"

// AlertState classifies spending against a trip budget.
type AlertState string

const (
	AlertNone     AlertState = "none" // no budget configured
	AlertNormal   AlertState = "normal"
	AlertWarning  AlertState = "warning"
	AlertExceeded AlertState = "exceeded"
)

// Threshold percentages. Both bounds are inclusive.
var (
	WarningThreshold  = decimal.NewFromInt(80)
	ExceededThreshold = decimal.NewFromInt(100)
)

// BudgetStatus is the result of evaluating spending against a budget.
type BudgetStatus struct {
	State      AlertState
	Budget     Money
	Spent      Money
	Remaining  Money   // Budget - Spent, negative once exceeded
	Percentage float64 // Spent / Budget * 100
}

// Actionable reports whether the status should be surfaced to the user.
func (b BudgetStatus) Actionable() bool {
	return b.State == AlertWarning || b.State == AlertExceeded
}

// Available is the remaining budget clamped at zero.
func (b BudgetStatus) Available() Money {
	if b.Remaining.Cents < 0 {
		return Money{}
	}
	return b.Remaining
}

// Overrun is the amount spent beyond the budget, zero when within it.
func (b BudgetStatus) Overrun() Money {
	if b.Remaining.Cents >= 0 {
		return Money{}
	}
	return Money{Cents: -b.Remaining.Cents}
}

// EvaluateBudget evaluates the trip budget against the sum of expenses.
func EvaluateBudget(trip Trip, expenses []Expense) BudgetStatus {
	return EvaluateBudgetTotal(trip.Budget, TotalSpending(expenses))
}

// EvaluateBudgetTotal evaluates budget against an already computed total.
// A nil or zero budget yields AlertNone.
func EvaluateBudgetTotal(budget *Money, spent Money) BudgetStatus {
	if budget == nil || budget.Cents <= 0 {
		return BudgetStatus{State: AlertNone, Spent: spent}
	}

	// spent*100 >= budget*threshold, compared without division.
	scaled := decimal.NewFromInt(spent.Cents).Mul(hundred)
	limit := decimal.NewFromInt(budget.Cents)
	state := AlertNormal
	switch {
	case scaled.GreaterThanOrEqual(limit.Mul(ExceededThreshold)):
		state = AlertExceeded
	case scaled.GreaterThanOrEqual(limit.Mul(WarningThreshold)):
		state = AlertWarning
	}

	return BudgetStatus{
		State:      state,
		Budget:     *budget,
		Spent:      spent,
		Remaining:  budget.Sub(spent),
		Percentage: ratio(spent.Cents, budget.Cents).InexactFloat64(),
	}
}

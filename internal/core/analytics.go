package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CategorySummary is the spending of one category within a list of expenses.
type CategorySummary struct {
	Category   Category
	Total      Money
	Percentage float64 // share of the grand total, 0..100
}

// CategoryBreakdown is a CategorySummary decorated for charts.
type CategoryBreakdown struct {
	CategorySummary
	Label string
	Color string
}

// DailySummary is the spending of one calendar day.
type DailySummary struct {
	Date  string // YYYY-MM-DD
	Total Money
}

// TotalSpending sums the amounts of expenses. The sum of no expenses is zero.
func TotalSpending(expenses []Expense) Money {
	var total Money
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// SummarizeByCategory returns one entry per category present in expenses,
// ordered by total descending and then by category identifier.
func SummarizeByCategory(expenses []Expense) []CategorySummary {
	if len(expenses) == 0 {
		return []CategorySummary{}
	}

	totals := make(map[Category]int64)
	var grand int64
	for _, e := range expenses {
		totals[e.Category] += e.Amount.Cents
		grand += e.Amount.Cents
	}

	out := make([]CategorySummary, 0, len(totals))
	for cat, cents := range totals {
		out = append(out, CategorySummary{
			Category:   cat,
			Total:      Money{Cents: cents},
			Percentage: percentOf(cents, grand),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total.Cents != out[j].Total.Cents {
			return out[i].Total.Cents > out[j].Total.Cents
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// SummarizeByDay groups expenses by calendar day in loc (UTC when nil),
// ascending by day. Time of day is discarded.
func SummarizeByDay(expenses []Expense, loc *time.Location) []DailySummary {
	if loc == nil {
		loc = time.UTC
	}
	type day struct {
		start time.Time
		cents int64
	}
	days := make(map[string]*day)
	for _, e := range expenses {
		key := DayKey(e.Date, loc)
		d, ok := days[key]
		if !ok {
			y, m, dd := e.Date.In(loc).Date()
			d = &day{start: time.Date(y, m, dd, 0, 0, 0, 0, loc)}
			days[key] = d
		}
		d.cents += e.Amount.Cents
	}

	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	// Ordered by the day itself; the string key only matches calendar
	// order for four-digit years.
	sort.Slice(keys, func(i, j int) bool { return days[keys[i]].start.Before(days[keys[j]].start) })

	out := make([]DailySummary, 0, len(keys))
	for _, k := range keys {
		out = append(out, DailySummary{Date: k, Total: Money{Cents: days[k].cents}})
	}
	return out
}

// DescribeCategories attaches registry label and color to each summary.
func DescribeCategories(summaries []CategorySummary) ([]CategoryBreakdown, error) {
	out := make([]CategoryBreakdown, 0, len(summaries))
	for _, s := range summaries {
		info, err := LookupCategory(s.Category)
		if err != nil {
			return nil, err
		}
		out = append(out, CategoryBreakdown{CategorySummary: s, Label: info.Label, Color: info.Color})
	}
	return out, nil
}

// LocatedExpenses returns the expenses that carry a location, in input order.
func LocatedExpenses(expenses []Expense) []Expense {
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if e.HasLocation() {
			out = append(out, e)
		}
	}
	return out
}

// TripOverview is everything the trip page shows about spending.
type TripOverview struct {
	Trip         Trip
	ExpenseCount int
	Total        Money
	Categories   []CategorySummary
	Daily        []DailySummary
	Budget       BudgetStatus
}

// Overview computes the spending overview of a trip from its expenses.
// Daily grouping uses the trip's time zone, falling back to def.
func Overview(trip Trip, expenses []Expense, def *time.Location) TripOverview {
	total := TotalSpending(expenses)
	return TripOverview{
		Trip:         trip,
		ExpenseCount: len(expenses),
		Total:        total,
		Categories:   SummarizeByCategory(expenses),
		Daily:        SummarizeByDay(expenses, trip.Location(def)),
		Budget:       EvaluateBudgetTotal(trip.Budget, total),
	}
}

func percentOf(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return ratio(part, whole).InexactFloat64()
}

// ratio returns part/whole*100 as a decimal. whole must not be zero.
func ratio(part, whole int64) decimal.Decimal {
	return decimal.NewFromInt(part).Mul(hundred).Div(decimal.NewFromInt(whole))
}

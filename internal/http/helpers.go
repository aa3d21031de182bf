package http

import (
	"strings"
	"time"

	"tripledger/internal/core"
)

// sanitizeInput removes control characters (except tab and newlines) and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// moneyJSON exposes both the exact cents and a display string.
type moneyJSON struct {
	Cents  int64  `json:"cents"`
	Amount string `json:"amount"`
}

func toMoney(m core.Money) moneyJSON {
	return moneyJSON{Cents: m.Cents, Amount: m.String()}
}

type tripJSON struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Destination string     `json:"destination"`
	StartDate   string     `json:"start_date"`
	EndDate     string     `json:"end_date"`
	Budget      *moneyJSON `json:"budget,omitempty"`
	TimeZone    string     `json:"time_zone,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toTrip(t core.Trip, def *time.Location) tripJSON {
	loc := t.Location(def)
	out := tripJSON{
		ID:          t.ID,
		Name:        t.Name,
		Destination: t.Destination,
		StartDate:   core.DayKey(t.StartDate, loc),
		EndDate:     core.DayKey(t.EndDate, loc),
		TimeZone:    t.TimeZone,
		CreatedAt:   t.CreatedAt,
	}
	if t.Budget != nil {
		b := toMoney(*t.Budget)
		out.Budget = &b
	}
	return out
}

type locationJSON struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
}

type expenseJSON struct {
	ID        string        `json:"id"`
	TripID    string        `json:"trip_id"`
	Amount    moneyJSON     `json:"amount"`
	Category  core.Category `json:"category"`
	Date      time.Time     `json:"date"`
	Day       string        `json:"day"`
	Location  *locationJSON `json:"location,omitempty"`
	Notes     string        `json:"notes,omitempty"`
	ImageURL  string        `json:"image_url,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

func toExpense(e core.Expense, loc *time.Location) expenseJSON {
	out := expenseJSON{
		ID:        e.ID,
		TripID:    e.TripID,
		Amount:    toMoney(e.Amount),
		Category:  e.Category,
		Date:      e.Date,
		Day:       core.DayKey(e.Date, loc),
		Notes:     e.Notes,
		ImageURL:  e.ImageURL,
		CreatedAt: e.CreatedAt,
	}
	if e.Location != nil {
		out.Location = &locationJSON{Latitude: e.Location.Latitude, Longitude: e.Location.Longitude, Name: e.Location.Name}
	}
	return out
}

func toExpenses(expenses []core.Expense, loc *time.Location) []expenseJSON {
	out := make([]expenseJSON, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpense(e, loc))
	}
	return out
}

type categoryJSON struct {
	ID    core.Category `json:"id"`
	Label string        `json:"label"`
	Color string        `json:"color"`
}

type categorySummaryJSON struct {
	categoryJSON
	Total      moneyJSON `json:"total"`
	Percentage float64   `json:"percentage"`
}

type dailySummaryJSON struct {
	Date  string    `json:"date"`
	Total moneyJSON `json:"total"`
}

type budgetJSON struct {
	State      core.AlertState `json:"state"`
	Budget     *moneyJSON      `json:"budget,omitempty"`
	Spent      moneyJSON       `json:"spent"`
	Remaining  *moneyJSON      `json:"remaining,omitempty"`
	Available  *moneyJSON      `json:"available,omitempty"`
	Overrun    *moneyJSON      `json:"overrun,omitempty"`
	Percentage float64         `json:"percentage"`
	Actionable bool            `json:"actionable"`
}

func toBudget(b core.BudgetStatus) budgetJSON {
	out := budgetJSON{
		State:      b.State,
		Spent:      toMoney(b.Spent),
		Percentage: b.Percentage,
		Actionable: b.Actionable(),
	}
	if b.State == core.AlertNone {
		return out
	}
	budget, remaining := toMoney(b.Budget), toMoney(b.Remaining)
	available, overrun := toMoney(b.Available()), toMoney(b.Overrun())
	out.Budget = &budget
	out.Remaining = &remaining
	out.Available = &available
	out.Overrun = &overrun
	return out
}

type analyticsJSON struct {
	TripID       string                `json:"trip_id"`
	ExpenseCount int                   `json:"expense_count"`
	Total        moneyJSON             `json:"total"`
	Categories   []categorySummaryJSON `json:"categories"`
	Daily        []dailySummaryJSON    `json:"daily"`
	Budget       budgetJSON            `json:"budget"`
}

func toAnalytics(o core.TripOverview) (analyticsJSON, error) {
	breakdown, err := core.DescribeCategories(o.Categories)
	if err != nil {
		return analyticsJSON{}, err
	}
	out := analyticsJSON{
		TripID:       o.Trip.ID,
		ExpenseCount: o.ExpenseCount,
		Total:        toMoney(o.Total),
		Categories:   make([]categorySummaryJSON, 0, len(breakdown)),
		Daily:        make([]dailySummaryJSON, 0, len(o.Daily)),
		Budget:       toBudget(o.Budget),
	}
	for _, c := range breakdown {
		out.Categories = append(out.Categories, categorySummaryJSON{
			categoryJSON: categoryJSON{ID: c.Category, Label: c.Label, Color: c.Color},
			Total:        toMoney(c.Total),
			Percentage:   c.Percentage,
		})
	}
	for _, d := range o.Daily {
		out.Daily = append(out.Daily, dailySummaryJSON{Date: d.Date, Total: toMoney(d.Total)})
	}
	return out, nil
}

type mapPointJSON struct {
	ExpenseID string        `json:"expense_id"`
	Latitude  float64       `json:"latitude"`
	Longitude float64       `json:"longitude"`
	Name      string        `json:"name,omitempty"`
	Category  core.Category `json:"category"`
	Label     string        `json:"label"`
	Color     string        `json:"color"`
	Amount    moneyJSON     `json:"amount"`
	Day       string        `json:"day"`
}

func toMapPoints(expenses []core.Expense, loc *time.Location) ([]mapPointJSON, error) {
	located := core.LocatedExpenses(expenses)
	out := make([]mapPointJSON, 0, len(located))
	for _, e := range located {
		info, err := core.LookupCategory(e.Category)
		if err != nil {
			return nil, err
		}
		out = append(out, mapPointJSON{
			ExpenseID: e.ID,
			Latitude:  e.Location.Latitude,
			Longitude: e.Location.Longitude,
			Name:      e.Location.Name,
			Category:  e.Category,
			Label:     info.Label,
			Color:     info.Color,
			Amount:    toMoney(e.Amount),
			Day:       core.DayKey(e.Date, loc),
		})
	}
	return out, nil
}

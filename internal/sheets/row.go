package sheets

import (
	"strconv"
	"time"

	"tripledger/internal/core"
)

// Header is the first row of the export sheet.
var Header = []string{"Expense ID", "Trip", "Destination", "Date", "Category", "Amount", "Notes", "Location"}

// ExpenseRow formats e for the export sheet. The date is rendered in the
// trip's time zone, falling back to def.
func ExpenseRow(trip core.Trip, e core.Expense, def *time.Location) []string {
	return []string{
		e.ID,
		trip.Name,
		trip.Destination,
		core.DayKey(e.Date, trip.Location(def)),
		e.Category.Label(),
		e.Amount.String(),
		e.Notes,
		formatLocation(e.Location),
	}
}

func formatLocation(l *core.Location) string {
	if l == nil {
		return ""
	}
	coords := strconv.FormatFloat(l.Latitude, 'f', 5, 64) + "," + strconv.FormatFloat(l.Longitude, 'f', 5, 64)
	if l.Name == "" {
		return coords
	}
	return l.Name + " (" + coords + ")"
}

package http

import (
	"net/http"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r.Context())
	if err != nil {
		UnauthorizedError(err.Error()).Write(w)
		return
	}
	tripID := r.PathValue("id")

	trip, err := s.trips.GetTrip(r.Context(), userID, tripID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	expenses, err := s.expenses.ListExpenses(r.Context(), userID, tripID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(toExpenses(expenses, trip.Location(s.trips.Location()))).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r.Context())
	if err != nil {
		UnauthorizedError(err.Error()).Write(w)
		return
	}
	tripID := r.PathValue("id")

	var body expensePayload
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	trip, err := s.trips.GetTrip(r.Context(), userID, tripID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	loc := trip.Location(s.trips.Location())

	in, err := body.input(loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	expense, err := s.expenses.CreateExpense(r.Context(), userID, tripID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/expenses/"+expense.ID).
		Body(toExpense(expense, loc)).
		Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r.Context())
	if err != nil {
		UnauthorizedError(err.Error()).Write(w)
		return
	}
	expense, err := s.expenses.GetExpense(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	trip, err := s.trips.GetTrip(r.Context(), userID, expense.TripID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(toExpense(expense, trip.Location(s.trips.Location()))).Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r.Context())
	if err != nil {
		UnauthorizedError(err.Error()).Write(w)
		return
	}
	expenseID := r.PathValue("id")

	var body expensePayload
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	current, err := s.expenses.GetExpense(r.Context(), userID, expenseID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	trip, err := s.trips.GetTrip(r.Context(), userID, current.TripID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	loc := trip.Location(s.trips.Location())

	in, err := body.input(loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.expenses.UpdateExpense(r.Context(), userID, expenseID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(toExpense(updated, loc)).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r.Context())
	if err != nil {
		UnauthorizedError(err.Error()).Write(w)
		return
	}
	expenseID := r.PathValue("id")

	if err := s.expenses.DeleteExpense(r.Context(), userID, expenseID); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

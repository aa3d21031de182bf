package http

import (
	"net/http"
)

// handleAnalytics returns the total, per-category and per-day spending
// and budget status of a trip, computed from the stored expenses on every
// request.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r.Context())
	if err != nil {
		UnauthorizedError(err.Error()).Write(w)
		return
	}
	overview, _, err := s.trips.Overview(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := toAnalytics(overview)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(out).Write(w)
}

// handleMap returns the located expenses of a trip as map points coloured
// by category.
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r.Context())
	if err != nil {
		UnauthorizedError(err.Error()).Write(w)
		return
	}
	overview, expenses, err := s.trips.Overview(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	points, err := toMapPoints(expenses, overview.Trip.Location(s.trips.Location()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(map[string]any{
		"trip_id": overview.Trip.ID,
		"points":  points,
	}).Write(w)
}

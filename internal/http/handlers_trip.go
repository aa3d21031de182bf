package http

import (
	"net/http"
)

func (s *Server) handleListTrips(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r.Context())
	if err != nil {
		UnauthorizedError(err.Error()).Write(w)
		return
	}
	trips, err := s.trips.ListTrips(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]tripJSON, 0, len(trips))
	for _, t := range trips {
		out = append(out, toTrip(t, s.trips.Location()))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleCreateTrip(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r.Context())
	if err != nil {
		UnauthorizedError(err.Error()).Write(w)
		return
	}
	var body tripPayload
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := body.input(s.trips.Location())
	if err != nil {
		writeError(w, r, err)
		return
	}

	trip, err := s.trips.CreateTrip(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/trips/"+trip.ID).
		Body(toTrip(trip, s.trips.Location())).
		Write(w)
}

func (s *Server) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r.Context())
	if err != nil {
		UnauthorizedError(err.Error()).Write(w)
		return
	}
	trip, err := s.trips.GetTrip(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(toTrip(trip, s.trips.Location())).Write(w)
}

func (s *Server) handleUpdateTrip(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r.Context())
	if err != nil {
		UnauthorizedError(err.Error()).Write(w)
		return
	}
	tripID := r.PathValue("id")

	var body tripPayload
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := body.input(s.trips.Location())
	if err != nil {
		writeError(w, r, err)
		return
	}

	trip, err := s.trips.UpdateTrip(r.Context(), userID, tripID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(toTrip(trip, s.trips.Location())).Write(w)
}

func (s *Server) handleDeleteTrip(w http.ResponseWriter, r *http.Request) {
	userID, err := UserID(r.Context())
	if err != nil {
		UnauthorizedError(err.Error()).Write(w)
		return
	}
	tripID := r.PathValue("id")

	removed, err := s.trips.DeleteTrip(r.Context(), userID, tripID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(map[string]any{
		"deleted":          true,
		"trip_id":          tripID,
		"expenses_removed": removed,
	}).Write(w)
}

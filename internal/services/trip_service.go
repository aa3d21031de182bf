package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"tripledger/internal/core"
)

// TripInput carries the user-editable fields of a trip.
type TripInput struct {
	Name        string
	Destination string
	StartDate   time.Time
	EndDate     time.Time
	Budget      *core.Money
	TimeZone    string
}

func (in TripInput) apply(t *core.Trip) {
	t.Name = strings.TrimSpace(in.Name)
	t.Destination = strings.TrimSpace(in.Destination)
	t.StartDate = in.StartDate
	t.EndDate = in.EndDate
	t.Budget = in.Budget
	t.TimeZone = strings.TrimSpace(in.TimeZone)
}

// TripService manages trips on behalf of a user. A trip owned by someone
// else is reported as not found.
type TripService struct {
	repo      Repository
	publisher WakePublisher
	loc       *time.Location
}

func NewTripService(repo Repository, publisher WakePublisher, loc *time.Location) *TripService {
	if loc == nil {
		loc = time.UTC
	}
	return &TripService{repo: repo, publisher: publisher, loc: loc}
}

// Location is the default display location for trips without a time zone.
func (s *TripService) Location() *time.Location { return s.loc }

func (s *TripService) CreateTrip(ctx context.Context, userID string, in TripInput) (core.Trip, error) {
	t := core.Trip{UserID: userID}
	in.apply(&t)
	if err := t.Validate(); err != nil {
		return core.Trip{}, fmt.Errorf("validate trip: %w", err)
	}
	created, err := s.repo.CreateTrip(ctx, t)
	if err != nil {
		return core.Trip{}, fmt.Errorf("save trip: %w", err)
	}
	slog.InfoContext(ctx, "Trip created", "user_id", userID, "trip_id", created.ID)
	return created, nil
}

// GetTrip returns the trip if userID owns it.
func (s *TripService) GetTrip(ctx context.Context, userID, tripID string) (core.Trip, error) {
	t, err := s.repo.GetTrip(ctx, tripID)
	if err != nil {
		return core.Trip{}, err
	}
	if t.UserID != userID {
		return core.Trip{}, fmt.Errorf("trip %s: %w", tripID, core.ErrNotFound)
	}
	return t, nil
}

func (s *TripService) ListTrips(ctx context.Context, userID string) ([]core.Trip, error) {
	trips, err := s.repo.ListTrips(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	return trips, nil
}

func (s *TripService) UpdateTrip(ctx context.Context, userID, tripID string, in TripInput) (core.Trip, error) {
	t, err := s.GetTrip(ctx, userID, tripID)
	if err != nil {
		return core.Trip{}, err
	}
	in.apply(&t)
	if err := t.Validate(); err != nil {
		return core.Trip{}, fmt.Errorf("validate trip: %w", err)
	}
	if err := s.repo.UpdateTrip(ctx, t); err != nil {
		return core.Trip{}, fmt.Errorf("update trip: %w", err)
	}
	return s.repo.GetTrip(ctx, tripID)
}

// DeleteTrip removes the trip and every expense it owns. Sheet rows and
// receipts are cleaned up asynchronously through the outbox.
func (s *TripService) DeleteTrip(ctx context.Context, userID, tripID string) (int, error) {
	if _, err := s.GetTrip(ctx, userID, tripID); err != nil {
		return 0, err
	}
	n, err := s.repo.DeleteTrip(ctx, tripID)
	if err != nil {
		return 0, fmt.Errorf("delete trip: %w", err)
	}
	slog.InfoContext(ctx, "Trip deleted", "user_id", userID, "trip_id", tripID, "expenses_removed", n)

	if err := wake(ctx, s.publisher, "trip_deleted", tripID); err != nil {
		slog.WarnContext(ctx, "Failed to publish outbox wake-up", "trip_id", tripID, "error", err)
	}
	return n, nil
}

// Overview loads a trip and its expenses concurrently and aggregates them.
func (s *TripService) Overview(ctx context.Context, userID, tripID string) (core.TripOverview, []core.Expense, error) {
	var (
		trip     core.Trip
		expenses []core.Expense
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		trip, err = s.GetTrip(gctx, userID, tripID)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = s.repo.ListExpenses(gctx, tripID)
		if err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.TripOverview{}, nil, err
	}
	return core.Overview(trip, expenses, s.loc), expenses, nil
}

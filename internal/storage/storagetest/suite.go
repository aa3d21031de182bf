// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"tripledger/internal/core"
	"tripledger/internal/storage"
)

// StoreSuite runs against any storage.Store. NewStore is called before each test.
type StoreSuite struct {
	suite.Suite
	NewStore func() storage.Store

	store storage.Store
	ctx   context.Context
}

func (s *StoreSuite) SetupTest() {
	s.store = s.NewStore()
	s.ctx = context.Background()
}

func (s *StoreSuite) TearDownTest() {
	if s.store != nil {
		s.store.Close()
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *StoreSuite) createTrip(userID, name string, created time.Time) core.Trip {
	budget := core.Money{Cents: 100000}
	t, err := s.store.CreateTrip(s.ctx, core.Trip{
		UserID:      userID,
		Name:        name,
		Destination: "Somewhere",
		StartDate:   day(2024, 5, 1),
		EndDate:     day(2024, 5, 7),
		Budget:      &budget,
		CreatedAt:   created,
	})
	s.Require().NoError(err)
	s.Require().NotEmpty(t.ID)
	return t
}

func (s *StoreSuite) createExpense(trip core.Trip, cents int64, at time.Time, image string) core.Expense {
	e, err := s.store.CreateExpense(s.ctx, core.Expense{
		TripID:   trip.ID,
		UserID:   trip.UserID,
		Amount:   core.Money{Cents: cents},
		Category: core.CategoryFood,
		Date:     at,
		ImageURL: image,
	})
	s.Require().NoError(err)
	return e
}

func (s *StoreSuite) drainKinds() map[storage.OutboxKind]int {
	items, err := s.store.DequeueOutboxBatch(s.ctx, 1000)
	s.Require().NoError(err)
	kinds := map[storage.OutboxKind]int{}
	for _, it := range items {
		kinds[it.Kind]++
	}
	return kinds
}

func (s *StoreSuite) TestTripRoundTrip() {
	created := s.createTrip("u1", "Lisbon", day(2024, 4, 1))

	got, err := s.store.GetTrip(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal("Lisbon", got.Name)
	s.Equal("u1", got.UserID)
	s.True(got.StartDate.Equal(day(2024, 5, 1)))
	s.Require().NotNil(got.Budget)
	s.Equal(int64(100000), got.Budget.Cents)

	got.Name = "Porto"
	got.Budget = nil
	got.TimeZone = "Europe/Lisbon"
	s.Require().NoError(s.store.UpdateTrip(s.ctx, got))

	updated, err := s.store.GetTrip(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal("Porto", updated.Name)
	s.Nil(updated.Budget)
	s.Equal("Europe/Lisbon", updated.TimeZone)
}

func (s *StoreSuite) TestMissingRecords() {
	_, err := s.store.GetTrip(s.ctx, "nope")
	s.True(storage.IsNotFound(err), "got %v", err)

	_, err = s.store.GetExpense(s.ctx, "nope")
	s.True(storage.IsNotFound(err), "got %v", err)

	s.True(storage.IsNotFound(s.store.UpdateTrip(s.ctx, core.Trip{ID: "nope"})))
	s.True(storage.IsNotFound(s.store.DeleteExpense(s.ctx, "nope")))

	_, err = s.store.DeleteTrip(s.ctx, "nope")
	s.True(storage.IsNotFound(err))
}

func (s *StoreSuite) TestListTripsByUserNewestFirst() {
	older := s.createTrip("u1", "Older", day(2024, 1, 1))
	newer := s.createTrip("u1", "Newer", day(2024, 2, 1))
	s.createTrip("u2", "Someone else's", day(2024, 3, 1))

	trips, err := s.store.ListTrips(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().Len(trips, 2)
	s.Equal(newer.ID, trips[0].ID)
	s.Equal(older.ID, trips[1].ID)

	none, err := s.store.ListTrips(s.ctx, "u3")
	s.Require().NoError(err)
	s.NotNil(none)
	s.Empty(none)
}

func (s *StoreSuite) TestListTripsOverlapping() {
	t := s.createTrip("u1", "May", day(2024, 1, 1))

	in, err := s.store.ListTripsOverlapping(s.ctx, day(2024, 5, 7), day(2024, 5, 8))
	s.Require().NoError(err)
	s.Require().Len(in, 1)
	s.Equal(t.ID, in[0].ID)

	out, err := s.store.ListTripsOverlapping(s.ctx, day(2024, 5, 8), day(2024, 5, 9))
	s.Require().NoError(err)
	s.Empty(out)
}

func (s *StoreSuite) TestExpenseRoundTripAndOrdering() {
	trip := s.createTrip("u1", "Lisbon", day(2024, 4, 1))

	first := s.createExpense(trip, 1000, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), "")
	second := s.createExpense(trip, 2000, time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC), "")

	located := first
	located.Location = &core.Location{Latitude: 38.7, Longitude: -9.1, Name: "Alfama"}
	located.Notes = "tram"
	located.Category = core.CategoryLocalCommute
	s.Require().NoError(s.store.UpdateExpense(s.ctx, located))

	got, err := s.store.GetExpense(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Equal(core.CategoryLocalCommute, got.Category)
	s.Equal("tram", got.Notes)
	s.Require().NotNil(got.Location)
	s.InDelta(38.7, got.Location.Latitude, 1e-9)
	s.Equal("Alfama", got.Location.Name)

	list, err := s.store.ListExpenses(s.ctx, trip.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(second.ID, list[0].ID, "most recent date first")
	s.Equal(first.ID, list[1].ID)
}

func (s *StoreSuite) TestExpenseChangesQueueSideEffects() {
	trip := s.createTrip("u1", "Lisbon", day(2024, 4, 1))
	e := s.createExpense(trip, 1000, day(2024, 5, 1), "receipts/a.jpg")

	e.ImageURL = "receipts/b.jpg"
	s.Require().NoError(s.store.UpdateExpense(s.ctx, e))
	s.Require().NoError(s.store.DeleteExpense(s.ctx, e.ID))

	kinds := s.drainKinds()
	s.Equal(2, kinds[storage.OutboxExport])
	s.Equal(1, kinds[storage.OutboxUnexport])
	s.Equal(2, kinds[storage.OutboxReceiptPurge], "replaced and deleted receipts are both purged")
}

func (s *StoreSuite) TestDeleteTripCascades() {
	trip := s.createTrip("u1", "Lisbon", day(2024, 4, 1))
	other := s.createTrip("u1", "Rome", day(2024, 4, 2))
	a := s.createExpense(trip, 1000, day(2024, 5, 1), "receipts/a.jpg")
	s.createExpense(trip, 2000, day(2024, 5, 2), "")
	kept := s.createExpense(other, 500, day(2024, 5, 3), "")
	s.Require().NoError(s.store.SaveReminder(s.ctx, storage.ReminderRecord{TripID: trip.ID, Kind: "budget", SentAt: day(2024, 5, 1)}))

	removed, err := s.store.DeleteTrip(s.ctx, trip.ID)
	s.Require().NoError(err)
	s.Equal(2, removed)

	_, err = s.store.GetTrip(s.ctx, trip.ID)
	s.True(storage.IsNotFound(err))
	_, err = s.store.GetExpense(s.ctx, a.ID)
	s.True(storage.IsNotFound(err))

	left, err := s.store.ListExpenses(s.ctx, trip.ID)
	s.Require().NoError(err)
	s.Empty(left)

	stillThere, err := s.store.GetExpense(s.ctx, kept.ID)
	s.Require().NoError(err)
	s.Equal(kept.ID, stillThere.ID)

	rec, err := s.store.GetReminder(s.ctx, trip.ID, "budget")
	s.Require().NoError(err)
	s.True(rec.SentAt.IsZero())

	kinds := s.drainKinds()
	s.Equal(3, kinds[storage.OutboxExport])
	s.Equal(2, kinds[storage.OutboxUnexport])
	s.Equal(1, kinds[storage.OutboxReceiptPurge])
}

func (s *StoreSuite) TestOutboxLifecycle() {
	trip := s.createTrip("u1", "Lisbon", day(2024, 4, 1))
	s.createExpense(trip, 1000, day(2024, 5, 1), "")
	s.createExpense(trip, 2000, day(2024, 5, 2), "")

	items, err := s.store.DequeueOutboxBatch(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(items, 2)
	s.Less(items[0].ID, items[1].ID)

	first, second := items[0], items[1]

	s.Require().NoError(s.store.MarkOutboxProcessing(s.ctx, first.ID))
	s.Error(s.store.MarkOutboxProcessing(s.ctx, first.ID), "already claimed")
	s.Require().NoError(s.store.MarkOutboxComplete(s.ctx, first.ID))

	s.Require().NoError(s.store.MarkOutboxProcessing(s.ctx, second.ID))
	s.Require().NoError(s.store.IncrementOutboxAttempt(s.ctx, second.ID, "boom", time.Now().Add(time.Hour)))

	due, err := s.store.DequeueOutboxBatch(s.ctx, 10)
	s.Require().NoError(err)
	s.Empty(due, "backed-off item is not due yet")

	s.Require().NoError(s.store.MarkOutboxFailed(s.ctx, second.ID, "gave up"))
	stats, err := s.store.OutboxStats(s.ctx)
	s.Require().NoError(err)
	s.Equal(storage.OutboxStats{Completed: 1, Failed: 1}, stats)

	s.Require().NoError(s.store.RetryFailedOutbox(s.ctx))
	due, err = s.store.DequeueOutboxBatch(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(due, 1)
	s.Equal(second.ID, due[0].ID)
	s.Equal(int64(0), due[0].Attempts)

	s.Require().NoError(s.store.CleanupCompletedOutbox(s.ctx, time.Now().Add(time.Minute)))
	stats, err = s.store.OutboxStats(s.ctx)
	s.Require().NoError(err)
	s.Equal(storage.OutboxStats{Pending: 1}, stats)
}

func (s *StoreSuite) TestResetStaleProcessing() {
	trip := s.createTrip("u1", "Lisbon", day(2024, 4, 1))
	s.createExpense(trip, 1000, day(2024, 5, 1), "")

	items, err := s.store.DequeueOutboxBatch(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Require().NoError(s.store.MarkOutboxProcessing(s.ctx, items[0].ID))

	s.Require().NoError(s.store.ResetStaleProcessing(s.ctx))
	stats, err := s.store.OutboxStats(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), stats.Pending)
}

func (s *StoreSuite) TestReminderLog() {
	rec, err := s.store.GetReminder(s.ctx, "t1", "expenses")
	s.Require().NoError(err)
	s.True(rec.SentAt.IsZero())

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.Require().NoError(s.store.SaveReminder(s.ctx, storage.ReminderRecord{TripID: "t1", Kind: "expenses", SentAt: at, State: "sent"}))
	s.Require().NoError(s.store.SaveReminder(s.ctx, storage.ReminderRecord{TripID: "t1", Kind: "expenses", SentAt: at.Add(time.Hour), State: "sent"}))

	rec, err = s.store.GetReminder(s.ctx, "t1", "expenses")
	s.Require().NoError(err)
	s.True(rec.SentAt.Equal(at.Add(time.Hour)))
	s.Equal("sent", rec.State)
}

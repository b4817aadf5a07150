package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trainer-booking-backend/config"
	"trainer-booking-backend/internal/db"
	"trainer-booking-backend/internal/model"
	"trainer-booking-backend/internal/schedule"
)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	gormDB, err := db.Init(&config.DatabaseConfig{
		DSN: "sqlite://file:" + uuid.NewString() + "?mode=memory&cache=shared",
	}, zap.NewNop())
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewGormStore(gormDB)
}

func date(s string) time.Time {
	d, err := time.Parse(schedule.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestGormStore_Bookings(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	mk := func(d string, start, end int, status model.BookingStatus) *model.Booking {
		b := &model.Booking{
			TrainerID: "t1",
			ClientID:  "c1",
			Date:      d,
			StartTime: schedule.TimeOfDay(start),
			EndTime:   schedule.TimeOfDay(end),
			Status:    status,
		}
		require.NoError(t, s.CreateBooking(ctx, b))
		require.NotEmpty(t, b.ID)
		return b
	}

	first := mk("2024-03-04", 540, 600, model.StatusConfirmed)
	mk("2024-03-04", 600, 660, model.StatusPending)
	mk("2024-03-04", 540, 600, model.StatusCancelled)
	mk("2024-03-06", 540, 600, model.StatusConfirmed)

	active, err := s.ListBookings(ctx, BookingFilter{
		TrainerID: "t1",
		From:      date("2024-03-04"),
		To:        date("2024-03-04"),
		Statuses:  model.ActiveStatuses,
	})
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, schedule.TimeOfDay(540), active[0].StartTime)

	n, err := s.CountBookings(ctx, BookingFilter{
		TrainerID: "t1",
		From:      date("2024-03-04"),
		To:        date("2024-03-10"),
		Statuses:  model.ActiveStatuses,
		ExcludeID: first.ID,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	first.Status = model.StatusCancelled
	now := time.Now().UTC()
	first.CancelledAt = &now
	require.NoError(t, s.UpdateBooking(ctx, first))

	got, err := s.GetBooking(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
	assert.NotNil(t, got.CancelledAt)

	_, err = s.GetBooking(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStore_Settings(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	require.NoError(t, s.CreateTrainer(ctx, &model.Trainer{ID: "t1", Timezone: "UTC"}))

	av := &model.Availability{TrainerID: "t1", DayOfWeek: 1, MorningAvailable: true, MorningStart: 540, MorningEnd: 720}
	require.NoError(t, s.UpsertAvailability(ctx, av))
	require.NoError(t, s.UpsertAvailability(ctx, &model.Availability{
		TrainerID: "t1", DayOfWeek: 1, EveningAvailable: true, EveningStart: 1020, EveningEnd: 1200,
	}))
	rows, err := s.ListAvailability(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].MorningAvailable)
	assert.True(t, rows[0].EveningAvailable)

	_, err = s.GetCapacityPolicy(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotFound)
	cp := model.DefaultCapacityPolicy("t1")
	require.NoError(t, s.PutCapacityPolicy(ctx, &cp))
	cp.MaxDailySessions = 3
	require.NoError(t, s.PutCapacityPolicy(ctx, &cp))
	gotCP, err := s.GetCapacityPolicy(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 3, gotCP.MaxDailySessions)

	bp := model.DefaultBookingPolicy("t1")
	bp.AllowWeekendBooking = false
	require.NoError(t, s.PutBookingPolicy(ctx, &bp))
	gotBP, err := s.GetBookingPolicy(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, gotBP.AllowWeekendBooking)
	assert.True(t, gotBP.AllowSelfBooking)
}

func TestGormStore_ListBlockedTimes(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	weekly := schedule.RecurWeekly
	blocks := []*model.BlockedTime{
		{TrainerID: "t1", Date: "2024-01-01", StartTime: 540, EndTime: 600, IsRecurring: true, RecurringType: &weekly},
		{TrainerID: "t1", Date: "2024-03-05", StartTime: 540, EndTime: 600},
		{TrainerID: "t1", Date: "2024-02-01", StartTime: 540, EndTime: 600},
		{TrainerID: "t2", Date: "2024-03-05", StartTime: 540, EndTime: 600},
	}
	for _, b := range blocks {
		require.NoError(t, s.CreateBlockedTime(ctx, b))
	}

	got, err := s.ListBlockedTimes(ctx, "t1", date("2024-03-04"), date("2024-03-10"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-01-01", got[0].Date)
	assert.Equal(t, "2024-03-05", got[1].Date)

	require.NoError(t, s.DeleteBlockedTime(ctx, "t1", got[1].ID))
	assert.ErrorIs(t, s.DeleteBlockedTime(ctx, "t1", got[1].ID), ErrNotFound)
	assert.ErrorIs(t, s.DeleteBlockedTime(ctx, "t2", got[0].ID), ErrNotFound)
}

func TestGormStore_Subscriptions(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	require.NoError(t, s.UpsertSubscription(ctx, &model.PushSubscription{Endpoint: "https://push/1", UserID: "c1", P256DH: "k", Auth: "a"}))
	require.NoError(t, s.UpsertSubscription(ctx, &model.PushSubscription{Endpoint: "https://push/1", UserID: "c1", P256DH: "k2", Auth: "a2"}))
	require.NoError(t, s.UpsertSubscription(ctx, &model.PushSubscription{Endpoint: "https://push/2", UserID: "c2", P256DH: "k", Auth: "a"}))

	subs, err := s.ListSubscriptions(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "k2", subs[0].P256DH)

	require.NoError(t, s.DeleteSubscription(ctx, "https://push/1"))
	_, err = s.GetSubscription(ctx, "https://push/1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStore_InTrainerTx_SQLiteRollback(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	err := s.InTrainerTx(ctx, "t1", func(tx Store) error {
		require.NoError(t, tx.CreateBooking(ctx, &model.Booking{
			TrainerID: "t1", ClientID: "c1", Date: "2024-03-04", StartTime: 540, EndTime: 600, Status: model.StatusPending,
		}))
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	n, err := s.CountBookings(ctx, BookingFilter{TrainerID: "t1"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGormStore_SetCalendarState(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	b := &model.Booking{TrainerID: "t1", ClientID: "c1", Date: "2024-03-04", StartTime: 540, EndTime: 600, Status: model.StatusConfirmed}
	require.NoError(t, s.CreateBooking(ctx, b))

	eventID, link := "evt-1", "https://meet.example.com/abc"
	require.NoError(t, s.SetCalendarState(ctx, b.ID, CalendarState{ExternalEventID: &eventID, MeetingLink: &link, Synced: true}))

	// A later full-row update must not wipe the calendar identifiers.
	b.Notes = "bring water"
	b.CalendarSynced = false
	require.NoError(t, s.UpdateBooking(ctx, b))

	got, err := s.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ExternalEventID)
	assert.Equal(t, "evt-1", *got.ExternalEventID)
	assert.Equal(t, "bring water", got.Notes)
	assert.False(t, got.CalendarSynced)

	assert.ErrorIs(t, s.SetCalendarState(ctx, "missing", CalendarState{}), ErrNotFound)
}

func TestGormStore_UpdateBooking_NeverRevivesCancelled(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	b := &model.Booking{TrainerID: "t1", ClientID: "c1", Date: "2024-03-04", StartTime: 540, EndTime: 600, Status: model.StatusConfirmed}
	require.NoError(t, s.CreateBooking(ctx, b))

	// A writer that read the booking before it was cancelled.
	stale := *b
	cancelled := *b
	cancelled.Status = model.StatusCancelled
	require.NoError(t, s.UpdateBooking(ctx, &cancelled))

	stale.StartTime, stale.EndTime = 600, 660
	assert.ErrorIs(t, s.UpdateBooking(ctx, &stale), ErrStale)

	got, err := s.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
	assert.Equal(t, schedule.TimeOfDay(540), got.StartTime)

	missing := *b
	missing.ID = uuid.NewString()
	assert.ErrorIs(t, s.UpdateBooking(ctx, &missing), ErrNotFound)
}

func TestGormStore_SetCalendarState_Expect(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	b := &model.Booking{TrainerID: "t1", ClientID: "c1", Date: "2024-03-04", StartTime: 540, EndTime: 600, Status: model.StatusConfirmed}
	require.NoError(t, s.CreateBooking(ctx, b))
	seen := *b

	eventID := "evt-1"
	require.NoError(t, s.SetCalendarState(ctx, b.ID, CalendarState{ExternalEventID: &eventID, Synced: true, Expect: &seen}))

	b.Status = model.StatusCancelled
	require.NoError(t, s.UpdateBooking(ctx, b))

	other := "evt-2"
	err := s.SetCalendarState(ctx, b.ID, CalendarState{ExternalEventID: &other, Synced: true, Expect: &seen})
	assert.ErrorIs(t, err, ErrStale)

	got, err := s.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ExternalEventID)
	assert.Equal(t, "evt-1", *got.ExternalEventID)
}

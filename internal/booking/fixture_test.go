package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trainer-booking-backend/config"
	"trainer-booking-backend/internal/calendar"
	"trainer-booking-backend/internal/db"
	"trainer-booking-backend/internal/model"
	"trainer-booking-backend/internal/schedule"
	"trainer-booking-backend/internal/store"
)

const (
	trainerID  = "11111111-1111-1111-1111-111111111111"
	clientID   = "22222222-2222-2222-2222-222222222222"
	client2ID  = "33333333-3333-3333-3333-333333333333"
	adminID    = "44444444-4444-4444-4444-444444444444"
	trainer2ID = "55555555-5555-5555-5555-555555555555"
)

// Friday 2024-03-01 08:00 UTC. Monday 2024-03-04 is the first bookable weekday.
var fridayMorning = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	store    store.Store
	clock    *schedule.FixedClock
	slots    *SlotGenerator
	admit    *AdmissionController
	settings *Settings

	mu      sync.Mutex
	changed []string
	events  []Transition
}

type fixtureOption func(*Deps)

func withSyncer(a calendar.Adapter) fixtureOption {
	return func(d *Deps) {
		d.Syncer = calendar.NewSyncer(a, d.Store, calendar.SyncerOptions{Timeout: time.Second}, zap.NewNop(), nil)
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	gormDB, err := db.Init(&config.DatabaseConfig{
		DSN: "sqlite://file:" + uuid.NewString() + "?mode=memory&cache=shared",
	}, zap.NewNop())
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	st := store.NewGormStore(gormDB)
	ctx := context.Background()
	for _, u := range []model.User{
		{ID: trainerID, Name: "Tess", Email: "tess@example.com", Role: model.RoleTrainer},
		{ID: clientID, Name: "Cal", Email: "cal@example.com", Role: model.RoleClient},
		{ID: client2ID, Name: "Cora", Email: "cora@example.com", Role: model.RoleClient},
		{ID: adminID, Name: "Ada", Email: "ada@example.com", Role: model.RoleAdmin},
		{ID: trainer2ID, Name: "Theo", Email: "theo@example.com", Role: model.RoleTrainer},
	} {
		u := u
		require.NoError(t, st.CreateUser(ctx, &u))
	}
	require.NoError(t, st.CreateTrainer(ctx, &model.Trainer{ID: trainerID, Timezone: "UTC"}))
	require.NoError(t, st.CreateTrainer(ctx, &model.Trainer{ID: trainer2ID, Timezone: "UTC"}))

	f := &fixture{store: st, clock: schedule.NewFixedClock(fridayMorning)}
	d := Deps{
		Store: st,
		Clock: f.clock,
		Hooks: Hooks{
			ScheduleChanged: func(id string) {
				f.mu.Lock()
				f.changed = append(f.changed, id)
				f.mu.Unlock()
			},
			BookingChanged: func(_ model.Booking, tr Transition) {
				f.mu.Lock()
				f.events = append(f.events, tr)
				f.mu.Unlock()
			},
		},
	}
	for _, o := range opts {
		o(&d)
	}
	f.slots = NewSlotGenerator(d)
	f.admit = NewAdmissionController(d)
	f.settings = NewSettings(d)
	return f
}

// workday opens 09:00-17:00 on the given weekday.
func (f *fixture) workday(t *testing.T, wd time.Weekday) {
	t.Helper()
	_, err := f.settings.PutAvailability(context.Background(), trainerID, []model.Availability{{
		DayOfWeek:        int(wd),
		MorningAvailable: true,
		MorningStart:     schedule.At(9, 0),
		MorningEnd:       schedule.At(17, 0),
	}})
	require.NoError(t, err)
}

func (f *fixture) capacity(t *testing.T, daily, weekly int) {
	t.Helper()
	p := model.DefaultCapacityPolicy(trainerID)
	p.MaxDailySessions, p.MaxWeeklySessions = daily, weekly
	_, err := f.settings.PutCapacityPolicy(context.Background(), &p)
	require.NoError(t, err)
}

func (f *fixture) policy(t *testing.T, mutate func(p *model.BookingPolicy)) {
	t.Helper()
	p := model.DefaultBookingPolicy(trainerID)
	mutate(&p)
	require.NoError(t, f.settings.PutBookingPolicy(context.Background(), &p))
}

func day(s string) time.Time {
	d, err := time.Parse(schedule.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func request(date string, startH, startM, endH, endM int) BookingRequest {
	return BookingRequest{
		TrainerID: trainerID,
		ClientID:  clientID,
		ActorID:   trainerID,
		Date:      day(date),
		Start:     schedule.At(startH, startM),
		End:       schedule.At(endH, endM),
	}
}

func (f *fixture) book(t *testing.T, req BookingRequest) *model.Booking {
	t.Helper()
	res, err := f.admit.RequestBooking(context.Background(), req)
	require.NoError(t, err)
	return res.Booking
}

// fakeCalendar is a scriptable calendar.Adapter.
type fakeCalendar struct {
	mu        sync.Mutex
	connected bool
	createErr error
	busyErr   error
	busy      []calendar.Busy
	created   int
	updated   int
	deleted   int
	// onCreate runs once, before CreateEvent answers.
	onCreate func(b *model.Booking)
}

func (c *fakeCalendar) GetConnectionStatus(context.Context, string) (calendar.Status, error) {
	return calendar.Status{Connected: c.connected}, nil
}

func (c *fakeCalendar) CreateEvent(_ context.Context, b *model.Booking) (calendar.Event, error) {
	c.mu.Lock()
	hook := c.onCreate
	c.onCreate = nil
	c.mu.Unlock()
	if hook != nil {
		hook(b)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return calendar.Event{}, c.createErr
	}
	c.created++
	return calendar.Event{ExternalEventID: "evt-" + b.ID}, nil
}

func (c *fakeCalendar) UpdateEvent(context.Context, *model.Booking) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updated++
	return nil
}

func (c *fakeCalendar) DeleteEvent(context.Context, *model.Booking) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted++
	return nil
}

func (c *fakeCalendar) GetBusyIntervals(context.Context, string, time.Time, time.Time) ([]calendar.Busy, error) {
	return c.busy, c.busyErr
}

// cancelBeforeUpdate cancels the booking inside the transaction right before
// every UpdateBooking, as if a concurrent cancellation had just committed.
type cancelBeforeUpdate struct {
	store.Store
}

func (s *cancelBeforeUpdate) InTrainerTx(ctx context.Context, trainerID string, fn func(tx store.Store) error) error {
	return s.Store.InTrainerTx(ctx, trainerID, func(tx store.Store) error {
		return fn(&cancelBeforeUpdate{Store: tx})
	})
}

func (s *cancelBeforeUpdate) UpdateBooking(ctx context.Context, b *model.Booking) error {
	err := s.DB().WithContext(ctx).Model(&model.Booking{}).
		Where("id = ?", b.ID).
		Update("status", model.StatusCancelled).Error
	if err != nil {
		return err
	}
	return s.Store.UpdateBooking(ctx, b)
}

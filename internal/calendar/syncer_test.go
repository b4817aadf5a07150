package calendar

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trainer-booking-backend/internal/model"
	"trainer-booking-backend/internal/store"
)

type fakeAdapter struct {
	mu        sync.Mutex
	connected bool
	failures  int // calls that fail before one succeeds
	missing   bool
	created   []string
	updated   []string
	deleted   []string
	// onCreate runs before CreateEvent returns, outside the adapter lock.
	onCreate func()
}

func (f *fakeAdapter) fail() error {
	if f.failures > 0 {
		f.failures--
		return errors.New("calendar unavailable")
	}
	return nil
}

func (f *fakeAdapter) GetConnectionStatus(context.Context, string) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Status{Connected: f.connected}, nil
}

func (f *fakeAdapter) CreateEvent(_ context.Context, b *model.Booking) (Event, error) {
	if f.onCreate != nil {
		f.onCreate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return Event{}, err
	}
	f.created = append(f.created, b.ID)
	return Event{ExternalEventID: "evt-" + b.ID, MeetingLink: "https://meet/" + b.ID}, nil
}

func (f *fakeAdapter) UpdateEvent(_ context.Context, b *model.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return err
	}
	if f.missing {
		return ErrNoEvent
	}
	f.updated = append(f.updated, b.ID)
	return nil
}

func (f *fakeAdapter) DeleteEvent(_ context.Context, b *model.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return err
	}
	f.deleted = append(f.deleted, *b.ExternalEventID)
	return nil
}

func (f *fakeAdapter) GetBusyIntervals(context.Context, string, time.Time, time.Time) ([]Busy, error) {
	return nil, nil
}

type memStore struct {
	mu       sync.Mutex
	bookings map[string]model.Booking
	synced   chan string
}

func newMemStore(bs ...model.Booking) *memStore {
	m := &memStore{bookings: map[string]model.Booking{}, synced: make(chan string, 8)}
	for _, b := range bs {
		m.bookings[b.ID] = b
	}
	return m
}

func (m *memStore) GetBooking(_ context.Context, id string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &b, nil
}

func (m *memStore) SetCalendarState(_ context.Context, id string, st store.CalendarState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return store.ErrNotFound
	}
	if e := st.Expect; e != nil && (e.Status != b.Status || e.TrainerID != b.TrainerID ||
		e.Date != b.Date || e.StartTime != b.StartTime || e.EndTime != b.EndTime) {
		return store.ErrStale
	}
	b.ExternalEventID, b.MeetingLink, b.CalendarSynced = st.ExternalEventID, st.MeetingLink, st.Synced
	m.bookings[id] = b
	m.synced <- id
	return nil
}

func TestSyncer_Reconcile(t *testing.T) {
	ctx := context.Background()
	eventID := "evt-old"

	testCases := []struct {
		name      string
		booking   model.Booking
		connected bool
		wantCalls func(t *testing.T, a *fakeAdapter)
		wantSync  bool
	}{
		{
			name:      "confirmed without event creates one",
			booking:   model.Booking{ID: "b1", TrainerID: "t1", Status: model.StatusConfirmed},
			connected: true,
			wantCalls: func(t *testing.T, a *fakeAdapter) { assert.Equal(t, []string{"b1"}, a.created) },
			wantSync:  true,
		},
		{
			name:      "confirmed with event updates it",
			booking:   model.Booking{ID: "b2", TrainerID: "t1", Status: model.StatusConfirmed, ExternalEventID: &eventID},
			connected: true,
			wantCalls: func(t *testing.T, a *fakeAdapter) { assert.Equal(t, []string{"b2"}, a.updated) },
			wantSync:  true,
		},
		{
			name:      "cancelled with event deletes it",
			booking:   model.Booking{ID: "b3", TrainerID: "t1", Status: model.StatusCancelled, ExternalEventID: &eventID},
			connected: true,
			wantCalls: func(t *testing.T, a *fakeAdapter) { assert.Equal(t, []string{"evt-old"}, a.deleted) },
			wantSync:  true,
		},
		{
			name:      "pending is left alone",
			booking:   model.Booking{ID: "b4", TrainerID: "t1", Status: model.StatusPending},
			connected: true,
			wantCalls: func(t *testing.T, a *fakeAdapter) { assert.Empty(t, a.created) },
		},
		{
			name:      "disconnected trainer is skipped",
			booking:   model.Booking{ID: "b5", TrainerID: "t1", Status: model.StatusConfirmed},
			wantCalls: func(t *testing.T, a *fakeAdapter) { assert.Empty(t, a.created) },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := &fakeAdapter{connected: tc.connected}
			st := newMemStore(tc.booking)
			s := NewSyncer(a, st, SyncerOptions{}, zap.NewNop(), nil)

			b := tc.booking
			require.NoError(t, s.Reconcile(ctx, &b))
			tc.wantCalls(t, a)
			assert.Equal(t, tc.wantSync, b.CalendarSynced)

			stored, err := st.GetBooking(ctx, b.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.wantSync, stored.CalendarSynced)
		})
	}
}

func (m *memStore) cancel(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bookings[id]
	b.Status = model.StatusCancelled
	b.CalendarSynced = true
	m.bookings[id] = b
}

func TestSyncer_ReconcileCancelledMidway(t *testing.T) {
	ctx := context.Background()
	st := newMemStore(model.Booking{ID: "b1", TrainerID: "t1", Status: model.StatusConfirmed})
	a := &fakeAdapter{connected: true}
	// The booking is cancelled while the event is being created. The
	// cancellation saw no event id, so it had nothing to delete.
	a.onCreate = func() { st.cancel("b1") }
	s := NewSyncer(a, st, SyncerOptions{}, zap.NewNop(), nil)

	b, err := st.GetBooking(ctx, "b1")
	require.NoError(t, err)
	require.NoError(t, s.Reconcile(ctx, b))

	assert.Equal(t, []string{"b1"}, a.created)
	assert.Equal(t, []string{"evt-b1"}, a.deleted)

	stored, err := st.GetBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, stored.Status)
	assert.Nil(t, stored.ExternalEventID)
}

func TestSyncer_ReconcileRecreatesMissingEvent(t *testing.T) {
	ctx := context.Background()
	gone := "evt-gone"
	st := newMemStore(model.Booking{ID: "b1", TrainerID: "t1", Status: model.StatusConfirmed, ExternalEventID: &gone})
	a := &fakeAdapter{connected: true, missing: true}
	s := NewSyncer(a, st, SyncerOptions{}, zap.NewNop(), nil)

	b, err := st.GetBooking(ctx, "b1")
	require.NoError(t, err)
	require.NoError(t, s.Reconcile(ctx, b))

	assert.Equal(t, []string{"b1"}, a.created)
	require.NotNil(t, b.ExternalEventID)
	assert.Equal(t, "evt-b1", *b.ExternalEventID)
	assert.True(t, b.CalendarSynced)
}

func TestSyncer_ReconcileFailureLeavesUnsynced(t *testing.T) {
	a := &fakeAdapter{connected: true, failures: 1}
	st := newMemStore(model.Booking{ID: "b1", TrainerID: "t1", Status: model.StatusConfirmed})
	s := NewSyncer(a, st, SyncerOptions{}, zap.NewNop(), nil)

	b, _ := st.GetBooking(context.Background(), "b1")
	err := s.Reconcile(context.Background(), b)
	assert.ErrorContains(t, err, "calendar unavailable")
	assert.False(t, b.CalendarSynced)
	assert.Nil(t, b.ExternalEventID)
}

func TestSyncer_BackgroundRetry(t *testing.T) {
	a := &fakeAdapter{connected: true, failures: 1}
	st := newMemStore(model.Booking{ID: "b1", TrainerID: "t1", Status: model.StatusConfirmed})
	s := NewSyncer(a, st, SyncerOptions{Workers: 1, Attempts: 3, Backoff: 5 * time.Millisecond}, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	require.True(t, s.Enqueue("b1"))

	select {
	case id := <-st.synced:
		assert.Equal(t, "b1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for retry to sync booking")
	}

	b, err := st.GetBooking(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, b.ExternalEventID)
	assert.Equal(t, "evt-b1", *b.ExternalEventID)
	assert.True(t, b.CalendarSynced)
}

func TestSyncer_EnqueueNeverBlocks(t *testing.T) {
	s := NewSyncer(NoopAdapter{}, newMemStore(), SyncerOptions{Workers: 1}, zap.NewNop(), nil)
	for i := 0; i < cap(s.jobs); i++ {
		require.True(t, s.Enqueue("b"))
	}
	assert.False(t, s.Enqueue("overflow"))
}

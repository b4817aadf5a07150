package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trainer-booking-backend/internal/metrics"
	"trainer-booking-backend/internal/model"
	"trainer-booking-backend/internal/store"
)

// BookingStore is the slice of the store the syncer needs.
type BookingStore interface {
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	SetCalendarState(ctx context.Context, bookingID string, st store.CalendarState) error
}

// SyncerOptions tunes the retry pool.
type SyncerOptions struct {
	Workers  int
	Attempts int
	Timeout  time.Duration
	Backoff  time.Duration
}

// Syncer mirrors booking state into the external calendar. Reconcile runs a
// single bounded attempt; failed bookings are queued for background retries.
type Syncer struct {
	adapter Adapter
	store   BookingStore
	opts    SyncerOptions
	jobs    chan string
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewSyncer creates a syncer. Call Start to run the retry workers.
func NewSyncer(adapter Adapter, s BookingStore, opts SyncerOptions, log *zap.Logger, m *metrics.Metrics) *Syncer {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	return &Syncer{
		adapter: adapter,
		store:   s,
		opts:    opts,
		jobs:    make(chan string, opts.Workers*64),
		log:     log,
		metrics: m,
	}
}

// Adapter returns the underlying calendar adapter.
func (s *Syncer) Adapter() Adapter {
	return s.adapter
}

// Timeout is the bound applied to every calendar call.
func (s *Syncer) Timeout() time.Duration {
	return s.opts.Timeout
}

// Reconcile brings the external calendar in line with b and records the
// result on the booking. Trainers without a connected calendar are skipped.
// The result is only recorded if the booking has not moved on meanwhile;
// an event created for a booking that changed underneath is removed again
// and the change's own sync takes over.
func (s *Syncer) Reconcile(ctx context.Context, b *model.Booking) error {
	if b.CalendarSynced {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	st, err := s.adapter.GetConnectionStatus(ctx, b.TrainerID)
	if err != nil {
		s.metrics.CalendarSync("failed")
		return fmt.Errorf("calendar status for trainer %s: %w", b.TrainerID, err)
	}
	if !st.Connected {
		s.metrics.CalendarSync("skipped")
		return nil
	}

	seen := *b
	state := store.CalendarState{ExternalEventID: b.ExternalEventID, MeetingLink: b.MeetingLink, Synced: true, Expect: &seen}
	var created *model.Booking
	switch b.Status {
	case model.StatusConfirmed:
		if b.ExternalEventID != nil {
			err := s.adapter.UpdateEvent(ctx, b)
			if err == nil {
				break
			}
			if !errors.Is(err, ErrNoEvent) {
				s.metrics.CalendarSync("failed")
				return fmt.Errorf("update calendar event for booking %s: %w", b.ID, err)
			}
			s.log.Info("calendar event missing, recreating", zap.String("booking_id", b.ID))
		}
		ev, err := s.adapter.CreateEvent(ctx, b)
		if err != nil {
			s.metrics.CalendarSync("failed")
			return fmt.Errorf("create calendar event for booking %s: %w", b.ID, err)
		}
		state.ExternalEventID = &ev.ExternalEventID
		state.MeetingLink = nil
		if ev.MeetingLink != "" {
			state.MeetingLink = &ev.MeetingLink
		}
		orphan := seen
		orphan.ExternalEventID = state.ExternalEventID
		created = &orphan
	case model.StatusCancelled:
		if b.ExternalEventID != nil {
			if err := s.adapter.DeleteEvent(ctx, b); err != nil && !errors.Is(err, ErrNoEvent) {
				s.metrics.CalendarSync("failed")
				return fmt.Errorf("delete calendar event for booking %s: %w", b.ID, err)
			}
		}
	default:
		return nil
	}

	err = s.store.SetCalendarState(ctx, b.ID, state)
	if errors.Is(err, store.ErrStale) {
		s.metrics.CalendarSync("stale")
		s.log.Info("booking changed during calendar sync", zap.String("booking_id", b.ID))
		if created != nil {
			if err := s.adapter.DeleteEvent(ctx, created); err != nil && !errors.Is(err, ErrNoEvent) {
				return fmt.Errorf("remove calendar event for changed booking %s: %w", b.ID, err)
			}
		}
		return nil
	}
	if err != nil {
		s.metrics.CalendarSync("failed")
		return fmt.Errorf("record calendar state for booking %s: %w", b.ID, err)
	}
	b.ExternalEventID = state.ExternalEventID
	b.MeetingLink = state.MeetingLink
	b.CalendarSynced = true
	s.metrics.CalendarSync("ok")
	return nil
}

// Enqueue schedules a background retry. It never blocks; when the queue is
// full the booking stays unsynced and the drop is logged.
func (s *Syncer) Enqueue(bookingID string) bool {
	select {
	case s.jobs <- bookingID:
		return true
	default:
		s.log.Warn("calendar retry queue full, dropping", zap.String("booking_id", bookingID))
		return false
	}
}

// Start launches the retry workers.
func (s *Syncer) Start(ctx context.Context) {
	for i := 0; i < s.opts.Workers; i++ {
		go s.worker(ctx, i)
	}
}

func (s *Syncer) worker(ctx context.Context, id int) {
	s.log.Debug("calendar sync worker started", zap.Int("worker", id))
	for {
		select {
		case bookingID := <-s.jobs:
			s.retry(ctx, bookingID)
		case <-ctx.Done():
			s.log.Debug("calendar sync worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

func (s *Syncer) retry(ctx context.Context, bookingID string) {
	log := s.log.With(zap.String("booking_id", bookingID))
	for attempt := 1; attempt <= s.opts.Attempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * s.opts.Backoff):
		}

		// Reload: the booking may have moved on since it was queued.
		b, err := s.store.GetBooking(ctx, bookingID)
		if errors.Is(err, store.ErrNotFound) {
			return
		}
		if err == nil {
			err = s.Reconcile(ctx, b)
		}
		if err == nil {
			log.Info("calendar sync retry succeeded", zap.Int("attempt", attempt))
			return
		}
		log.Warn("calendar sync retry failed", zap.Int("attempt", attempt), zap.Error(err))
	}
	log.Error("calendar sync gave up", zap.Int("attempts", s.opts.Attempts))
}

package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trainer-booking-backend/internal/calendar"
	"trainer-booking-backend/internal/lock"
	"trainer-booking-backend/internal/metrics"
	"trainer-booking-backend/internal/model"
	"trainer-booking-backend/internal/schedule"
	"trainer-booking-backend/internal/store"
)

// Transition names a booking state change reported through Hooks.
type Transition = model.Transition

const (
	TransitionCreated     = model.TransitionCreated
	TransitionConfirmed   = model.TransitionConfirmed
	TransitionCancelled   = model.TransitionCancelled
	TransitionRescheduled = model.TransitionRescheduled
)

// Hooks are called after a change commits. Either may be nil.
type Hooks struct {
	// ScheduleChanged fires whenever a trainer's bookable time may differ.
	ScheduleChanged func(trainerID string)
	BookingChanged  func(b model.Booking, t Transition)
}

// Deps wires the scheduling services. Store is required; the rest default.
type Deps struct {
	Store   store.Store
	Locker  lock.Locker
	Clock   schedule.Clock
	Syncer  *calendar.Syncer
	Log     *zap.Logger
	Metrics *metrics.Metrics
	Hooks   Hooks

	DefaultLocation *time.Location
	LockTimeout     time.Duration
	MaxRangeDays    int
}

func (d Deps) withDefaults() Deps {
	if d.Locker == nil {
		d.Locker = lock.NewLocalLocker()
	}
	if d.Clock == nil {
		d.Clock = schedule.SystemClock{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.DefaultLocation == nil {
		d.DefaultLocation = time.UTC
	}
	if d.LockTimeout <= 0 {
		d.LockTimeout = 10 * time.Second
	}
	if d.MaxRangeDays <= 0 {
		d.MaxRangeDays = 62
	}
	return d
}

func (d Deps) scheduleChanged(trainerID string) {
	if d.Hooks.ScheduleChanged != nil {
		d.Hooks.ScheduleChanged(trainerID)
	}
}

func (d Deps) bookingChanged(b *model.Booking, t Transition) {
	if d.Hooks.BookingChanged != nil {
		d.Hooks.BookingChanged(*b, t)
	}
}

// location returns the zone a trainer's dates and times are expressed in.
func (d Deps) location(tr *model.Trainer) *time.Location {
	if tr.Timezone == "" {
		return d.DefaultLocation
	}
	return schedule.LoadLocation(tr.Timezone)
}

func getTrainer(ctx context.Context, st store.Store, trainerID string) (*model.Trainer, error) {
	tr, err := st.GetTrainer(ctx, trainerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTrainerNotFound, trainerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load trainer %s: %w", trainerID, err)
	}
	return tr, nil
}

// Policies bundles the two per-trainer rule sets, defaults filled in.
type Policies struct {
	Capacity model.CapacityPolicy
	Booking  model.BookingPolicy
}

func loadPolicies(ctx context.Context, st store.Store, trainerID string) (Policies, error) {
	p := Policies{
		Capacity: model.DefaultCapacityPolicy(trainerID),
		Booking:  model.DefaultBookingPolicy(trainerID),
	}
	cp, err := st.GetCapacityPolicy(ctx, trainerID)
	switch {
	case err == nil:
		p.Capacity = *cp
	case !errors.Is(err, store.ErrNotFound):
		return p, fmt.Errorf("failed to load capacity policy: %w", err)
	}
	bp, err := st.GetBookingPolicy(ctx, trainerID)
	switch {
	case err == nil:
		p.Booking = *bp
	case !errors.Is(err, store.ErrNotFound):
		return p, fmt.Errorf("failed to load booking policy: %w", err)
	}
	return p, nil
}

package booking

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"trainer-booking-backend/internal/model"
	"trainer-booking-backend/internal/schedule"
	"trainer-booking-backend/internal/store"
)

// BookingRequest proposes a new booking. ActorID is the user making the
// request; it defaults to ClientID.
type BookingRequest struct {
	TrainerID   string
	ClientID    string
	ActorID     string
	Date        time.Time
	Start       schedule.TimeOfDay
	End         schedule.TimeOfDay
	Notes       string
	Override    bool
	PreApproved bool
}

// RescheduleRequest changes any of a booking's position or parties.
// Nil fields keep their current value.
type RescheduleRequest struct {
	BookingID string
	ActorID   string
	TrainerID *string
	ClientID  *string
	Date      *time.Time
	Start     *schedule.TimeOfDay
	End       *schedule.TimeOfDay
	Notes     *string
	Override  bool
}

// Result is a committed booking plus non-fatal problems, currently only
// ErrExternalSyncFailure.
type Result struct {
	Booking  *model.Booking
	Warnings []error
}

// AdmissionController is the only writer of the booking ledger. Every write
// runs under the trainer's lock so the conflict check, the capacity check and
// the insert see one consistent view.
type AdmissionController struct {
	Deps
}

// NewAdmissionController creates a controller.
func NewAdmissionController(d Deps) *AdmissionController {
	return &AdmissionController{Deps: d.withDefaults()}
}

// parties are the resolved users behind a request.
type parties struct {
	trainer *model.Trainer
	actor   *model.User
}

func (p parties) privileged(b *model.Booking) bool {
	return p.actor.Role == model.RoleAdmin || p.actor.ID == b.TrainerID
}

// RequestBooking admits a new booking or explains precisely why not.
func (a *AdmissionController) RequestBooking(ctx context.Context, req BookingRequest) (*Result, error) {
	b, err := a.requestBooking(ctx, req)
	if err != nil {
		a.Metrics.Admission(outcome(err))
		return nil, err
	}
	a.Metrics.Admission("created")
	a.Log.Info("booking created",
		zap.String("booking_id", b.ID),
		zap.String("trainer_id", b.TrainerID),
		zap.String("date", b.Date),
		zap.Stringer("start", b.StartTime),
		zap.String("status", string(b.Status)))

	res := &Result{Booking: b, Warnings: a.syncCalendar(ctx, b)}
	a.scheduleChanged(b.TrainerID)
	a.bookingChanged(b, TransitionCreated)
	return res, nil
}

func (a *AdmissionController) requestBooking(ctx context.Context, req BookingRequest) (*model.Booking, error) {
	if req.ActorID == "" {
		req.ActorID = req.ClientID
	}
	p, err := a.resolve(ctx, req.TrainerID, req.ClientID, req.ActorID, req.Override)
	if err != nil {
		return nil, err
	}
	w := window{date: schedule.Date(req.Date), interval: schedule.Interval{Start: req.Start, End: req.End}}
	if !validShape(w) {
		return nil, fmt.Errorf("%w: start must be before end within one day", ErrInvalidTimeRange)
	}
	pol, err := loadPolicies(ctx, a.Store, req.TrainerID)
	if err != nil {
		return nil, err
	}
	if !req.Override {
		if err := checkPolicy(&pol.Booking, a.Clock.Now(), a.location(p.trainer), w); err != nil {
			return nil, err
		}
		if p.actor.ID == req.ClientID && !pol.Booking.AllowSelfBooking {
			return nil, policyErr(ReasonSelfBooking, "trainer does not accept self-booked sessions")
		}
	}

	status := model.StatusPending
	if !pol.Booking.RequireApproval && req.PreApproved {
		status = model.StatusConfirmed
	}
	b := &model.Booking{
		TrainerID: req.TrainerID,
		ClientID:  req.ClientID,
		Date:      schedule.FormatDate(w.date),
		StartTime: w.interval.Start,
		EndTime:   w.interval.End,
		Status:    status,
		Notes:     req.Notes,
	}

	err = a.withTrainer(ctx, req.TrainerID, func(tx store.Store) error {
		if err := a.admit(ctx, tx, &pol.Capacity, b, "", req.Override); err != nil {
			return err
		}
		return tx.CreateBooking(ctx, b)
	})
	if err != nil {
		b.ID = ""
		return nil, err
	}
	return b, nil
}

// Confirm moves a pending booking to confirmed. Only the booking's trainer or
// an admin may confirm. Confirming a confirmed booking changes nothing.
func (a *AdmissionController) Confirm(ctx context.Context, bookingID, actorID string) (*Result, error) {
	var changed bool
	b, err := a.transition(ctx, bookingID, actorID, func(tx store.Store, p parties, b *model.Booking) error {
		if !p.privileged(b) {
			return fmt.Errorf("%w: only the trainer or an admin may confirm", ErrRoleMismatch)
		}
		switch b.Status {
		case model.StatusConfirmed:
			return nil
		case model.StatusCancelled:
			return fmt.Errorf("%w: booking %s is cancelled", ErrInvalidTransition, b.ID)
		}
		b.Status = model.StatusConfirmed
		b.CalendarSynced = false
		changed = true
		return updateBooking(ctx, tx, b)
	})
	a.Metrics.Transition("confirm", outcome(err))
	if err != nil {
		return nil, err
	}
	res := &Result{Booking: b}
	if changed {
		res.Warnings = a.syncCalendar(ctx, b)
		a.bookingChanged(b, TransitionConfirmed)
	}
	return res, nil
}

// Cancel soft-deletes a booking. Cancelling twice returns the already
// cancelled booking. Clients must respect the trainer's notice period;
// trainers and admins need not.
func (a *AdmissionController) Cancel(ctx context.Context, bookingID, actorID string) (*Result, error) {
	var changed bool
	b, err := a.transition(ctx, bookingID, actorID, func(tx store.Store, p parties, b *model.Booking) error {
		if !p.privileged(b) && p.actor.ID != b.ClientID {
			return fmt.Errorf("%w: user %s is not a party to this booking", ErrRoleMismatch, p.actor.ID)
		}
		if b.Status == model.StatusCancelled {
			return nil
		}
		now := a.Clock.Now()
		if !p.privileged(b) {
			pol, err := loadPolicies(ctx, tx, b.TrainerID)
			if err != nil {
				return err
			}
			d, _ := time.Parse(schedule.DateLayout, b.Date)
			if err := checkCancellation(&pol.Booking, now, a.location(p.trainer), window{date: d, interval: b.Interval()}); err != nil {
				return err
			}
		}
		b.Status = model.StatusCancelled
		b.CancelledAt = &now
		b.CalendarSynced = b.ExternalEventID == nil
		changed = true
		return updateBooking(ctx, tx, b)
	})
	a.Metrics.Transition("cancel", outcome(err))
	if err != nil {
		return nil, err
	}
	res := &Result{Booking: b}
	if changed {
		a.Log.Info("booking cancelled", zap.String("booking_id", b.ID), zap.String("actor_id", actorID))
		res.Warnings = a.syncCalendar(ctx, b)
		a.scheduleChanged(b.TrainerID)
		a.bookingChanged(b, TransitionCancelled)
	}
	return res, nil
}

// transition runs fn on a fresh copy of the booking under its trainer's lock.
func (a *AdmissionController) transition(ctx context.Context, bookingID, actorID string, fn func(tx store.Store, p parties, b *model.Booking) error) (*model.Booking, error) {
	current, err := a.getBooking(ctx, a.Store, bookingID)
	if err != nil {
		return nil, err
	}
	actor, err := a.actor(ctx, actorID, false)
	if err != nil {
		return nil, err
	}
	tr, err := getTrainer(ctx, a.Store, current.TrainerID)
	if err != nil {
		return nil, err
	}

	var out *model.Booking
	err = a.withTrainer(ctx, current.TrainerID, func(tx store.Store) error {
		b, err := a.getBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if err := fn(tx, parties{trainer: tr, actor: actor}, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}

// Reschedule moves a pending or confirmed booking, possibly to another trainer
// or client. The new position is checked like a fresh request, ignoring the
// booking itself.
func (a *AdmissionController) Reschedule(ctx context.Context, req RescheduleRequest) (*Result, error) {
	b, old, err := a.reschedule(ctx, req)
	a.Metrics.Transition("reschedule", outcome(err))
	if err != nil {
		return nil, err
	}
	res := &Result{Booking: b}
	if b.TrainerID != old.TrainerID && old.ExternalEventID != nil {
		a.dropExternalEvent(ctx, old)
	}
	res.Warnings = a.syncCalendar(ctx, b)
	a.scheduleChanged(b.TrainerID)
	if old.TrainerID != b.TrainerID {
		a.scheduleChanged(old.TrainerID)
	}
	a.bookingChanged(b, TransitionRescheduled)
	return res, nil
}

func (a *AdmissionController) reschedule(ctx context.Context, req RescheduleRequest) (*model.Booking, *model.Booking, error) {
	old, err := a.getBooking(ctx, a.Store, req.BookingID)
	if err != nil {
		return nil, nil, err
	}
	if old.Status == model.StatusCancelled {
		return nil, nil, fmt.Errorf("%w: booking %s is cancelled", ErrInvalidTransition, old.ID)
	}

	next := *old
	if req.TrainerID != nil {
		next.TrainerID = *req.TrainerID
	}
	if req.ClientID != nil {
		next.ClientID = *req.ClientID
	}
	if req.Date != nil {
		next.Date = schedule.FormatDate(schedule.Date(*req.Date))
	}
	if req.Start != nil {
		next.StartTime = *req.Start
	}
	if req.End != nil {
		next.EndTime = *req.End
	}
	if req.Notes != nil {
		next.Notes = *req.Notes
	}
	moved := next.TrainerID != old.TrainerID || next.ClientID != old.ClientID ||
		next.Date != old.Date || next.StartTime != old.StartTime || next.EndTime != old.EndTime

	d, err := time.Parse(schedule.DateLayout, next.Date)
	if err != nil || !validShape(window{date: d, interval: next.Interval()}) {
		return nil, nil, fmt.Errorf("%w: start must be before end within one day", ErrInvalidTimeRange)
	}

	p, err := a.resolve(ctx, next.TrainerID, next.ClientID, req.ActorID, req.Override)
	if err != nil {
		return nil, nil, err
	}
	if !p.privileged(old) && p.actor.ID != old.ClientID {
		return nil, nil, fmt.Errorf("%w: user %s is not a party to this booking", ErrRoleMismatch, p.actor.ID)
	}
	if (next.TrainerID != old.TrainerID || next.ClientID != old.ClientID) && !p.privileged(old) {
		return nil, nil, fmt.Errorf("%w: only the trainer or an admin may change who the booking is for", ErrRoleMismatch)
	}
	pol, err := loadPolicies(ctx, a.Store, next.TrainerID)
	if err != nil {
		return nil, nil, err
	}
	if moved && !req.Override {
		if err := checkPolicy(&pol.Booking, a.Clock.Now(), a.location(p.trainer), window{date: d, interval: next.Interval()}); err != nil {
			return nil, nil, err
		}
	}

	var prev *model.Booking
	// A move between trainers holds both, so writers going through either
	// trainer see the booking one at a time.
	err = a.withTrainers(ctx, []string{next.TrainerID, old.TrainerID}, func(tx store.Store) error {
		fresh, err := a.getBooking(ctx, tx, old.ID)
		if err != nil {
			return err
		}
		if fresh.Status == model.StatusCancelled {
			return fmt.Errorf("%w: booking %s is cancelled", ErrInvalidTransition, fresh.ID)
		}
		if fresh.TrainerID != old.TrainerID {
			return fmt.Errorf("%w: booking %s moved to another trainer meanwhile", ErrSlotConflict, fresh.ID)
		}
		prev = fresh
		next.Status = fresh.Status
		next.ExternalEventID, next.MeetingLink = fresh.ExternalEventID, fresh.MeetingLink
		if moved {
			if err := a.admit(ctx, tx, &pol.Capacity, &next, next.ID, req.Override); err != nil {
				return err
			}
			next.CalendarSynced = false
		}
		if next.TrainerID != fresh.TrainerID && fresh.ExternalEventID != nil {
			// The event lives in the previous trainer's calendar.
			if err := tx.SetCalendarState(ctx, next.ID, store.CalendarState{}); err != nil {
				return err
			}
			next.ExternalEventID, next.MeetingLink = nil, nil
		}
		return updateBooking(ctx, tx, &next)
	})
	if err != nil {
		return nil, nil, err
	}
	return &next, prev, nil
}

// admit runs the conflict and capacity checks inside the trainer's transaction.
func (a *AdmissionController) admit(ctx context.Context, tx store.Store, cp *model.CapacityPolicy, b *model.Booking, excludeID string, override bool) error {
	if override {
		return nil
	}
	d, err := time.Parse(schedule.DateLayout, b.Date)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTimeRange, err)
	}

	sameDay, err := tx.ListBookings(ctx, store.BookingFilter{
		TrainerID: b.TrainerID,
		From:      d,
		To:        d,
		Statuses:  model.ActiveStatuses,
		ExcludeID: excludeID,
	})
	if err != nil {
		return fmt.Errorf("failed to load bookings: %w", err)
	}
	for i := range sameDay {
		if sameDay[i].Interval().Overlaps(b.Interval()) {
			return fmt.Errorf("%w: overlaps booking %s (%s)", ErrSlotConflict, sameDay[i].ID, sameDay[i].Interval())
		}
	}
	if len(sameDay) >= cp.MaxDailySessions {
		return fmt.Errorf("%w: daily limit of %d sessions reached on %s", ErrCapacityExceeded, cp.MaxDailySessions, b.Date)
	}

	monday, sunday := schedule.ISOWeek(d)
	weekly, err := tx.CountBookings(ctx, store.BookingFilter{
		TrainerID: b.TrainerID,
		From:      monday,
		To:        sunday,
		Statuses:  model.ActiveStatuses,
		ExcludeID: excludeID,
	})
	if err != nil {
		return fmt.Errorf("failed to count bookings: %w", err)
	}
	if weekly >= int64(cp.MaxWeeklySessions) {
		return fmt.Errorf("%w: weekly limit of %d sessions reached", ErrCapacityExceeded, cp.MaxWeeklySessions)
	}
	return nil
}

// withTrainer serialises fn with every other write for the trainer. A storage
// overlap rejection is retried once from scratch; a second one is a conflict.
func (a *AdmissionController) withTrainer(ctx context.Context, trainerID string, fn func(tx store.Store) error) error {
	return a.withTrainers(ctx, []string{trainerID}, fn)
}

// withTrainers is withTrainer over several trainers. Locks are taken in
// sorted order.
func (a *AdmissionController) withTrainers(ctx context.Context, trainerIDs []string, fn func(tx store.Store) error) error {
	ids := slices.Clone(trainerIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	lockCtx, cancel := context.WithTimeout(ctx, a.LockTimeout)
	defer cancel()
	for _, id := range ids {
		unlock, err := a.Locker.Lock(lockCtx, id)
		if err != nil {
			return fmt.Errorf("failed to lock trainer %s: %w", id, err)
		}
		defer unlock()
	}

	for attempt := 1; ; attempt++ {
		err := a.Store.InTrainerTx(ctx, ids[0], func(tx store.Store) error {
			for _, id := range ids[1:] {
				if err := tx.LockTrainer(ctx, id); err != nil {
					return err
				}
			}
			return fn(tx)
		})
		if !errors.Is(err, store.ErrOverlap) {
			return err
		}
		if attempt == 2 {
			return fmt.Errorf("%w: %v", ErrSlotConflict, err)
		}
		a.Log.Warn("storage rejected overlapping booking, retrying", zap.Strings("trainer_ids", ids))
	}
}

// updateBooking writes b, reporting a booking cancelled underneath the caller
// as an invalid transition.
func updateBooking(ctx context.Context, tx store.Store, b *model.Booking) error {
	err := tx.UpdateBooking(ctx, b)
	if errors.Is(err, store.ErrStale) {
		return fmt.Errorf("%w: booking %s was cancelled", ErrInvalidTransition, b.ID)
	}
	return err
}

// resolve checks that the trainer and client hold the right roles and that an
// override comes from an admin.
func (a *AdmissionController) resolve(ctx context.Context, trainerID, clientID, actorID string, override bool) (parties, error) {
	tr, err := getTrainer(ctx, a.Store, trainerID)
	if err != nil {
		return parties{}, err
	}
	if err := a.requireRole(ctx, trainerID, model.RoleTrainer); err != nil {
		return parties{}, err
	}
	if err := a.requireRole(ctx, clientID, model.RoleClient); err != nil {
		return parties{}, err
	}
	actor, err := a.actor(ctx, actorID, override)
	if err != nil {
		return parties{}, err
	}
	return parties{trainer: tr, actor: actor}, nil
}

func (a *AdmissionController) requireRole(ctx context.Context, userID string, role model.Role) error {
	u, err := a.Store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: user %s does not exist", ErrRoleMismatch, userID)
	}
	if err != nil {
		return fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	if u.Role != role {
		return fmt.Errorf("%w: user %s is a %s, not a %s", ErrRoleMismatch, userID, u.Role, role)
	}
	return nil
}

func (a *AdmissionController) actor(ctx context.Context, actorID string, override bool) (*model.User, error) {
	u, err := a.Store.GetUser(ctx, actorID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown actor %q", ErrRoleMismatch, actorID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", actorID, err)
	}
	if override && u.Role != model.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins may override", ErrRoleMismatch)
	}
	return u, nil
}

func (a *AdmissionController) getBooking(ctx context.Context, st store.Store, id string) (*model.Booking, error) {
	b, err := st.GetBooking(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrBookingNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load booking %s: %w", id, err)
	}
	return b, nil
}

// syncCalendar mirrors b outside the lock. Failures become warnings and a
// background retry; they never undo the booking.
func (a *AdmissionController) syncCalendar(ctx context.Context, b *model.Booking) []error {
	if a.Syncer == nil || b.CalendarSynced || b.Status == model.StatusPending {
		return nil
	}
	if err := a.Syncer.Reconcile(ctx, b); err != nil {
		a.Log.Warn("calendar sync failed, queued for retry", zap.String("booking_id", b.ID), zap.Error(err))
		a.Syncer.Enqueue(b.ID)
		return []error{fmt.Errorf("%w: %v", ErrExternalSyncFailure, err)}
	}
	return nil
}

func (a *AdmissionController) dropExternalEvent(ctx context.Context, old *model.Booking) {
	if a.Syncer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, a.Syncer.Timeout())
	defer cancel()
	if err := a.Syncer.Adapter().DeleteEvent(ctx, old); err != nil {
		a.Log.Warn("failed to remove event from previous trainer's calendar",
			zap.String("booking_id", old.ID), zap.String("trainer_id", old.TrainerID), zap.Error(err))
	}
}

// outcome labels an error for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSlotConflict):
		return "slot_conflict"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrPolicyViolation):
		return "policy_violation"
	case errors.Is(err, ErrRoleMismatch):
		return "role_mismatch"
	case errors.Is(err, ErrTrainerNotFound), errors.Is(err, ErrBookingNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidRange), errors.Is(err, ErrInvalidTimeRange):
		return "invalid"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	}
	return "error"
}

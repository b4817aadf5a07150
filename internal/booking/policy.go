package booking

import (
	"time"

	"trainer-booking-backend/internal/model"
	"trainer-booking-backend/internal/schedule"
)

// window is a proposed booking position in a trainer's zone.
type window struct {
	date     time.Time
	interval schedule.Interval
}

func (w window) start(loc *time.Location) time.Time {
	return schedule.Instant(w.date, w.interval.Start, loc)
}

// validShape rejects malformed intervals. Override never skips it.
func validShape(w window) bool {
	return !w.date.IsZero() && w.interval.Valid()
}

// checkPolicy applies the trainer's booking rules to a proposed window.
func checkPolicy(bp *model.BookingPolicy, now time.Time, loc *time.Location, w window) error {
	if !w.start(loc).After(now) {
		return policyErr(ReasonInPast, "session on %s at %s has already started", schedule.FormatDate(w.date), w.interval.Start)
	}
	today, _ := schedule.Local(now, loc)
	if horizon := today.AddDate(0, 0, bp.AdvanceBookingDays); w.date.After(horizon) {
		return policyErr(ReasonAdvanceWindow, "bookings open at most %d days ahead", bp.AdvanceBookingDays)
	}
	if !bp.AllowWeekendBooking && schedule.IsWeekend(w.date) {
		return policyErr(ReasonWeekend, "trainer does not take weekend bookings")
	}
	if !bp.Bookable(w.interval.Start) {
		return policyErr(ReasonTimeOfDay, "sessions must start between %s and %s", bp.EarliestBookingTime, bp.LatestBookingTime)
	}
	return nil
}

// checkCancellation enforces the notice period for client-initiated cancels.
func checkCancellation(bp *model.BookingPolicy, now time.Time, loc *time.Location, w window) error {
	notice := time.Duration(bp.CancellationHours) * time.Hour
	if w.start(loc).Sub(now) < notice {
		return policyErr(ReasonCancellationWindow, "cancellations need %d hours notice", bp.CancellationHours)
	}
	return nil
}

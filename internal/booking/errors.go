package booking

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRange      = errors.New("invalid date range")
	ErrInvalidTimeRange  = errors.New("invalid time range")
	ErrInvalidSettings   = errors.New("invalid settings")
	ErrTrainerNotFound   = errors.New("trainer not found")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrBlockedNotFound   = errors.New("blocked time not found")
	ErrRoleMismatch      = errors.New("role mismatch")
	ErrSlotConflict      = errors.New("time slot is already taken")
	ErrCapacityExceeded  = errors.New("trainer capacity exceeded")
	ErrPolicyViolation   = errors.New("booking policy violation")
	ErrInvalidTransition = errors.New("invalid booking status transition")

	// ErrExternalSyncFailure only ever appears as a warning on a successful result.
	ErrExternalSyncFailure = errors.New("external calendar sync failed")
)

// PolicyReason names the booking rule that was broken.
type PolicyReason string

const (
	ReasonInPast             PolicyReason = "in_past"
	ReasonAdvanceWindow      PolicyReason = "advance_window"
	ReasonWeekend            PolicyReason = "weekend"
	ReasonTimeOfDay          PolicyReason = "time_of_day"
	ReasonSelfBooking        PolicyReason = "self_booking"
	ReasonCancellationWindow PolicyReason = "cancellation_window"
)

// PolicyError is returned for requests that break the trainer's booking policy.
// It matches ErrPolicyViolation under errors.Is.
type PolicyError struct {
	Reason PolicyReason
	Detail string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%s (%s): %s", ErrPolicyViolation, e.Reason, e.Detail)
}

func (e *PolicyError) Unwrap() error { return ErrPolicyViolation }

func policyErr(reason PolicyReason, format string, args ...any) error {
	return &PolicyError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

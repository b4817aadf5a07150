package schedule

import "time"

// Recurrence is the cadence of a repeating block.
type Recurrence string

const (
	RecurDaily   Recurrence = "daily"
	RecurWeekly  Recurrence = "weekly"
	RecurMonthly Recurrence = "monthly"
)

// Valid reports whether r is a known cadence.
func (r Recurrence) Valid() bool {
	switch r {
	case RecurDaily, RecurWeekly, RecurMonthly:
		return true
	}
	return false
}

// Block is a blocked-time rule reduced to what recurrence expansion needs.
type Block struct {
	Date       time.Time
	Window     Interval
	Recurring  bool
	Recurrence Recurrence
	Until      *time.Time
}

// IsActiveOn reports whether b excludes time on date.
// Monthly rules anchored on a day-of-month that a month lacks are skipped for
// that month rather than rolled over.
func (b Block) IsActiveOn(date time.Time) bool {
	date = Date(date)
	start := Date(b.Date)
	if !b.Recurring {
		return date.Equal(start)
	}
	if date.Before(start) {
		return false
	}
	if b.Until != nil && date.After(Date(*b.Until)) {
		return false
	}
	switch b.Recurrence {
	case RecurDaily:
		return true
	case RecurWeekly:
		return date.Weekday() == start.Weekday()
	case RecurMonthly:
		return date.Day() == start.Day()
	}
	return false
}

// IsCurrent reports whether b can still affect today or a later date.
func (b Block) IsCurrent(today time.Time) bool {
	today = Date(today)
	if !b.Recurring {
		return !Date(b.Date).Before(today)
	}
	return b.Until == nil || !Date(*b.Until).Before(today)
}

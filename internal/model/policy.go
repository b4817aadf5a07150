package model

import (
	"errors"
	"fmt"
	"time"

	"trainer-booking-backend/internal/schedule"
)

// CapacityPolicy caps how many sessions a trainer takes and how long they run.
type CapacityPolicy struct {
	TrainerID                   string    `gorm:"type:uuid;primaryKey" json:"trainer_id"`
	MaxDailySessions            int       `gorm:"not null" json:"max_daily_sessions"`
	MaxWeeklySessions           int       `gorm:"not null" json:"max_weekly_sessions"`
	SessionDurationMinutes      int       `gorm:"not null" json:"session_duration_minutes"`
	BreakBetweenSessionsMinutes int       `gorm:"not null" json:"break_between_sessions_minutes"`
	UpdatedAt                   time.Time `gorm:"not null" json:"updated_at"`
}

// DefaultCapacityPolicy applies when a trainer never saved one.
func DefaultCapacityPolicy(trainerID string) CapacityPolicy {
	return CapacityPolicy{
		TrainerID:              trainerID,
		MaxDailySessions:       8,
		MaxWeeklySessions:      40,
		SessionDurationMinutes: 60,
	}
}

// Validate checks the hard invariants.
func (p *CapacityPolicy) Validate() error {
	switch {
	case p.MaxDailySessions < 1:
		return errors.New("max_daily_sessions must be at least 1")
	case p.MaxWeeklySessions < 1:
		return errors.New("max_weekly_sessions must be at least 1")
	case p.SessionDurationMinutes <= 0:
		return errors.New("session_duration_minutes must be positive")
	case p.BreakBetweenSessionsMinutes < 0:
		return errors.New("break_between_sessions_minutes cannot be negative")
	}
	return nil
}

// Warnings lists soft inconsistencies that are accepted on write.
func (p *CapacityPolicy) Warnings() []string {
	var warnings []string
	if p.MaxDailySessions*7 > p.MaxWeeklySessions {
		warnings = append(warnings, fmt.Sprintf(
			"max_weekly_sessions %d is below max_daily_sessions x 7 (%d); the weekly cap will bind first",
			p.MaxWeeklySessions, p.MaxDailySessions*7))
	}
	return warnings
}

// BookingPolicy holds the booking rules a trainer exposes to clients.
type BookingPolicy struct {
	TrainerID           string             `gorm:"type:uuid;primaryKey" json:"trainer_id"`
	AllowSelfBooking    bool               `gorm:"not null" json:"allow_self_booking"`
	RequireApproval     bool               `gorm:"not null" json:"require_approval"`
	AdvanceBookingDays  int                `gorm:"not null" json:"advance_booking_days"`
	CancellationHours   int                `gorm:"not null" json:"cancellation_hours"`
	AllowWeekendBooking bool               `gorm:"not null" json:"allow_weekend_booking"`
	EarliestBookingTime schedule.TimeOfDay `gorm:"not null" json:"earliest_booking_time"`
	LatestBookingTime   schedule.TimeOfDay `gorm:"not null" json:"latest_booking_time"`
	UpdatedAt           time.Time          `gorm:"not null" json:"updated_at"`
}

// DefaultBookingPolicy applies when a trainer never saved one.
func DefaultBookingPolicy(trainerID string) BookingPolicy {
	return BookingPolicy{
		TrainerID:           trainerID,
		AllowSelfBooking:    true,
		AdvanceBookingDays:  30,
		CancellationHours:   24,
		AllowWeekendBooking: true,
		EarliestBookingTime: 0,
		LatestBookingTime:   schedule.MinutesPerDay,
	}
}

// Validate checks the hard invariants.
func (p *BookingPolicy) Validate() error {
	switch {
	case p.AdvanceBookingDays <= 0:
		return errors.New("advance_booking_days must be positive")
	case p.CancellationHours < 0:
		return errors.New("cancellation_hours cannot be negative")
	case !(schedule.Interval{Start: p.EarliestBookingTime, End: p.LatestBookingTime}).Valid():
		return errors.New("earliest_booking_time must be before latest_booking_time")
	}
	return nil
}

// Bookable reports whether a session starting at t honours the time-of-day bounds.
func (p *BookingPolicy) Bookable(t schedule.TimeOfDay) bool {
	return t >= p.EarliestBookingTime && t < p.LatestBookingTime
}

package model

import (
	"errors"
	"fmt"
	"time"

	"trainer-booking-backend/internal/schedule"
)

// Availability is a trainer's recurring morning/evening windows for one weekday.
type Availability struct {
	ID               int64              `gorm:"primaryKey" json:"-"`
	TrainerID        string             `gorm:"type:uuid;not null;uniqueIndex:idx_availability_trainer_day" json:"trainer_id"`
	DayOfWeek        int                `gorm:"not null;uniqueIndex:idx_availability_trainer_day" json:"day_of_week"` // 0=Sunday...6=Saturday
	MorningAvailable bool               `gorm:"not null" json:"morning_available"`
	MorningStart     schedule.TimeOfDay `gorm:"not null" json:"morning_start"`
	MorningEnd       schedule.TimeOfDay `gorm:"not null" json:"morning_end"`
	EveningAvailable bool               `gorm:"not null" json:"evening_available"`
	EveningStart     schedule.TimeOfDay `gorm:"not null" json:"evening_start"`
	EveningEnd       schedule.TimeOfDay `gorm:"not null" json:"evening_end"`
	UpdatedAt        time.Time          `gorm:"not null" json:"updated_at"`
}

// Validate checks the row invariants.
func (a *Availability) Validate() error {
	if a.DayOfWeek < 0 || a.DayOfWeek > 6 {
		return fmt.Errorf("day_of_week %d out of range 0..6", a.DayOfWeek)
	}
	if a.MorningAvailable && !(schedule.Interval{Start: a.MorningStart, End: a.MorningEnd}).Valid() {
		return errors.New("morning start must be before morning end")
	}
	if a.EveningAvailable && !(schedule.Interval{Start: a.EveningStart, End: a.EveningEnd}).Valid() {
		return errors.New("evening start must be before evening end")
	}
	return nil
}

// Windows returns the sessions that are switched on, morning first.
func (a *Availability) Windows() []schedule.Interval {
	var out []schedule.Interval
	if a.MorningAvailable {
		out = append(out, schedule.Interval{Start: a.MorningStart, End: a.MorningEnd})
	}
	if a.EveningAvailable {
		out = append(out, schedule.Interval{Start: a.EveningStart, End: a.EveningEnd})
	}
	return out
}

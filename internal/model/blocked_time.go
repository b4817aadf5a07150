package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"trainer-booking-backend/internal/schedule"
)

// BlockedTime excludes part of a date, optionally repeating.
type BlockedTime struct {
	ID               string               `gorm:"type:uuid;primaryKey" json:"id"`
	TrainerID        string               `gorm:"type:uuid;not null;index" json:"trainer_id"`
	Date             string               `gorm:"size:10;not null;index" json:"date"`
	StartTime        schedule.TimeOfDay   `gorm:"not null" json:"start_time"`
	EndTime          schedule.TimeOfDay   `gorm:"not null" json:"end_time"`
	Reason           string               `gorm:"size:255" json:"reason"`
	IsRecurring      bool                 `gorm:"not null" json:"is_recurring"`
	RecurringType    *schedule.Recurrence `gorm:"size:16" json:"recurring_type"`
	RecurringEndDate *string              `gorm:"size:10" json:"recurring_end_date"`
	CreatedAt        time.Time            `gorm:"not null" json:"created_at"`
}

// BeforeCreate assigns a UUID when none was supplied.
func (b *BlockedTime) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}

// Block converts the row into a recurrence rule.
func (b *BlockedTime) Block() (schedule.Block, error) {
	date, err := time.Parse(schedule.DateLayout, b.Date)
	if err != nil {
		return schedule.Block{}, fmt.Errorf("blocked time %s: bad date %q: %w", b.ID, b.Date, err)
	}
	block := schedule.Block{
		Date:      date,
		Window:    schedule.Interval{Start: b.StartTime, End: b.EndTime},
		Recurring: b.IsRecurring,
	}
	if b.RecurringType != nil {
		block.Recurrence = *b.RecurringType
	}
	if b.RecurringEndDate != nil {
		until, err := time.Parse(schedule.DateLayout, *b.RecurringEndDate)
		if err != nil {
			return schedule.Block{}, fmt.Errorf("blocked time %s: bad recurring end date %q: %w", b.ID, *b.RecurringEndDate, err)
		}
		block.Until = &until
	}
	return block, nil
}

// Validate checks the row invariants.
func (b *BlockedTime) Validate() error {
	if !(schedule.Interval{Start: b.StartTime, End: b.EndTime}).Valid() {
		return errors.New("start time must be before end time")
	}
	if b.IsRecurring {
		if b.RecurringType == nil || !b.RecurringType.Valid() {
			return errors.New("recurring blocked time needs recurring_type daily, weekly or monthly")
		}
	} else if b.RecurringType != nil || b.RecurringEndDate != nil {
		return errors.New("recurring_type and recurring_end_date require is_recurring")
	}
	block, err := b.Block()
	if err != nil {
		return err
	}
	if block.Until != nil && block.Until.Before(block.Date) {
		return errors.New("recurring_end_date is before date")
	}
	return nil
}

package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"trainer-booking-backend/internal/schedule"
)

// BookingStatus is the ledger state of a booking.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
)

// Transition names a booking state change.
type Transition string

const (
	TransitionCreated     Transition = "created"
	TransitionConfirmed   Transition = "confirmed"
	TransitionCancelled   Transition = "cancelled"
	TransitionRescheduled Transition = "rescheduled"
)

// ActiveStatuses occupy time and count toward capacity.
var ActiveStatuses = []BookingStatus{StatusPending, StatusConfirmed}

// Booking is a ledger entry. Cancelled rows are kept for audit.
type Booking struct {
	ID        string             `gorm:"type:uuid;primaryKey" json:"id"`
	TrainerID string             `gorm:"type:uuid;not null;index:idx_booking_trainer_date" json:"trainer_id"`
	ClientID  string             `gorm:"type:uuid;not null;index" json:"client_id"`
	Date      string             `gorm:"size:10;not null;index:idx_booking_trainer_date" json:"date"`
	StartTime schedule.TimeOfDay `gorm:"column:start_minute;not null" json:"start_time"`
	EndTime   schedule.TimeOfDay `gorm:"column:end_minute;not null" json:"end_time"`
	Status    BookingStatus      `gorm:"size:16;not null;index" json:"status"`
	Notes     string             `gorm:"type:text" json:"notes,omitempty"`

	ExternalEventID *string `gorm:"size:256" json:"external_event_id,omitempty"`
	MeetingLink     *string `gorm:"size:512" json:"meeting_link,omitempty"`
	CalendarSynced  bool    `gorm:"not null" json:"calendar_synced"`

	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
}

// BeforeCreate assigns a UUID when none was supplied.
func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}

// Interval is the booked time range on Date.
func (b *Booking) Interval() schedule.Interval {
	return schedule.Interval{Start: b.StartTime, End: b.EndTime}
}

// IsActive reports whether the booking occupies its interval.
func (b *Booking) IsActive() bool {
	return b.Status != StatusCancelled
}

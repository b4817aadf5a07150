package calendar

import (
	"context"
	"errors"
	"time"

	"trainer-booking-backend/internal/model"
	"trainer-booking-backend/internal/schedule"
)

// ErrNoEvent is returned when an update or delete targets a booking that was
// never mirrored.
var ErrNoEvent = errors.New("booking has no external event")

// Status describes a trainer's calendar connection.
type Status struct {
	Connected    bool   `json:"connected"`
	AccountEmail string `json:"account_email,omitempty"`
}

// Event identifies a mirrored booking in the external calendar.
type Event struct {
	ExternalEventID string `json:"external_event_id"`
	MeetingLink     string `json:"meeting_link,omitempty"`
}

// Busy is a time range the external calendar reports as taken.
type Busy struct {
	Date   time.Time
	Window schedule.Interval
}

// Adapter mirrors bookings into an external calendar.
type Adapter interface {
	GetConnectionStatus(ctx context.Context, trainerID string) (Status, error)
	CreateEvent(ctx context.Context, b *model.Booking) (Event, error)
	UpdateEvent(ctx context.Context, b *model.Booking) error
	DeleteEvent(ctx context.Context, b *model.Booking) error
	GetBusyIntervals(ctx context.Context, trainerID string, start, end time.Time) ([]Busy, error)
}

// NoopAdapter is used when no calendar provider is configured. Every trainer
// reports as disconnected.
type NoopAdapter struct{}

func (NoopAdapter) GetConnectionStatus(context.Context, string) (Status, error) {
	return Status{}, nil
}

func (NoopAdapter) CreateEvent(context.Context, *model.Booking) (Event, error) {
	return Event{}, nil
}

func (NoopAdapter) UpdateEvent(context.Context, *model.Booking) error { return nil }

func (NoopAdapter) DeleteEvent(context.Context, *model.Booking) error { return nil }

func (NoopAdapter) GetBusyIntervals(context.Context, string, time.Time, time.Time) ([]Busy, error) {
	return nil, nil
}

package store

import (
	"context"

	"gorm.io/gorm"

	"trainer-booking-backend/internal/model"
	"trainer-booking-backend/internal/schedule"
)

func (s *gormStore) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	var b model.Booking
	if err := s.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &b, nil
}

func (s *gormStore) ListBookings(ctx context.Context, f BookingFilter) ([]model.Booking, error) {
	var rows []model.Booking
	err := applyFilter(s.db.WithContext(ctx), f).
		Order("date, start_minute").
		Find(&rows).Error
	return rows, translateError(err)
}

func (s *gormStore) CountBookings(ctx context.Context, f BookingFilter) (int64, error) {
	var n int64
	err := applyFilter(s.db.WithContext(ctx).Model(&model.Booking{}), f).Count(&n).Error
	return n, translateError(err)
}

func (s *gormStore) CreateBooking(ctx context.Context, b *model.Booking) error {
	return translateError(s.db.WithContext(ctx).Create(b).Error)
}

// UpdateBooking writes every column of b except the calendar identifiers,
// which only SetCalendarState owns. A booking already cancelled in the
// database is never rewritten; that case returns ErrStale.
func (s *gormStore) UpdateBooking(ctx context.Context, b *model.Booking) error {
	res := s.db.WithContext(ctx).Model(b).
		Where("status <> ?", model.StatusCancelled).
		Select("*").Omit("id", "created_at", "external_event_id", "meeting_link").
		Updates(b)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return s.missingOrStale(ctx, b.ID)
	}
	return nil
}

func (s *gormStore) missingOrStale(ctx context.Context, id string) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Booking{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return translateError(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrStale
}

func applyFilter(q *gorm.DB, f BookingFilter) *gorm.DB {
	if f.TrainerID != "" {
		q = q.Where("trainer_id = ?", f.TrainerID)
	}
	if f.ClientID != "" {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if !f.From.IsZero() {
		q = q.Where("date >= ?", schedule.FormatDate(f.From))
	}
	if !f.To.IsZero() {
		q = q.Where("date <= ?", schedule.FormatDate(f.To))
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.ExcludeID != "" {
		q = q.Where("id <> ?", f.ExcludeID)
	}
	return q
}

// CalendarState is what the calendar syncer records on a booking. When
// Expect is set the write only lands if the booking still has Expect's
// status, trainer and position; otherwise ErrStale is returned.
type CalendarState struct {
	ExternalEventID *string
	MeetingLink     *string
	Synced          bool
	Expect          *model.Booking
}

func (s *gormStore) SetCalendarState(ctx context.Context, bookingID string, st CalendarState) error {
	q := s.db.WithContext(ctx).Model(&model.Booking{}).Where("id = ?", bookingID)
	if e := st.Expect; e != nil {
		q = q.Where("status = ? AND trainer_id = ? AND date = ? AND start_minute = ? AND end_minute = ?",
			string(e.Status), e.TrainerID, e.Date, int(e.StartTime), int(e.EndTime))
	}
	res := q.Updates(map[string]any{
		"external_event_id": st.ExternalEventID,
		"meeting_link":      st.MeetingLink,
		"calendar_synced":   st.Synced,
	})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return s.missingOrStale(ctx, bookingID)
	}
	return nil
}

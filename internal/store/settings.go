package store

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"trainer-booking-backend/internal/model"
	"trainer-booking-backend/internal/schedule"
)

func (s *gormStore) ListAvailability(ctx context.Context, trainerID string) ([]model.Availability, error) {
	var rows []model.Availability
	err := s.db.WithContext(ctx).
		Where("trainer_id = ?", trainerID).
		Order("day_of_week").
		Find(&rows).Error
	return rows, translateError(err)
}

// UpsertAvailability replaces the row for (trainer, weekday).
func (s *gormStore) UpsertAvailability(ctx context.Context, a *model.Availability) error {
	return translateError(s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "trainer_id"}, {Name: "day_of_week"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"morning_available", "morning_start", "morning_end",
			"evening_available", "evening_start", "evening_end", "updated_at",
		}),
	}).Create(a).Error)
}

// ListBlockedTimes returns blocks that may apply within [from, to]: one-off
// blocks dated in range and recurring blocks anchored on or before to.
func (s *gormStore) ListBlockedTimes(ctx context.Context, trainerID string, from, to time.Time) ([]model.BlockedTime, error) {
	var rows []model.BlockedTime
	err := s.db.WithContext(ctx).
		Where("trainer_id = ? AND date <= ?", trainerID, schedule.FormatDate(to)).
		Where("date >= ? OR is_recurring = ?", schedule.FormatDate(from), true).
		Order("date, start_time").
		Find(&rows).Error
	return rows, translateError(err)
}

func (s *gormStore) CreateBlockedTime(ctx context.Context, b *model.BlockedTime) error {
	return translateError(s.db.WithContext(ctx).Create(b).Error)
}

func (s *gormStore) DeleteBlockedTime(ctx context.Context, trainerID, id string) error {
	res := s.db.WithContext(ctx).Where("trainer_id = ? AND id = ?", trainerID, id).Delete(&model.BlockedTime{})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) GetCapacityPolicy(ctx context.Context, trainerID string) (*model.CapacityPolicy, error) {
	var p model.CapacityPolicy
	if err := s.db.WithContext(ctx).First(&p, "trainer_id = ?", trainerID).Error; err != nil {
		return nil, translateError(err)
	}
	return &p, nil
}

func (s *gormStore) PutCapacityPolicy(ctx context.Context, p *model.CapacityPolicy) error {
	return translateError(s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "trainer_id"}},
		UpdateAll: true,
	}).Create(p).Error)
}

func (s *gormStore) GetBookingPolicy(ctx context.Context, trainerID string) (*model.BookingPolicy, error) {
	var p model.BookingPolicy
	if err := s.db.WithContext(ctx).First(&p, "trainer_id = ?", trainerID).Error; err != nil {
		return nil, translateError(err)
	}
	return &p, nil
}

func (s *gormStore) PutBookingPolicy(ctx context.Context, p *model.BookingPolicy) error {
	return translateError(s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "trainer_id"}},
		UpdateAll: true,
	}).Create(p).Error)
}

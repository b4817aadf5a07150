package booking

import (
	"context"
	"errors"
	"fmt"

	"trainer-booking-backend/internal/calendar"
	"trainer-booking-backend/internal/model"
	"trainer-booking-backend/internal/schedule"
	"trainer-booking-backend/internal/store"
)

// Settings manages a trainer's availability, blocked time and policies.
type Settings struct {
	Deps
}

// NewSettings creates the settings service.
func NewSettings(d Deps) *Settings {
	return &Settings{Deps: d.withDefaults()}
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
}

func (s *Settings) Availability(ctx context.Context, trainerID string) ([]model.Availability, error) {
	if _, err := getTrainer(ctx, s.Store, trainerID); err != nil {
		return nil, err
	}
	return s.Store.ListAvailability(ctx, trainerID)
}

// PutAvailability upserts one row per weekday in a single transaction.
// Weekdays not mentioned keep their current row.
func (s *Settings) PutAvailability(ctx context.Context, trainerID string, rows []model.Availability) ([]model.Availability, error) {
	if _, err := getTrainer(ctx, s.Store, trainerID); err != nil {
		return nil, err
	}
	seen := make(map[int]bool, len(rows))
	for i := range rows {
		rows[i].TrainerID = trainerID
		if err := rows[i].Validate(); err != nil {
			return nil, invalid(err)
		}
		if seen[rows[i].DayOfWeek] {
			return nil, invalid(fmt.Errorf("day_of_week %d listed twice", rows[i].DayOfWeek))
		}
		seen[rows[i].DayOfWeek] = true
	}

	err := s.Store.InTrainerTx(ctx, trainerID, func(tx store.Store) error {
		for i := range rows {
			if err := tx.UpsertAvailability(ctx, &rows[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save availability: %w", err)
	}
	s.scheduleChanged(trainerID)
	return s.Store.ListAvailability(ctx, trainerID)
}

// BlockedTimes lists blocks that still affect today or later.
func (s *Settings) BlockedTimes(ctx context.Context, trainerID string) ([]model.BlockedTime, error) {
	tr, err := getTrainer(ctx, s.Store, trainerID)
	if err != nil {
		return nil, err
	}
	today, _ := schedule.Local(s.Clock.Now(), s.location(tr))
	rows, err := s.Store.ListBlockedTimes(ctx, trainerID, today, today.AddDate(100, 0, 0))
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for i := range rows {
		b, err := rows[i].Block()
		if err == nil && b.IsCurrent(today) {
			out = append(out, rows[i])
		}
	}
	return out, nil
}

func (s *Settings) AddBlockedTime(ctx context.Context, b *model.BlockedTime) error {
	if _, err := getTrainer(ctx, s.Store, b.TrainerID); err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return invalid(err)
	}
	if err := s.Store.CreateBlockedTime(ctx, b); err != nil {
		return fmt.Errorf("failed to save blocked time: %w", err)
	}
	s.scheduleChanged(b.TrainerID)
	return nil
}

func (s *Settings) RemoveBlockedTime(ctx context.Context, trainerID, id string) error {
	err := s.Store.DeleteBlockedTime(ctx, trainerID, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrBlockedNotFound, id)
	}
	if err != nil {
		return err
	}
	s.scheduleChanged(trainerID)
	return nil
}

// Policies returns the trainer's policies with defaults applied.
func (s *Settings) Policies(ctx context.Context, trainerID string) (Policies, error) {
	if _, err := getTrainer(ctx, s.Store, trainerID); err != nil {
		return Policies{}, err
	}
	return loadPolicies(ctx, s.Store, trainerID)
}

// PutCapacityPolicy saves p and returns soft warnings that did not block the write.
func (s *Settings) PutCapacityPolicy(ctx context.Context, p *model.CapacityPolicy) ([]string, error) {
	if _, err := getTrainer(ctx, s.Store, p.TrainerID); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, invalid(err)
	}
	if err := s.Store.PutCapacityPolicy(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save capacity policy: %w", err)
	}
	s.scheduleChanged(p.TrainerID)
	return p.Warnings(), nil
}

func (s *Settings) PutBookingPolicy(ctx context.Context, p *model.BookingPolicy) error {
	if _, err := getTrainer(ctx, s.Store, p.TrainerID); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return invalid(err)
	}
	if err := s.Store.PutBookingPolicy(ctx, p); err != nil {
		return fmt.Errorf("failed to save booking policy: %w", err)
	}
	s.scheduleChanged(p.TrainerID)
	return nil
}

// CalendarStatus reports whether the trainer's external calendar is connected.
func (s *Settings) CalendarStatus(ctx context.Context, trainerID string) (calendar.Status, error) {
	if _, err := getTrainer(ctx, s.Store, trainerID); err != nil {
		return calendar.Status{}, err
	}
	if s.Syncer == nil {
		return calendar.Status{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.Syncer.Timeout())
	defer cancel()
	return s.Syncer.Adapter().GetConnectionStatus(ctx, trainerID)
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"trainer-booking-backend/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrOverlap is returned when the database rejects an overlapping active booking.
	ErrOverlap = errors.New("booking overlaps an active booking")
	// ErrDuplicate is returned on unique key violations.
	ErrDuplicate = errors.New("duplicate record")
	// ErrStale is returned when a guarded write finds the row changed underneath it.
	ErrStale = errors.New("record changed concurrently")
)

const (
	pgExclusionViolation = "23P01"
	pgUniqueViolation    = "23505"
)

// BookingFilter narrows ListBookings. Zero fields are ignored; From and To
// are inclusive dates.
type BookingFilter struct {
	TrainerID string
	ClientID  string
	From      time.Time
	To        time.Time
	Statuses  []model.BookingStatus
	ExcludeID string
}

// Store defines the interface for all database operations.
type Store interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	CreateUser(ctx context.Context, u *model.User) error
	GetTrainer(ctx context.Context, id string) (*model.Trainer, error)
	CreateTrainer(ctx context.Context, tr *model.Trainer) error

	ListAvailability(ctx context.Context, trainerID string) ([]model.Availability, error)
	UpsertAvailability(ctx context.Context, a *model.Availability) error
	ListBlockedTimes(ctx context.Context, trainerID string, from, to time.Time) ([]model.BlockedTime, error)
	CreateBlockedTime(ctx context.Context, b *model.BlockedTime) error
	DeleteBlockedTime(ctx context.Context, trainerID, id string) error
	GetCapacityPolicy(ctx context.Context, trainerID string) (*model.CapacityPolicy, error)
	PutCapacityPolicy(ctx context.Context, p *model.CapacityPolicy) error
	GetBookingPolicy(ctx context.Context, trainerID string) (*model.BookingPolicy, error)
	PutBookingPolicy(ctx context.Context, p *model.BookingPolicy) error

	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	ListBookings(ctx context.Context, f BookingFilter) ([]model.Booking, error)
	CountBookings(ctx context.Context, f BookingFilter) (int64, error)
	CreateBooking(ctx context.Context, b *model.Booking) error
	UpdateBooking(ctx context.Context, b *model.Booking) error
	SetCalendarState(ctx context.Context, bookingID string, st CalendarState) error

	UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	ListSubscriptions(ctx context.Context, userID string) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error

	// InTrainerTx runs fn in one transaction that holds the trainer's
	// database lock. fn must use the Store it is given.
	InTrainerTx(ctx context.Context, trainerID string, fn func(tx Store) error) error
	// LockTrainer takes another trainer's database lock inside a transaction
	// started by InTrainerTx.
	LockTrainer(ctx context.Context, trainerID string) error
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// InTrainerTx serialises writers for one trainer. Postgres takes a
// transaction-scoped advisory lock; sqlite already serialises writers.
func (s *gormStore) InTrainerTx(ctx context.Context, trainerID string, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := &gormStore{db: tx}
		if err := st.LockTrainer(ctx, trainerID); err != nil {
			return err
		}
		return fn(st)
	})
}

func (s *gormStore) LockTrainer(ctx context.Context, trainerID string) error {
	if s.db.Dialector.Name() != "postgres" {
		return nil
	}
	if err := s.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", trainerID).Error; err != nil {
		return fmt.Errorf("failed to lock trainer %s: %w", trainerID, err)
	}
	return nil
}

// translateError maps driver errors onto the store's sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgExclusionViolation:
			return fmt.Errorf("%w: %s", ErrOverlap, pgErr.ConstraintName)
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (s *gormStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &u, nil
}

func (s *gormStore) CreateUser(ctx context.Context, u *model.User) error {
	return translateError(s.db.WithContext(ctx).Create(u).Error)
}

func (s *gormStore) GetTrainer(ctx context.Context, id string) (*model.Trainer, error) {
	var tr model.Trainer
	if err := s.db.WithContext(ctx).First(&tr, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &tr, nil
}

func (s *gormStore) CreateTrainer(ctx context.Context, tr *model.Trainer) error {
	return translateError(s.db.WithContext(ctx).Create(tr).Error)
}

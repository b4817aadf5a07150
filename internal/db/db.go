package db

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"trainer-booking-backend/config"
	"trainer-booking-backend/internal/model"
)

const sqlitePrefix = "sqlite://"

// Models lists every table managed by AutoMigrate.
var Models = []any{
	&model.User{},
	&model.Trainer{},
	&model.Availability{},
	&model.BlockedTime{},
	&model.CapacityPolicy{},
	&model.BookingPolicy{},
	&model.Booking{},
	&model.PushSubscription{},
}

// Open connects to the configured database without migrating it.
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	mode := logger.Silent
	if cfg.LogQueries {
		mode = logger.Info
	}
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(mode)}

	var dialector gorm.Dialector
	if strings.HasPrefix(cfg.DSN, sqlitePrefix) {
		dialector = sqlite.Open(strings.TrimPrefix(cfg.DSN, sqlitePrefix))
	} else {
		dialector = postgres.Open(cfg.DSN)
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if db.Dialector.Name() == "sqlite" {
		// sqlite serialises writers; one connection keeps transactions honest.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}
	return db, nil
}

// Init opens the database and runs migrations.
func Init(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, cfg.EnableOverlapConstraint, log); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates the schema. On postgres it optionally adds the exclusion
// constraint that rejects overlapping active bookings for one trainer.
func Migrate(db *gorm.DB, overlapConstraint bool, log *zap.Logger) error {
	log.Info("running database migrations")
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}

	if overlapConstraint && db.Dialector.Name() == "postgres" {
		log.Info("applying booking overlap constraint")
		if err := applyOverlapDDL(db); err != nil {
			return err
		}
	}

	log.Info("database initialization complete")
	return nil
}

func applyOverlapDDL(db *gorm.DB) error {
	ddls := []string{
		"CREATE EXTENSION IF NOT EXISTS btree_gist;",

		"ALTER TABLE bookings DROP CONSTRAINT IF EXISTS bookings_interval_valid;",
		"ALTER TABLE bookings ADD CONSTRAINT bookings_interval_valid " +
			"CHECK (start_minute >= 0 AND end_minute <= 1440 AND start_minute < end_minute);",

		// Half-open ranges: back-to-back sessions do not collide.
		"ALTER TABLE bookings DROP CONSTRAINT IF EXISTS bookings_no_overlap;",
		"ALTER TABLE bookings ADD CONSTRAINT bookings_no_overlap EXCLUDE USING gist (" +
			"trainer_id WITH =, date WITH =, int4range(start_minute, end_minute, '[)') WITH &&" +
			") WHERE (status <> 'cancelled');",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}

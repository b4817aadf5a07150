// Package app wires configuration into a running booking service.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"trainer-booking-backend/config"
	"trainer-booking-backend/internal/api"
	"trainer-booking-backend/internal/booking"
	"trainer-booking-backend/internal/calendar"
	"trainer-booking-backend/internal/db"
	"trainer-booking-backend/internal/lock"
	"trainer-booking-backend/internal/metrics"
	"trainer-booking-backend/internal/model"
	"trainer-booking-backend/internal/mw"
	"trainer-booking-backend/internal/notification"
	"trainer-booking-backend/internal/schedule"
	"trainer-booking-backend/internal/store"
)

// App is the assembled service.
type App struct {
	DB      *gorm.DB
	Store   store.Store
	Metrics *metrics.Metrics
	Syncer  *calendar.Syncer
	Push    *notification.WorkerPool
	Cache   *mw.ResponseCache
	Handler http.Handler

	log     *zap.Logger
	closers []func() error
}

// Option adjusts how New assembles the App.
type Option func(*options)

type options struct {
	clock schedule.Clock
}

// WithClock replaces the wall clock.
func WithClock(c schedule.Clock) Option {
	return func(o *options) { o.clock = c }
}

// New opens the database, runs migrations and builds every component. Call
// Start to launch background workers and Close when done.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, opts ...Option) (*App, error) {
	o := options{clock: schedule.SystemClock{}}
	for _, fn := range opts {
		fn(&o)
	}

	gormDB, err := db.Init(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a := &App{DB: gormDB, Store: store.NewGormStore(gormDB), Metrics: metrics.New(), log: log}
	a.closers = append(a.closers, func() error {
		sqlDB, err := gormDB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	locker, err := a.locker(ctx, cfg.Redis)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	var adapter calendar.Adapter = calendar.NoopAdapter{}
	if cfg.Calendar.BaseURL != "" {
		adapter = calendar.NewHTTPAdapter(cfg.Calendar.BaseURL, cfg.Calendar.APIKey, cfg.Calendar.Timeout)
		log.Info("calendar sync enabled", zap.String("base_url", cfg.Calendar.BaseURL))
	}
	a.Syncer = calendar.NewSyncer(adapter, a.Store, calendar.SyncerOptions{
		Workers:  cfg.Calendar.RetryWorkers,
		Attempts: cfg.Calendar.RetryAttempts,
		Timeout:  cfg.Calendar.Timeout,
	}, log.Named("calendar"), a.Metrics)

	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		a.Push = notification.NewWorkerPool(cfg.WorkerPool.Size, a.Store, webpushOptions, log)
	} else {
		log.Warn("VAPID keys not configured, push notifications disabled")
	}

	a.Cache = mw.NewResponseCache(time.Duration(cfg.Server.CacheTTLSeconds) * time.Second)
	deps := booking.Deps{
		Store:           a.Store,
		Locker:          locker,
		Clock:           o.clock,
		Syncer:          a.Syncer,
		Log:             log.Named("booking"),
		Metrics:         a.Metrics,
		DefaultLocation: schedule.LoadLocation(cfg.Scheduling.DefaultTimezone),
		MaxRangeDays:    cfg.Scheduling.MaxRangeDays,
		Hooks: booking.Hooks{
			ScheduleChanged: a.Cache.InvalidateTrainer,
			BookingChanged:  a.notify,
		},
	}
	h := api.NewHandler(a.Store, api.Services{
		Slots:     booking.NewSlotGenerator(deps),
		Admission: booking.NewAdmissionController(deps),
		Settings:  booking.NewSettings(deps),
	}, webpushOptions)
	a.Handler = api.NewRouter(h, api.RouterOptions{
		Server:  cfg.Server,
		Cache:   a.Cache,
		Metrics: a.Metrics,
		Log:     log.Named("http"),
	})
	return a, nil
}

func (a *App) locker(ctx context.Context, cfg config.RedisConfig) (lock.Locker, error) {
	if cfg.Addr == "" {
		a.log.Info("using in-process trainer locks")
		return lock.NewLocalLocker(), nil
	}
	rdb, err := lock.NewRedisClient(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	a.closers = append(a.closers, rdb.Close)
	a.log.Info("using redis trainer locks", zap.String("addr", cfg.Addr))
	return lock.NewRedisLocker(rdb, "booking:trainer:", cfg.LockTTL, a.log.Named("lock")), nil
}

func (a *App) notify(b model.Booking, t booking.Transition) {
	if a.Push != nil {
		a.Push.Dispatch(b, t)
	}
}

// Start launches the calendar retry and push workers. They stop with ctx.
func (a *App) Start(ctx context.Context) {
	a.Syncer.Start(ctx)
	if a.Push != nil {
		a.Push.Start(ctx)
	}
}

// Close releases connections in reverse order of creation.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

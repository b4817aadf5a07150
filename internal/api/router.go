package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"trainer-booking-backend/config"
	"trainer-booking-backend/internal/metrics"
	"trainer-booking-backend/internal/mw"
)

// RouterOptions carries the cross-cutting pieces of the HTTP surface.
type RouterOptions struct {
	Server  config.ServerConfig
	Cache   *mw.ResponseCache
	Metrics *metrics.Metrics
	Log     *zap.Logger
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if opts.Log != nil {
		r.Use(mw.Logger(opts.Log))
	}
	r.Use(mw.Metrics(opts.Metrics))

	r.GET("/healthz", func(c *gin.Context) {
		if db, err := h.store.DB().DB(); err != nil || db.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	caching := func(c *gin.Context) { c.Next() }
	if opts.Cache != nil {
		caching = opts.Cache.Handler()
	}

	api := r.Group("/api")
	if opts.Server.RateLimitPerSec > 0 {
		api.Use(mw.RateLimiter(rate.Limit(opts.Server.RateLimitPerSec), opts.Server.RateLimitBurst, opts.Server.RequestIPHeader))
	}
	{
		trainers := api.Group("/trainers/:trainer_id")
		// Slots depend on the clock and on other nodes' bookings; never cached.
		trainers.GET("/slots", h.GetSlots)
		trainers.GET("/availability", caching, h.GetAvailability)
		trainers.PUT("/availability", h.PutAvailability)
		trainers.GET("/blocked-times", caching, h.GetBlockedTimes)
		trainers.POST("/blocked-times", h.AddBlockedTime)
		trainers.DELETE("/blocked-times/:id", h.RemoveBlockedTime)
		trainers.GET("/capacity", caching, h.GetCapacityPolicy)
		trainers.PUT("/capacity", h.PutCapacityPolicy)
		trainers.GET("/policy", caching, h.GetBookingPolicy)
		trainers.PUT("/policy", h.PutBookingPolicy)
		trainers.GET("/calendar", h.GetCalendarStatus)

		api.GET("/bookings", h.ListBookings)
		api.POST("/bookings", h.CreateBooking)
		api.GET("/bookings/:id", h.GetBooking)
		api.PATCH("/bookings/:id", h.PatchBooking)
		api.DELETE("/bookings/:id", h.CancelBooking)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}

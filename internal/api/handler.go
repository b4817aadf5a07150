package api

import (
	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"trainer-booking-backend/internal/booking"
	"trainer-booking-backend/internal/store"
)

// actorHeader carries the calling user's id. Authentication happens upstream.
const actorHeader = "X-Actor-ID"

// Services are the scheduling components the handlers drive.
type Services struct {
	Slots     *booking.SlotGenerator
	Admission *booking.AdmissionController
	Settings  *booking.Settings
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	slots    *booking.SlotGenerator
	admit    *booking.AdmissionController
	settings *booking.Settings
	webpush  *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, svc Services, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:    s,
		slots:    svc.Slots,
		admit:    svc.Admission,
		settings: svc.Settings,
		webpush:  webpushOptions,
	}
}

func actorID(c *gin.Context) string {
	return c.GetHeader(actorHeader)
}

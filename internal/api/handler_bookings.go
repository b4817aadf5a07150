package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"trainer-booking-backend/internal/booking"
	"trainer-booking-backend/internal/model"
	"trainer-booking-backend/internal/parse"
	"trainer-booking-backend/internal/schedule"
	"trainer-booking-backend/internal/store"
)

type bookingResponse struct {
	*model.Booking
	Warnings []string `json:"warnings,omitempty"`
}

func respondBooking(c *gin.Context, status int, res *booking.Result) {
	c.JSON(status, bookingResponse{Booking: res.Booking, Warnings: warningStrings(res.Warnings)})
}

type createBookingRequest struct {
	TrainerID   string `json:"trainer_id" binding:"required"`
	ClientID    string `json:"client_id" binding:"required"`
	Date        string `json:"date" binding:"required"`
	StartTime   string `json:"start_time" binding:"required"`
	EndTime     string `json:"end_time" binding:"required"`
	Notes       string `json:"notes"`
	Override    bool   `json:"override"`
	PreApproved bool   `json:"pre_approved"`
}

// CreateBooking handles POST /api/bookings.
func (h *Handler) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	date, err := parse.Date(req.Date)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	start, err := parse.TimeOfDay(req.StartTime)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	end, err := parse.TimeOfDay(req.EndTime)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.admit.RequestBooking(c.Request.Context(), booking.BookingRequest{
		TrainerID:   req.TrainerID,
		ClientID:    req.ClientID,
		ActorID:     actorID(c),
		Date:        date,
		Start:       start,
		End:         end,
		Notes:       req.Notes,
		Override:    req.Override,
		PreApproved: req.PreApproved,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	respondBooking(c, http.StatusCreated, res)
}

// GetBooking handles GET /api/bookings/:id.
func (h *Handler) GetBooking(c *gin.Context) {
	b, err := h.store.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(c, fmt.Errorf("%w: %s", booking.ErrBookingNotFound, c.Param("id")))
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// ListBookings handles GET /api/bookings?trainer_id&client_id&start_date&end_date&status.
func (h *Handler) ListBookings(c *gin.Context) {
	f := store.BookingFilter{
		TrainerID: c.Query("trainer_id"),
		ClientID:  c.Query("client_id"),
	}
	if f.TrainerID == "" && f.ClientID == "" {
		badRequest(c, "trainer_id or client_id is required")
		return
	}
	if raw := c.Query("start_date"); raw != "" {
		d, err := parse.Date(raw)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		f.From = d
	}
	if raw := c.Query("end_date"); raw != "" {
		d, err := parse.Date(raw)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		f.To = d
	}
	for _, s := range c.QueryArray("status") {
		switch st := model.BookingStatus(s); st {
		case model.StatusPending, model.StatusConfirmed, model.StatusCancelled:
			f.Statuses = append(f.Statuses, st)
		default:
			badRequest(c, fmt.Sprintf("unknown status %q", s))
			return
		}
	}

	bookings, err := h.store.ListBookings(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	c.JSON(http.StatusOK, bookings)
}

type patchBookingRequest struct {
	TrainerID *string `json:"trainer_id"`
	ClientID  *string `json:"client_id"`
	Date      *string `json:"date"`
	StartTime *string `json:"start_time"`
	EndTime   *string `json:"end_time"`
	Notes     *string `json:"notes"`
	Status    *string `json:"status"`
	Override  bool    `json:"override"`
}

func (r *patchBookingRequest) moves() bool {
	return r.TrainerID != nil || r.ClientID != nil || r.Date != nil ||
		r.StartTime != nil || r.EndTime != nil || r.Notes != nil
}

func (r *patchBookingRequest) reschedule(id, actor string) (booking.RescheduleRequest, error) {
	out := booking.RescheduleRequest{
		BookingID: id,
		ActorID:   actor,
		TrainerID: r.TrainerID,
		ClientID:  r.ClientID,
		Notes:     r.Notes,
		Override:  r.Override,
	}
	if r.Date != nil {
		d, err := parse.Date(*r.Date)
		if err != nil {
			return out, err
		}
		out.Date = &d
	}
	for _, f := range []struct {
		raw *string
		dst **schedule.TimeOfDay
	}{{r.StartTime, &out.Start}, {r.EndTime, &out.End}} {
		if f.raw == nil {
			continue
		}
		t, err := parse.TimeOfDay(*f.raw)
		if err != nil {
			return out, err
		}
		*f.dst = &t
	}
	return out, nil
}

// PatchBooking handles PATCH /api/bookings/:id. Position changes are applied
// first, then any status change.
func (h *Handler) PatchBooking(c *gin.Context) {
	actor := actorID(c)
	if actor == "" {
		badRequest(c, actorHeader+" header is required")
		return
	}
	var req patchBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	id := c.Param("id")
	ctx := c.Request.Context()

	var warnings []error
	var res *booking.Result
	if req.moves() {
		rr, err := req.reschedule(id, actor)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		if res, err = h.admit.Reschedule(ctx, rr); err != nil {
			writeError(c, err)
			return
		}
		warnings = append(warnings, res.Warnings...)
	}

	if req.Status != nil {
		var err error
		switch model.BookingStatus(*req.Status) {
		case model.StatusConfirmed:
			res, err = h.admit.Confirm(ctx, id, actor)
		case model.StatusCancelled:
			res, err = h.admit.Cancel(ctx, id, actor)
		default:
			err = fmt.Errorf("%w: cannot move a booking to %q", booking.ErrInvalidTransition, *req.Status)
		}
		if err != nil {
			writeError(c, err)
			return
		}
		warnings = append(warnings, res.Warnings...)
	}

	if res == nil {
		badRequest(c, "nothing to update")
		return
	}
	res.Warnings = warnings
	respondBooking(c, http.StatusOK, res)
}

// CancelBooking handles DELETE /api/bookings/:id. The row is kept with status
// cancelled.
func (h *Handler) CancelBooking(c *gin.Context) {
	actor := actorID(c)
	if actor == "" {
		badRequest(c, actorHeader+" header is required")
		return
	}
	res, err := h.admit.Cancel(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	respondBooking(c, http.StatusOK, res)
}

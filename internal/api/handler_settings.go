package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"trainer-booking-backend/internal/model"
	"trainer-booking-backend/internal/parse"
	"trainer-booking-backend/internal/schedule"
)

// parseTimes parses each raw "HH:MM" into its destination, skipping empty
// values.
func parseTimes(pairs map[string]*schedule.TimeOfDay, raw map[string]string) error {
	for name, dst := range pairs {
		v := raw[name]
		if v == "" {
			continue
		}
		t, err := parse.TimeOfDay(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = t
	}
	return nil
}

type availabilityRequest struct {
	DayOfWeek        *int   `json:"day_of_week" binding:"required"`
	MorningAvailable bool   `json:"morning_available"`
	MorningStart     string `json:"morning_start"`
	MorningEnd       string `json:"morning_end"`
	EveningAvailable bool   `json:"evening_available"`
	EveningStart     string `json:"evening_start"`
	EveningEnd       string `json:"evening_end"`
}

func (r availabilityRequest) model() (model.Availability, error) {
	a := model.Availability{
		DayOfWeek:        *r.DayOfWeek,
		MorningAvailable: r.MorningAvailable,
		EveningAvailable: r.EveningAvailable,
	}
	err := parseTimes(map[string]*schedule.TimeOfDay{
		"morning_start": &a.MorningStart,
		"morning_end":   &a.MorningEnd,
		"evening_start": &a.EveningStart,
		"evening_end":   &a.EveningEnd,
	}, map[string]string{
		"morning_start": r.MorningStart,
		"morning_end":   r.MorningEnd,
		"evening_start": r.EveningStart,
		"evening_end":   r.EveningEnd,
	})
	return a, err
}

// GetAvailability handles GET /api/trainers/:trainer_id/availability.
func (h *Handler) GetAvailability(c *gin.Context) {
	rows, err := h.settings.Availability(c.Request.Context(), c.Param("trainer_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if rows == nil {
		rows = []model.Availability{}
	}
	c.JSON(http.StatusOK, rows)
}

// PutAvailability handles PUT /api/trainers/:trainer_id/availability with one
// entry per weekday to change.
func (h *Handler) PutAvailability(c *gin.Context) {
	var req []availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	rows := make([]model.Availability, 0, len(req))
	for _, r := range req {
		if r.DayOfWeek == nil {
			badRequest(c, "day_of_week is required")
			return
		}
		a, err := r.model()
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		rows = append(rows, a)
	}

	out, err := h.settings.PutAvailability(c.Request.Context(), c.Param("trainer_id"), rows)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GetBlockedTimes handles GET /api/trainers/:trainer_id/blocked-times.
func (h *Handler) GetBlockedTimes(c *gin.Context) {
	rows, err := h.settings.BlockedTimes(c.Request.Context(), c.Param("trainer_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if rows == nil {
		rows = []model.BlockedTime{}
	}
	c.JSON(http.StatusOK, rows)
}

type blockedTimeRequest struct {
	Date             string  `json:"date" binding:"required"`
	StartTime        string  `json:"start_time" binding:"required"`
	EndTime          string  `json:"end_time" binding:"required"`
	Reason           string  `json:"reason"`
	IsRecurring      bool    `json:"is_recurring"`
	RecurringType    *string `json:"recurring_type"`
	RecurringEndDate *string `json:"recurring_end_date"`
}

// AddBlockedTime handles POST /api/trainers/:trainer_id/blocked-times.
func (h *Handler) AddBlockedTime(c *gin.Context) {
	var req blockedTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	date, err := parse.Date(req.Date)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	b := &model.BlockedTime{
		TrainerID:   c.Param("trainer_id"),
		Date:        schedule.FormatDate(date),
		Reason:      req.Reason,
		IsRecurring: req.IsRecurring,
	}
	if err := parseTimes(map[string]*schedule.TimeOfDay{
		"start_time": &b.StartTime,
		"end_time":   &b.EndTime,
	}, map[string]string{
		"start_time": req.StartTime,
		"end_time":   req.EndTime,
	}); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.RecurringType != nil {
		r := schedule.Recurrence(*req.RecurringType)
		b.RecurringType = &r
	}
	if req.RecurringEndDate != nil {
		until, err := parse.Date(*req.RecurringEndDate)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		s := schedule.FormatDate(until)
		b.RecurringEndDate = &s
	}

	if err := h.settings.AddBlockedTime(c.Request.Context(), b); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// RemoveBlockedTime handles DELETE /api/trainers/:trainer_id/blocked-times/:id.
func (h *Handler) RemoveBlockedTime(c *gin.Context) {
	if err := h.settings.RemoveBlockedTime(c.Request.Context(), c.Param("trainer_id"), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetCapacityPolicy handles GET /api/trainers/:trainer_id/capacity.
func (h *Handler) GetCapacityPolicy(c *gin.Context) {
	p, err := h.settings.Policies(c.Request.Context(), c.Param("trainer_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p.Capacity)
}

type capacityRequest struct {
	MaxDailySessions            int `json:"max_daily_sessions"`
	MaxWeeklySessions           int `json:"max_weekly_sessions"`
	SessionDurationMinutes      int `json:"session_duration_minutes"`
	BreakBetweenSessionsMinutes int `json:"break_between_sessions_minutes"`
}

// PutCapacityPolicy handles PUT /api/trainers/:trainer_id/capacity. Soft
// inconsistencies come back as warnings next to the saved policy.
func (h *Handler) PutCapacityPolicy(c *gin.Context) {
	var req capacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	p := &model.CapacityPolicy{
		TrainerID:                   c.Param("trainer_id"),
		MaxDailySessions:            req.MaxDailySessions,
		MaxWeeklySessions:           req.MaxWeeklySessions,
		SessionDurationMinutes:      req.SessionDurationMinutes,
		BreakBetweenSessionsMinutes: req.BreakBetweenSessionsMinutes,
	}
	warnings, err := h.settings.PutCapacityPolicy(c.Request.Context(), p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"policy": p, "warnings": warnings})
}

// GetBookingPolicy handles GET /api/trainers/:trainer_id/policy.
func (h *Handler) GetBookingPolicy(c *gin.Context) {
	p, err := h.settings.Policies(c.Request.Context(), c.Param("trainer_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p.Booking)
}

type bookingPolicyRequest struct {
	AllowSelfBooking    *bool  `json:"allow_self_booking"`
	RequireApproval     *bool  `json:"require_approval"`
	AdvanceBookingDays  *int   `json:"advance_booking_days"`
	CancellationHours   *int   `json:"cancellation_hours"`
	AllowWeekendBooking *bool  `json:"allow_weekend_booking"`
	EarliestBookingTime string `json:"earliest_booking_time"`
	LatestBookingTime   string `json:"latest_booking_time"`
}

// PutBookingPolicy handles PUT /api/trainers/:trainer_id/policy. Omitted
// fields keep their current value.
func (h *Handler) PutBookingPolicy(c *gin.Context) {
	var req bookingPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	current, err := h.settings.Policies(c.Request.Context(), c.Param("trainer_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	p := current.Booking
	if req.AllowSelfBooking != nil {
		p.AllowSelfBooking = *req.AllowSelfBooking
	}
	if req.RequireApproval != nil {
		p.RequireApproval = *req.RequireApproval
	}
	if req.AdvanceBookingDays != nil {
		p.AdvanceBookingDays = *req.AdvanceBookingDays
	}
	if req.CancellationHours != nil {
		p.CancellationHours = *req.CancellationHours
	}
	if req.AllowWeekendBooking != nil {
		p.AllowWeekendBooking = *req.AllowWeekendBooking
	}
	if err := parseTimes(map[string]*schedule.TimeOfDay{
		"earliest_booking_time": &p.EarliestBookingTime,
		"latest_booking_time":   &p.LatestBookingTime,
	}, map[string]string{
		"earliest_booking_time": req.EarliestBookingTime,
		"latest_booking_time":   req.LatestBookingTime,
	}); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.settings.PutBookingPolicy(c.Request.Context(), &p); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// GetCalendarStatus handles GET /api/trainers/:trainer_id/calendar.
func (h *Handler) GetCalendarStatus(c *gin.Context) {
	st, err := h.settings.CalendarStatus(c.Request.Context(), c.Param("trainer_id"))
	if err != nil {
		writeError(c, fmt.Errorf("calendar status: %w", err))
		return
	}
	c.JSON(http.StatusOK, st)
}

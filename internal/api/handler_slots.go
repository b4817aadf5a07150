package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"trainer-booking-backend/internal/booking"
	"trainer-booking-backend/internal/parse"
)

// GetSlots handles GET /api/trainers/:trainer_id/slots?start_date&end_date.
func (h *Handler) GetSlots(c *gin.Context) {
	start, err := parse.Date(c.Query("start_date"))
	if err != nil {
		writeError(c, fmt.Errorf("%w: %v", booking.ErrInvalidRange, err))
		return
	}
	end, err := parse.Date(c.Query("end_date"))
	if err != nil {
		writeError(c, fmt.Errorf("%w: %v", booking.ErrInvalidRange, err))
		return
	}

	slots, err := h.slots.GenerateSlots(c.Request.Context(), c.Param("trainer_id"), start, end)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, slots)
}

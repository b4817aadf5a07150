package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"trainer-booking-backend/internal/booking"
)

var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{booking.ErrInvalidRange, http.StatusBadRequest, "invalid_range"},
	{booking.ErrInvalidTimeRange, http.StatusBadRequest, "invalid_time_range"},
	{booking.ErrInvalidSettings, http.StatusBadRequest, "invalid_settings"},
	{booking.ErrRoleMismatch, http.StatusForbidden, "role_mismatch"},
	{booking.ErrTrainerNotFound, http.StatusNotFound, "trainer_not_found"},
	{booking.ErrBookingNotFound, http.StatusNotFound, "booking_not_found"},
	{booking.ErrBlockedNotFound, http.StatusNotFound, "blocked_time_not_found"},
	{booking.ErrSlotConflict, http.StatusConflict, "slot_conflict"},
	{booking.ErrCapacityExceeded, http.StatusConflict, "capacity_exceeded"},
	{booking.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{booking.ErrPolicyViolation, http.StatusUnprocessableEntity, "policy_violation"},
}

// writeError maps scheduling errors onto status codes. Anything unknown is a
// 500 and its text is kept out of the response.
func writeError(c *gin.Context, err error) {
	for _, e := range errorCodes {
		if !errors.Is(err, e.err) {
			continue
		}
		body := gin.H{"error": err.Error(), "code": e.code}
		var pe *booking.PolicyError
		if errors.As(err, &pe) {
			body["reason"] = pe.Reason
		}
		c.JSON(e.status, body)
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "code": "internal"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": "bad_request"})
}

func warningStrings(warnings []error) []string {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]string, len(warnings))
	for i, w := range warnings {
		out[i] = w.Error()
	}
	return out
}

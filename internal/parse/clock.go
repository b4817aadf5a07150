package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"trainer-booking-backend/internal/schedule"
)

var timeOfDayRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)

// TimeOfDay parses "HH:MM" (or "HH:MM:SS" with zero seconds) into minutes after
// midnight. "24:00" is accepted as the end of the day.
func TimeOfDay(raw string) (schedule.TimeOfDay, error) {
	s := strings.TrimSpace(raw)
	m := timeOfDayRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid time of day %q: expected HH:MM", raw)
	}

	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if m[3] != "" && m[3] != "00" {
		return 0, fmt.Errorf("invalid time of day %q: seconds are not supported", raw)
	}
	if minute > 59 || hour > 24 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("invalid time of day %q: out of range", raw)
	}
	return schedule.At(hour, minute), nil
}

// Date parses a YYYY-MM-DD calendar date.
func Date(raw string) (time.Time, error) {
	d, err := time.Parse(schedule.DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", raw)
	}
	return d, nil
}

// DateRange parses an inclusive [start, end] pair and rejects reversed ranges.
func DateRange(rawStart, rawEnd string) (time.Time, time.Time, error) {
	start, err := Date(rawStart)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := Date(rawEnd)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %s is before start date %s", rawEnd, rawStart)
	}
	return start, end, nil
}

// Interval parses a start/end pair into a non-empty interval.
func Interval(rawStart, rawEnd string) (schedule.Interval, error) {
	start, err := TimeOfDay(rawStart)
	if err != nil {
		return schedule.Interval{}, err
	}
	end, err := TimeOfDay(rawEnd)
	if err != nil {
		return schedule.Interval{}, err
	}
	iv := schedule.Interval{Start: start, End: end}
	if !iv.Valid() {
		return schedule.Interval{}, fmt.Errorf("start %s must be before end %s", rawStart, rawEnd)
	}
	return iv, nil
}

package schedule

import "time"

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// Date truncates t to midnight UTC of its calendar day in t's own location.
// All calendar arithmetic in this package runs on such values.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a calendar date.
func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

// IsWeekend reports whether d is a Saturday or Sunday.
func IsWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// ISOWeek returns the Monday and Sunday bounding the ISO week that contains d.
func ISOWeek(d time.Time) (monday, sunday time.Time) {
	d = Date(d)
	offset := (int(d.Weekday()) + 6) % 7
	monday = d.AddDate(0, 0, -offset)
	return monday, monday.AddDate(0, 0, 6)
}

// Days lists every date in [start, end].
func Days(start, end time.Time) []time.Time {
	start, end = Date(start), Date(end)
	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// Local splits an instant into the calendar date and minute of day as seen in loc.
func Local(t time.Time, loc *time.Location) (time.Time, TimeOfDay) {
	lt := t.In(loc)
	return Date(lt), At(lt.Hour(), lt.Minute())
}

// Instant converts a date and time of day in loc back into an absolute time.
func Instant(d time.Time, t TimeOfDay, loc *time.Location) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc).Add(time.Duration(t) * time.Minute)
}

package booking

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trainer-booking-backend/internal/model"
	"trainer-booking-backend/internal/schedule"
	"trainer-booking-backend/internal/store"
)

// Slot is a bookable interval on a date.
type Slot struct {
	Date      string             `json:"date"`
	StartTime schedule.TimeOfDay `json:"start_time"`
	EndTime   schedule.TimeOfDay `json:"end_time"`
}

// SlotGenerator computes bookable slots. It is read-only and takes no locks;
// its output may be stale by the time a booking lands, so admission
// re-validates everything.
type SlotGenerator struct {
	Deps
}

// NewSlotGenerator creates a generator.
func NewSlotGenerator(d Deps) *SlotGenerator {
	return &SlotGenerator{Deps: d.withDefaults()}
}

// dayLedger is what is already taken on one date.
type dayLedger struct {
	taken []schedule.Interval
	count int
}

// GenerateSlots lists the slots a client could book for trainerID between
// start and end inclusive, ordered by date and start time.
func (g *SlotGenerator) GenerateSlots(ctx context.Context, trainerID string, start, end time.Time) ([]Slot, error) {
	began := g.Clock.Now()
	defer func() { g.Metrics.SlotGeneration(time.Since(began)) }()

	start, end = schedule.Date(start), schedule.Date(end)
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return nil, fmt.Errorf("%w: end date is before start date", ErrInvalidRange)
	}
	if days := int(end.Sub(start).Hours()/24) + 1; days > g.MaxRangeDays {
		return nil, fmt.Errorf("%w: %d days requested, at most %d allowed", ErrInvalidRange, days, g.MaxRangeDays)
	}

	tr, err := getTrainer(ctx, g.Store, trainerID)
	if err != nil {
		return nil, err
	}
	loc := g.location(tr)
	pol, err := loadPolicies(ctx, g.Store, trainerID)
	if err != nil {
		return nil, err
	}

	avail, err := g.Store.ListAvailability(ctx, trainerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load availability: %w", err)
	}
	if len(avail) == 0 {
		return []Slot{}, nil
	}
	byWeekday := make(map[time.Weekday]model.Availability, len(avail))
	for _, a := range avail {
		byWeekday[time.Weekday(a.DayOfWeek)] = a
	}

	blocks, err := g.blocks(ctx, trainerID, start, end)
	if err != nil {
		return nil, err
	}

	// Weekly capacity looks at whole ISO weeks, even outside the range.
	weekStart, _ := schedule.ISOWeek(start)
	_, weekEnd := schedule.ISOWeek(end)
	ledger, weekly, err := g.ledger(ctx, trainerID, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}
	busy := g.externalBusy(ctx, trainerID, start, end)

	now := g.Clock.Now()
	today, nowTOD := schedule.Local(now, loc)
	horizon := today.AddDate(0, 0, pol.Booking.AdvanceBookingDays)

	slots := []Slot{}
	for _, d := range schedule.Days(start, end) {
		if d.Before(today) || d.After(horizon) {
			continue
		}
		if !pol.Booking.AllowWeekendBooking && schedule.IsWeekend(d) {
			continue
		}
		key := schedule.FormatDate(d)
		day := ledger[key]
		if day.count >= pol.Capacity.MaxDailySessions {
			continue
		}
		monday, _ := schedule.ISOWeek(d)
		if weekly[schedule.FormatDate(monday)] >= pol.Capacity.MaxWeeklySessions {
			continue
		}
		a, ok := byWeekday[d.Weekday()]
		if !ok {
			continue
		}

		var blocked []schedule.Interval
		for _, b := range blocks {
			if b.IsActiveOn(d) {
				blocked = append(blocked, b.Window)
			}
		}

		for _, w := range a.Windows() {
			for _, c := range schedule.Slice(w, pol.Capacity.SessionDurationMinutes, pol.Capacity.BreakBetweenSessionsMinutes) {
				switch {
				case c.OverlapsAny(blocked), c.OverlapsAny(day.taken), c.OverlapsAny(busy[key]):
					continue
				case d.Equal(today) && c.Start <= nowTOD:
					continue
				case !pol.Booking.Bookable(c.Start):
					continue
				}
				slots = append(slots, Slot{Date: key, StartTime: c.Start, EndTime: c.End})
			}
		}
	}
	return slots, nil
}

func (g *SlotGenerator) blocks(ctx context.Context, trainerID string, start, end time.Time) ([]schedule.Block, error) {
	rows, err := g.Store.ListBlockedTimes(ctx, trainerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load blocked times: %w", err)
	}
	out := make([]schedule.Block, 0, len(rows))
	for i := range rows {
		b, err := rows[i].Block()
		if err != nil {
			g.Log.Warn("skipping malformed blocked time", zap.String("trainer_id", trainerID), zap.Error(err))
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// ledger groups active bookings by date and counts them per ISO week,
// keyed by the week's Monday.
func (g *SlotGenerator) ledger(ctx context.Context, trainerID string, from, to time.Time) (map[string]dayLedger, map[string]int, error) {
	rows, err := g.Store.ListBookings(ctx, store.BookingFilter{
		TrainerID: trainerID,
		From:      from,
		To:        to,
		Statuses:  model.ActiveStatuses,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load bookings: %w", err)
	}
	days := make(map[string]dayLedger)
	weeks := make(map[string]int)
	for i := range rows {
		b := &rows[i]
		day := days[b.Date]
		day.taken = append(day.taken, b.Interval())
		day.count++
		days[b.Date] = day

		if d, err := time.Parse(schedule.DateLayout, b.Date); err == nil {
			monday, _ := schedule.ISOWeek(d)
			weeks[schedule.FormatDate(monday)]++
		}
	}
	return days, weeks, nil
}

// externalBusy overlays the trainer's real calendar when one is connected.
// Any failure falls back to the local ledger alone.
func (g *SlotGenerator) externalBusy(ctx context.Context, trainerID string, start, end time.Time) map[string][]schedule.Interval {
	if g.Syncer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, g.Syncer.Timeout())
	defer cancel()

	adapter := g.Syncer.Adapter()
	st, err := adapter.GetConnectionStatus(ctx, trainerID)
	if err != nil || !st.Connected {
		return nil
	}
	intervals, err := adapter.GetBusyIntervals(ctx, trainerID, start, end)
	if err != nil {
		g.Log.Debug("external calendar unavailable, using local ledger", zap.String("trainer_id", trainerID), zap.Error(err))
		return nil
	}
	out := make(map[string][]schedule.Interval, len(intervals))
	for _, iv := range intervals {
		key := schedule.FormatDate(iv.Date)
		out[key] = append(out[key], iv.Window)
	}
	return out
}

package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(s string) time.Time {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestBlock_IsActiveOn(t *testing.T) {
	until := day("2024-02-15")

	testCases := []struct {
		name     string
		block    Block
		date     string
		expected bool
	}{
		{
			name:     "one-off matches its own date",
			block:    Block{Date: day("2024-01-10")},
			date:     "2024-01-10",
			expected: true,
		},
		{
			name:     "one-off ignores other dates",
			block:    Block{Date: day("2024-01-10")},
			date:     "2024-01-11",
			expected: false,
		},
		{
			name:     "open-ended weekly on same weekday",
			block:    Block{Date: day("2024-01-01"), Recurring: true, Recurrence: RecurWeekly},
			date:     "2024-03-04",
			expected: true,
		},
		{
			name:     "open-ended weekly on other weekday",
			block:    Block{Date: day("2024-01-01"), Recurring: true, Recurrence: RecurWeekly},
			date:     "2024-03-05",
			expected: false,
		},
		{
			name:     "recurring before its start",
			block:    Block{Date: day("2024-01-01"), Recurring: true, Recurrence: RecurDaily},
			date:     "2023-12-31",
			expected: false,
		},
		{
			name:     "daily inside end date",
			block:    Block{Date: day("2024-01-01"), Recurring: true, Recurrence: RecurDaily, Until: &until},
			date:     "2024-02-15",
			expected: true,
		},
		{
			name:     "daily after end date",
			block:    Block{Date: day("2024-01-01"), Recurring: true, Recurrence: RecurDaily, Until: &until},
			date:     "2024-02-16",
			expected: false,
		},
		{
			name:     "monthly same day of month",
			block:    Block{Date: day("2024-01-15"), Recurring: true, Recurrence: RecurMonthly},
			date:     "2024-04-15",
			expected: true,
		},
		{
			name:     "monthly on the 31st skips short months",
			block:    Block{Date: day("2024-01-31"), Recurring: true, Recurrence: RecurMonthly},
			date:     "2024-02-29",
			expected: false,
		},
		{
			name:     "monthly on the 31st is not rolled into the next month",
			block:    Block{Date: day("2024-01-31"), Recurring: true, Recurrence: RecurMonthly},
			date:     "2024-03-01",
			expected: false,
		},
		{
			name:     "monthly on the 31st fires in long months",
			block:    Block{Date: day("2024-01-31"), Recurring: true, Recurrence: RecurMonthly},
			date:     "2024-03-31",
			expected: true,
		},
		{
			name:     "recurring without cadence never fires",
			block:    Block{Date: day("2024-01-01"), Recurring: true},
			date:     "2024-01-01",
			expected: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.block.IsActiveOn(day(tc.date)))
		})
	}
}

func TestBlock_IsCurrent(t *testing.T) {
	today := day("2024-03-10")
	past := day("2024-03-01")

	assert.True(t, Block{Date: day("2024-03-10")}.IsCurrent(today))
	assert.False(t, Block{Date: day("2024-03-09")}.IsCurrent(today))
	assert.True(t, Block{Date: day("2024-01-01"), Recurring: true, Recurrence: RecurWeekly}.IsCurrent(today))
	assert.False(t, Block{Date: day("2024-01-01"), Recurring: true, Recurrence: RecurWeekly, Until: &past}.IsCurrent(today))
}

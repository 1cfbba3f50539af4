package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateDate(t *testing.T) {
	today := NewCalendarDate(2026, time.September, 1, time.UTC) // a Tuesday

	t.Run("past date rejected", func(t *testing.T) {
		past := NewCalendarDate(2026, time.August, 25, time.UTC)
		v, err := EvaluateDate(past, today)
		require.NoError(t, err)
		assert.False(t, v.Available)
		assert.Equal(t, ReasonPastDate, v.Reason)
	})

	t.Run("sunday rejected", func(t *testing.T) {
		sunday := NewCalendarDate(2026, time.September, 6, time.UTC)
		require.Equal(t, time.Sunday, sunday.Weekday())

		v, err := EvaluateDate(sunday, today)
		require.NoError(t, err)
		assert.False(t, v.Available)
		assert.Equal(t, ReasonClosedWeekday, v.Reason)
	})

	t.Run("today is bookable", func(t *testing.T) {
		v, err := EvaluateDate(today, today)
		require.NoError(t, err)
		assert.True(t, v.Available)
		assert.Empty(t, v.Reason)
	})

	t.Run("future weekday is bookable", func(t *testing.T) {
		wednesday := NewCalendarDate(2026, time.September, 2, time.UTC)
		v, err := EvaluateDate(wednesday, today)
		require.NoError(t, err)
		assert.True(t, v.Available)
	})

	t.Run("zero date is an input error, not a verdict", func(t *testing.T) {
		_, err := EvaluateDate(CalendarDate{}, today)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestParseCalendarDate(t *testing.T) {
	t.Run("valid ISO date", func(t *testing.T) {
		d, err := ParseCalendarDate("2026-09-02", time.UTC)
		require.NoError(t, err)
		assert.Equal(t, "2026-09-02", d.String())
		assert.Equal(t, time.Wednesday, d.Weekday())
	})

	t.Run("malformed input rejected explicitly", func(t *testing.T) {
		for _, raw := range []string{"02-09-2026", "2026/09/02", "tomorrow", ""} {
			_, err := ParseCalendarDate(raw, time.UTC)
			assert.ErrorIs(t, err, ErrInvalidInput, "input %q", raw)
		}
	})

	t.Run("day boundary follows the practice zone", func(t *testing.T) {
		kolkata, err := time.LoadLocation("Asia/Kolkata")
		require.NoError(t, err)

		d, err := ParseCalendarDate("2026-09-02", kolkata)
		require.NoError(t, err)
		// Midnight in Kolkata is still the previous day in UTC; the
		// calendar date must not shift.
		assert.Equal(t, "2026-09-02", d.String())
	})
}

func TestTimeSlots(t *testing.T) {
	assert.Len(t, TimeSlots, 22)
	assert.Equal(t, TimeSlot("10:30 AM"), TimeSlots[0])
	assert.Equal(t, TimeSlot("09:00 PM"), TimeSlots[len(TimeSlots)-1])

	for _, s := range TimeSlots {
		assert.True(t, ValidTimeSlot(s))
	}
	assert.False(t, ValidTimeSlot("10:45 AM"))
	assert.False(t, ValidTimeSlot("21:00"))
}

func TestBlockedDateEntryBlockage(t *testing.T) {
	date := NewCalendarDate(2026, time.September, 2, time.UTC)

	t.Run("nil entry means none", func(t *testing.T) {
		var e *BlockedDateEntry
		assert.Equal(t, BlockageNone, e.Blockage().Kind)
	})

	t.Run("inactive entry means none", func(t *testing.T) {
		e := &BlockedDateEntry{Date: date, Active: false, BlockedTimes: []TimeSlot{"11:00 AM"}}
		assert.Equal(t, BlockageNone, e.Blockage().Kind)
	})

	t.Run("empty slot list blocks the whole day", func(t *testing.T) {
		e := &BlockedDateEntry{Date: date, Active: true, Reason: "staff training"}
		b := e.Blockage()
		assert.Equal(t, BlockageFullDay, b.Kind)
		for _, slot := range TimeSlots {
			assert.True(t, b.Blocks(slot))
		}
	})

	t.Run("non-empty list blocks exactly those slots", func(t *testing.T) {
		e := &BlockedDateEntry{
			Date:         date,
			Active:       true,
			Reason:       "surgery",
			BlockedTimes: []TimeSlot{"10:30 AM", "11:00 AM"},
		}
		b := e.Blockage()
		assert.Equal(t, BlockagePartial, b.Kind)
		assert.True(t, b.Blocks("10:30 AM"))
		assert.True(t, b.Blocks("11:00 AM"))
		assert.False(t, b.Blocks("11:30 AM"))
	})
}

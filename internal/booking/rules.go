package booking

import (
	"fmt"
	"time"
)

// The practice is closed on Sundays.
const closedWeekday = time.Sunday

const (
	ReasonPastDate      = "past date"
	ReasonClosedWeekday = "closed weekday"
	ReasonAdminBlocked  = "blocked by the practice"
	ReasonSlotTaken     = "already booked"
	ReasonStoreDown     = "temporarily unavailable"
)

// DateVerdict is the rule evaluator's answer for a calendar date.
type DateVerdict struct {
	Available bool
	Reason    string
}

// EvaluateDate applies the categorical booking rules. Pure; callers supply
// "today" so the comparison happens at day granularity in the practice's
// time zone regardless of where the request came from.
func EvaluateDate(date, today CalendarDate) (DateVerdict, error) {
	if date.IsZero() || today.IsZero() {
		return DateVerdict{}, fmt.Errorf("%w: zero calendar date", ErrInvalidInput)
	}
	if date.Before(today) {
		return DateVerdict{Available: false, Reason: ReasonPastDate}, nil
	}
	if date.Weekday() == closedWeekday {
		return DateVerdict{Available: false, Reason: ReasonClosedWeekday}, nil
	}
	return DateVerdict{Available: true}, nil
}

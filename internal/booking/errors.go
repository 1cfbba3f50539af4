package booking

import "errors"

// Error taxonomy surfaced by the resolver and the booking writer. Raw store
// errors never cross this boundary; they are converted to ErrStoreUnavailable.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrDateUnavailable  = errors.New("date is not bookable")
	ErrAdminBlocked     = errors.New("date or slot blocked by the practice")
	ErrSlotTaken        = errors.New("slot already has an active booking")
	ErrStoreUnavailable = errors.New("booking store unavailable")

	// ErrRaceLost means the conditional write lost against a concurrent
	// request. Callers see it exactly as ErrSlotTaken.
	ErrRaceLost = errors.New("lost booking race for slot")

	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrBookingNotFound     = errors.New("slot booking not found")
	ErrBlockedDateNotFound = errors.New("no blocked date entry")
)

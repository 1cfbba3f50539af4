package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const DateFormat = "2006-01-02"

// TimeSlot is one of the fixed wall-clock labels the practice books against.
type TimeSlot string

// TimeSlots is the single process-wide slot set. The resolver, the booking
// writer and the API slot list all enumerate from this slice; nothing else
// may synthesize slot labels.
var TimeSlots = []TimeSlot{
	"10:30 AM", "11:00 AM", "11:30 AM", "12:00 PM", "12:30 PM",
	"01:00 PM", "01:30 PM", "02:00 PM", "02:30 PM", "03:00 PM",
	"03:30 PM", "04:00 PM", "04:30 PM", "05:00 PM", "05:30 PM",
	"06:00 PM", "06:30 PM", "07:00 PM", "07:30 PM", "08:00 PM",
	"08:30 PM", "09:00 PM",
}

var timeSlotSet = func() map[TimeSlot]struct{} {
	m := make(map[TimeSlot]struct{}, len(TimeSlots))
	for _, s := range TimeSlots {
		m[s] = struct{}{}
	}
	return m
}()

func ValidTimeSlot(s TimeSlot) bool {
	_, ok := timeSlotSet[s]
	return ok
}

// CalendarDate is a date with no time component, always interpreted in the
// practice's local time zone so a client in another zone cannot shift a
// booking across a day boundary.
type CalendarDate struct {
	t time.Time
}

func NewCalendarDate(year int, month time.Month, day int, loc *time.Location) CalendarDate {
	return CalendarDate{t: time.Date(year, month, day, 0, 0, 0, 0, loc)}
}

// ParseCalendarDate parses an ISO date string (YYYY-MM-DD) in loc.
func ParseCalendarDate(s string, loc *time.Location) (CalendarDate, error) {
	t, err := time.ParseInLocation(DateFormat, s, loc)
	if err != nil {
		return CalendarDate{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	return CalendarDate{t: t}, nil
}

// Today returns the current calendar date in loc.
func Today(loc *time.Location) CalendarDate {
	now := time.Now().In(loc)
	return NewCalendarDate(now.Year(), now.Month(), now.Day(), loc)
}

func (d CalendarDate) IsZero() bool               { return d.t.IsZero() }
func (d CalendarDate) Before(o CalendarDate) bool { return d.t.Before(o.t) }
func (d CalendarDate) Equal(o CalendarDate) bool  { return d.t.Equal(o.t) }
func (d CalendarDate) Weekday() time.Weekday      { return d.t.Weekday() }
func (d CalendarDate) Time() time.Time            { return d.t }
func (d CalendarDate) String() string             { return d.t.Format(DateFormat) }

// BlockageKind tags the blockage variant so an empty slot list can never be
// misread as "blocks nothing".
type BlockageKind int

const (
	BlockageNone BlockageKind = iota
	BlockageFullDay
	BlockagePartial
)

// Blockage is the resolved admin exclusion for one date.
type Blockage struct {
	Kind   BlockageKind
	Reason string
	Slots  map[TimeSlot]struct{} // populated only for BlockagePartial
}

func NoBlockage() Blockage {
	return Blockage{Kind: BlockageNone}
}

func FullDayBlockage(reason string) Blockage {
	return Blockage{Kind: BlockageFullDay, Reason: reason}
}

func PartialBlockage(reason string, slots []TimeSlot) Blockage {
	set := make(map[TimeSlot]struct{}, len(slots))
	for _, s := range slots {
		set[s] = struct{}{}
	}
	return Blockage{Kind: BlockagePartial, Reason: reason, Slots: set}
}

// Blocks reports whether this blockage covers the given slot.
func (b Blockage) Blocks(slot TimeSlot) bool {
	switch b.Kind {
	case BlockageFullDay:
		return true
	case BlockagePartial:
		_, ok := b.Slots[slot]
		return ok
	default:
		return false
	}
}

// BlockedDateEntry is the raw admin-entered exclusion row. An active entry
// with an empty BlockedTimes list blocks the entire day.
type BlockedDateEntry struct {
	ID           uuid.UUID
	Date         CalendarDate
	Active       bool
	Reason       string
	BlockedTimes []TimeSlot
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Blockage converts the raw entry into the tagged variant.
func (e *BlockedDateEntry) Blockage() Blockage {
	if e == nil || !e.Active {
		return NoBlockage()
	}
	if len(e.BlockedTimes) == 0 {
		return FullDayBlockage(e.Reason)
	}
	return PartialBlockage(e.Reason, e.BlockedTimes)
}

type BookingKind string

const (
	KindHold        BookingKind = "hold"
	KindAppointment BookingKind = "appointment"
)

type BookingStatus string

const (
	StatusActive   BookingStatus = "active"
	StatusReleased BookingStatus = "released"
)

// SlotBooking occupies one (date, time) pair. At most one active row may
// exist per pair at any instant; the store's partial unique index enforces
// this, not application reads.
type SlotBooking struct {
	ID            uuid.UUID
	Date          CalendarDate
	Time          TimeSlot
	Kind          BookingKind
	Status        BookingStatus
	AppointmentID *uuid.UUID // nil for holds
	HolderName    string
	HolderEmail   string
	ExpiresAt     *time.Time // set for holds only; confirmed bookings never expire
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Expired reports whether this booking is a hold whose expiry has passed.
func (b *SlotBooking) Expired(now time.Time) bool {
	return b.Kind == KindHold && b.ExpiresAt != nil && b.ExpiresAt.Before(now)
}

type AppointmentStatus string

const (
	AppointmentPending AppointmentStatus = "pending"
	AppointmentVisited AppointmentStatus = "visited"
)

// Appointment is the patient-facing booking record. It is created in the
// same transaction that claims its SlotBooking.
type Appointment struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Phone     string
	Service   string
	Date      CalendarDate
	Time      TimeSlot
	Status    AppointmentStatus
	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type BookingEvent struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

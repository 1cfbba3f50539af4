package booking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fakeRepo is an in-memory Repository. All mutations run under one mutex so
// a claim behaves like the store's atomic conditional write: exactly one of
// several racing claims for a pair succeeds. It also counts calls so tests
// can assert the resolver's short-circuiting.
type fakeRepo struct {
	mu           sync.Mutex
	blocked      map[string]*BlockedDateEntry
	bookings     []*SlotBooking
	appointments map[uuid.UUID]*Appointment
	events       []BookingEvent
	calls        map[string]int
	failWith     error // when set, every store call fails with it
	now          func() time.Time
}

func newFakeRepo(now func() time.Time) *fakeRepo {
	return &fakeRepo{
		blocked:      make(map[string]*BlockedDateEntry),
		appointments: make(map[uuid.UUID]*Appointment),
		calls:        make(map[string]int),
		now:          now,
	}
}

func (f *fakeRepo) storeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *fakeRepo) record(op string) error {
	f.calls[op]++
	return f.failWith
}

func (f *fakeRepo) setBlocked(e *BlockedDateEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocked[e.Date.String()] = e
}

func (f *fakeRepo) activeFor(date CalendarDate, slot TimeSlot) *SlotBooking {
	for _, b := range f.bookings {
		if b.Status == StatusActive && b.Date.Equal(date) && b.Time == slot {
			return b
		}
	}
	return nil
}

func (f *fakeRepo) releaseStale(date CalendarDate, slot TimeSlot) {
	now := f.now()
	for _, b := range f.bookings {
		if b.Status == StatusActive && b.Date.Equal(date) && b.Time == slot && b.Expired(now) {
			b.Status = StatusReleased
		}
	}
}

func (f *fakeRepo) GetBlockedDateEntry(_ context.Context, date CalendarDate) (*BlockedDateEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetBlockedDateEntry"); err != nil {
		return nil, err
	}
	e, ok := f.blocked[date.String()]
	if !ok || !e.Active {
		return nil, ErrBlockedDateNotFound
	}
	return e, nil
}

func (f *fakeRepo) GetActiveBooking(_ context.Context, date CalendarDate, slot TimeSlot) (*SlotBooking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetActiveBooking"); err != nil {
		return nil, err
	}
	if b := f.activeFor(date, slot); b != nil {
		return b, nil
	}
	return nil, ErrBookingNotFound
}

func (f *fakeRepo) ListActiveBookings(_ context.Context, date CalendarDate) (map[TimeSlot]*SlotBooking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListActiveBookings"); err != nil {
		return nil, err
	}
	result := make(map[TimeSlot]*SlotBooking)
	for _, b := range f.bookings {
		if b.Status == StatusActive && b.Date.Equal(date) {
			result[b.Time] = b
		}
	}
	return result, nil
}

func (f *fakeRepo) CreateHold(_ context.Context, date CalendarDate, slot TimeSlot, holderName, holderEmail string, expiresAt time.Time) (*SlotBooking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateHold"); err != nil {
		return nil, err
	}

	f.releaseStale(date, slot)
	if f.activeFor(date, slot) != nil {
		return nil, ErrSlotTaken
	}

	expiry := expiresAt
	hold := &SlotBooking{
		ID:          uuid.New(),
		Date:        date,
		Time:        slot,
		Kind:        KindHold,
		Status:      StatusActive,
		HolderName:  holderName,
		HolderEmail: holderEmail,
		ExpiresAt:   &expiry,
		CreatedAt:   f.now(),
		UpdatedAt:   f.now(),
	}
	f.bookings = append(f.bookings, hold)
	return hold, nil
}

func (f *fakeRepo) ConfirmAppointment(_ context.Context, appt *Appointment) (*Appointment, *SlotBooking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ConfirmAppointment"); err != nil {
		return nil, nil, err
	}

	f.releaseStale(appt.Date, appt.Time)

	created := *appt
	if created.ID == uuid.Nil {
		created.ID = uuid.New()
	}
	created.Status = AppointmentPending
	created.CreatedAt = f.now()
	created.UpdatedAt = f.now()

	var claimed *SlotBooking
	if existing := f.activeFor(appt.Date, appt.Time); existing != nil {
		if existing.Kind != KindHold || existing.HolderEmail != appt.Email {
			return nil, nil, ErrSlotTaken
		}
		existing.Kind = KindAppointment
		existing.AppointmentID = &created.ID
		existing.HolderName = appt.Name
		existing.ExpiresAt = nil
		claimed = existing
	} else {
		claimed = &SlotBooking{
			ID:            uuid.New(),
			Date:          appt.Date,
			Time:          appt.Time,
			Kind:          KindAppointment,
			Status:        StatusActive,
			AppointmentID: &created.ID,
			HolderName:    appt.Name,
			HolderEmail:   appt.Email,
			CreatedAt:     f.now(),
			UpdatedAt:     f.now(),
		}
		f.bookings = append(f.bookings, claimed)
	}

	f.appointments[created.ID] = &created
	return &created, claimed, nil
}

func (f *fakeRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetAppointmentByID"); err != nil {
		return nil, err
	}
	a, ok := f.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return a, nil
}

func (f *fakeRepo) ReleaseExpiredHolds(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ReleaseExpiredHolds"); err != nil {
		return 0, err
	}
	var count int64
	for _, b := range f.bookings {
		if b.Kind == KindHold && b.Status == StatusActive && b.ExpiresAt != nil && b.ExpiresAt.Before(now) {
			b.Status = StatusReleased
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) InsertEvent(_ context.Context, ev BookingEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository contains all store interactions needed by the service.
//
// CreateHold and ConfirmAppointment are the only two operations that claim a
// slot, and both must express the claim as a conditional write: the write
// itself fails with ErrSlotTaken when another active booking holds the pair.
// Any prior availability read is a fail-fast optimization, never the source
// of truth. Both operations release expired-but-unswept holds for the target
// slot before claiming, so a stale hold cannot block a booking.
type Repository interface {
	GetBlockedDateEntry(ctx context.Context, date CalendarDate) (*BlockedDateEntry, error)

	GetActiveBooking(ctx context.Context, date CalendarDate, slot TimeSlot) (*SlotBooking, error)
	ListActiveBookings(ctx context.Context, date CalendarDate) (map[TimeSlot]*SlotBooking, error)
	CreateHold(ctx context.Context, date CalendarDate, slot TimeSlot, holderName, holderEmail string, expiresAt time.Time) (*SlotBooking, error)

	// ConfirmAppointment inserts the appointment and claims its slot in one
	// atomic transaction. When the same holder already has an active hold on
	// the pair, the hold is promoted instead of inserting a second row.
	ConfirmAppointment(ctx context.Context, appt *Appointment) (*Appointment, *SlotBooking, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// ReleaseExpiredHolds flips every active hold with a passed expiry to
	// released and returns how many were flipped.
	ReleaseExpiredHolds(ctx context.Context, now time.Time) (int64, error)

	InsertEvent(ctx context.Context, ev BookingEvent) error
}

// BlockageSource resolves the admin exclusion for a date. The Redis cache
// wraps a source with a TTL; the booked-slot path never goes through here.
type BlockageSource interface {
	GetBlockage(ctx context.Context, date CalendarDate) (Blockage, error)
}

type repositoryBlockages struct {
	repo Repository
}

// NewRepositoryBlockages adapts a Repository into a BlockageSource. Absence
// of an active entry maps to the None variant, which is distinct from an
// active entry with an empty slot list (that one blocks the whole day).
func NewRepositoryBlockages(repo Repository) BlockageSource {
	return &repositoryBlockages{repo: repo}
}

func (r *repositoryBlockages) GetBlockage(ctx context.Context, date CalendarDate) (Blockage, error) {
	entry, err := r.repo.GetBlockedDateEntry(ctx, date)
	if err != nil {
		if errors.Is(err, ErrBlockedDateNotFound) {
			return NoBlockage(), nil
		}
		return Blockage{}, err
	}
	return entry.Blockage(), nil
}

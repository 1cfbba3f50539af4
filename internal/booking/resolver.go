package booking

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// SlotVerdict is the availability answer for one slot.
type SlotVerdict struct {
	Time      TimeSlot
	Available bool
	Reason    string
	HeldBy    string // holder display name, only when taken; never contact details
}

// DayAvailability is the complete per-slot verdict list for one date.
// Callers render a slot picker from it, so every slot in TimeSlots is
// evaluated independently; nothing short-circuits once a free slot is found.
type DayAvailability struct {
	Date           CalendarDate
	Slots          []SlotVerdict
	AvailableCount int
	TotalCount     int
	// Degraded means a store error forced the fail-closed answer: every
	// slot reports unavailable and the client should retry.
	Degraded bool
}

// ResolveDate evaluates every slot of the fixed set for one date.
//
// Evaluation order: categorical rules (no I/O), then the admin blockage,
// then slot occupancy. On any store error the answer fails closed: a verdict
// that wrongly says "free" causes a double booking, one that wrongly says
// "taken" only inconveniences a patient.
func (s *Service) ResolveDate(ctx context.Context, date CalendarDate) (*DayAvailability, error) {
	verdict, err := EvaluateDate(date, s.today())
	if err != nil {
		return nil, err
	}
	if !verdict.Available {
		return uniformDay(date, verdict.Reason, false), nil
	}

	blockage, err := s.blockages.GetBlockage(ctx, date)
	if err != nil {
		s.log.Warn("blocked-date lookup failed, failing closed",
			zap.String("date", date.String()), zap.Error(err))
		return uniformDay(date, ReasonStoreDown, true), nil
	}
	if blockage.Kind == BlockageFullDay {
		return uniformDay(date, adminReason(blockage), false), nil
	}

	occupied, err := s.repo.ListActiveBookings(ctx, date)
	if err != nil {
		s.log.Warn("slot occupancy lookup failed, failing closed",
			zap.String("date", date.String()), zap.Error(err))
		return uniformDay(date, ReasonStoreDown, true), nil
	}

	day := &DayAvailability{Date: date, TotalCount: len(TimeSlots)}
	now := s.now()
	for _, slot := range TimeSlots {
		switch {
		case blockage.Blocks(slot):
			day.Slots = append(day.Slots, SlotVerdict{Time: slot, Reason: adminReason(blockage)})
		default:
			if b, ok := occupied[slot]; ok && !b.Expired(now) {
				day.Slots = append(day.Slots, SlotVerdict{Time: slot, Reason: ReasonSlotTaken, HeldBy: b.HolderName})
				continue
			}
			day.Slots = append(day.Slots, SlotVerdict{Time: slot, Available: true})
			day.AvailableCount++
		}
	}
	return day, nil
}

// ResolveSlot answers for a single (date, time) pair.
func (s *Service) ResolveSlot(ctx context.Context, date CalendarDate, slot TimeSlot) (*SlotVerdict, error) {
	if !ValidTimeSlot(slot) {
		return nil, fmt.Errorf("%w: unknown time slot %q", ErrInvalidInput, slot)
	}

	verdict, err := EvaluateDate(date, s.today())
	if err != nil {
		return nil, err
	}
	if !verdict.Available {
		return &SlotVerdict{Time: slot, Reason: verdict.Reason}, nil
	}

	blockage, err := s.blockages.GetBlockage(ctx, date)
	if err != nil {
		s.log.Warn("blocked-date lookup failed, failing closed",
			zap.String("date", date.String()), zap.Error(err))
		return &SlotVerdict{Time: slot, Reason: ReasonStoreDown}, nil
	}
	if blockage.Blocks(slot) {
		return &SlotVerdict{Time: slot, Reason: adminReason(blockage)}, nil
	}

	booking, err := s.repo.GetActiveBooking(ctx, date, slot)
	switch {
	case err == nil:
		if booking.Expired(s.now()) {
			return &SlotVerdict{Time: slot, Available: true}, nil
		}
		return &SlotVerdict{Time: slot, Reason: ReasonSlotTaken, HeldBy: booking.HolderName}, nil
	case isNotFound(err):
		return &SlotVerdict{Time: slot, Available: true}, nil
	default:
		s.log.Warn("slot occupancy lookup failed, failing closed",
			zap.String("date", date.String()), zap.String("slot", string(slot)), zap.Error(err))
		return &SlotVerdict{Time: slot, Reason: ReasonStoreDown}, nil
	}
}

func uniformDay(date CalendarDate, reason string, degraded bool) *DayAvailability {
	day := &DayAvailability{
		Date:       date,
		Slots:      make([]SlotVerdict, 0, len(TimeSlots)),
		TotalCount: len(TimeSlots),
		Degraded:   degraded,
	}
	for _, slot := range TimeSlots {
		day.Slots = append(day.Slots, SlotVerdict{Time: slot, Reason: reason})
	}
	return day
}

func adminReason(b Blockage) string {
	if b.Reason != "" {
		return b.Reason
	}
	return ReasonAdminBlocked
}

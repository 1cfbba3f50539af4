package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	EventHoldPlaced           = "HOLD_PLACED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventHoldsReleased        = "HOLDS_RELEASED"
)

// HolderInfo identifies who is asking to reserve a slot.
type HolderInfo struct {
	Name  string
	Email string
}

// ConfirmRequest is the full appointment payload the booking flow submits.
type ConfirmRequest struct {
	Name    string
	Email   string
	Phone   string
	Service string
	Date    CalendarDate
	Time    TimeSlot
	Message string
}

type Service struct {
	repo      Repository
	blockages BlockageSource
	log       *zap.Logger
	loc       *time.Location
	holdTTL   time.Duration

	// now is swappable in tests.
	now func() time.Time
}

func NewService(repo Repository, blockages BlockageSource, log *zap.Logger, loc *time.Location, holdTTL time.Duration) *Service {
	return &Service{
		repo:      repo,
		blockages: blockages,
		log:       log,
		loc:       loc,
		holdTTL:   holdTTL,
		now:       time.Now,
	}
}

func (s *Service) today() CalendarDate {
	now := s.now().In(s.loc)
	return NewCalendarDate(now.Year(), now.Month(), now.Day(), s.loc)
}

// checkSlot re-runs the full availability check at write time. Its answer is
// only a fail-fast filter; the conditional write that follows is the actual
// source of truth for the race between check and claim. selfEmail, when not
// empty, lets the caller's own active hold pass so a confirm can promote it.
func (s *Service) checkSlot(ctx context.Context, date CalendarDate, slot TimeSlot, selfEmail string) error {
	if !ValidTimeSlot(slot) {
		return fmt.Errorf("%w: unknown time slot %q", ErrInvalidInput, slot)
	}

	verdict, err := EvaluateDate(date, s.today())
	if err != nil {
		return err
	}
	if !verdict.Available {
		return fmt.Errorf("%w: %s", ErrDateUnavailable, verdict.Reason)
	}

	blockage, err := s.blockages.GetBlockage(ctx, date)
	if err != nil {
		return s.storeErr("blocked-date lookup", err)
	}
	if blockage.Blocks(slot) {
		return fmt.Errorf("%w: %s", ErrAdminBlocked, adminReason(blockage))
	}

	booking, err := s.repo.GetActiveBooking(ctx, date, slot)
	switch {
	case err == nil:
		if booking.Expired(s.now()) {
			return nil // stale hold, the claiming transaction releases it
		}
		if selfEmail != "" && booking.Kind == KindHold && booking.HolderEmail == selfEmail {
			return nil // the caller's own hold, promoted at claim time
		}
		return ErrSlotTaken
	case isNotFound(err):
		return nil
	default:
		return s.storeErr("slot occupancy lookup", err)
	}
}

// PlaceHold reserves a slot for holdTTL so a patient can finish the booking
// form without losing the slot.
func (s *Service) PlaceHold(ctx context.Context, date CalendarDate, slot TimeSlot, holder HolderInfo) (*SlotBooking, error) {
	if holder.Name == "" || holder.Email == "" {
		return nil, fmt.Errorf("%w: holder name and email are required", ErrInvalidInput)
	}
	if err := s.checkSlot(ctx, date, slot, ""); err != nil {
		return nil, err
	}

	expiresAt := s.now().Add(s.holdTTL)
	hold, err := s.repo.CreateHold(ctx, date, slot, holder.Name, holder.Email, expiresAt)
	if err != nil {
		if errors.Is(err, ErrSlotTaken) {
			return nil, ErrRaceLost
		}
		return nil, s.storeErr("create hold", err)
	}

	s.logEvent(ctx, nil, EventHoldPlaced, map[string]any{
		"date":       date.String(),
		"time":       string(slot),
		"expires_at": expiresAt,
	})
	s.log.Info("hold placed",
		zap.String("date", date.String()),
		zap.String("slot", string(slot)),
		zap.Time("expires_at", expiresAt))

	return hold, nil
}

// ConfirmAppointment creates the appointment and claims its slot in one
// atomic transaction. It re-validates everything; a client-side "I already
// checked availability" is never trusted.
func (s *Service) ConfirmAppointment(ctx context.Context, req ConfirmRequest) (*Appointment, error) {
	if req.Name == "" || req.Email == "" {
		return nil, fmt.Errorf("%w: name and email are required", ErrInvalidInput)
	}
	if err := s.checkSlot(ctx, req.Date, req.Time, req.Email); err != nil {
		return nil, err
	}

	appt := &Appointment{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Service: req.Service,
		Date:    req.Date,
		Time:    req.Time,
		Message: req.Message,
	}

	created, slotBooking, err := s.repo.ConfirmAppointment(ctx, appt)
	if err != nil {
		if errors.Is(err, ErrSlotTaken) {
			// Passed the read check but lost the conditional write.
			return nil, ErrRaceLost
		}
		return nil, s.storeErr("confirm appointment", err)
	}

	s.logEvent(ctx, &created.ID, EventAppointmentConfirmed, map[string]any{
		"date":    created.Date.String(),
		"time":    string(created.Time),
		"service": created.Service,
	})
	s.log.Info("appointment confirmed",
		zap.String("appointment_id", created.ID.String()),
		zap.String("date", created.Date.String()),
		zap.String("slot", string(slotBooking.Time)))

	return created, nil
}

// GetAppointment retrieves one appointment by ID.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, s.storeErr("get appointment", err)
	}
	return appt, nil
}

// SweepExpiredHolds releases every hold past its expiry and returns the
// count. Idempotent: a second consecutive run releases nothing. Confirmed
// bookings carry no expiry, so the sweep filter can never match them.
func (s *Service) SweepExpiredHolds(ctx context.Context) (int64, error) {
	count, err := s.repo.ReleaseExpiredHolds(ctx, s.now())
	if err != nil {
		return 0, s.storeErr("release expired holds", err)
	}
	if count > 0 {
		s.logEvent(ctx, nil, EventHoldsReleased, map[string]any{"count": count})
		s.log.Info("expired holds released", zap.Int64("count", count))
	}
	return count, nil
}

func (s *Service) storeErr(op string, err error) error {
	s.log.Error("store operation failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%s: %w", op, ErrStoreUnavailable)
}

func (s *Service) logEvent(ctx context.Context, appointmentID *uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	ev := BookingEvent{
		EventType:     eventType,
		AppointmentID: appointmentID,
		Payload:       data,
		CreatedAt:     s.now(),
	}
	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn("insert booking event", zap.String("event", eventType), zap.Error(err))
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrBookingNotFound)
}

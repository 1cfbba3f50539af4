package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carepoint/booking-service/internal/booking"
)

// BlockedDateInvalidator is the cache hook the admin system pokes after
// mutating a blocked-date entry.
type BlockedDateInvalidator interface {
	Invalidate(ctx context.Context, date booking.CalendarDate) error
}

type Handlers struct {
	svc      *booking.Service
	cache    BlockedDateInvalidator
	validate *validator.Validate
	loc      *time.Location
	log      *zap.Logger
}

func NewHandlers(svc *booking.Service, cache BlockedDateInvalidator, loc *time.Location, log *zap.Logger) *Handlers {
	return &Handlers{
		svc:      svc,
		cache:    cache,
		validate: validator.New(),
		loc:      loc,
		log:      log,
	}
}

func (h *Handlers) getDayAvailability(w http.ResponseWriter, r *http.Request) {
	date, ok := h.parseDateParam(w, r.URL.Query().Get("date"))
	if !ok {
		return
	}

	day, err := h.svc.ResolveDate(r.Context(), date)
	if err != nil {
		h.handleBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDayResponse(day))
}

func (h *Handlers) getSlotAvailability(w http.ResponseWriter, r *http.Request) {
	date, ok := h.parseDateParam(w, r.URL.Query().Get("date"))
	if !ok {
		return
	}
	slot := booking.TimeSlot(r.URL.Query().Get("time"))

	verdict, err := h.svc.ResolveSlot(r.Context(), date, slot)
	if err != nil {
		h.handleBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toVerdictResponse(*verdict))
}

func (h *Handlers) placeHold(w http.ResponseWriter, r *http.Request) {
	var req PlaceHoldRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	date, ok := h.parseDateParam(w, req.Date)
	if !ok {
		return
	}

	hold, err := h.svc.PlaceHold(r.Context(), date, booking.TimeSlot(req.Time), booking.HolderInfo{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		h.handleBookingError(w, err)
		return
	}

	resp := HoldResponse{
		ID:   hold.ID,
		Date: hold.Date.String(),
		Time: string(hold.Time),
	}
	if hold.ExpiresAt != nil {
		resp.ExpiresAt = *hold.ExpiresAt
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handlers) confirmAppointment(w http.ResponseWriter, r *http.Request) {
	var req ConfirmAppointmentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	date, ok := h.parseDateParam(w, req.Date)
	if !ok {
		return
	}

	appt, err := h.svc.ConfirmAppointment(r.Context(), booking.ConfirmRequest{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Service: req.Service,
		Date:    date,
		Time:    booking.TimeSlot(req.Time),
		Message: req.Message,
	})
	if err != nil {
		h.handleBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *Handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	appt, err := h.svc.GetAppointment(r.Context(), id)
	if err != nil {
		h.handleBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *Handlers) sweepHolds(w http.ResponseWriter, r *http.Request) {
	released, err := h.svc.SweepExpiredHolds(r.Context())
	if err != nil {
		h.handleBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SweepResponse{Released: released})
}

func (h *Handlers) invalidateBlockedDate(w http.ResponseWriter, r *http.Request) {
	var req InvalidateBlockedDateRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	date, ok := h.parseDateParam(w, req.Date)
	if !ok {
		return
	}

	if err := h.cache.Invalidate(r.Context(), date); err != nil {
		h.log.Error("blocked-date invalidation failed", zap.String("date", date.String()), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "could not invalidate cache, retry shortly")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Helpers

func (h *Handlers) decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = "failed validation on '" + fe.Tag() + "'"
			}
			writeFieldErrors(w, fields)
			return false
		}
		writeError(w, http.StatusUnprocessableEntity, "invalid_request", err.Error())
		return false
	}
	return true
}

func (h *Handlers) parseDateParam(w http.ResponseWriter, raw string) (booking.CalendarDate, bool) {
	if raw == "" {
		writeFieldErrors(w, map[string]string{"date": "failed validation on 'required'"})
		return booking.CalendarDate{}, false
	}
	date, err := booking.ParseCalendarDate(raw, h.loc)
	if err != nil {
		writeFieldErrors(w, map[string]string{"date": "must be YYYY-MM-DD"})
		return booking.CalendarDate{}, false
	}
	return date, true
}

// handleBookingError maps the service taxonomy onto HTTP. A lost race is
// deliberately indistinguishable from an already-taken slot, and neither
// ever exposes the competing patient's details.
func (h *Handlers) handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, "invalid_request", err.Error())
	case errors.Is(err, booking.ErrDateUnavailable):
		writeError(w, http.StatusConflict, "date_unavailable", err.Error())
	case errors.Is(err, booking.ErrAdminBlocked):
		writeError(w, http.StatusConflict, "admin_blocked", err.Error())
	case errors.Is(err, booking.ErrSlotTaken), errors.Is(err, booking.ErrRaceLost):
		writeError(w, http.StatusConflict, "slot_taken", "slot already has an active booking, pick another")
	case errors.Is(err, booking.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "booking store unavailable, retry shortly")
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", "no appointment with that id")
	default:
		h.log.Error("unhandled booking error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}

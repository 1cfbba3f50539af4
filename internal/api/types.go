package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/carepoint/booking-service/internal/booking"
)

type SlotVerdictResponse struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
	HeldBy    string `json:"held_by,omitempty"`
}

type DayAvailabilityResponse struct {
	Date           string                `json:"date"`
	Slots          []SlotVerdictResponse `json:"slots"`
	AvailableCount int                   `json:"available_count"`
	TotalCount     int                   `json:"total_count"`
	Degraded       bool                  `json:"degraded,omitempty"`
}

type PlaceHoldRequest struct {
	Date  string `json:"date" validate:"required"`
	Time  string `json:"time" validate:"required"`
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"required,email"`
}

type HoldResponse struct {
	ID        uuid.UUID `json:"id"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ConfirmAppointmentRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required,max=20"`
	Service string `json:"service" validate:"required,max=120"`
	Date    string `json:"date" validate:"required"`
	Time    string `json:"time" validate:"required"`
	Message string `json:"message" validate:"max=1000"`
}

type AppointmentResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Service   string    `json:"service"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type SweepResponse struct {
	Released int64 `json:"released"`
}

type InvalidateBlockedDateRequest struct {
	Date string `json:"date" validate:"required"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Phone:     a.Phone,
		Service:   a.Service,
		Date:      a.Date.String(),
		Time:      string(a.Time),
		Status:    string(a.Status),
		Message:   a.Message,
		CreatedAt: a.CreatedAt,
	}
}

func toDayResponse(day *booking.DayAvailability) DayAvailabilityResponse {
	resp := DayAvailabilityResponse{
		Date:           day.Date.String(),
		Slots:          make([]SlotVerdictResponse, 0, len(day.Slots)),
		AvailableCount: day.AvailableCount,
		TotalCount:     day.TotalCount,
		Degraded:       day.Degraded,
	}
	for _, v := range day.Slots {
		resp.Slots = append(resp.Slots, toVerdictResponse(v))
	}
	return resp
}

func toVerdictResponse(v booking.SlotVerdict) SlotVerdictResponse {
	return SlotVerdictResponse{
		Time:      string(v.Time),
		Available: v.Available,
		Reason:    v.Reason,
		HeldBy:    v.HeldBy,
	}
}

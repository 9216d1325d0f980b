// Package transport defines the request/response DTOs for the bookings API.
package transport

import (
	"time"

	"conviaq_backend/internal/bookings/repository"
)

type CreateBookingRequest struct {
	WashServiceID int64   `json:"washServiceId" validate:"required,gt=0"`
	LeadID        *int64  `json:"leadId" validate:"omitempty,gt=0"`
	CustomerName  string  `json:"customerName" validate:"required,min=1,max=200"`
	Phone         string  `json:"phone" validate:"required,max=32"`
	Vehicle       *string `json:"vehicle" validate:"omitempty,max=120"`
	StartsAt      string  `json:"startsAt" validate:"required"` // RFC 3339
}

type WashServiceResponse struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	PriceCents      int64  `json:"priceCents"`
	DurationMinutes int    `json:"durationMinutes"`
	IsActive        bool   `json:"isActive"`
}

func ToWashServiceResponse(s repository.WashService) WashServiceResponse {
	return WashServiceResponse{
		ID:              s.ID,
		Name:            s.Name,
		PriceCents:      s.PriceCents,
		DurationMinutes: s.DurationMinutes,
		IsActive:        s.IsActive,
	}
}

// Slot is one bookable interval for a given service and day.
type Slot struct {
	StartsAt  time.Time `json:"startsAt"`
	EndsAt    time.Time `json:"endsAt"`
	Available bool      `json:"available"`
}

type AvailabilityResponse struct {
	Date          string `json:"date"`
	WashServiceID int64  `json:"washServiceId"`
	Slots         []Slot `json:"slots"`
}

type BookingResponse struct {
	ID            int64     `json:"id"`
	WashServiceID int64     `json:"washServiceId"`
	LeadID        *int64    `json:"leadId,omitempty"`
	CustomerName  string    `json:"customerName"`
	Phone         string    `json:"phone"`
	Vehicle       *string   `json:"vehicle,omitempty"`
	StartsAt      time.Time `json:"startsAt"`
	EndsAt        time.Time `json:"endsAt"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

func ToBookingResponse(b repository.Booking) BookingResponse {
	return BookingResponse{
		ID:            b.ID,
		WashServiceID: b.WashServiceID,
		LeadID:        b.LeadID,
		CustomerName:  b.CustomerName,
		Phone:         b.Phone,
		Vehicle:       b.Vehicle,
		StartsAt:      b.StartsAt,
		EndsAt:        b.EndsAt,
		Status:        b.Status,
		CreatedAt:     b.CreatedAt,
	}
}

func ToBookingResponses(items []repository.Booking) []BookingResponse {
	out := make([]BookingResponse, 0, len(items))
	for _, b := range items {
		out = append(out, ToBookingResponse(b))
	}
	return out
}

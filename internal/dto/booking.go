package dto

import (
	"time"

	"booking-engine/internal/domain"
)

// SeatRef identifies one seat in a hold request
type SeatRef struct {
	Section string `json:"section" binding:"required"`
	Row     int    `json:"row" binding:"required,min=1"`
	Col     int    `json:"col" binding:"required,min=1"`
}

// HoldSeatsRequest represents a request to hold seats on a showing
type HoldSeatsRequest struct {
	ShowingID string    `json:"showing_id" binding:"required"`
	Seats     []SeatRef `json:"seats" binding:"required"`
}

// HeldSeatResponse represents one seat inside a hold
type HeldSeatResponse struct {
	Section    string `json:"section"`
	Row        int    `json:"row"`
	Col        int    `json:"col"`
	Label      string `json:"label"`
	PriceCents int64  `json:"price_cents"`
}

// HoldResponse represents a hold in API responses
type HoldResponse struct {
	ID               string             `json:"id"`
	UserID           string             `json:"user_id"`
	ShowingID        string             `json:"showing_id"`
	Status           string             `json:"status"`
	Seats            []HeldSeatResponse `json:"seats"`
	TotalCents       int64              `json:"total_cents"`
	ExpiresAt        *time.Time         `json:"expires_at,omitempty"`
	ConfirmationCode string             `json:"confirmation_code,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	ConfirmedAt      *time.Time         `json:"confirmed_at,omitempty"`
	CancelledAt      *time.Time         `json:"cancelled_at,omitempty"`
}

// ConfirmHoldRequest represents a request to confirm a hold
type ConfirmHoldRequest struct {
	PaymentRef string `json:"payment_ref" binding:"required"`
}

// BookingConfirmationResponse represents a confirmed booking
type BookingConfirmationResponse struct {
	BookingID        string    `json:"booking_id"`
	ConfirmationCode string    `json:"confirmation_code"`
	MovieTitle       string    `json:"movie_title"`
	TheatreName      string    `json:"theatre_name"`
	HallName         string    `json:"hall_name"`
	ShowStartsAt     time.Time `json:"show_starts_at"`
	Seats            []string  `json:"seats"`
	TotalCents       int64     `json:"total_cents"`
	PaymentRef       string    `json:"payment_ref"`
}

// ReleaseHoldResponse represents the outcome of releasing a hold
type ReleaseHoldResponse struct {
	HoldID  string `json:"hold_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SectionRequest describes one section of a new showing's layout
type SectionRequest struct {
	Name string `json:"name" binding:"required"`
	Rows int    `json:"rows" binding:"required,min=1"`
	Cols int    `json:"cols" binding:"required,min=1"`
}

// CreateShowingRequest represents an admin request to register a showing
type CreateShowingRequest struct {
	MovieTitle  string           `json:"movie_title" binding:"required"`
	TheatreName string           `json:"theatre_name" binding:"required"`
	HallName    string           `json:"hall_name" binding:"required"`
	StartsAt    time.Time        `json:"starts_at" binding:"required"`
	SeatPrice   int64            `json:"seat_price_cents" binding:"required,min=1"`
	Layout      []SectionRequest `json:"layout" binding:"required,min=1"`
}

// ShowingResponse represents a showing in API responses
type ShowingResponse struct {
	ID          string    `json:"id"`
	MovieTitle  string    `json:"movie_title"`
	TheatreName string    `json:"theatre_name"`
	HallName    string    `json:"hall_name"`
	StartsAt    time.Time `json:"starts_at"`
	SeatPrice   int64     `json:"seat_price_cents"`
	SeatCount   int       `json:"seat_count"`
	Version     int64     `json:"version"`
}

// SeatMapCell represents one seat in the availability map
type SeatMapCell struct {
	Section string `json:"section"`
	Row     int    `json:"row"`
	Col     int    `json:"col"`
	State   string `json:"state"`
}

// SeatMapResponse represents a showing's seat availability
type SeatMapResponse struct {
	ShowingID string        `json:"showing_id"`
	Version   int64         `json:"version"`
	Seats     []SeatMapCell `json:"seats"`
}

// PaginatedHoldsResponse represents a page of the caller's records
type PaginatedHoldsResponse struct {
	Holds  []*HoldResponse `json:"holds"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	Message string   `json:"message,omitempty"`
	Seats   []string `json:"seats,omitempty"`
}

// HoldFromDomain converts a domain Hold to a HoldResponse
func HoldFromDomain(h *domain.Hold) *HoldResponse {
	seats := make([]HeldSeatResponse, len(h.Seats))
	for i, s := range h.Seats {
		seats[i] = HeldSeatResponse{
			Section:    s.Coord.Section,
			Row:        s.Coord.Row,
			Col:        s.Coord.Col,
			Label:      s.Label,
			PriceCents: s.PriceCents,
		}
	}
	return &HoldResponse{
		ID:               h.ID,
		UserID:           h.UserID,
		ShowingID:        h.ShowingID,
		Status:           h.Status.String(),
		Seats:            seats,
		TotalCents:       h.TotalCents,
		ExpiresAt:        h.ExpiresAt,
		ConfirmationCode: h.ConfirmationCode,
		CreatedAt:        h.CreatedAt,
		ConfirmedAt:      h.ConfirmedAt,
		CancelledAt:      h.CancelledAt,
	}
}

// ConfirmationFromDomain converts a domain BookingSummary to a response
func ConfirmationFromDomain(s *domain.BookingSummary) *BookingConfirmationResponse {
	return &BookingConfirmationResponse{
		BookingID:        s.BookingID,
		ConfirmationCode: s.ConfirmationCode,
		MovieTitle:       s.MovieTitle,
		TheatreName:      s.TheatreName,
		HallName:         s.HallName,
		ShowStartsAt:     s.ShowStartsAt,
		Seats:            s.Seats,
		TotalCents:       s.TotalCents,
		PaymentRef:       s.PaymentRef,
	}
}

// ShowingFromDomain converts a domain Showing to a ShowingResponse
func ShowingFromDomain(sh *domain.Showing) *ShowingResponse {
	return &ShowingResponse{
		ID:          sh.ID,
		MovieTitle:  sh.MovieTitle,
		TheatreName: sh.TheatreName,
		HallName:    sh.HallName,
		StartsAt:    sh.StartsAt,
		SeatPrice:   sh.SeatPrice,
		SeatCount:   sh.SeatCount(),
		Version:     sh.Version,
	}
}

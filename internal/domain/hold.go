package domain

import (
	"time"
)

// HoldStatus represents the lifecycle state of a hold / booking record
type HoldStatus string

const (
	HoldStatusHeld      HoldStatus = "HELD"
	HoldStatusConfirmed HoldStatus = "CONFIRMED"
	HoldStatusCancelled HoldStatus = "CANCELLED"
)

// String returns the string representation of the hold status
func (s HoldStatus) String() string {
	return string(s)
}

// IsTerminal returns true once the record can no longer transition
func (s HoldStatus) IsTerminal() bool {
	return s == HoldStatusConfirmed || s == HoldStatusCancelled
}

// HeldSeat is one seat inside a hold, with its label and price captured at
// hold time
type HeldSeat struct {
	Coord      SeatCoord `json:"coord"`
	Label      string    `json:"label"`
	PriceCents int64     `json:"price_cents"`
}

// Hold is a user's time-bounded claim on a set of seats for one showing.
// The same record becomes the booking once confirmed; its ID doubles as the
// booking id attached to reserved cells.
type Hold struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	ShowingID        string     `json:"showing_id"`
	Status           HoldStatus `json:"status"`
	Seats            []HeldSeat `json:"seats"`
	TotalCents       int64      `json:"total_cents"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"` // nil once status leaves HELD
	PaymentRef       string     `json:"payment_ref,omitempty"`
	ConfirmationCode string     `json:"confirmation_code,omitempty"`
	StatusReason     string     `json:"status_reason,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ConfirmedAt      *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
}

// IsActive returns true while the hold is HELD and its deadline has not
// passed
func (h *Hold) IsActive(now time.Time) bool {
	return h.Status == HoldStatusHeld && h.ExpiresAt != nil && now.Before(*h.ExpiresAt)
}

// IsExpired returns true for a HELD hold whose deadline has passed
func (h *Hold) IsExpired(now time.Time) bool {
	return h.Status == HoldStatusHeld && h.ExpiresAt != nil && !now.Before(*h.ExpiresAt)
}

// Coords returns the seat coordinates covered by the hold
func (h *Hold) Coords() []SeatCoord {
	coords := make([]SeatCoord, len(h.Seats))
	for i, s := range h.Seats {
		coords[i] = s.Coord
	}
	return coords
}

// SeatLabels returns the human-readable labels of the held seats
func (h *Hold) SeatLabels() []string {
	labels := make([]string, len(h.Seats))
	for i, s := range h.Seats {
		labels[i] = s.Label
	}
	return labels
}

// Clone returns a deep copy of the hold
func (h *Hold) Clone() *Hold {
	cp := *h
	cp.Seats = make([]HeldSeat, len(h.Seats))
	copy(cp.Seats, h.Seats)
	if h.ExpiresAt != nil {
		t := *h.ExpiresAt
		cp.ExpiresAt = &t
	}
	if h.ConfirmedAt != nil {
		t := *h.ConfirmedAt
		cp.ConfirmedAt = &t
	}
	if h.CancelledAt != nil {
		t := *h.CancelledAt
		cp.CancelledAt = &t
	}
	return &cp
}

// BookingSummary is the document handed off to the ticket-delivery
// collaborator after a confirmation. Rendering is out of scope here.
type BookingSummary struct {
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

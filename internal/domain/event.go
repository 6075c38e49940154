package domain

import (
	"encoding/json"
	"time"
)

// Event types published to the booking events topic
const (
	EventHoldCreated      = "hold.created"
	EventHoldReleased     = "hold.released"
	EventHoldExpired      = "hold.expired"
	EventBookingConfirmed = "booking.confirmed"
)

// Event is the envelope for all booking events
type Event struct {
	EventID    string          `json:"event_id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Source     string          `json:"source"`
	Data       json.RawMessage `json:"data"`
}

// HoldEventData is the payload for hold lifecycle events
type HoldEventData struct {
	HoldID    string     `json:"hold_id"`
	UserID    string     `json:"user_id"`
	ShowingID string     `json:"showing_id"`
	Seats     []string   `json:"seats"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

// BookingConfirmedData is the payload handed to the ticket-delivery
// collaborator
type BookingConfirmedData struct {
	Summary BookingSummary `json:"summary"`
}

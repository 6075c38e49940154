package domain

import (
	"fmt"
	"time"
)

// SeatState represents the lifecycle state of a single seat cell
type SeatState string

const (
	SeatAvailable SeatState = "AVAILABLE"
	SeatHeld      SeatState = "HELD"
	SeatReserved  SeatState = "RESERVED"
)

// String returns the string representation of the seat state
func (s SeatState) String() string {
	return string(s)
}

// IsValid checks if the seat state is a known value
func (s SeatState) IsValid() bool {
	switch s {
	case SeatAvailable, SeatHeld, SeatReserved:
		return true
	}
	return false
}

// SeatCoord addresses a single seat cell within a showing's grid.
// Rows and columns are 1-based.
type SeatCoord struct {
	Section string `json:"section"`
	Row     int    `json:"row"`
	Col     int    `json:"col"`
}

// Label returns the human-readable seat label (e.g. "A-R3C7")
func (c SeatCoord) Label() string {
	return fmt.Sprintf("%s-R%dC%d", c.Section, c.Row, c.Col)
}

// Key returns a stable composite key for the coordinate, used by
// store implementations that flatten the grid into a map
func (c SeatCoord) Key() string {
	return fmt.Sprintf("%s:%d:%d", c.Section, c.Row, c.Col)
}

// SeatCell is the smallest unit of inventory. The state determines which
// of the other fields are meaningful: HoldID and HoldExpiresAt are set only
// while HELD, BookingID once RESERVED. A RESERVED cell is never mutated by
// the engine.
type SeatCell struct {
	State         SeatState  `json:"state"`
	HoldID        string     `json:"hold_id,omitempty"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
	BookingID     string     `json:"booking_id,omitempty"`
}

// IsAvailable returns true if the cell can be claimed
func (c SeatCell) IsAvailable() bool {
	return c.State == SeatAvailable
}

// IsHeldBy returns true if the cell is held under the given hold id
func (c SeatCell) IsHeldBy(holdID string) bool {
	return c.State == SeatHeld && c.HoldID == holdID
}

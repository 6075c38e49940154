package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors
var (
	// Lookup errors
	ErrShowingNotFound = errors.New("showing not found")
	ErrHoldNotFound    = errors.New("hold not found")

	// Validation errors
	ErrInvalidSeat      = errors.New("invalid seat coordinates")
	ErrNoSeatsSelected  = errors.New("no seats selected")
	ErrTooManySeats     = errors.New("too many seats requested")
	ErrDuplicateSeat    = errors.New("duplicate seat in selection")
	ErrShowingCancelled = errors.New("showing has been cancelled")

	// Conflict errors
	ErrShowingExists   = errors.New("showing already exists")
	ErrSeatConflict    = errors.New("requested seats are no longer available")
	ErrVersionConflict = errors.New("showing was modified concurrently")
	ErrDuplicateHold   = errors.New("user already has an active hold on this showing")
	ErrHoldNotActive   = errors.New("hold is not in held state")
	ErrHoldNotOwned    = errors.New("hold does not belong to this user")

	// Confirmation errors
	ErrHoldExpired            = errors.New("hold has expired")
	ErrSeatsNoLongerHeld      = errors.New("seats are no longer held under this hold")
	ErrConfirmationInProgress = errors.New("a confirmation for this payment reference is already in progress")
	ErrPaymentNotCompleted    = errors.New("payment has not completed")
)

// InvalidSeatError reports a coordinate outside the showing's layout
type InvalidSeatError struct {
	ShowingID string
	Seat      string
}

func (e *InvalidSeatError) Error() string {
	return fmt.Sprintf("seat %s does not exist in showing %s", e.Seat, e.ShowingID)
}

func (e *InvalidSeatError) Unwrap() error {
	return ErrInvalidSeat
}

// SeatConflictError reports the specific seats that failed a conditional
// grid mutation, so clients can re-render an accurate seat map
type SeatConflictError struct {
	ShowingID string
	Seats     []string
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("seats unavailable in showing %s: %s", e.ShowingID, strings.Join(e.Seats, ", "))
}

func (e *SeatConflictError) Unwrap() error {
	return ErrSeatConflict
}

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrShowingNotFound) ||
		errors.Is(err, ErrHoldNotFound)
}

// IsValidationError checks if the error is a client-side validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidSeat) ||
		errors.Is(err, ErrNoSeatsSelected) ||
		errors.Is(err, ErrTooManySeats) ||
		errors.Is(err, ErrDuplicateSeat) ||
		errors.Is(err, ErrShowingCancelled)
}

// IsConflictError checks if the error means the caller lost a race and may
// retry after re-reading state
func IsConflictError(err error) bool {
	return errors.Is(err, ErrShowingExists) ||
		errors.Is(err, ErrSeatConflict) ||
		errors.Is(err, ErrVersionConflict) ||
		errors.Is(err, ErrDuplicateHold) ||
		errors.Is(err, ErrHoldNotActive) ||
		errors.Is(err, ErrConfirmationInProgress)
}

// IsExpiredError checks if the error means the hold's lease ran out before
// the caller acted
func IsExpiredError(err error) bool {
	return errors.Is(err, ErrHoldExpired) ||
		errors.Is(err, ErrSeatsNoLongerHeld)
}

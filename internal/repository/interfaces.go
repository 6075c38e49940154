package repository

import (
	"context"
	"time"

	"booking-engine/internal/domain"
)

// ShowingStore is the durable, conditionally-applied mutation surface for a
// showing's seat grid. Every mutator is all-or-nothing across the whole
// requested coordinate set: if any targeted cell fails its precondition no
// cell is touched and a *domain.SeatConflictError names the offending
// seats. Each successful mutation advances the showing's version by exactly
// one and is immediately visible to readers.
type ShowingStore interface {
	// CreateShowing registers a new showing with its full seat grid
	CreateShowing(ctx context.Context, showing *domain.Showing) error

	// GetShowing returns a snapshot of the showing and its grid
	GetShowing(ctx context.Context, showingID string) (*domain.Showing, error)

	// ClaimSeats transitions available cells to held, gated by both
	// per-cell state and the version fence. Returns the new version.
	ClaimSeats(ctx context.Context, showingID string, expectedVersion int64, coords []domain.SeatCoord, holdID string, deadline time.Time) (int64, error)

	// ReleaseSeats transitions cells held under holdID back to available.
	// Cells not held under holdID are left untouched; if no targeted cell
	// matches, a conflict is returned and the version does not advance.
	ReleaseSeats(ctx context.Context, showingID string, coords []domain.SeatCoord, holdID string) (int64, error)

	// ReserveSeats transitions cells held under holdID to reserved,
	// attaching bookingID. Fails if any targeted cell is not held under
	// holdID.
	ReserveSeats(ctx context.Context, showingID string, coords []domain.SeatCoord, holdID, bookingID string) (int64, error)
}

// HoldStore persists hold / booking records. Status transitions are
// conditional on the record still being HELD so that terminal states are
// never overwritten.
type HoldStore interface {
	// Create persists a new hold in HELD status
	Create(ctx context.Context, hold *domain.Hold) error

	// GetByID returns a hold by its id
	GetByID(ctx context.Context, holdID string) (*domain.Hold, error)

	// GetActiveByUser returns the caller's unexpired HELD records
	GetActiveByUser(ctx context.Context, userID string, now time.Time) ([]*domain.Hold, error)

	// GetActiveByUserAndShowing returns the caller's active hold on a
	// showing, or (nil, nil) when there is none
	GetActiveByUserAndShowing(ctx context.Context, userID, showingID string, now time.Time) (*domain.Hold, error)

	// GetByUser returns the caller's records, newest first, for history
	// queries
	GetByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Hold, error)

	// GetExpired returns HELD records whose deadline has passed
	GetExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Hold, error)

	// Confirm transitions a HELD record to CONFIRMED, stamping the payment
	// reference and confirmation code. Returns domain.ErrHoldNotActive if
	// the record already left HELD.
	Confirm(ctx context.Context, holdID, paymentRef, confirmationCode string, at time.Time) error

	// Cancel transitions a HELD record to CANCELLED with a reason.
	// Returns domain.ErrHoldNotActive if the record already left HELD.
	Cancel(ctx context.Context, holdID, reason string, at time.Time) error
}

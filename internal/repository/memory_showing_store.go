package repository

import (
	"context"
	"sync"
	"time"

	"booking-engine/internal/domain"
)

// MemoryShowingStore is an in-memory ShowingStore. All mutation happens
// under a single lock, which gives the same all-or-nothing, version-fenced
// semantics as the Redis store. Used in tests and single-process dev mode.
type MemoryShowingStore struct {
	mu       sync.RWMutex
	showings map[string]*domain.Showing
}

// NewMemoryShowingStore creates an empty in-memory showing store
func NewMemoryShowingStore() *MemoryShowingStore {
	return &MemoryShowingStore{
		showings: make(map[string]*domain.Showing),
	}
}

// CreateShowing registers a new showing with its full seat grid
func (s *MemoryShowingStore) CreateShowing(ctx context.Context, showing *domain.Showing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.showings[showing.ID]; exists {
		return domain.ErrShowingExists
	}
	s.showings[showing.ID] = showing.Clone()
	return nil
}

// GetShowing returns a snapshot of the showing and its grid
func (s *MemoryShowingStore) GetShowing(ctx context.Context, showingID string) (*domain.Showing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	showing, ok := s.showings[showingID]
	if !ok {
		return nil, domain.ErrShowingNotFound
	}
	return showing.Clone(), nil
}

// ClaimSeats transitions available cells to held, gated by per-cell state
// and the version fence
func (s *MemoryShowingStore) ClaimSeats(ctx context.Context, showingID string, expectedVersion int64, coords []domain.SeatCoord, holdID string, deadline time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	showing, ok := s.showings[showingID]
	if !ok {
		return 0, domain.ErrShowingNotFound
	}
	if err := showing.ValidateCoords(coords); err != nil {
		return 0, err
	}
	// Cell availability is checked before the version fence so a caller
	// racing a committed claim learns which seats it lost, not just that
	// the grid moved.
	var conflicts []string
	for _, c := range coords {
		cell := showing.Cells[c.Key()]
		if !cell.IsAvailable() {
			conflicts = append(conflicts, c.Label())
		}
	}
	if len(conflicts) > 0 {
		return 0, &domain.SeatConflictError{ShowingID: showingID, Seats: conflicts}
	}
	if showing.Version != expectedVersion {
		return 0, domain.ErrVersionConflict
	}

	expires := deadline
	for _, c := range coords {
		showing.Cells[c.Key()] = domain.SeatCell{
			State:         domain.SeatHeld,
			HoldID:        holdID,
			HoldExpiresAt: &expires,
		}
	}
	showing.Version++
	showing.UpdatedAt = time.Now()
	return showing.Version, nil
}

// ReleaseSeats transitions cells held under holdID back to available
func (s *MemoryShowingStore) ReleaseSeats(ctx context.Context, showingID string, coords []domain.SeatCoord, holdID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	showing, ok := s.showings[showingID]
	if !ok {
		return 0, domain.ErrShowingNotFound
	}
	if err := showing.ValidateCoords(coords); err != nil {
		return 0, err
	}

	released := 0
	for _, c := range coords {
		if showing.Cells[c.Key()].IsHeldBy(holdID) {
			released++
		}
	}
	if released == 0 {
		labels := make([]string, len(coords))
		for i, c := range coords {
			labels[i] = c.Label()
		}
		return 0, &domain.SeatConflictError{ShowingID: showingID, Seats: labels}
	}

	for _, c := range coords {
		if showing.Cells[c.Key()].IsHeldBy(holdID) {
			showing.Cells[c.Key()] = domain.SeatCell{State: domain.SeatAvailable}
		}
	}
	showing.Version++
	showing.UpdatedAt = time.Now()
	return showing.Version, nil
}

// ReserveSeats transitions cells held under holdID to reserved
func (s *MemoryShowingStore) ReserveSeats(ctx context.Context, showingID string, coords []domain.SeatCoord, holdID, bookingID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	showing, ok := s.showings[showingID]
	if !ok {
		return 0, domain.ErrShowingNotFound
	}
	if err := showing.ValidateCoords(coords); err != nil {
		return 0, err
	}

	var conflicts []string
	for _, c := range coords {
		if !showing.Cells[c.Key()].IsHeldBy(holdID) {
			conflicts = append(conflicts, c.Label())
		}
	}
	if len(conflicts) > 0 {
		return 0, &domain.SeatConflictError{ShowingID: showingID, Seats: conflicts}
	}

	for _, c := range coords {
		showing.Cells[c.Key()] = domain.SeatCell{
			State:     domain.SeatReserved,
			BookingID: bookingID,
		}
	}
	showing.Version++
	showing.UpdatedAt = time.Now()
	return showing.Version, nil
}

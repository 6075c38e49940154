package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"booking-engine/internal/domain"
)

// MemoryHoldStore is an in-memory HoldStore used in tests and dev mode
type MemoryHoldStore struct {
	mu    sync.RWMutex
	holds map[string]*domain.Hold
}

// NewMemoryHoldStore creates an empty in-memory hold store
func NewMemoryHoldStore() *MemoryHoldStore {
	return &MemoryHoldStore{
		holds: make(map[string]*domain.Hold),
	}
}

// Create persists a new hold in HELD status. One active hold per user
// per showing, matching the partial unique index in Postgres.
func (s *MemoryHoldStore) Create(ctx context.Context, hold *domain.Hold) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, h := range s.holds {
		if h.ID != hold.ID && h.UserID == hold.UserID && h.ShowingID == hold.ShowingID && h.IsActive(now) {
			return domain.ErrDuplicateHold
		}
	}

	s.holds[hold.ID] = hold.Clone()
	return nil
}

// GetByID returns a hold by its id
func (s *MemoryHoldStore) GetByID(ctx context.Context, holdID string) (*domain.Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hold, ok := s.holds[holdID]
	if !ok {
		return nil, domain.ErrHoldNotFound
	}
	return hold.Clone(), nil
}

// GetActiveByUser returns the caller's unexpired HELD records
func (s *MemoryHoldStore) GetActiveByUser(ctx context.Context, userID string, now time.Time) ([]*domain.Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Hold
	for _, h := range s.holds {
		if h.UserID == userID && h.IsActive(now) {
			out = append(out, h.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// GetActiveByUserAndShowing returns the caller's active hold on a showing,
// or (nil, nil) when there is none
func (s *MemoryHoldStore) GetActiveByUserAndShowing(ctx context.Context, userID, showingID string, now time.Time) (*domain.Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, h := range s.holds {
		if h.UserID == userID && h.ShowingID == showingID && h.IsActive(now) {
			return h.Clone(), nil
		}
	}
	return nil, nil
}

// GetByUser returns the caller's records, newest first
func (s *MemoryHoldStore) GetByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*domain.Hold
	for _, h := range s.holds {
		if h.UserID == userID {
			all = append(all, h.Clone())
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return []*domain.Hold{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// GetExpired returns HELD records whose deadline has passed
func (s *MemoryHoldStore) GetExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Hold
	for _, h := range s.holds {
		if h.IsExpired(now) {
			out = append(out, h.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Confirm transitions a HELD record to CONFIRMED
func (s *MemoryHoldStore) Confirm(ctx context.Context, holdID, paymentRef, confirmationCode string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hold, ok := s.holds[holdID]
	if !ok {
		return domain.ErrHoldNotFound
	}
	if hold.Status != domain.HoldStatusHeld {
		return domain.ErrHoldNotActive
	}
	hold.Status = domain.HoldStatusConfirmed
	hold.PaymentRef = paymentRef
	hold.ConfirmationCode = confirmationCode
	hold.ExpiresAt = nil
	confirmedAt := at
	hold.ConfirmedAt = &confirmedAt
	hold.UpdatedAt = at
	return nil
}

// Cancel transitions a HELD record to CANCELLED
func (s *MemoryHoldStore) Cancel(ctx context.Context, holdID, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hold, ok := s.holds[holdID]
	if !ok {
		return domain.ErrHoldNotFound
	}
	if hold.Status != domain.HoldStatusHeld {
		return domain.ErrHoldNotActive
	}
	hold.Status = domain.HoldStatusCancelled
	hold.StatusReason = reason
	hold.ExpiresAt = nil
	cancelledAt := at
	hold.CancelledAt = &cancelledAt
	hold.UpdatedAt = at
	return nil
}

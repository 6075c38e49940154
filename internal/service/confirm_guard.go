package service

import (
	"sync"
	"time"

	"booking-engine/internal/domain"
	"booking-engine/internal/dto"
)

type confirmState int

const (
	confirmInFlight confirmState = iota
	confirmDone
)

type confirmEntry struct {
	state  confirmState
	userID string
	result *dto.BookingConfirmationResponse
	doneAt time.Time
}

// confirmGuard serializes confirmation attempts per payment reference.
// At most one attempt per reference runs at a time; a completed attempt
// leaves its result behind so replays return the same booking.
type confirmGuard struct {
	mu        sync.Mutex
	entries   map[string]*confirmEntry
	retention time.Duration
}

func newConfirmGuard(retention time.Duration) *confirmGuard {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &confirmGuard{
		entries:   make(map[string]*confirmEntry),
		retention: retention,
	}
}

// begin registers an attempt for the payment reference. It returns the
// prior result when the same user already completed one, inFlight=true
// when another attempt holds the reference, or ErrHoldNotOwned when a
// different user presents a completed reference. The caller owns the
// slot only when all returns are zero and must end it with succeed or
// fail.
func (g *confirmGuard) begin(paymentRef, userID string) (prior *dto.BookingConfirmationResponse, inFlight bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.purgeLocked(time.Now())

	if entry, ok := g.entries[paymentRef]; ok {
		if entry.state == confirmInFlight {
			return nil, true, nil
		}
		if entry.userID != userID {
			return nil, false, domain.ErrHoldNotOwned
		}
		return entry.result, false, nil
	}

	g.entries[paymentRef] = &confirmEntry{state: confirmInFlight, userID: userID}
	return nil, false, nil
}

// succeed records the attempt's result for later replays
func (g *confirmGuard) succeed(paymentRef, userID string, result *dto.BookingConfirmationResponse) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries[paymentRef] = &confirmEntry{
		state:  confirmDone,
		userID: userID,
		result: result,
		doneAt: time.Now(),
	}
}

// fail removes the marker so the reference can be retried
func (g *confirmGuard) fail(paymentRef string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if entry, ok := g.entries[paymentRef]; ok && entry.state == confirmInFlight {
		delete(g.entries, paymentRef)
	}
}

// purgeLocked drops completed entries past the retention window. The
// caller must hold g.mu.
func (g *confirmGuard) purgeLocked(now time.Time) {
	for ref, entry := range g.entries {
		if entry.state == confirmDone && now.Sub(entry.doneAt) > g.retention {
			delete(g.entries, ref)
		}
	}
}

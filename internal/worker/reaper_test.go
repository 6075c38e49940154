package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"booking-engine/internal/domain"
	"booking-engine/internal/repository"
)

// MockEventPublisher is a mock implementation of service.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishHoldCreated(ctx context.Context, hold *domain.Hold) error {
	args := m.Called(ctx, hold)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishHoldReleased(ctx context.Context, hold *domain.Hold) error {
	args := m.Called(ctx, hold)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishHoldExpired(ctx context.Context, hold *domain.Hold) error {
	args := m.Called(ctx, hold)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishBookingConfirmed(ctx context.Context, summary *domain.BookingSummary) error {
	args := m.Called(ctx, summary)
	return args.Error(0)
}

func (m *MockEventPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func seedShowing(t *testing.T, showings *repository.MemoryShowingStore) *domain.Showing {
	t.Helper()
	showing := domain.NewShowing("show-1", "Movie", "Theatre", "Hall 1", time.Now().Add(24*time.Hour), 1500, []domain.Section{
		{Name: "A", Rows: 3, Cols: 4},
	})
	require.NoError(t, showings.CreateShowing(context.Background(), showing))
	return showing
}

func seedHold(t *testing.T, holds *repository.MemoryHoldStore, id string, expiresAt time.Time) *domain.Hold {
	t.Helper()
	deadline := expiresAt
	hold := &domain.Hold{
		ID:        id,
		UserID:    "user-1",
		ShowingID: "show-1",
		Status:    domain.HoldStatusHeld,
		Seats: []domain.HeldSeat{
			{Coord: domain.SeatCoord{Section: "A", Row: 1, Col: 1}, Label: "A-R1C1", PriceCents: 1500},
			{Coord: domain.SeatCoord{Section: "A", Row: 1, Col: 2}, Label: "A-R1C2", PriceCents: 1500},
		},
		TotalCents: 3000,
		ExpiresAt:  &deadline,
		CreatedAt:  time.Now().Add(-15 * time.Minute),
	}
	require.NoError(t, holds.Create(context.Background(), hold))
	return hold
}

func TestReaper_Sweep_ReclaimsExpiredHolds(t *testing.T) {
	ctx := context.Background()
	showings := repository.NewMemoryShowingStore()
	holds := repository.NewMemoryHoldStore()
	showing := seedShowing(t, showings)

	expired := seedHold(t, holds, "hold-expired", time.Now().Add(-time.Minute))
	_, err := showings.ClaimSeats(ctx, "show-1", showing.Version, expired.Coords(), expired.ID, *expired.ExpiresAt)
	require.NoError(t, err)

	live := seedHold(t, holds, "hold-live", time.Now().Add(10*time.Minute))
	liveCoords := []domain.SeatCoord{{Section: "A", Row: 2, Col: 1}}
	live.Seats = []domain.HeldSeat{{Coord: liveCoords[0], Label: liveCoords[0].Label(), PriceCents: 1500}}
	snapshot, err := showings.GetShowing(ctx, "show-1")
	require.NoError(t, err)
	_, err = showings.ClaimSeats(ctx, "show-1", snapshot.Version, liveCoords, live.ID, *live.ExpiresAt)
	require.NoError(t, err)

	publisher := &MockEventPublisher{}
	publisher.On("PublishHoldExpired", mock.Anything, mock.Anything).Return(nil)

	reaper := NewReaper(showings, holds, publisher, &ReaperConfig{ScanInterval: time.Hour, BatchSize: 100})
	reaper.Sweep(ctx)

	record, err := holds.GetByID(ctx, "hold-expired")
	require.NoError(t, err)
	assert.Equal(t, domain.HoldStatusCancelled, record.Status)
	assert.Equal(t, "hold expired", record.StatusReason)

	after, err := showings.GetShowing(ctx, "show-1")
	require.NoError(t, err)
	for _, c := range expired.Coords() {
		cell, ok := after.Cell(c)
		require.True(t, ok)
		assert.True(t, cell.IsAvailable(), "seat %s should be back in inventory", c.Label())
	}

	liveRecord, err := holds.GetByID(ctx, "hold-live")
	require.NoError(t, err)
	assert.Equal(t, domain.HoldStatusHeld, liveRecord.Status)
	liveCell, _ := after.Cell(liveCoords[0])
	assert.True(t, liveCell.IsHeldBy("hold-live"), "unexpired hold must keep its seats")

	stats := reaper.GetStats()
	assert.Equal(t, int64(1), stats.TotalExpired)
	assert.Equal(t, 1, stats.LastExpiredCount)

	publisher.AssertNumberOfCalls(t, "PublishHoldExpired", 1)
}

func TestReaper_ExpireHold_ToleratesGridAlreadyReleased(t *testing.T) {
	ctx := context.Background()
	showings := repository.NewMemoryShowingStore()
	holds := repository.NewMemoryHoldStore()
	seedShowing(t, showings)

	// The seats were never claimed on the grid, so the release reports a
	// conflict. The record must still be cancelled.
	hold := seedHold(t, holds, "hold-1", time.Now().Add(-time.Minute))

	reaper := NewReaper(showings, holds, nil, nil)
	err := reaper.expireHold(ctx, hold)
	require.NoError(t, err)

	record, err := holds.GetByID(ctx, "hold-1")
	require.NoError(t, err)
	assert.Equal(t, domain.HoldStatusCancelled, record.Status)
}

func TestReaper_ExpireHold_SkipsConcurrentlyConfirmedHold(t *testing.T) {
	ctx := context.Background()
	showings := repository.NewMemoryShowingStore()
	holds := repository.NewMemoryHoldStore()
	showing := seedShowing(t, showings)

	// A confirmation finished between the expiry scan and this reclaim:
	// the cells are reserved and the record left HELD
	hold := seedHold(t, holds, "hold-1", time.Now().Add(-time.Second))
	_, err := showings.ClaimSeats(ctx, "show-1", showing.Version, hold.Coords(), hold.ID, *hold.ExpiresAt)
	require.NoError(t, err)
	_, err = showings.ReserveSeats(ctx, "show-1", hold.Coords(), hold.ID, hold.ID)
	require.NoError(t, err)
	require.NoError(t, holds.Confirm(ctx, hold.ID, "pay-1", "abcd1234", time.Now()))

	reaper := NewReaper(showings, holds, nil, nil)
	err = reaper.expireHold(ctx, hold)
	require.NoError(t, err)

	record, err := holds.GetByID(ctx, "hold-1")
	require.NoError(t, err)
	assert.Equal(t, domain.HoldStatusConfirmed, record.Status, "a confirmed booking must never be expired")

	after, err := showings.GetShowing(ctx, "show-1")
	require.NoError(t, err)
	for _, c := range hold.Coords() {
		cell, _ := after.Cell(c)
		assert.Equal(t, domain.SeatReserved, cell.State, "reserved seats must stay reserved")
	}
}

func TestReaper_StartStop(t *testing.T) {
	showings := repository.NewMemoryShowingStore()
	holds := repository.NewMemoryHoldStore()

	reaper := NewReaper(showings, holds, nil, &ReaperConfig{ScanInterval: 10 * time.Millisecond, BatchSize: 10})

	require.NoError(t, reaper.Start(context.Background()))
	assert.Error(t, reaper.Start(context.Background()), "second start must be rejected")

	// Let at least one scheduled scan fire
	time.Sleep(30 * time.Millisecond)
	reaper.Stop()

	stats := reaper.GetStats()
	assert.False(t, stats.IsRunning)
	assert.False(t, stats.LastScanTime.IsZero())

	// Stop is idempotent
	reaper.Stop()
}

func TestReaper_ContestedSeatFullLifecycle(t *testing.T) {
	ctx := context.Background()
	showings := repository.NewMemoryShowingStore()
	holds := repository.NewMemoryHoldStore()
	showing := seedShowing(t, showings)

	// Churn a scratch seat until the showing sits at version 5
	scratch := []domain.SeatCoord{{Section: "A", Row: 3, Col: 4}}
	v, err := showings.ClaimSeats(ctx, "show-1", showing.Version, scratch, "scratch-1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	v, err = showings.ReleaseSeats(ctx, "show-1", scratch, "scratch-1")
	require.NoError(t, err)
	v, err = showings.ClaimSeats(ctx, "show-1", v, scratch, "scratch-2", time.Now().Add(time.Hour))
	require.NoError(t, err)
	v, err = showings.ReleaseSeats(ctx, "show-1", scratch, "scratch-2")
	require.NoError(t, err)
	v, err = showings.ClaimSeats(ctx, "show-1", v, scratch, "scratch-3", time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(5), v)

	seat := []domain.SeatCoord{{Section: "A", Row: 1, Col: 1}}
	deadline := time.Now().Add(150 * time.Millisecond)

	// First user claims the seat against version 5
	v, err = showings.ClaimSeats(ctx, "show-1", v, seat, "hold-u1", deadline)
	require.NoError(t, err)
	assert.Equal(t, int64(6), v)

	hold := &domain.Hold{
		ID:        "hold-u1",
		UserID:    "user-1",
		ShowingID: "show-1",
		Status:    domain.HoldStatusHeld,
		Seats:     []domain.HeldSeat{{Coord: seat[0], Label: seat[0].Label(), PriceCents: 1500}},
		ExpiresAt: &deadline,
		CreatedAt: time.Now(),
	}
	require.NoError(t, holds.Create(ctx, hold))

	// Second user contests the same seat before the deadline and loses
	_, err = showings.ClaimSeats(ctx, "show-1", v, seat, "hold-u2", time.Now().Add(time.Minute))
	var conflict *domain.SeatConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, []string{"A-R1C1"}, conflict.Seats)

	// Sweeping before the deadline must not touch the live hold
	reaper := NewReaper(showings, holds, nil, &ReaperConfig{ScanInterval: time.Hour, BatchSize: 100})
	reaper.Sweep(ctx)
	mid, err := showings.GetShowing(ctx, "show-1")
	require.NoError(t, err)
	assert.Equal(t, int64(6), mid.Version)

	// After the deadline the sweep reclaims the seat
	time.Sleep(200 * time.Millisecond)
	reaper.Sweep(ctx)

	after, err := showings.GetShowing(ctx, "show-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), after.Version)
	cell, ok := after.Cell(seat[0])
	require.True(t, ok)
	assert.True(t, cell.IsAvailable())

	// Second user now takes the seat
	v, err = showings.ClaimSeats(ctx, "show-1", after.Version, seat, "hold-u2", time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(8), v)
}

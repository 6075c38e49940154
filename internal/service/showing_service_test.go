package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"booking-engine/internal/domain"
	"booking-engine/internal/dto"
	"booking-engine/internal/repository"
)

func TestShowingService_CreateShowing(t *testing.T) {
	svc := NewShowingService(repository.NewMemoryShowingStore())

	resp, err := svc.CreateShowing(context.Background(), &dto.CreateShowingRequest{
		MovieTitle:  "Movie",
		TheatreName: "Theatre",
		HallName:    "Hall 1",
		StartsAt:    time.Now().Add(24 * time.Hour),
		SeatPrice:   1500,
		Layout: []dto.SectionRequest{
			{Name: "A", Rows: 2, Cols: 3},
			{Name: "B", Rows: 1, Cols: 2},
		},
	})
	if err != nil {
		t.Fatalf("CreateShowing failed: %v", err)
	}
	if resp.ID == "" {
		t.Error("expected a generated showing id")
	}
	if resp.SeatCount != 8 {
		t.Errorf("expected 8 seats, got %d", resp.SeatCount)
	}
	if resp.Version != 0 {
		t.Errorf("a fresh showing starts at version 0, got %d", resp.Version)
	}
}

func TestShowingService_GetShowing_NotFound(t *testing.T) {
	svc := NewShowingService(repository.NewMemoryShowingStore())

	_, err := svc.GetShowing(context.Background(), "missing")
	if !errors.Is(err, domain.ErrShowingNotFound) {
		t.Errorf("expected ErrShowingNotFound, got %v", err)
	}
}

func TestShowingService_GetSeatMap(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryShowingStore()
	svc := NewShowingService(store)

	created, err := svc.CreateShowing(ctx, &dto.CreateShowingRequest{
		MovieTitle:  "Movie",
		TheatreName: "Theatre",
		HallName:    "Hall 1",
		StartsAt:    time.Now().Add(24 * time.Hour),
		SeatPrice:   1500,
		Layout:      []dto.SectionRequest{{Name: "A", Rows: 2, Cols: 2}},
	})
	if err != nil {
		t.Fatalf("CreateShowing failed: %v", err)
	}

	deadline := time.Now().Add(10 * time.Minute)
	held := []domain.SeatCoord{{Section: "A", Row: 1, Col: 2}}
	if _, err := store.ClaimSeats(ctx, created.ID, 0, held, "hold-1", deadline); err != nil {
		t.Fatalf("ClaimSeats failed: %v", err)
	}

	seatMap, err := svc.GetSeatMap(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetSeatMap failed: %v", err)
	}
	if seatMap.Version != 1 {
		t.Errorf("expected version 1, got %d", seatMap.Version)
	}
	if len(seatMap.Seats) != 4 {
		t.Fatalf("expected 4 seats, got %d", len(seatMap.Seats))
	}

	// Layout declaration order: row-major within each section
	wantOrder := []dto.SeatMapCell{
		{Section: "A", Row: 1, Col: 1, State: "AVAILABLE"},
		{Section: "A", Row: 1, Col: 2, State: "HELD"},
		{Section: "A", Row: 2, Col: 1, State: "AVAILABLE"},
		{Section: "A", Row: 2, Col: 2, State: "AVAILABLE"},
	}
	for i, want := range wantOrder {
		if seatMap.Seats[i] != want {
			t.Errorf("seat %d: got %+v, want %+v", i, seatMap.Seats[i], want)
		}
	}
}

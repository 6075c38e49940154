package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"booking-engine/internal/domain"
	"booking-engine/internal/dto"
	"booking-engine/internal/payment"
)

func heldHold(holdID, userID string, deadline time.Time) *domain.Hold {
	d := deadline
	return &domain.Hold{
		ID:        holdID,
		UserID:    userID,
		ShowingID: "show-1",
		Status:    domain.HoldStatusHeld,
		Seats: []domain.HeldSeat{
			{Coord: domain.SeatCoord{Section: "A", Row: 1, Col: 1}, Label: "A-R1C1", PriceCents: 1500},
			{Coord: domain.SeatCoord{Section: "A", Row: 1, Col: 2}, Label: "A-R1C2", PriceCents: 1500},
		},
		TotalCents: 3000,
		ExpiresAt:  &d,
		CreatedAt:  time.Now(),
	}
}

func TestConfirmService_ConfirmHold(t *testing.T) {
	future := time.Now().Add(5 * time.Minute)
	past := time.Now().Add(-5 * time.Minute)

	tests := []struct {
		name       string
		holdID     string
		userID     string
		req        *dto.ConfirmHoldRequest
		setupMocks func(*MockShowingStore, *MockHoldStore, *MockGateway)
		wantErr    error
	}{
		{
			name:   "successful confirmation",
			holdID: "hold-1",
			userID: "user-1",
			req:    &dto.ConfirmHoldRequest{PaymentRef: "pay-ok"},
			setupMocks: func(showings *MockShowingStore, holds *MockHoldStore, gateway *MockGateway) {
				holds.GetByIDFunc = func(ctx context.Context, holdID string) (*domain.Hold, error) {
					return heldHold(holdID, "user-1", future), nil
				}
				showings.GetShowingFunc = func(ctx context.Context, showingID string) (*domain.Showing, error) {
					return testShowing(showingID), nil
				}
				showings.ReserveSeatsFunc = func(ctx context.Context, showingID string, coords []domain.SeatCoord, holdID, bookingID string) (int64, error) {
					if bookingID != holdID {
						t.Errorf("the hold id doubles as the booking id, got booking %s for hold %s", bookingID, holdID)
					}
					return 2, nil
				}
			},
		},
		{
			name:    "missing payment ref",
			holdID:  "hold-1",
			userID:  "user-1",
			req:     &dto.ConfirmHoldRequest{},
			wantErr: domain.ErrPaymentNotCompleted,
		},
		{
			name:   "hold not found",
			holdID: "missing",
			userID: "user-1",
			req:    &dto.ConfirmHoldRequest{PaymentRef: "pay-missing"},
			setupMocks: func(showings *MockShowingStore, holds *MockHoldStore, gateway *MockGateway) {
				holds.GetByIDFunc = func(ctx context.Context, holdID string) (*domain.Hold, error) {
					return nil, domain.ErrHoldNotFound
				}
			},
			wantErr: domain.ErrHoldNotFound,
		},
		{
			name:   "hold owned by someone else",
			holdID: "hold-1",
			userID: "user-2",
			req:    &dto.ConfirmHoldRequest{PaymentRef: "pay-other"},
			setupMocks: func(showings *MockShowingStore, holds *MockHoldStore, gateway *MockGateway) {
				holds.GetByIDFunc = func(ctx context.Context, holdID string) (*domain.Hold, error) {
					return heldHold(holdID, "user-1", future), nil
				}
			},
			wantErr: domain.ErrHoldNotOwned,
		},
		{
			name:   "cancelled hold",
			holdID: "hold-1",
			userID: "user-1",
			req:    &dto.ConfirmHoldRequest{PaymentRef: "pay-cancelled"},
			setupMocks: func(showings *MockShowingStore, holds *MockHoldStore, gateway *MockGateway) {
				holds.GetByIDFunc = func(ctx context.Context, holdID string) (*domain.Hold, error) {
					h := heldHold(holdID, "user-1", future)
					h.Status = domain.HoldStatusCancelled
					h.ExpiresAt = nil
					return h, nil
				}
			},
			wantErr: domain.ErrSeatsNoLongerHeld,
		},
		{
			name:   "expired hold",
			holdID: "hold-1",
			userID: "user-1",
			req:    &dto.ConfirmHoldRequest{PaymentRef: "pay-expired"},
			setupMocks: func(showings *MockShowingStore, holds *MockHoldStore, gateway *MockGateway) {
				holds.GetByIDFunc = func(ctx context.Context, holdID string) (*domain.Hold, error) {
					return heldHold(holdID, "user-1", past), nil
				}
			},
			wantErr: domain.ErrHoldExpired,
		},
		{
			name:   "payment not completed",
			holdID: "hold-1",
			userID: "user-1",
			req:    &dto.ConfirmHoldRequest{PaymentRef: "pay-pending"},
			setupMocks: func(showings *MockShowingStore, holds *MockHoldStore, gateway *MockGateway) {
				holds.GetByIDFunc = func(ctx context.Context, holdID string) (*domain.Hold, error) {
					return heldHold(holdID, "user-1", future), nil
				}
				gateway.GetPaymentFunc = func(ctx context.Context, paymentRef string) (*payment.Status, error) {
					return &payment.Status{PaymentRef: paymentRef, Paid: false, State: "requires_payment_method"}, nil
				}
			},
			wantErr: domain.ErrPaymentNotCompleted,
		},
		{
			name:   "captured amount below hold total",
			holdID: "hold-1",
			userID: "user-1",
			req:    &dto.ConfirmHoldRequest{PaymentRef: "pay-short"},
			setupMocks: func(showings *MockShowingStore, holds *MockHoldStore, gateway *MockGateway) {
				holds.GetByIDFunc = func(ctx context.Context, holdID string) (*domain.Hold, error) {
					return heldHold(holdID, "user-1", future), nil
				}
				gateway.GetPaymentFunc = func(ctx context.Context, paymentRef string) (*payment.Status, error) {
					return &payment.Status{PaymentRef: paymentRef, Paid: true, State: "succeeded", AmountCents: 1500}, nil
				}
			},
			wantErr: domain.ErrPaymentNotCompleted,
		},
		{
			name:   "seats lost before reserve",
			holdID: "hold-1",
			userID: "user-1",
			req:    &dto.ConfirmHoldRequest{PaymentRef: "pay-lost"},
			setupMocks: func(showings *MockShowingStore, holds *MockHoldStore, gateway *MockGateway) {
				holds.GetByIDFunc = func(ctx context.Context, holdID string) (*domain.Hold, error) {
					return heldHold(holdID, "user-1", future), nil
				}
				showings.GetShowingFunc = func(ctx context.Context, showingID string) (*domain.Showing, error) {
					return testShowing(showingID), nil
				}
				showings.ReserveSeatsFunc = func(ctx context.Context, showingID string, coords []domain.SeatCoord, holdID, bookingID string) (int64, error) {
					return 0, &domain.SeatConflictError{ShowingID: showingID, Seats: []string{"A-R1C1"}}
				}
			},
			wantErr: domain.ErrSeatsNoLongerHeld,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			showings := &MockShowingStore{}
			holds := &MockHoldStore{}
			gateway := &MockGateway{}
			if tt.setupMocks != nil {
				tt.setupMocks(showings, holds, gateway)
			}

			svc := NewConfirmService(showings, holds, gateway, nil, nil)
			resp, err := svc.ConfirmHold(context.Background(), tt.holdID, tt.userID, tt.req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.BookingID != tt.holdID {
				t.Errorf("expected booking id %s, got %s", tt.holdID, resp.BookingID)
			}
			if resp.ConfirmationCode == "" {
				t.Error("expected a confirmation code")
			}
			if len(resp.Seats) != 2 || resp.Seats[0] != "A-R1C1" {
				t.Errorf("unexpected seats: %v", resp.Seats)
			}
			if resp.TotalCents != 3000 {
				t.Errorf("expected total 3000, got %d", resp.TotalCents)
			}
		})
	}
}

func TestConfirmService_ConfirmHold_ReplaysSamePaymentRef(t *testing.T) {
	future := time.Now().Add(5 * time.Minute)
	var reserveCalls int32

	showings := &MockShowingStore{
		GetShowingFunc: func(ctx context.Context, showingID string) (*domain.Showing, error) {
			return testShowing(showingID), nil
		},
		ReserveSeatsFunc: func(ctx context.Context, showingID string, coords []domain.SeatCoord, holdID, bookingID string) (int64, error) {
			atomic.AddInt32(&reserveCalls, 1)
			return 2, nil
		},
	}
	holds := &MockHoldStore{
		GetByIDFunc: func(ctx context.Context, holdID string) (*domain.Hold, error) {
			return heldHold(holdID, "user-1", future), nil
		},
	}

	svc := NewConfirmService(showings, holds, &MockGateway{}, nil, nil)
	req := &dto.ConfirmHoldRequest{PaymentRef: "pay-replay"}

	first, err := svc.ConfirmHold(context.Background(), "hold-1", "user-1", req)
	if err != nil {
		t.Fatalf("first confirm failed: %v", err)
	}

	second, err := svc.ConfirmHold(context.Background(), "hold-1", "user-1", req)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	if second.ConfirmationCode != first.ConfirmationCode || second.BookingID != first.BookingID {
		t.Errorf("replay must return the original result: first %+v, second %+v", first, second)
	}
	if n := atomic.LoadInt32(&reserveCalls); n != 1 {
		t.Errorf("replay must not touch the grid again, got %d reserve calls", n)
	}
}

func TestConfirmService_ConfirmHold_ReplayByOtherUserRejected(t *testing.T) {
	future := time.Now().Add(5 * time.Minute)

	showings := &MockShowingStore{
		GetShowingFunc: func(ctx context.Context, showingID string) (*domain.Showing, error) {
			return testShowing(showingID), nil
		},
	}
	holds := &MockHoldStore{
		GetByIDFunc: func(ctx context.Context, holdID string) (*domain.Hold, error) {
			return heldHold(holdID, "user-1", future), nil
		},
	}

	svc := NewConfirmService(showings, holds, &MockGateway{}, nil, nil)
	req := &dto.ConfirmHoldRequest{PaymentRef: "pay-shared"}

	first, err := svc.ConfirmHold(context.Background(), "hold-1", "user-1", req)
	if err != nil {
		t.Fatalf("first confirm failed: %v", err)
	}

	// A different caller presenting the completed reference must not
	// receive the owner's booking
	stolen, err := svc.ConfirmHold(context.Background(), "hold-1", "user-2", req)
	if !errors.Is(err, domain.ErrHoldNotOwned) {
		t.Errorf("expected ErrHoldNotOwned, got %v", err)
	}
	if stolen != nil {
		t.Errorf("no booking may be returned to another user, got %+v", stolen)
	}

	// The owner still replays the same result
	replay, err := svc.ConfirmHold(context.Background(), "hold-1", "user-1", req)
	if err != nil || replay.ConfirmationCode != first.ConfirmationCode {
		t.Errorf("owner replay must be unaffected, got %+v err=%v", replay, err)
	}
}

func TestConfirmService_ConfirmHold_ReplaysFromConfirmedRecord(t *testing.T) {
	confirmedAt := time.Now().Add(-time.Hour)
	confirmed := &domain.Hold{
		ID:               "hold-1",
		UserID:           "user-1",
		ShowingID:        "show-1",
		Status:           domain.HoldStatusConfirmed,
		Seats:            heldHold("hold-1", "user-1", time.Now()).Seats,
		TotalCents:       3000,
		PaymentRef:       "pay-done",
		ConfirmationCode: "cafe0123",
		ConfirmedAt:      &confirmedAt,
	}

	showings := &MockShowingStore{
		GetShowingFunc: func(ctx context.Context, showingID string) (*domain.Showing, error) {
			return testShowing(showingID), nil
		},
	}
	holds := &MockHoldStore{
		GetByIDFunc: func(ctx context.Context, holdID string) (*domain.Hold, error) {
			return confirmed.Clone(), nil
		},
	}
	svc := NewConfirmService(showings, holds, &MockGateway{}, nil, nil)

	// Same payment reference replays the stored booking, for instance
	// after a process restart emptied the in-memory guard
	resp, err := svc.ConfirmHold(context.Background(), "hold-1", "user-1", &dto.ConfirmHoldRequest{PaymentRef: "pay-done"})
	if err != nil {
		t.Fatalf("replay from record failed: %v", err)
	}
	if resp.ConfirmationCode != "cafe0123" {
		t.Errorf("expected the stored confirmation code, got %s", resp.ConfirmationCode)
	}

	// A different reference against a completed booking is rejected
	_, err = svc.ConfirmHold(context.Background(), "hold-1", "user-1", &dto.ConfirmHoldRequest{PaymentRef: "pay-new"})
	if !errors.Is(err, domain.ErrHoldNotActive) {
		t.Errorf("expected ErrHoldNotActive, got %v", err)
	}
}

func TestConfirmService_ConfirmHold_SingleFlightPerPaymentRef(t *testing.T) {
	future := time.Now().Add(5 * time.Minute)
	gatewayEntered := make(chan struct{})
	gatewayRelease := make(chan struct{})

	showings := &MockShowingStore{
		GetShowingFunc: func(ctx context.Context, showingID string) (*domain.Showing, error) {
			return testShowing(showingID), nil
		},
		ReserveSeatsFunc: func(ctx context.Context, showingID string, coords []domain.SeatCoord, holdID, bookingID string) (int64, error) {
			return 2, nil
		},
	}
	holds := &MockHoldStore{
		GetByIDFunc: func(ctx context.Context, holdID string) (*domain.Hold, error) {
			return heldHold(holdID, "user-1", future), nil
		},
	}
	gateway := &MockGateway{
		GetPaymentFunc: func(ctx context.Context, paymentRef string) (*payment.Status, error) {
			close(gatewayEntered)
			<-gatewayRelease
			return &payment.Status{PaymentRef: paymentRef, Paid: true, State: "succeeded"}, nil
		},
	}

	svc := NewConfirmService(showings, holds, gateway, nil, nil)
	req := &dto.ConfirmHoldRequest{PaymentRef: "pay-flight"}

	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.ConfirmHold(context.Background(), "hold-1", "user-1", req)
		firstDone <- err
	}()

	<-gatewayEntered

	// The first confirmation holds the slot for this payment reference
	_, err := svc.ConfirmHold(context.Background(), "hold-1", "user-1", req)
	if !errors.Is(err, domain.ErrConfirmationInProgress) {
		t.Errorf("expected ErrConfirmationInProgress, got %v", err)
	}

	close(gatewayRelease)
	if err := <-firstDone; err != nil {
		t.Fatalf("first confirm failed: %v", err)
	}

	// Once the first finishes the reference replays instead of blocking
	resp, err := svc.ConfirmHold(context.Background(), "hold-1", "user-1", req)
	if err != nil {
		t.Fatalf("replay after flight failed: %v", err)
	}
	if resp.BookingID != "hold-1" {
		t.Errorf("expected booking hold-1, got %s", resp.BookingID)
	}
}

func TestConfirmService_ConfirmHold_FailureReleasesGuard(t *testing.T) {
	future := time.Now().Add(5 * time.Minute)
	paid := false

	showings := &MockShowingStore{
		GetShowingFunc: func(ctx context.Context, showingID string) (*domain.Showing, error) {
			return testShowing(showingID), nil
		},
		ReserveSeatsFunc: func(ctx context.Context, showingID string, coords []domain.SeatCoord, holdID, bookingID string) (int64, error) {
			return 2, nil
		},
	}
	holds := &MockHoldStore{
		GetByIDFunc: func(ctx context.Context, holdID string) (*domain.Hold, error) {
			return heldHold(holdID, "user-1", future), nil
		},
	}
	gateway := &MockGateway{
		GetPaymentFunc: func(ctx context.Context, paymentRef string) (*payment.Status, error) {
			return &payment.Status{PaymentRef: paymentRef, Paid: paid}, nil
		},
	}

	svc := NewConfirmService(showings, holds, gateway, nil, nil)
	req := &dto.ConfirmHoldRequest{PaymentRef: "pay-retry"}

	_, err := svc.ConfirmHold(context.Background(), "hold-1", "user-1", req)
	if !errors.Is(err, domain.ErrPaymentNotCompleted) {
		t.Fatalf("expected ErrPaymentNotCompleted, got %v", err)
	}

	// The failed attempt must not poison the reference for a retry
	paid = true
	resp, err := svc.ConfirmHold(context.Background(), "hold-1", "user-1", req)
	if err != nil {
		t.Fatalf("retry after failure got: %v", err)
	}
	if resp.BookingID != "hold-1" {
		t.Errorf("expected booking hold-1, got %s", resp.BookingID)
	}
}

package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"booking-engine/internal/domain"
	"booking-engine/internal/dto"
	"booking-engine/internal/logger"
	"booking-engine/internal/metrics"
	"booking-engine/internal/payment"
	"booking-engine/internal/repository"
	"booking-engine/internal/telemetry"
)

// ConfirmService turns an active hold into a confirmed booking
type ConfirmService interface {
	// ConfirmHold verifies payment and reserves the held seats. Repeat
	// calls with the same payment reference return the same booking.
	ConfirmHold(ctx context.Context, holdID, userID string, req *dto.ConfirmHoldRequest) (*dto.BookingConfirmationResponse, error)
}

// confirmService implements ConfirmService
type confirmService struct {
	showings       repository.ShowingStore
	holds          repository.HoldStore
	gateway        payment.Gateway
	eventPublisher EventPublisher
	guard          *confirmGuard
}

// ConfirmServiceConfig contains configuration for the confirm service
type ConfirmServiceConfig struct {
	// ResultRetention bounds how long completed confirmations are kept
	// for replay before the persistent record takes over
	ResultRetention time.Duration
}

// NewConfirmService creates a new confirm service
func NewConfirmService(
	showings repository.ShowingStore,
	holds repository.HoldStore,
	gateway payment.Gateway,
	eventPublisher EventPublisher,
	cfg *ConfirmServiceConfig,
) ConfirmService {
	retention := 24 * time.Hour
	if cfg != nil && cfg.ResultRetention > 0 {
		retention = cfg.ResultRetention
	}
	if eventPublisher == nil {
		eventPublisher = NewNoOpEventPublisher()
	}
	return &confirmService{
		showings:       showings,
		holds:          holds,
		gateway:        gateway,
		eventPublisher: eventPublisher,
		guard:          newConfirmGuard(retention),
	}
}

// ConfirmHold verifies payment and reserves the held seats
func (s *confirmService) ConfirmHold(ctx context.Context, holdID, userID string, req *dto.ConfirmHoldRequest) (*dto.BookingConfirmationResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.confirm.confirm_hold")
	defer span.End()

	if req == nil || req.PaymentRef == "" {
		span.SetStatus(codes.Error, "missing payment ref")
		return nil, domain.ErrPaymentNotCompleted
	}

	span.SetAttributes(
		attribute.String("hold_id", holdID),
		attribute.String("user_id", userID),
		attribute.String("payment_ref", req.PaymentRef),
	)

	prior, inFlight, err := s.guard.begin(req.PaymentRef, userID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if inFlight {
		span.SetStatus(codes.Error, "confirmation in progress")
		return nil, domain.ErrConfirmationInProgress
	}
	if prior != nil {
		metrics.RecordConfirmReplay(ctx, prior.BookingID)
		span.SetStatus(codes.Ok, "replayed")
		return prior, nil
	}

	// The slot is ours. Every exit path below must either record the
	// result or release the marker so the reference can be retried.
	result, err := s.confirm(ctx, holdID, userID, req.PaymentRef)
	if err != nil {
		s.guard.fail(req.PaymentRef)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.guard.succeed(req.PaymentRef, userID, result)
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (s *confirmService) confirm(ctx context.Context, holdID, userID, paymentRef string) (*dto.BookingConfirmationResponse, error) {
	now := time.Now()

	hold, err := s.holds.GetByID(ctx, holdID)
	if err != nil {
		return nil, err
	}
	if hold.UserID != userID {
		return nil, domain.ErrHoldNotOwned
	}

	switch hold.Status {
	case domain.HoldStatusConfirmed:
		// A completed booking with the same reference replays its result
		if hold.PaymentRef == paymentRef {
			return s.summaryFromRecord(ctx, hold)
		}
		return nil, domain.ErrHoldNotActive
	case domain.HoldStatusCancelled:
		return nil, domain.ErrSeatsNoLongerHeld
	}

	if hold.IsExpired(now) {
		return nil, domain.ErrHoldExpired
	}

	status, err := s.gateway.GetPayment(ctx, paymentRef)
	if err != nil {
		return nil, fmt.Errorf("failed to look up payment %s: %w", paymentRef, err)
	}
	if !status.Paid {
		return nil, domain.ErrPaymentNotCompleted
	}
	// Gateways that do not report captured amounts return zero
	if status.AmountCents > 0 && status.AmountCents < hold.TotalCents {
		return nil, domain.ErrPaymentNotCompleted
	}

	showing, err := s.showings.GetShowing(ctx, hold.ShowingID)
	if err != nil {
		return nil, err
	}

	// The hold record doubles as the booking record
	bookingID := hold.ID
	if _, err := s.showings.ReserveSeats(ctx, hold.ShowingID, hold.Coords(), hold.ID, bookingID); err != nil {
		if errors.Is(err, domain.ErrSeatConflict) {
			return nil, domain.ErrSeatsNoLongerHeld
		}
		return nil, err
	}

	code := generateConfirmationCode()
	if err := s.holds.Confirm(ctx, hold.ID, paymentRef, code, now); err != nil {
		// The grid already moved to reserved; a non-HELD record here means
		// the stores disagree and needs operator attention.
		logger.Get().Error(fmt.Sprintf("Hold %s reserved on grid but record transition failed: %v", hold.ID, err))
		return nil, fmt.Errorf("failed to finalize booking %s: %w", bookingID, err)
	}

	summary := &domain.BookingSummary{
		BookingID:        bookingID,
		ConfirmationCode: code,
		MovieTitle:       showing.MovieTitle,
		TheatreName:      showing.TheatreName,
		HallName:         showing.HallName,
		ShowStartsAt:     showing.StartsAt,
		Seats:            hold.SeatLabels(),
		TotalCents:       hold.TotalCents,
		PaymentRef:       paymentRef,
	}

	if err := s.eventPublisher.PublishBookingConfirmed(ctx, summary); err != nil {
		logger.Get().Warn(fmt.Sprintf("Failed to publish booking confirmed event for %s: %v", bookingID, err))
	}
	metrics.RecordConfirmation(ctx, hold.ShowingID, now.Sub(hold.CreatedAt).Seconds())

	return dto.ConfirmationFromDomain(summary), nil
}

// generateConfirmationCode generates a random confirmation code
func generateConfirmationCode() string {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		return uuid.New().String()[:8]
	}
	return hex.EncodeToString(bytes)
}

// summaryFromRecord rebuilds a confirmation response from a completed
// booking record
func (s *confirmService) summaryFromRecord(ctx context.Context, hold *domain.Hold) (*dto.BookingConfirmationResponse, error) {
	showing, err := s.showings.GetShowing(ctx, hold.ShowingID)
	if err != nil {
		return nil, err
	}

	metrics.RecordConfirmReplay(ctx, hold.ShowingID)
	return dto.ConfirmationFromDomain(&domain.BookingSummary{
		BookingID:        hold.ID,
		ConfirmationCode: hold.ConfirmationCode,
		MovieTitle:       showing.MovieTitle,
		TheatreName:      showing.TheatreName,
		HallName:         showing.HallName,
		ShowStartsAt:     showing.StartsAt,
		Seats:            hold.SeatLabels(),
		TotalCents:       hold.TotalCents,
		PaymentRef:       hold.PaymentRef,
	}), nil
}

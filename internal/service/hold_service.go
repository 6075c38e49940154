package service

import (
	"context"
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
	"booking-engine/internal/repository"
	"booking-engine/internal/telemetry"
)

// HoldService defines the interface for hold lifecycle business logic
type HoldService interface {
	// HoldSeats claims a set of seats for a user, all or nothing
	HoldSeats(ctx context.Context, userID string, req *dto.HoldSeatsRequest) (*dto.HoldResponse, error)

	// GetHold retrieves a hold owned by the caller
	GetHold(ctx context.Context, holdID, userID string) (*dto.HoldResponse, error)

	// ReleaseHold cancels an active hold and frees its seats
	ReleaseHold(ctx context.Context, holdID, userID string) (*dto.ReleaseHoldResponse, error)

	// GetActiveHolds retrieves the caller's unexpired holds
	GetActiveHolds(ctx context.Context, userID string) ([]*dto.HoldResponse, error)

	// GetUserHolds retrieves the caller's holds and bookings, newest first
	GetUserHolds(ctx context.Context, userID string, limit, offset int) (*dto.PaginatedHoldsResponse, error)
}

// holdService implements HoldService
type holdService struct {
	showings       repository.ShowingStore
	holds          repository.HoldStore
	eventPublisher EventPublisher
	holdTTL        time.Duration
	maxSeats       int
}

// HoldServiceConfig contains configuration for the hold service
type HoldServiceConfig struct {
	HoldTTL         time.Duration
	MaxSeatsPerHold int
}

// NewHoldService creates a new hold service
func NewHoldService(
	showings repository.ShowingStore,
	holds repository.HoldStore,
	eventPublisher EventPublisher,
	cfg *HoldServiceConfig,
) HoldService {
	ttl := 10 * time.Minute
	maxSeats := 10
	if cfg != nil {
		if cfg.HoldTTL > 0 {
			ttl = cfg.HoldTTL
		}
		if cfg.MaxSeatsPerHold > 0 {
			maxSeats = cfg.MaxSeatsPerHold
		}
	}
	if eventPublisher == nil {
		eventPublisher = NewNoOpEventPublisher()
	}
	return &holdService{
		showings:       showings,
		holds:          holds,
		eventPublisher: eventPublisher,
		holdTTL:        ttl,
		maxSeats:       maxSeats,
	}
}

// HoldSeats claims a set of seats for a user, all or nothing
func (s *holdService) HoldSeats(ctx context.Context, userID string, req *dto.HoldSeatsRequest) (*dto.HoldResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.hold.hold_seats")
	defer span.End()

	if req == nil || req.ShowingID == "" {
		span.SetStatus(codes.Error, "invalid showing_id")
		return nil, domain.ErrShowingNotFound
	}
	coords, err := coordsFromRequest(req.Seats, s.maxSeats)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("showing_id", req.ShowingID),
		attribute.Int("seats", len(coords)),
	)

	showing, err := s.showings.GetShowing(ctx, req.ShowingID)
	if err != nil {
		return nil, err
	}
	if showing.Cancelled {
		span.SetStatus(codes.Error, "showing cancelled")
		return nil, domain.ErrShowingCancelled
	}
	if err := showing.ValidateCoords(coords); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// One active hold per user per showing
	existing, err := s.holds.GetActiveByUserAndShowing(ctx, userID, req.ShowingID, time.Now())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if existing != nil {
		span.SetStatus(codes.Error, "duplicate hold")
		return nil, domain.ErrDuplicateHold
	}

	holdID := uuid.New().String()
	now := time.Now()
	deadline := now.Add(s.holdTTL)

	newVersion, err := s.showings.ClaimSeats(ctx, req.ShowingID, showing.Version, coords, holdID, deadline)
	if err != nil {
		if errors.Is(err, domain.ErrSeatConflict) {
			metrics.RecordSeatConflict(ctx, req.ShowingID)
		}
		if errors.Is(err, domain.ErrVersionConflict) {
			metrics.RecordVersionConflict(ctx, req.ShowingID)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int64("grid_version", newVersion))

	seats := make([]domain.HeldSeat, len(coords))
	var total int64
	for i, coord := range coords {
		seats[i] = domain.HeldSeat{
			Coord:      coord,
			Label:      coord.Label(),
			PriceCents: showing.SeatPrice,
		}
		total += showing.SeatPrice
	}

	hold := &domain.Hold{
		ID:         holdID,
		UserID:     userID,
		ShowingID:  req.ShowingID,
		Status:     domain.HoldStatusHeld,
		Seats:      seats,
		TotalCents: total,
		ExpiresAt:  &deadline,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.holds.Create(ctx, hold); err != nil {
		// Free the claimed seats before surfacing the failure. A release
		// failure here leaves the seats to the expiry reaper.
		if _, relErr := s.showings.ReleaseSeats(ctx, req.ShowingID, coords, holdID); relErr != nil {
			logger.Get().Error(fmt.Sprintf("Failed to roll back seat claim for hold %s: %v", holdID, relErr))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := s.eventPublisher.PublishHoldCreated(ctx, hold); err != nil {
		logger.Get().Warn(fmt.Sprintf("Failed to publish hold created event for %s: %v", holdID, err))
	}
	metrics.RecordHoldCreated(ctx, req.ShowingID, len(coords))

	span.SetStatus(codes.Ok, "")
	return dto.HoldFromDomain(hold), nil
}

// GetHold retrieves a hold owned by the caller
func (s *holdService) GetHold(ctx context.Context, holdID, userID string) (*dto.HoldResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.hold.get_hold")
	defer span.End()

	span.SetAttributes(
		attribute.String("hold_id", holdID),
		attribute.String("user_id", userID),
	)

	hold, err := s.holds.GetByID(ctx, holdID)
	if err != nil {
		return nil, err
	}
	if hold.UserID != userID {
		span.SetStatus(codes.Error, "hold not owned")
		return nil, domain.ErrHoldNotOwned
	}

	span.SetStatus(codes.Ok, "")
	return dto.HoldFromDomain(hold), nil
}

// ReleaseHold cancels an active hold and frees its seats
func (s *holdService) ReleaseHold(ctx context.Context, holdID, userID string) (*dto.ReleaseHoldResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.hold.release_hold")
	defer span.End()

	span.SetAttributes(
		attribute.String("hold_id", holdID),
		attribute.String("user_id", userID),
	)

	hold, err := s.holds.GetByID(ctx, holdID)
	if err != nil {
		return nil, err
	}
	if hold.UserID != userID {
		span.SetStatus(codes.Error, "hold not owned")
		return nil, domain.ErrHoldNotOwned
	}
	if hold.Status != domain.HoldStatusHeld {
		span.SetStatus(codes.Error, "hold not active")
		return nil, domain.ErrHoldNotActive
	}

	// Free the grid first. A conflict means the reaper already reclaimed
	// these seats, which leaves only the record to cancel.
	if _, err := s.showings.ReleaseSeats(ctx, hold.ShowingID, hold.Coords(), hold.ID); err != nil {
		if !errors.Is(err, domain.ErrSeatConflict) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	if err := s.holds.Cancel(ctx, hold.ID, "released by user", time.Now()); err != nil {
		// Another path already moved the record out of HELD
		if !errors.Is(err, domain.ErrHoldNotActive) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	if err := s.eventPublisher.PublishHoldReleased(ctx, hold); err != nil {
		logger.Get().Warn(fmt.Sprintf("Failed to publish hold released event for %s: %v", hold.ID, err))
	}
	metrics.RecordHoldReleased(ctx, hold.ShowingID, time.Since(hold.CreatedAt).Seconds())

	span.SetStatus(codes.Ok, "")
	return &dto.ReleaseHoldResponse{
		HoldID:  hold.ID,
		Status:  domain.HoldStatusCancelled.String(),
		Message: "hold released",
	}, nil
}

// GetActiveHolds retrieves the caller's unexpired holds
func (s *holdService) GetActiveHolds(ctx context.Context, userID string) ([]*dto.HoldResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.hold.get_active_holds")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID))

	holds, err := s.holds.GetActiveByUser(ctx, userID, time.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	responses := make([]*dto.HoldResponse, len(holds))
	for i, h := range holds {
		responses[i] = dto.HoldFromDomain(h)
	}

	span.SetStatus(codes.Ok, "")
	return responses, nil
}

// GetUserHolds retrieves the caller's holds and bookings, newest first
func (s *holdService) GetUserHolds(ctx context.Context, userID string, limit, offset int) (*dto.PaginatedHoldsResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.hold.get_user_holds")
	defer span.End()

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.Int("limit", limit),
		attribute.Int("offset", offset),
	)

	holds, err := s.holds.GetByUser(ctx, userID, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	responses := make([]*dto.HoldResponse, len(holds))
	for i, h := range holds {
		responses[i] = dto.HoldFromDomain(h)
	}

	span.SetStatus(codes.Ok, "")
	return &dto.PaginatedHoldsResponse{
		Holds:  responses,
		Limit:  limit,
		Offset: offset,
	}, nil
}

// coordsFromRequest validates and converts requested seats
func coordsFromRequest(seats []dto.SeatRef, maxSeats int) ([]domain.SeatCoord, error) {
	if len(seats) == 0 {
		return nil, domain.ErrNoSeatsSelected
	}
	if len(seats) > maxSeats {
		return nil, domain.ErrTooManySeats
	}

	coords := make([]domain.SeatCoord, len(seats))
	seen := make(map[domain.SeatCoord]struct{}, len(seats))
	for i, ref := range seats {
		coord := domain.SeatCoord{Section: ref.Section, Row: ref.Row, Col: ref.Col}
		if _, dup := seen[coord]; dup {
			return nil, domain.ErrDuplicateSeat
		}
		seen[coord] = struct{}{}
		coords[i] = coord
	}
	return coords, nil
}

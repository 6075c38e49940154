package service

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"booking-engine/internal/domain"
	"booking-engine/internal/dto"
	"booking-engine/internal/repository"
	"booking-engine/internal/telemetry"
)

// ShowingService defines showing registration and seat map queries
type ShowingService interface {
	// CreateShowing registers a new showing with a fresh seat grid
	CreateShowing(ctx context.Context, req *dto.CreateShowingRequest) (*dto.ShowingResponse, error)

	// GetShowing retrieves showing details
	GetShowing(ctx context.Context, showingID string) (*dto.ShowingResponse, error)

	// GetSeatMap retrieves a showing's seat availability snapshot
	GetSeatMap(ctx context.Context, showingID string) (*dto.SeatMapResponse, error)
}

// showingService implements ShowingService
type showingService struct {
	showings repository.ShowingStore
}

// NewShowingService creates a new showing service
func NewShowingService(showings repository.ShowingStore) ShowingService {
	return &showingService{showings: showings}
}

// CreateShowing registers a new showing with a fresh seat grid
func (s *showingService) CreateShowing(ctx context.Context, req *dto.CreateShowingRequest) (*dto.ShowingResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.showing.create")
	defer span.End()

	layout := make([]domain.Section, len(req.Layout))
	for i, sec := range req.Layout {
		layout[i] = domain.Section{Name: sec.Name, Rows: sec.Rows, Cols: sec.Cols}
	}

	showing := domain.NewShowing(
		uuid.New().String(),
		req.MovieTitle,
		req.TheatreName,
		req.HallName,
		req.StartsAt,
		req.SeatPrice,
		layout,
	)

	span.SetAttributes(
		attribute.String("showing_id", showing.ID),
		attribute.Int("seat_count", showing.SeatCount()),
	)

	if err := s.showings.CreateShowing(ctx, showing); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return dto.ShowingFromDomain(showing), nil
}

// GetShowing retrieves showing details
func (s *showingService) GetShowing(ctx context.Context, showingID string) (*dto.ShowingResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.showing.get")
	defer span.End()

	span.SetAttributes(attribute.String("showing_id", showingID))

	showing, err := s.showings.GetShowing(ctx, showingID)
	if err != nil {
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return dto.ShowingFromDomain(showing), nil
}

// GetSeatMap retrieves a showing's seat availability snapshot
func (s *showingService) GetSeatMap(ctx context.Context, showingID string) (*dto.SeatMapResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.showing.seat_map")
	defer span.End()

	span.SetAttributes(attribute.String("showing_id", showingID))

	showing, err := s.showings.GetShowing(ctx, showingID)
	if err != nil {
		return nil, err
	}

	// Walk the layout in declaration order so the map is stable
	seats := make([]dto.SeatMapCell, 0, showing.SeatCount())
	for _, section := range showing.Layout {
		for row := 1; row <= section.Rows; row++ {
			for col := 1; col <= section.Cols; col++ {
				coord := domain.SeatCoord{Section: section.Name, Row: row, Col: col}
				cell, ok := showing.Cell(coord)
				if !ok {
					continue
				}
				seats = append(seats, dto.SeatMapCell{
					Section: coord.Section,
					Row:     coord.Row,
					Col:     coord.Col,
					State:   string(cell.State),
				})
			}
		}
	}

	span.SetStatus(codes.Ok, "")
	return &dto.SeatMapResponse{
		ShowingID: showing.ID,
		Version:   showing.Version,
		Seats:     seats,
	}, nil
}

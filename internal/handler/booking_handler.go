package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"booking-engine/internal/domain"
	"booking-engine/internal/dto"
	"booking-engine/internal/service"
	"booking-engine/internal/telemetry"
)

// BookingHandler handles hold and confirmation HTTP requests
type BookingHandler struct {
	holdService    service.HoldService
	confirmService service.ConfirmService
	showingService service.ShowingService
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(
	holdService service.HoldService,
	confirmService service.ConfirmService,
	showingService service.ShowingService,
) *BookingHandler {
	return &BookingHandler{
		holdService:    holdService,
		confirmService: confirmService,
		showingService: showingService,
	}
}

// HoldSeats handles POST /holds
func (h *BookingHandler) HoldSeats(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.hold_seats")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := c.GetString("user_id")
	if userID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "unauthorized",
			Code:  "UNAUTHORIZED",
		})
		return
	}

	var req dto.HoldSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid request",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("showing_id", req.ShowingID),
		attribute.Int("seats", len(req.Seats)),
	)

	result, err := h.holdService.HoldSeats(ctx, userID, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("hold_id", result.ID))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, result)
}

// GetHold handles GET /holds/:id
func (h *BookingHandler) GetHold(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.get_hold")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := c.GetString("user_id")
	if userID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "unauthorized",
			Code:  "UNAUTHORIZED",
		})
		return
	}

	holdID := c.Param("id")
	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("hold_id", holdID),
	)

	result, err := h.holdService.GetHold(ctx, holdID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// ReleaseHold handles DELETE /holds/:id
func (h *BookingHandler) ReleaseHold(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.release_hold")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := c.GetString("user_id")
	if userID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "unauthorized",
			Code:  "UNAUTHORIZED",
		})
		return
	}

	holdID := c.Param("id")
	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("hold_id", holdID),
	)

	result, err := h.holdService.ReleaseHold(ctx, holdID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// ConfirmHold handles POST /holds/:id/confirm
func (h *BookingHandler) ConfirmHold(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.confirm_hold")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := c.GetString("user_id")
	if userID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "unauthorized",
			Code:  "UNAUTHORIZED",
		})
		return
	}

	holdID := c.Param("id")

	var req dto.ConfirmHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid request",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("hold_id", holdID),
		attribute.String("payment_ref", req.PaymentRef),
	)

	result, err := h.confirmService.ConfirmHold(ctx, holdID, userID, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("booking_id", result.BookingID))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// GetUserBookings handles GET /bookings
func (h *BookingHandler) GetUserBookings(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.get_user_bookings")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := c.GetString("user_id")
	if userID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "unauthorized",
			Code:  "UNAUTHORIZED",
		})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.Int("limit", limit),
		attribute.Int("offset", offset),
	)

	result, err := h.holdService.GetUserHolds(ctx, userID, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// GetActiveHolds handles GET /holds
func (h *BookingHandler) GetActiveHolds(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.get_active_holds")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := c.GetString("user_id")
	if userID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "unauthorized",
			Code:  "UNAUTHORIZED",
		})
		return
	}
	span.SetAttributes(attribute.String("user_id", userID))

	holds, err := h.holdService.GetActiveHolds(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, gin.H{"holds": holds})
}

// GetSeatMap handles GET /showings/:id/seats
func (h *BookingHandler) GetSeatMap(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.get_seat_map")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	showingID := c.Param("id")
	span.SetAttributes(attribute.String("showing_id", showingID))

	result, err := h.showingService.GetSeatMap(ctx, showingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// handleError maps domain errors to HTTP responses
func (h *BookingHandler) handleError(c *gin.Context, err error) {
	var seatConflict *domain.SeatConflictError
	var invalidSeat *domain.InvalidSeatError

	switch {
	case errors.Is(err, domain.ErrShowingNotFound),
		errors.Is(err, domain.ErrHoldNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "NOT_FOUND",
		})
	case errors.As(err, &invalidSeat):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_SEAT",
			Seats: []string{invalidSeat.Seat},
		})
	case errors.Is(err, domain.ErrNoSeatsSelected),
		errors.Is(err, domain.ErrTooManySeats),
		errors.Is(err, domain.ErrDuplicateSeat),
		errors.Is(err, domain.ErrInvalidSeat):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REQUEST",
		})
	case errors.Is(err, domain.ErrHoldNotOwned):
		c.JSON(http.StatusForbidden, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "FORBIDDEN",
		})
	case errors.As(err, &seatConflict):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "SEATS_UNAVAILABLE",
			Seats: seatConflict.Seats,
		})
	case errors.Is(err, domain.ErrSeatConflict),
		errors.Is(err, domain.ErrVersionConflict):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "SEATS_UNAVAILABLE",
		})
	case errors.Is(err, domain.ErrShowingCancelled):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "SHOWING_CANCELLED",
		})
	case errors.Is(err, domain.ErrDuplicateHold):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error:   err.Error(),
			Code:    "DUPLICATE_HOLD",
			Message: "You already have an active hold on this showing",
		})
	case errors.Is(err, domain.ErrConfirmationInProgress):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error:   err.Error(),
			Code:    "CONFIRMATION_IN_PROGRESS",
			Message: "A confirmation with this payment reference is already running",
		})
	case errors.Is(err, domain.ErrHoldNotActive):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "HOLD_NOT_ACTIVE",
		})
	case errors.Is(err, domain.ErrHoldExpired),
		errors.Is(err, domain.ErrSeatsNoLongerHeld):
		c.JSON(http.StatusGone, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "EXPIRED",
		})
	case errors.Is(err, domain.ErrPaymentNotCompleted):
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "PAYMENT_NOT_COMPLETED",
		})
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error: "internal server error",
			Code:  "INTERNAL_ERROR",
		})
	}
}

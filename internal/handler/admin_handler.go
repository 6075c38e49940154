package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"booking-engine/internal/domain"
	"booking-engine/internal/dto"
	"booking-engine/internal/service"
	"booking-engine/internal/telemetry"
)

// AdminHandler handles showing administration requests
type AdminHandler struct {
	showingService service.ShowingService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(showingService service.ShowingService) *AdminHandler {
	return &AdminHandler{showingService: showingService}
}

// CreateShowing handles POST /admin/showings
func (h *AdminHandler) CreateShowing(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.admin.create_showing")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.CreateShowingRequest
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
		attribute.String("movie_title", req.MovieTitle),
		attribute.String("hall_name", req.HallName),
	)

	result, err := h.showingService.CreateShowing(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, domain.ErrShowingExists) {
			c.JSON(http.StatusConflict, dto.ErrorResponse{
				Error: err.Error(),
				Code:  "SHOWING_EXISTS",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error: "internal server error",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	span.SetAttributes(attribute.String("showing_id", result.ID))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, result)
}

// GetShowing handles GET /admin/showings/:id
func (h *AdminHandler) GetShowing(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.admin.get_showing")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	showingID := c.Param("id")
	span.SetAttributes(attribute.String("showing_id", showingID))

	result, err := h.showingService.GetShowing(ctx, showingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, domain.ErrShowingNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{
				Error: err.Error(),
				Code:  "NOT_FOUND",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error: "internal server error",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mariocelzo/biblioflow/internal/booking"
	"github.com/mariocelzo/biblioflow/internal/middleware"
	"github.com/mariocelzo/biblioflow/internal/model"
	"github.com/mariocelzo/biblioflow/internal/repository"
)

// SeatHandler covers staff seat administration. Reading seats goes
// through AvailabilityHandler.
type SeatHandler struct {
	Booking *booking.Service
	Seats   *repository.SeatRepo
}

func NewSeatHandler(svc *booking.Service, seats *repository.SeatRepo) *SeatHandler {
	return &SeatHandler{Booking: svc, Seats: seats}
}

type seatCreateReq struct {
	RoomID       uint64 `json:"roomId"`
	Number       string `json:"number"`
	HasPower     bool   `json:"hasPower"`
	HasWindow    bool   `json:"hasWindow"`
	IsAccessible bool   `json:"isAccessible"`
}

// Create handles POST /v1/seats (staff only), for adding a single seat
// with a custom number; bulk numbering lives on the room endpoint.
func (h *SeatHandler) Create(c echo.Context) error {
	var req seatCreateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.RoomID == 0 || req.Number == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "roomId and number are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	seat := &model.Seat{
		RoomID:       req.RoomID,
		Number:       req.Number,
		HasPower:     req.HasPower,
		HasWindow:    req.HasWindow,
		IsAccessible: req.IsAccessible,
		State:        model.SeatAvailable,
		IsActive:     true,
	}
	if err := h.Seats.Create(ctx, seat); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create seat"})
	}
	return c.JSON(http.StatusCreated, seatResp{
		ID: seat.ID, RoomID: seat.RoomID, Number: seat.Number,
		HasPower: seat.HasPower, HasWindow: seat.HasWindow, IsAccessible: seat.IsAccessible,
		State: seat.State, IsActive: seat.IsActive, Available: true,
	})
}

type seatPatchReq struct {
	State  string `json:"state"`
	Reason string `json:"reason"`
	Active *bool  `json:"active"`
}

// Patch handles PATCH /v1/seats/:id (staff only). A state change is a
// manual override and refuses to touch a seat with a live session; an
// active flag change just soft-enables or disables the seat.
func (h *SeatHandler) Patch(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid seat id"})
	}
	var req seatPatchReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.State == "" && req.Active == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to change"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if req.State != "" {
		actorID := middleware.CurrentUserID(c)
		err := h.Booking.OverrideSeatState(ctx, actorID, id, req.State, req.Reason, time.Now())
		switch {
		case errors.Is(err, repository.ErrSeatNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "seat not found"})
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		case err != nil:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not update seat"})
		}
	}

	if req.Active != nil {
		if err := h.Seats.SetActive(ctx, id, *req.Active); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not update seat"})
		}
	}

	seat, err := h.Seats.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrSeatNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "seat not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, seatResp{
		ID: seat.ID, RoomID: seat.RoomID, Number: seat.Number,
		HasPower: seat.HasPower, HasWindow: seat.HasWindow, IsAccessible: seat.IsAccessible,
		State: seat.State, IsActive: seat.IsActive,
		Available: seat.IsActive && seat.State == model.SeatAvailable,
	})
}

package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mariocelzo/biblioflow/internal/model"
	"github.com/mariocelzo/biblioflow/internal/repository"
	"github.com/mariocelzo/biblioflow/internal/timeslot"
)

// RoomHandler covers the staff-facing room and seat administration.
type RoomHandler struct {
	Rooms *repository.RoomRepo
	Seats *repository.SeatRepo
}

func NewRoomHandler(rooms *repository.RoomRepo, seats *repository.SeatRepo) *RoomHandler {
	return &RoomHandler{Rooms: rooms, Seats: seats}
}

type roomReq struct {
	Name     string `json:"name"`
	Floor    int32  `json:"floor"`
	Capacity uint32 `json:"capacity"`
	IsQuiet  bool   `json:"isQuiet"`
	IsGroup  bool   `json:"isGroup"`
	OpensAt  string `json:"opensAt"`
	ClosesAt string `json:"closesAt"`
}

type roomResp struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	Floor    int32  `json:"floor"`
	Capacity uint32 `json:"capacity"`
	IsQuiet  bool   `json:"isQuiet"`
	IsGroup  bool   `json:"isGroup"`
	OpensAt  string `json:"opensAt"`
	ClosesAt string `json:"closesAt"`
	IsActive bool   `json:"isActive"`
}

func toRoomResp(rm *model.Room) roomResp {
	return roomResp{
		ID: rm.ID, Name: rm.Name, Floor: rm.Floor, Capacity: rm.Capacity,
		IsQuiet: rm.IsQuiet, IsGroup: rm.IsGroup,
		OpensAt: rm.OpensAt.String(), ClosesAt: rm.ClosesAt.String(),
		IsActive: rm.IsActive,
	}
}

func (req *roomReq) toModel() (*model.Room, error) {
	if req.Name == "" {
		return nil, errors.New("name is required")
	}
	opens, err := timeslot.ParseClock(req.OpensAt)
	if err != nil {
		return nil, errors.New("invalid opensAt")
	}
	closes, err := timeslot.ParseClock(req.ClosesAt)
	if err != nil {
		return nil, errors.New("invalid closesAt")
	}
	if !(timeslot.Window{Start: opens, End: closes}).Valid() {
		return nil, errors.New("opensAt must be before closesAt")
	}
	return &model.Room{
		Name: req.Name, Floor: req.Floor, Capacity: req.Capacity,
		IsQuiet: req.IsQuiet, IsGroup: req.IsGroup,
		OpensAt: opens, ClosesAt: closes, IsActive: true,
	}, nil
}

// List handles GET /v1/rooms.
func (h *RoomHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rooms, err := h.Rooms.List(ctx, !boolParam(c, "includeInactive"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]roomResp, 0, len(rooms))
	for i := range rooms {
		out = append(out, toRoomResp(&rooms[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"rooms": out})
}

// Get handles GET /v1/rooms/:id.
func (h *RoomHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rm, err := h.Rooms.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toRoomResp(rm))
}

// Create handles POST /v1/rooms (staff only).
func (h *RoomHandler) Create(c echo.Context) error {
	var req roomReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	rm, err := req.toModel()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Rooms.Create(ctx, rm); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create room"})
	}
	return c.JSON(http.StatusCreated, toRoomResp(rm))
}

// Update handles PUT /v1/rooms/:id (staff only).
func (h *RoomHandler) Update(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}
	var req roomReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	rm, err := req.toModel()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	rm.ID = id

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	current, err := h.Rooms.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	rm.IsActive = current.IsActive

	if err := h.Rooms.Update(ctx, rm); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not update room"})
	}
	return c.JSON(http.StatusOK, toRoomResp(rm))
}

type bulkSeatsReq struct {
	Count        uint32 `json:"count"`
	Prefix       string `json:"prefix"`
	HasPower     bool   `json:"hasPower"`
	HasWindow    bool   `json:"hasWindow"`
	IsAccessible bool   `json:"isAccessible"`
}

// CreateSeats handles POST /v1/rooms/:id/seats (staff only). Seats are
// numbered prefix-01, prefix-02, ... in one INSERT.
func (h *RoomHandler) CreateSeats(c echo.Context) error {
	roomID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}
	var req bulkSeatsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Count == 0 || req.Count > 500 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "count must be between 1 and 500"})
	}
	if req.Prefix == "" {
		req.Prefix = "S"
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Rooms.GetByID(ctx, roomID); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	seats := make([]model.Seat, 0, req.Count)
	for i := uint32(1); i <= req.Count; i++ {
		seats = append(seats, model.Seat{
			RoomID:       roomID,
			Number:       fmt.Sprintf("%s-%02d", req.Prefix, i),
			HasPower:     req.HasPower,
			HasWindow:    req.HasWindow,
			IsAccessible: req.IsAccessible,
			State:        model.SeatAvailable,
			IsActive:     true,
		})
	}
	if err := h.Seats.CreateBulk(ctx, seats); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create seats"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"created": req.Count})
}

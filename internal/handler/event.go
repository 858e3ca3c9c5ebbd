package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mariocelzo/biblioflow/internal/model"
	"github.com/mariocelzo/biblioflow/internal/repository"
)

// EventHandler exposes the append-only audit trail to staff.
type EventHandler struct {
	Events *repository.EventLogRepo
}

func NewEventHandler(events *repository.EventLogRepo) *EventHandler {
	return &EventHandler{Events: events}
}

type eventResp struct {
	ID            uint64    `json:"id"`
	ActorID       uint64    `json:"actorId"`
	TargetUserID  *uint64   `json:"targetUserId,omitempty"`
	ReservationID *uint64   `json:"reservationId,omitempty"`
	Type          string    `json:"type"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toEventResp(e *model.EventLog) eventResp {
	return eventResp{
		ID: e.ID, ActorID: e.ActorID,
		TargetUserID: e.TargetUserID, ReservationID: e.ReservationID,
		Type: e.Type, Detail: e.Detail, CreatedAt: e.CreatedAt,
	}
}

// ByReservation handles GET /v1/reservations/:id/events (staff only):
// the full history of one reservation, oldest first.
func (h *EventHandler) ByReservation(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	list, err := h.Events.ListByReservation(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]eventResp, 0, len(list))
	for i := range list {
		out = append(out, toEventResp(&list[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"events": out})
}

// Recent handles GET /v1/events?limit=N (staff only): the newest audit
// entries across the system.
func (h *EventHandler) Recent(c echo.Context) error {
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be between 1 and 500"})
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	list, err := h.Events.ListRecent(ctx, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]eventResp, 0, len(list))
	for i := range list {
		out = append(out, toEventResp(&list[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"events": out})
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mariocelzo/biblioflow/internal/availability"
	"github.com/mariocelzo/biblioflow/internal/model"
	"github.com/mariocelzo/biblioflow/internal/repository"
	"github.com/mariocelzo/biblioflow/internal/timeslot"
)

// AvailabilityHandler serves the read-only availability surface.
type AvailabilityHandler struct {
	Resolver *availability.Resolver
}

func NewAvailabilityHandler(r *availability.Resolver) *AvailabilityHandler {
	return &AvailabilityHandler{Resolver: r}
}

type daySummaryResp struct {
	Date           string `json:"date"`
	SeatsAvailable uint32 `json:"seatsAvailable"`
	SeatsTotal     uint32 `json:"seatsTotal"`
}

type seatResp struct {
	ID           uint64 `json:"id"`
	RoomID       uint64 `json:"roomId"`
	Number       string `json:"number"`
	HasPower     bool   `json:"hasPower"`
	HasWindow    bool   `json:"hasWindow"`
	IsAccessible bool   `json:"isAccessible"`
	State        string `json:"state"`
	IsActive     bool   `json:"isActive"`
	Available    bool   `json:"available"`
}

// Days handles GET /v1/availability?startDate&endDate with one summary
// row per day. Defaults to today when no range is given.
func (h *AvailabilityHandler) Days(c echo.Context) error {
	start := c.QueryParam("startDate")
	end := c.QueryParam("endDate")
	if start == "" {
		start = time.Now().Format("2006-01-02")
	}
	if end == "" {
		end = start
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	days, err := h.Resolver.Days(ctx, start, end)
	if err != nil {
		if errors.Is(err, availability.ErrBadRange) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date range"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	out := make([]daySummaryResp, 0, len(days))
	for _, d := range days {
		out = append(out, daySummaryResp{Date: d.Date, SeatsAvailable: d.SeatsAvailable, SeatsTotal: d.SeatsTotal})
	}
	return c.JSON(http.StatusOK, echo.Map{"days": out})
}

// Seats handles GET /v1/seats with optional filters and an optional
// date+window. When a window is supplied, availability is recomputed
// from the reservations on that date; otherwise only active AVAILABLE
// seats count as free.
func (h *AvailabilityHandler) Seats(c echo.Context) error {
	filter := repository.SeatFilter{ActiveOnly: !boolParam(c, "includeInactive")}
	if v := c.QueryParam("roomId"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid roomId"})
		}
		filter.RoomID = &id
	}
	if v := c.QueryParam("state"); v != "" {
		if !model.ValidSeatState(v) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid state"})
		}
		filter.State = &v
	}
	if v := c.QueryParam("hasPower"); v != "" {
		b := v == "true" || v == "1"
		filter.HasPower = &b
	}
	if v := c.QueryParam("hasWindow"); v != "" {
		b := v == "true" || v == "1"
		filter.HasWindow = &b
	}
	if v := c.QueryParam("accessible"); v != "" {
		b := v == "true" || v == "1"
		filter.IsAccessible = &b
	}

	date := c.QueryParam("date")
	if date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date"})
		}
	}
	var win *timeslot.Window
	startParam, endParam := c.QueryParam("startTime"), c.QueryParam("endTime")
	if startParam != "" || endParam != "" {
		if date == "" || startParam == "" || endParam == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "date, startTime and endTime must be supplied together"})
		}
		start, err := timeslot.ParseClock(startParam)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid startTime"})
		}
		end, err := timeslot.ParseClock(endParam)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid endTime"})
		}
		w := timeslot.Window{Start: start, End: end}
		if !w.Valid() {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "startTime must be before endTime"})
		}
		win = &w
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	annotated, err := h.Resolver.Seats(ctx, filter, date, win)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	out := make([]seatResp, 0, len(annotated))
	for _, s := range annotated {
		out = append(out, seatResp{
			ID: s.ID, RoomID: s.RoomID, Number: s.Number,
			HasPower: s.HasPower, HasWindow: s.HasWindow, IsAccessible: s.IsAccessible,
			State: s.State, IsActive: s.IsActive, Available: s.Available,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"seats": out})
}

func boolParam(c echo.Context, name string) bool {
	v := c.QueryParam(name)
	return v == "true" || v == "1"
}

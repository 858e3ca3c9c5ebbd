package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/yeqown/go-qrcode"

	"github.com/mariocelzo/biblioflow/internal/booking"
	"github.com/mariocelzo/biblioflow/internal/config"
	"github.com/mariocelzo/biblioflow/internal/middleware"
	"github.com/mariocelzo/biblioflow/internal/model"
	"github.com/mariocelzo/biblioflow/internal/qrtoken"
	"github.com/mariocelzo/biblioflow/internal/repository"
	"github.com/mariocelzo/biblioflow/internal/timeslot"
)

// ReservationHandler covers the member-facing reservation lifecycle.
type ReservationHandler struct {
	Cfg          *config.Config
	Booking      *booking.Service
	Reservations *repository.ReservationRepo
}

func NewReservationHandler(cfg *config.Config, svc *booking.Service, res *repository.ReservationRepo) *ReservationHandler {
	return &ReservationHandler{Cfg: cfg, Booking: svc, Reservations: res}
}

type createReservationReq struct {
	SeatID    uint64 `json:"seatId"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type reservationResp struct {
	ID          uint64     `json:"id"`
	UserID      uint64     `json:"userId"`
	SeatID      uint64     `json:"seatId"`
	Date        string     `json:"date"`
	StartTime   string     `json:"startTime"`
	EndTime     string     `json:"endTime"`
	Status      string     `json:"status"`
	CheckedInAt *time.Time `json:"checkedInAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func toReservationResp(r *model.Reservation) reservationResp {
	return reservationResp{
		ID: r.ID, UserID: r.UserID, SeatID: r.SeatID,
		Date: r.Date, StartTime: r.Start.String(), EndTime: r.End.String(),
		Status: r.Status, CheckedInAt: r.CheckedInAt, CreatedAt: r.CreatedAt,
	}
}

// Create handles POST /v1/reservations.
func (h *ReservationHandler) Create(c echo.Context) error {
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.SeatID == 0 || req.Date == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seatId and date are required"})
	}
	start, err := timeslot.ParseClock(req.StartTime)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid startTime"})
	}
	end, err := timeslot.ParseClock(req.EndTime)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid endTime"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Booking.Create(ctx, booking.CreateInput{
		UserID: middleware.CurrentUserID(c),
		SeatID: req.SeatID,
		Date:   req.Date,
		Start:  start,
		End:    end,
	})
	switch {
	case errors.Is(err, repository.ErrSeatNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "seat not found"})
	case errors.Is(err, repository.ErrSeatUnavailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": "seat unavailable for the requested window"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create reservation"})
	}
	return c.JSON(http.StatusCreated, toReservationResp(res))
}

// ListMine handles GET /v1/reservations.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	list, err := h.Reservations.ListByUser(ctx, middleware.CurrentUserID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]reservationResp, 0, len(list))
	for i := range list {
		out = append(out, toReservationResp(&list[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out})
}

// loadOwned fetches the reservation and enforces that the caller owns
// it or holds a staff role.
func (h *ReservationHandler) loadOwned(ctx context.Context, c echo.Context) (*model.Reservation, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return nil, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := h.Reservations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return nil, c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if res.UserID != middleware.CurrentUserID(c) && !middleware.IsStaff(c) {
		return nil, c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return res, nil
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.loadOwned(ctx, c)
	if res == nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResp(res))
}

type checkInResp struct {
	Status      string           `json:"status"`
	Reservation *reservationResp `json:"reservation,omitempty"`
	CheckedInAt *time.Time       `json:"checkedInAt,omitempty"`
	Cancelled   bool             `json:"cancelled,omitempty"`
}

// CheckIn handles POST /v1/reservations/:id/check-in, the self-service
// path. A late self-service attempt reports TOO_LATE but leaves the
// booking alone; only the scanner path forfeits the slot.
func (h *ReservationHandler) CheckIn(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	result, err := h.Booking.CheckIn(ctx, id, middleware.CurrentUserID(c), false, time.Now())
	switch {
	case errors.Is(err, repository.ErrReservationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "check-in failed"})
	}
	return c.JSON(http.StatusOK, checkInResultResp(result))
}

func checkInResultResp(r *booking.CheckInResult) checkInResp {
	resp := checkInResp{Status: r.Status, CheckedInAt: r.CheckedInAt, Cancelled: r.Cancelled}
	if r.Reservation != nil {
		rr := toReservationResp(r.Reservation)
		resp.Reservation = &rr
	}
	return resp
}

// Cancel handles DELETE /v1/reservations/:id.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err = h.Booking.Cancel(ctx, id, middleware.CurrentUserID(c), middleware.IsStaff(c))
	switch {
	case errors.Is(err, repository.ErrReservationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation can no longer be cancelled"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "reservation cancelled"})
}

// QR handles GET /v1/reservations/:id/qr. The default response is the
// signed token as JSON; ?format=image streams a scannable JPEG.
func (h *ReservationHandler) QR(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.loadOwned(ctx, c)
	if res == nil {
		return err
	}
	if res.Status != model.ReservationConfirmed && res.Status != model.ReservationCheckedIn {
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation is not active"})
	}

	now := time.Now()
	token := qrtoken.Generate([]byte(h.Cfg.QRSecret), res.ID, res.UserID, now)
	encoded, err := qrtoken.Encode(token)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not encode token"})
	}

	if c.QueryParam("format") == "image" {
		qrc, err := qrcode.New(encoded)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not render qr code"})
		}
		c.Response().Header().Set(echo.HeaderContentType, "image/jpeg")
		c.Response().WriteHeader(http.StatusOK)
		return qrc.SaveTo(c.Response())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"qrCode":    encoded,
		"expiresAt": now.Add(qrtoken.MaxAge).UTC().Format(time.RFC3339),
	})
}

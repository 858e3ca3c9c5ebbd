package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mariocelzo/biblioflow/internal/booking"
	"github.com/mariocelzo/biblioflow/internal/config"
	"github.com/mariocelzo/biblioflow/internal/qrtoken"
	"github.com/mariocelzo/biblioflow/internal/repository"
)

// ScannerHandler is the staff entry-hall endpoint: verify a presented
// QR token and, when it checks out, perform the check-in it encodes.
type ScannerHandler struct {
	Cfg     *config.Config
	Booking *booking.Service
}

func NewScannerHandler(cfg *config.Config, svc *booking.Service) *ScannerHandler {
	return &ScannerHandler{Cfg: cfg, Booking: svc}
}

type scanReq struct {
	QRCode string `json:"qrCode"`
}

type scanErrorResp struct {
	Valid bool   `json:"valid"`
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Validate handles POST /v1/scanner/validate (staff only). Signature
// verification happens before any database access, so a forged or
// expired token costs nothing and leaks nothing.
func (h *ScannerHandler) Validate(c echo.Context) error {
	var req scanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.QRCode == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "qrCode is required"})
	}

	now := time.Now()
	result := qrtoken.Verify([]byte(h.Cfg.QRSecret), req.QRCode, now)
	if !result.Valid {
		return c.JSON(http.StatusBadRequest, scanErrorResp{
			Valid: false,
			Type:  string(result.Kind),
			Error: result.Err,
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	// The token binds reservation and owner together; check-in runs
	// on behalf of the owner embedded in the payload.
	checkIn, err := h.Booking.CheckIn(ctx, result.Payload.ReservationID, result.Payload.UserID, true, now)
	switch {
	case errors.Is(err, repository.ErrReservationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"valid": true, "error": "reservation not found"})
	case errors.Is(err, repository.ErrForbidden):
		// Token user does not own the reservation anymore; treat as a
		// stale token rather than exposing ownership details.
		return c.JSON(http.StatusConflict, echo.Map{"valid": true, "error": "token does not match reservation"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"valid": true, "error": err.Error()})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "check-in failed"})
	}

	resp := checkInResultResp(checkIn)
	return c.JSON(http.StatusOK, echo.Map{
		"valid":       true,
		"status":      resp.Status,
		"reservation": resp.Reservation,
		"checkedInAt": resp.CheckedInAt,
		"cancelled":   resp.Cancelled,
	})
}

package handler

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mariocelzo/biblioflow/internal/automation"
	"github.com/mariocelzo/biblioflow/internal/config"
)

// CronHandler exposes the automation sweep to an external scheduler.
// It sits outside the JWT-protected surface and is guarded by a shared
// bearer secret instead.
type CronHandler struct {
	Cfg     *config.Config
	Sweeper *automation.Sweeper
}

func NewCronHandler(cfg *config.Config, sweeper *automation.Sweeper) *CronHandler {
	return &CronHandler{Cfg: cfg, Sweeper: sweeper}
}

// Run handles GET|POST /v1/cron/automations and returns the sweep
// report. Sweeps are long relative to request handlers, so the timeout
// here is generous.
func (h *CronHandler) Run(c echo.Context) error {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.Cfg.CronSecret)) != 1 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	report := h.Sweeper.Run(ctx, time.Now())
	return c.JSON(http.StatusOK, report)
}

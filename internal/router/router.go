// Package router wires the HTTP surface: which handler answers which
// path, and which middleware guards it.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/mariocelzo/biblioflow/internal/config"
	"github.com/mariocelzo/biblioflow/internal/handler"
	"github.com/mariocelzo/biblioflow/internal/middleware"
	"github.com/mariocelzo/biblioflow/internal/model"
)

// Handlers bundles every handler the router needs. Constructed once in
// main and passed in whole so the registration functions stay short.
type Handlers struct {
	Auth          *handler.AuthHandler
	Availability  *handler.AvailabilityHandler
	Rooms         *handler.RoomHandler
	Seats         *handler.SeatHandler
	Reservations  *handler.ReservationHandler
	Scanner       *handler.ScannerHandler
	Books         *handler.BookHandler
	Loans         *handler.LoanHandler
	Notifications *handler.NotificationHandler
	Events        *handler.EventHandler
	Cron          *handler.CronHandler
}

// Register sets up all routes on the provided Echo instance.
//
// The surface splits into four tiers:
//   - unauthenticated: health check, auth endpoints, public browse
//   - authenticated (JWT): member reservations, loans, notifications
//   - staff (JWT + role): room/seat/book administration, the scanner
//   - cron: guarded by a shared bearer secret, not JWT
func Register(e *echo.Echo, h *Handlers, cfg *config.Config, rl config.RateLimitConfig, counters middleware.CounterStore) {
	e.GET("/healthz", handler.Health)

	limiter := middleware.RateLimit(rl, counters)

	// Session endpoints. Register and login are the brute-force
	// targets, so the limiter applies here even for guests.
	authGroup := e.Group("/v1/auth", limiter)
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)
	authGroup.POST("/refresh", h.Auth.Refresh)
	authGroup.POST("/logout", h.Auth.Logout)

	// Public browse: the catalogue and the seat map are visible
	// without a session so visitors can check availability first.
	e.GET("/v1/availability", h.Availability.Days, limiter)
	e.GET("/v1/seats", h.Availability.Seats, limiter)
	e.GET("/v1/rooms", h.Rooms.List, limiter)
	e.GET("/v1/rooms/:id", h.Rooms.Get, limiter)
	e.GET("/v1/books", h.Books.List, limiter)
	e.GET("/v1/books/:id", h.Books.Get, limiter)

	// Everything below requires a valid access token.
	auth := e.Group("/v1", middleware.JWTAuth(cfg.JWTSecret), limiter)

	auth.GET("/me", h.Auth.Me)
	auth.PATCH("/me", h.Auth.UpdateMe)

	auth.POST("/reservations", h.Reservations.Create)
	auth.GET("/reservations", h.Reservations.ListMine)
	auth.GET("/reservations/:id", h.Reservations.Get)
	auth.POST("/reservations/:id/check-in", h.Reservations.CheckIn)
	auth.DELETE("/reservations/:id", h.Reservations.Cancel)
	auth.GET("/reservations/:id/qr", h.Reservations.QR)

	auth.POST("/loans", h.Loans.Borrow)
	auth.GET("/loans", h.Loans.ListMine)
	auth.POST("/loans/:id/renew", h.Loans.Renew)
	auth.POST("/loans/:id/return", h.Loans.Return)

	auth.GET("/notifications", h.Notifications.List)
	auth.PATCH("/notifications/:id/read", h.Notifications.MarkRead)
	auth.POST("/notifications/read-all", h.Notifications.MarkAllRead)

	// Staff administration.
	staff := auth.Group("", middleware.RequireRole(model.RoleLibrarian, model.RoleAdmin))
	staff.POST("/rooms", h.Rooms.Create)
	staff.PUT("/rooms/:id", h.Rooms.Update)
	staff.POST("/rooms/:id/seats", h.Rooms.CreateSeats)
	staff.POST("/seats", h.Seats.Create)
	staff.PATCH("/seats/:id", h.Seats.Patch)
	staff.POST("/books", h.Books.Create)
	staff.POST("/scanner/validate", h.Scanner.Validate)
	staff.GET("/reservations/:id/events", h.Events.ByReservation)
	staff.GET("/events", h.Events.Recent)

	// Cron trigger for deployments without the in-process scheduler.
	// Authenticated by CRON_SECRET inside the handler, not by JWT.
	e.GET("/v1/cron/automations", h.Cron.Run)
	e.POST("/v1/cron/automations", h.Cron.Run)
}

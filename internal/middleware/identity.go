package middleware

// identity.go holds the context keys the auth middleware writes and the
// typed accessors handlers use to read them back.

import (
	"github.com/labstack/echo/v4"

	"github.com/mariocelzo/biblioflow/internal/model"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// CurrentUserID returns the authenticated user's id, or 0 when the
// request is unauthenticated.
func CurrentUserID(c echo.Context) uint64 {
	if v, ok := c.Get(ctxUserID).(uint64); ok {
		return v
	}
	return 0
}

// CurrentRole returns the authenticated user's role, or "" when the
// request is unauthenticated.
func CurrentRole(c echo.Context) string {
	if v, ok := c.Get(ctxRole).(string); ok {
		return v
	}
	return ""
}

// IsStaff reports whether the request carries a librarian or admin role.
func IsStaff(c echo.Context) bool {
	return model.StaffRole(CurrentRole(c))
}

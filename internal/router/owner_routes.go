package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/kishan611/backend-project/internal/handler"    // slot lifecycle handlers
	"github.com/kishan611/backend-project/internal/middleware" // JWT + role middlewares
)

// RegisterOwner registers OWNER-scoped slot management endpoints under /v1.
// All routes require a valid JWT and OWNER role.
func RegisterOwner(e *echo.Echo, s *handler.SlotHandler, jwtSecret string) {
	// Attach middlewares at group construction time for clarity.
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("OWNER"),
	)

	// ---- Slots ----
	g.POST("/slots", s.CreateSlot)
	g.PUT("/slots/:id", s.UpdateSlot)
	g.PATCH("/slots/:id", s.UpdateSlot) // allow partial updates via PATCH as well
	g.DELETE("/slots/:id", s.DeleteSlot)
	// NOTE: GET /v1/slots and GET /v1/slots/:id are shared with customers and
	// registered by RegisterSlotBrowse to avoid route conflicts.
}

package router

import (
	"github.com/labstack/echo/v4"

	"github.com/kishan611/backend-project/internal/handler"
	"github.com/kishan611/backend-project/internal/middleware"
)

// RegisterCustomer registers customer-scoped endpoints under /v1.  All routes
// require a valid JWT and the CUSTOMER role.  Customers can book a seat in a
// slot, cancel their own bookings and view their booking history.
func RegisterCustomer(e *echo.Echo, b *handler.BookingHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("CUSTOMER"),
	)
	// Note: GET /v1/slots and GET /v1/slots/:id are registered by
	// RegisterSlotBrowse so both roles can browse.  Customer-specific
	// endpoints begin here.
	g.POST("/slots/:id/book", b.Book)
	g.DELETE("/bookings/:id", b.Cancel)
	g.GET("/my-bookings", b.ListMyBookings)
}

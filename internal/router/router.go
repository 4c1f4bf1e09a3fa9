package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/kishan611/backend-project/internal/handler"    // import the handlers that implement business logic
	"github.com/kishan611/backend-project/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes and applies the
// necessary middleware.  Unauthenticated operations live under /v1/auth,
// while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	// Create a route group under the /v1/auth prefix for operations that do
	// not require an existing session (register, login, refresh).
	g := e.Group("/v1/auth")
	// Register a POST endpoint to handle user registration at /v1/auth/register.
	g.POST("/register", a.Register)
	// Register a POST endpoint to handle user login at /v1/auth/login.
	g.POST("/login", a.Login)
	// Register a POST endpoint to refresh access tokens at /v1/auth/refresh.
	// This rotates the refresh token.
	g.POST("/refresh", a.Refresh)
	// Register a POST endpoint to log out using a refresh token.  The handler
	// accepts a JSON body containing a `refresh_token` and invalidates it, so
	// logout does not require JWT authentication.
	g.POST("/logout", a.Logout)

	// Create another group for routes that require a valid access token.  All
	// handlers registered on this group execute the JWTAuth middleware before
	// being invoked.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	// Both roles may query their own identity.
	auth.Use(middleware.RequireRole("OWNER", "CUSTOMER"))
	// Register a GET endpoint at /v1/me that returns the authenticated user's information.
	auth.GET("/me", a.Me)
}

// RegisterSlotBrowse registers the authenticated read-only slot endpoints.
// Both owners and customers may list and inspect slots; discovery is how a
// customer finds something to book.
func RegisterSlotBrowse(e *echo.Echo, s *handler.SlotHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("OWNER", "CUSTOMER"))
	// List slots with pagination and optional interval/tag/availability filters.
	g.GET("/slots", s.ListSlots)
	// Fetch a single slot with its derived available seat count.
	g.GET("/slots/:id", s.GetSlot)
}

// Package handler contains the HTTP handlers for authentication, slot
// lifecycle management and the booking/cancellation protocols.  All
// handlers assume that JWT authentication and role checks have been
// performed by middleware; the authenticated identity is read from the
// echo context.
package handler

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"
)

// getUserID extracts the user_id claim from the echo context and
// converts it to uint64.  JWT numeric claims arrive as float64, so
// several representations are accepted.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// parseID parses a path parameter as a positive identifier.  A
// malformed or zero value is the caller's cue for a 400 response.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

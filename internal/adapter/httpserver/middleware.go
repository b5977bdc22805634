package httpserver

import (
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/platform/correlation"
	"github.com/labstack/echo/v4"
)

const maxCorrelationIDLength = 64

// correlationMiddleware reuses a caller-supplied correlation ID or creates
// one, and echoes it back in the response.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(correlation.Header)
		if id == "" || len(id) > maxCorrelationIDLength {
			id = correlation.NewID()
		}
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(correlation.Header, id)
		return next(c)
	}
}

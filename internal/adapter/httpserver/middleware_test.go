package httpserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/platform/correlation"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelationMiddleware_GeneratesID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen string
	handler := correlationMiddleware(func(c echo.Context) error {
		seen, _ = correlation.ID(c.Request().Context())
		return nil
	})

	require.NoError(t, handler(c))
	assert.Len(t, seen, 8)
	assert.Equal(t, seen, rec.Header().Get(correlation.Header))
}

func TestCorrelationMiddleware_ReusesCallerID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(correlation.Header, "game-42")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen string
	handler := correlationMiddleware(func(c echo.Context) error {
		seen, _ = correlation.ID(c.Request().Context())
		return nil
	})

	require.NoError(t, handler(c))
	assert.Equal(t, "game-42", seen)
	assert.Equal(t, "game-42", rec.Header().Get(correlation.Header))
}

func TestCorrelationMiddleware_RejectsOversizedID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(correlation.Header, strings.Repeat("x", maxCorrelationIDLength+1))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen string
	handler := correlationMiddleware(func(c echo.Context) error {
		seen, _ = correlation.ID(c.Request().Context())
		return nil
	})

	require.NoError(t, handler(c))
	assert.Len(t, seen, 8)
}

func TestCorrelationReachesPlugin(t *testing.T) {
	plugin := newMockPlugin()
	srv := newTestServer(t, plugin)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/location/request", nil)
	req.Header.Set(correlation.Header, "abc123")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	plugin.mu.Lock()
	defer plugin.mu.Unlock()
	id, ok := correlation.ID(plugin.lastCtx)
	require.True(t, ok)
	assert.Equal(t, "abc123", id)
}

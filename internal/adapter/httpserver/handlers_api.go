package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/app"
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/domain"
	apperrors "github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

type authorizationResponse struct {
	Status                        int    `json:"status"`
	Name                          string `json:"name"`
	AllowsFullAccuracy            bool   `json:"allows_full_accuracy"`
	CanRequestPermissions         bool   `json:"can_request_permissions"`
	ShouldShowPermissionRationale bool   `json:"should_show_permission_rationale"`
}

type statusResponse struct {
	app.Status
	Listeners int `json:"listeners"`
}

type settingsResponse struct {
	DesiredAccuracy             string  `json:"desired_accuracy"`
	DesiredAccuracyValue        int     `json:"desired_accuracy_value"`
	UpdateInterval              int     `json:"update_interval"`
	MaxWaitTime                 int     `json:"max_wait_time"`
	DistanceFilter              float64 `json:"distance_filter"`
	ReturnStringCoordinates     bool    `json:"return_string_coordinates"`
	FailureTimeout              int     `json:"failure_timeout"`
	AutoCheckLocationCapability bool    `json:"auto_check_location_capability"`
	DebugLog                    bool    `json:"debug_log"`
}

func newSettingsResponse(s domain.Settings) settingsResponse {
	return settingsResponse{
		DesiredAccuracy:             s.Accuracy.String(),
		DesiredAccuracyValue:        int(s.Accuracy),
		UpdateInterval:              s.UpdateIntervalSeconds,
		MaxWaitTime:                 s.MaxWaitSeconds,
		DistanceFilter:              s.DistanceFilterMeters,
		ReturnStringCoordinates:     s.ReturnStringCoordinates,
		FailureTimeout:              s.FailureTimeoutSeconds,
		AutoCheckLocationCapability: s.AutoCheckCapability,
		DebugLog:                    s.DebugLogEnabled,
	}
}

type setSettingRequest struct {
	Value json.RawMessage `json:"value"`
}

func (s *Server) registerAPIRoutes(rateLimiter echo.MiddlewareFunc) {
	api := s.echo.Group("/api/v1", rateLimiter)

	api.POST("/permission/request", s.accepted(s.plugin.RequestPermission))
	api.GET("/authorization", s.handleAuthorization)
	api.GET("/status", s.handleStatus)
	api.GET("/supports/:operation", s.handleSupports)

	api.GET("/settings", s.handleGetSettings)
	api.PUT("/settings/:name", s.handleSetSetting)

	api.POST("/location/request", s.accepted(s.plugin.RequestLocation))
	api.POST("/location/start", s.accepted(s.plugin.StartUpdatingLocation))
	api.POST("/location/stop", s.accepted(s.plugin.StopUpdatingLocation))
	api.POST("/heading/start", s.accepted(s.plugin.StartUpdatingHeading))
	api.POST("/heading/stop", s.accepted(s.plugin.StopUpdatingHeading))
	api.POST("/capability/request", s.accepted(s.plugin.RequestLocationCapability))
}

// accepted wraps a fire-and-report operation. Results arrive as signals.
func (s *Server) accepted(op func(ctx context.Context)) echo.HandlerFunc {
	return func(c echo.Context) error {
		op(c.Request().Context())
		if err := c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"}); err != nil {
			return fmt.Errorf("failed to send JSON response: %w", err)
		}
		return nil
	}
}

func (s *Server) handleAuthorization(c echo.Context) error {
	ctx := c.Request().Context()
	status := s.plugin.AuthorizationStatus(ctx)

	resp := authorizationResponse{
		Status:                        int(status),
		Name:                          status.String(),
		AllowsFullAccuracy:            s.plugin.AllowsFullAccuracy(ctx),
		CanRequestPermissions:         s.plugin.CanRequestPermissions(ctx),
		ShouldShowPermissionRationale: s.plugin.ShouldShowPermissionRationale(ctx),
	}
	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleStatus(c echo.Context) error {
	resp := statusResponse{Status: s.plugin.Status()}
	if s.listeners != nil {
		resp.Listeners = s.listeners.Listeners()
	}
	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleSupports(c echo.Context) error {
	operation := c.Param("operation")
	resp := map[string]any{
		"operation": operation,
		"supported": s.plugin.Supports(operation),
	}
	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetSettings(c echo.Context) error {
	if err := c.JSON(http.StatusOK, newSettingsResponse(s.plugin.Settings())); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleSetSetting(c echo.Context) error {
	name := c.Param("name")

	var req setSettingRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return apperrors.ValidationError("invalid request body").WithField("setting", name)
	}
	if len(req.Value) == 0 {
		return apperrors.ValidationError("missing value").WithField("setting", name)
	}

	if err := s.plugin.SetSetting(c.Request().Context(), name, req.Value); err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, newSettingsResponse(s.plugin.Settings())); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

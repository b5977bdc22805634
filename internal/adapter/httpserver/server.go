package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/adapter/metrics"
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/app"
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/domain"
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/platform/config"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
)

// pluginService is the operation surface exposed over HTTP.
type pluginService interface {
	RequestPermission(ctx context.Context)
	AuthorizationStatus(ctx context.Context) domain.AuthorizationStatus
	AllowsFullAccuracy(ctx context.Context) bool
	CanRequestPermissions(ctx context.Context) bool
	ShouldShowPermissionRationale(ctx context.Context) bool
	Supports(operation string) bool
	Status() app.Status
	Settings() domain.Settings
	SetSetting(ctx context.Context, name string, raw json.RawMessage) error
	RequestLocation(ctx context.Context)
	StartUpdatingLocation(ctx context.Context)
	StopUpdatingLocation(ctx context.Context)
	StartUpdatingHeading(ctx context.Context)
	StopUpdatingHeading(ctx context.Context)
	RequestLocationCapability(ctx context.Context)
}

// listenerCounter reports connected signal listeners.
type listenerCounter interface {
	Listeners() int
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	plugin    pluginService
	listeners listenerCounter

	websocketHandler http.Handler
	metricsHandler   http.Handler
	httpMetrics      *metrics.HTTPMetrics

	healthChecks []HealthCheck
	clock        clockwork.Clock
	startTime    time.Time
}

// NewServer wires the routes. listeners, websocketHandler, metricsHandler
// and httpMetrics may be nil.
func NewServer(cfg *config.Config, plugin pluginService, listeners listenerCounter, websocketHandler http.Handler, metricsHandler http.Handler, httpMetrics *metrics.HTTPMetrics, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	clock := clockwork.NewRealClock()
	srv := &Server{
		echo:             e,
		config:           cfg,
		plugin:           plugin,
		listeners:        listeners,
		websocketHandler: websocketHandler,
		metricsHandler:   metricsHandler,
		httpMetrics:      httpMetrics,
		healthChecks:     healthChecks,
		clock:            clock,
		startTime:        clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP lets tests drive the full middleware chain.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

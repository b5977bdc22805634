package httpserver

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/app"
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/domain"
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/platform/config"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
)

// --- Mock implementations ---

type mockPlugin struct {
	mu sync.Mutex

	authorization domain.AuthorizationStatus
	grants        domain.Grants
	status        app.Status
	settings      domain.Settings
	setSettingFn  func(ctx context.Context, name string, raw json.RawMessage) error

	calls      []string
	lastCtx    context.Context
	lastValues map[string]string
}

func newMockPlugin() *mockPlugin {
	return &mockPlugin{
		authorization: domain.AuthorizationDenied,
		settings:      domain.DefaultSettings(),
		lastValues:    make(map[string]string),
	}
}

func (m *mockPlugin) record(ctx context.Context, call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	m.lastCtx = ctx
}

func (m *mockPlugin) recordedCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockPlugin) RequestPermission(ctx context.Context) { m.record(ctx, "requestPermission") }

func (m *mockPlugin) AuthorizationStatus(context.Context) domain.AuthorizationStatus {
	return m.authorization
}

func (m *mockPlugin) AllowsFullAccuracy(context.Context) bool            { return m.grants.Fine }
func (m *mockPlugin) CanRequestPermissions(context.Context) bool         { return m.grants.CanRequest }
func (m *mockPlugin) ShouldShowPermissionRationale(context.Context) bool { return m.grants.ShowRationale }
func (m *mockPlugin) Supports(operation string) bool                     { return operation == "requestLocation" }
func (m *mockPlugin) Status() app.Status                                 { return m.status }

func (m *mockPlugin) Settings() domain.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

func (m *mockPlugin) SetSetting(ctx context.Context, name string, raw json.RawMessage) error {
	m.record(ctx, "setSetting")
	m.mu.Lock()
	m.lastValues[name] = string(raw)
	m.mu.Unlock()
	if m.setSettingFn != nil {
		return m.setSettingFn(ctx, name, raw)
	}
	return nil
}

func (m *mockPlugin) RequestLocation(ctx context.Context)       { m.record(ctx, "requestLocation") }
func (m *mockPlugin) StartUpdatingLocation(ctx context.Context) { m.record(ctx, "startUpdatingLocation") }
func (m *mockPlugin) StopUpdatingLocation(ctx context.Context)  { m.record(ctx, "stopUpdatingLocation") }
func (m *mockPlugin) StartUpdatingHeading(ctx context.Context)  { m.record(ctx, "startUpdatingHeading") }
func (m *mockPlugin) StopUpdatingHeading(ctx context.Context)   { m.record(ctx, "stopUpdatingHeading") }

func (m *mockPlugin) RequestLocationCapability(ctx context.Context) {
	m.record(ctx, "requestLocationCapability")
}

type staticListeners int

func (l staticListeners) Listeners() int { return int(l) }

// --- Test server helpers ---

func withHealthChecks(checks ...HealthCheck) func(*Server) {
	return func(s *Server) {
		s.healthChecks = checks
	}
}

func withListeners(n int) func(*Server) {
	return func(s *Server) {
		s.listeners = staticListeners(n)
	}
}

func withRateLimit(ratePerSecond float64, burst int) func(*Server) {
	return func(s *Server) {
		s.config.RateLimitPerSecond = ratePerSecond
		s.config.RateLimitBurst = burst
	}
}

func withClock(clock clockwork.Clock) func(*Server) {
	return func(s *Server) {
		s.clock = clock
		s.startTime = clock.Now()
	}
}

func newTestServer(t *testing.T, plugin pluginService, opts ...func(*Server)) *Server {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	srv := &Server{
		echo:      echo.New(),
		config:    &config.Config{Port: "0", RateLimitPerSecond: 1000, RateLimitBurst: 1000},
		plugin:    plugin,
		clock:     clock,
		startTime: clock.Now(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()

	return srv
}

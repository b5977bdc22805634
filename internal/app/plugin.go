package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/domain"
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/geolocation"
	apperrors "github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/platform/errors"
)

// SessionManager is the part of geolocation.Manager the plugin drives.
type SessionManager interface {
	RequestLocation(ctx context.Context)
	StartUpdatingLocation(ctx context.Context)
	StopUpdatingLocation(ctx context.Context)
	RequestLocationCapability(ctx context.Context)
	Report(ctx context.Context, code domain.ErrorCode)
	IsUpdatingLocation() bool
	Settings() domain.Settings
	State() geolocation.State

	SetDesiredAccuracy(ctx context.Context, accuracy domain.Accuracy) error
	SetUpdateInterval(ctx context.Context, seconds int) error
	SetMaxWaitTime(ctx context.Context, seconds int) error
	SetDistanceFilter(ctx context.Context, meters float64) error
	SetReturnStringCoordinates(ctx context.Context, enabled bool) error
	SetFailureTimeout(ctx context.Context, seconds int) error
	SetAutoCheckCapability(ctx context.Context, enabled bool) error
	SetDebugLog(ctx context.Context, enabled bool) error
}

// supported lists the operations this platform implements. Heading and
// the permission prompt are not available.
var supported = map[string]struct{}{
	"authorizationStatus":            {},
	"allowsFullAccuracy":             {},
	"canRequestPermissions":          {},
	"shouldShowPermissionRationale":  {},
	"isUpdatingLocation":             {},
	"requestLocationCapability":      {},
	"shouldCheckLocationCapability":  {},
	"supports":                       {},
	"setDistanceFilter":              {},
	"setDesiredAccuracy":             {},
	"setUpdateInterval":              {},
	"setMaxWaitTime":                 {},
	"setReturnStringCoordinates":     {},
	"setFailureTimeout":              {},
	"setDebugLogSignal":              {},
	"setAutoCheckLocationCapability": {},
	"requestLocation":                {},
	"startUpdatingLocation":          {},
	"stopUpdatingLocation":           {},
}

// Plugin is the consumer-facing operation surface of the bridge.
type Plugin struct {
	manager     SessionManager
	permissions domain.PermissionSource
}

func NewPlugin(manager SessionManager, permissions domain.PermissionSource) *Plugin {
	return &Plugin{manager: manager, permissions: permissions}
}

// RequestPermission is a no-op; the prompt is owned by the device.
func (p *Plugin) RequestPermission(ctx context.Context) {
	slog.DebugContext(ctx, "Permission prompt not available on this platform")
}

// AuthorizationStatus reads the grants on demand. Unknown if they cannot
// be read.
func (p *Plugin) AuthorizationStatus(ctx context.Context) domain.AuthorizationStatus {
	grants, err := p.permissions.Grants(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read permission grants", "error", err)
		return domain.AuthorizationUnknown
	}
	return grants.Status()
}

func (p *Plugin) AllowsFullAccuracy(ctx context.Context) bool {
	return p.grants(ctx).Fine
}

func (p *Plugin) CanRequestPermissions(ctx context.Context) bool {
	return p.grants(ctx).CanRequest
}

func (p *Plugin) ShouldShowPermissionRationale(ctx context.Context) bool {
	return p.grants(ctx).ShowRationale
}

func (p *Plugin) grants(ctx context.Context) domain.Grants {
	grants, err := p.permissions.Grants(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read permission grants", "error", err)
		return domain.Grants{}
	}
	return grants
}

func (p *Plugin) IsUpdatingLocation() bool {
	return p.manager.IsUpdatingLocation()
}

// IsUpdatingHeading is always false; heading is not supported.
func (p *Plugin) IsUpdatingHeading() bool {
	return false
}

func (p *Plugin) RequestLocationCapability(ctx context.Context) {
	p.manager.RequestLocationCapability(ctx)
}

// ShouldCheckLocationCapability tells the consumer whether it has to probe
// capability itself.
func (p *Plugin) ShouldCheckLocationCapability() bool {
	return !p.manager.Settings().AutoCheckCapability
}

func (p *Plugin) Supports(operation string) bool {
	_, ok := supported[operation]
	return ok
}

func (p *Plugin) RequestLocation(ctx context.Context) {
	p.manager.RequestLocation(ctx)
}

func (p *Plugin) StartUpdatingLocation(ctx context.Context) {
	p.manager.StartUpdatingLocation(ctx)
}

func (p *Plugin) StopUpdatingLocation(ctx context.Context) {
	p.manager.StopUpdatingLocation(ctx)
}

func (p *Plugin) StartUpdatingHeading(ctx context.Context) {
	p.manager.Report(ctx, domain.ErrorUnsupported)
}

func (p *Plugin) StopUpdatingHeading(ctx context.Context) {
	p.manager.Report(ctx, domain.ErrorUnsupported)
}

func (p *Plugin) SetDesiredAccuracy(ctx context.Context, accuracy domain.Accuracy) error {
	return p.manager.SetDesiredAccuracy(ctx, accuracy)
}

func (p *Plugin) SetUpdateInterval(ctx context.Context, seconds int) error {
	return p.manager.SetUpdateInterval(ctx, seconds)
}

func (p *Plugin) SetMaxWaitTime(ctx context.Context, seconds int) error {
	return p.manager.SetMaxWaitTime(ctx, seconds)
}

func (p *Plugin) SetDistanceFilter(ctx context.Context, meters float64) error {
	return p.manager.SetDistanceFilter(ctx, meters)
}

func (p *Plugin) SetReturnStringCoordinates(ctx context.Context, enabled bool) error {
	return p.manager.SetReturnStringCoordinates(ctx, enabled)
}

func (p *Plugin) SetFailureTimeout(ctx context.Context, seconds int) error {
	return p.manager.SetFailureTimeout(ctx, seconds)
}

func (p *Plugin) SetDebugLogSignal(ctx context.Context, enabled bool) error {
	return p.manager.SetDebugLog(ctx, enabled)
}

func (p *Plugin) SetAutoCheckLocationCapability(ctx context.Context, enabled bool) error {
	return p.manager.SetAutoCheckCapability(ctx, enabled)
}

// Settings returns the current settings snapshot.
func (p *Plugin) Settings() domain.Settings {
	return p.manager.Settings()
}

// Status summarizes the session manager for host surfaces.
type Status struct {
	Mode               string `json:"mode"`
	UpdatingLocation   bool   `json:"updating_location"`
	UpdatingHeading    bool   `json:"updating_heading"`
	OneShotPending     bool   `json:"one_shot_pending"`
	CapabilityChecks   int    `json:"capability_checks"`
	WatchdogArmed      bool   `json:"watchdog_armed"`
	ShouldCheckCapable bool   `json:"should_check_location_capability"`
}

func (p *Plugin) Status() Status {
	st := p.manager.State()
	return Status{
		Mode:               st.Mode.String(),
		UpdatingLocation:   st.ContinuousActive,
		UpdatingHeading:    false,
		OneShotPending:     st.OneShotPending,
		CapabilityChecks:   st.CapabilityChecks,
		WatchdogArmed:      st.OneShotWatchdog || st.ContinuousWatchdog,
		ShouldCheckCapable: !st.Settings.AutoCheckCapability,
	}
}

// SetSetting applies a setting addressed by name with a JSON-encoded value.
func (p *Plugin) SetSetting(ctx context.Context, name string, raw json.RawMessage) error {
	switch name {
	case geolocation.SettingDesiredAccuracy:
		accuracy, err := decodeAccuracy(raw)
		if err != nil {
			return invalidValue(name, err)
		}
		return p.SetDesiredAccuracy(ctx, accuracy)
	case geolocation.SettingUpdateInterval:
		return applyDecoded(name, raw, func(v int) error { return p.SetUpdateInterval(ctx, v) })
	case geolocation.SettingMaxWaitTime:
		return applyDecoded(name, raw, func(v int) error { return p.SetMaxWaitTime(ctx, v) })
	case geolocation.SettingFailureTimeout:
		return applyDecoded(name, raw, func(v int) error { return p.SetFailureTimeout(ctx, v) })
	case geolocation.SettingDistanceFilter:
		return applyDecoded(name, raw, func(v float64) error { return p.SetDistanceFilter(ctx, v) })
	case geolocation.SettingReturnStringCoordinates:
		return applyDecoded(name, raw, func(v bool) error { return p.SetReturnStringCoordinates(ctx, v) })
	case geolocation.SettingAutoCheckCapability:
		return applyDecoded(name, raw, func(v bool) error { return p.SetAutoCheckLocationCapability(ctx, v) })
	case geolocation.SettingDebugLog:
		return applyDecoded(name, raw, func(v bool) error { return p.SetDebugLogSignal(ctx, v) })
	default:
		return apperrors.NotFoundError("unknown setting").WithField("setting", name)
	}
}

func applyDecoded[T any](name string, raw json.RawMessage, apply func(T) error) error {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return invalidValue(name, err)
	}
	return apply(v)
}

// decodeAccuracy accepts the numeric tier or its name.
func decodeAccuracy(raw json.RawMessage) (domain.Accuracy, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return domain.ParseAccuracy(strconv.Itoa(n))
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("accuracy must be a number or a tier name: %w", err)
	}
	return domain.ParseAccuracy(s)
}

func invalidValue(name string, err error) error {
	return apperrors.ValidationError(fmt.Sprintf("invalid value for %s: %v", name, err)).
		WithField("setting", name)
}

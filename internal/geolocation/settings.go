package geolocation

import (
	"context"

	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/domain"
	apperrors "github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/platform/errors"
)

// Setting names as accepted by Update and reported in validation errors.
const (
	SettingDesiredAccuracy         = "desired_accuracy"
	SettingUpdateInterval          = "update_interval"
	SettingMaxWaitTime             = "max_wait_time"
	SettingDistanceFilter          = "distance_filter"
	SettingReturnStringCoordinates = "return_string_coordinates"
	SettingFailureTimeout          = "failure_timeout"
	SettingAutoCheckCapability     = "auto_check_location_capability"
	SettingDebugLog                = "debug_log"
)

// SetDesiredAccuracy changes the accuracy tier and restarts active
// continuous updates.
func (m *Manager) SetDesiredAccuracy(ctx context.Context, accuracy domain.Accuracy) error {
	if !accuracy.Valid() {
		return invalidSetting(SettingDesiredAccuracy, int(accuracy), "unknown accuracy tier")
	}
	return m.update(ctx, SettingDesiredAccuracy, true, func(s *domain.Settings) { s.Accuracy = accuracy })
}

// SetUpdateInterval changes the desired interval between updates.
func (m *Manager) SetUpdateInterval(ctx context.Context, seconds int) error {
	if err := domain.ValidateSeconds(SettingUpdateInterval, seconds); err != nil {
		return invalidSetting(SettingUpdateInterval, seconds, err.Error())
	}
	return m.update(ctx, SettingUpdateInterval, true, func(s *domain.Settings) { s.UpdateIntervalSeconds = seconds })
}

// SetMaxWaitTime changes the maximum batching delay.
func (m *Manager) SetMaxWaitTime(ctx context.Context, seconds int) error {
	if err := domain.ValidateSeconds(SettingMaxWaitTime, seconds); err != nil {
		return invalidSetting(SettingMaxWaitTime, seconds, err.Error())
	}
	return m.update(ctx, SettingMaxWaitTime, true, func(s *domain.Settings) { s.MaxWaitSeconds = seconds })
}

// SetDistanceFilter changes the minimum displacement between updates.
func (m *Manager) SetDistanceFilter(ctx context.Context, meters float64) error {
	if err := domain.ValidateDistance(meters); err != nil {
		return invalidSetting(SettingDistanceFilter, meters, err.Error())
	}
	return m.update(ctx, SettingDistanceFilter, true, func(s *domain.Settings) { s.DistanceFilterMeters = meters })
}

// SetFailureTimeout changes the watchdog bound for sessions started
// afterwards. Zero disables the watchdog.
func (m *Manager) SetFailureTimeout(ctx context.Context, seconds int) error {
	if err := domain.ValidateSeconds(SettingFailureTimeout, seconds); err != nil {
		return invalidSetting(SettingFailureTimeout, seconds, err.Error())
	}
	return m.update(ctx, SettingFailureTimeout, false, func(s *domain.Settings) { s.FailureTimeoutSeconds = seconds })
}

// SetReturnStringCoordinates toggles the string latitude/longitude fields on emitted fixes.
func (m *Manager) SetReturnStringCoordinates(ctx context.Context, enabled bool) error {
	return m.update(ctx, SettingReturnStringCoordinates, false, func(s *domain.Settings) { s.ReturnStringCoordinates = enabled })
}

// SetAutoCheckCapability toggles the capability check run before each new session.
func (m *Manager) SetAutoCheckCapability(ctx context.Context, enabled bool) error {
	return m.update(ctx, SettingAutoCheckCapability, false, func(s *domain.Settings) { s.AutoCheckCapability = enabled })
}

// SetDebugLog toggles the consumer log signal.
func (m *Manager) SetDebugLog(ctx context.Context, enabled bool) error {
	return m.update(ctx, SettingDebugLog, false, func(s *domain.Settings) { s.DebugLogEnabled = enabled })
}

func (m *Manager) update(ctx context.Context, name string, restart bool, apply func(*domain.Settings)) error {
	if !m.post(updateSettingsCmd{ctx: detach(ctx), name: name, apply: apply, restart: restart}) {
		return apperrors.UnavailableError("session manager stopped", domain.ErrManagerStopped).WithField("setting", name)
	}
	return nil
}

func invalidSetting(name string, value any, reason string) error {
	return apperrors.ValidationError(reason).
		WithField("setting", name).
		WithField("value", value)
}

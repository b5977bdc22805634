package domain

import (
	"fmt"
	"math"
	"time"
)

// Accuracy is the consumer-facing accuracy tier. Values are kept as bit
// flags for compatibility with existing game scripts.
type Accuracy int

const (
	AccuracyBestForNavigation Accuracy = 1 << 0
	AccuracyBest              Accuracy = 1 << 1
	AccuracyNearestTenMeters  Accuracy = 1 << 2
	AccuracyHundredMeters     Accuracy = 1 << 3
	AccuracyKilometer         Accuracy = 1 << 4
	AccuracyThreeKilometers   Accuracy = 1 << 5
	AccuracyReduced           Accuracy = 1 << 6
)

func (a Accuracy) String() string {
	switch a {
	case AccuracyBestForNavigation:
		return "best_for_navigation"
	case AccuracyBest:
		return "best"
	case AccuracyNearestTenMeters:
		return "nearest_ten_meters"
	case AccuracyHundredMeters:
		return "hundred_meters"
	case AccuracyKilometer:
		return "kilometer"
	case AccuracyThreeKilometers:
		return "three_kilometers"
	case AccuracyReduced:
		return "reduced"
	default:
		return fmt.Sprintf("accuracy(%d)", int(a))
	}
}

// Valid reports whether a is one of the known tiers.
func (a Accuracy) Valid() bool {
	switch a {
	case AccuracyBestForNavigation, AccuracyBest, AccuracyNearestTenMeters, AccuracyHundredMeters,
		AccuracyKilometer, AccuracyThreeKilometers, AccuracyReduced:
		return true
	}
	return false
}

// Priority maps the tier onto the coarser provider priority.
func (a Accuracy) Priority() Priority {
	switch a {
	case AccuracyBestForNavigation, AccuracyBest, AccuracyNearestTenMeters:
		return PriorityHighAccuracy
	case AccuracyHundredMeters:
		return PriorityBalancedPower
	default:
		return PriorityLowPower
	}
}

// ParseAccuracy accepts either the tier name or its numeric value.
func ParseAccuracy(s string) (Accuracy, error) {
	for _, a := range []Accuracy{
		AccuracyBestForNavigation, AccuracyBest, AccuracyNearestTenMeters, AccuracyHundredMeters,
		AccuracyKilometer, AccuracyThreeKilometers, AccuracyReduced,
	} {
		if s == a.String() || s == fmt.Sprint(int(a)) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown accuracy %q", s)
}

// Priority is the provider-side power/accuracy trade-off.
type Priority string

const (
	PriorityHighAccuracy  Priority = "high_accuracy"
	PriorityBalancedPower Priority = "balanced_power"
	PriorityLowPower      Priority = "low_power"
)

// Settings holds the user-configurable session parameters.
type Settings struct {
	Accuracy                Accuracy
	UpdateIntervalSeconds   int
	MaxWaitSeconds          int
	DistanceFilterMeters    float64
	ReturnStringCoordinates bool
	FailureTimeoutSeconds   int
	AutoCheckCapability     bool
	DebugLogEnabled         bool
}

// DefaultSettings returns the settings a fresh plugin starts with.
func DefaultSettings() Settings {
	return Settings{
		Accuracy:                AccuracyBest,
		UpdateIntervalSeconds:   1,
		MaxWaitSeconds:          1,
		DistanceFilterMeters:    0,
		ReturnStringCoordinates: true,
		FailureTimeoutSeconds:   20,
		AutoCheckCapability:     false,
		DebugLogEnabled:         false,
	}
}

// Validate checks every field and returns the first violation.
func (s Settings) Validate() error {
	if !s.Accuracy.Valid() {
		return fmt.Errorf("accuracy %d is not a known tier", int(s.Accuracy))
	}
	if err := ValidateSeconds("update interval", s.UpdateIntervalSeconds); err != nil {
		return err
	}
	if err := ValidateSeconds("max wait time", s.MaxWaitSeconds); err != nil {
		return err
	}
	if err := ValidateSeconds("failure timeout", s.FailureTimeoutSeconds); err != nil {
		return err
	}
	return ValidateDistance(s.DistanceFilterMeters)
}

// ValidateSeconds rejects negative durations.
func ValidateSeconds(name string, seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("%s must be >= 0, got %d", name, seconds)
	}
	return nil
}

// ValidateDistance rejects negative and non-finite distances.
func ValidateDistance(meters float64) error {
	if math.IsNaN(meters) || math.IsInf(meters, 0) {
		return fmt.Errorf("distance filter must be finite, got %v", meters)
	}
	if meters < 0 {
		return fmt.Errorf("distance filter must be >= 0, got %v", meters)
	}
	return nil
}

// FailureTimeout returns the watchdog bound; zero means disabled.
func (s Settings) FailureTimeout() time.Duration {
	return time.Duration(s.FailureTimeoutSeconds) * time.Second
}

// ContinuousRequest builds the provider request for continuous updates.
func (s Settings) ContinuousRequest() LocationRequest {
	return LocationRequest{
		Priority:    s.Accuracy.Priority(),
		Interval:    time.Duration(s.UpdateIntervalSeconds) * time.Second,
		MaxWait:     time.Duration(s.MaxWaitSeconds) * time.Second,
		MinDistance: s.DistanceFilterMeters,
	}
}

// SingleFixRequest builds the provider request for a one-shot fix.
func (s Settings) SingleFixRequest() LocationRequest {
	return LocationRequest{
		Priority:   s.Accuracy.Priority(),
		Interval:   time.Duration(s.UpdateIntervalSeconds) * time.Second,
		MaxUpdates: 1,
	}
}

package geolocation

import (
	"strconv"

	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/domain"
)

// unavailable marks accuracy fields the platform did not report.
const unavailable = -1.0

// Normalize converts a provider sample into the consumer record.
func Normalize(sample domain.RawSample, returnStringCoordinates bool) domain.LocationData {
	data := domain.LocationData{
		Latitude:         sample.Latitude,
		Longitude:        sample.Longitude,
		Accuracy:         sample.Accuracy,
		Altitude:         sample.Altitude,
		AltitudeAccuracy: valueOr(sample.VerticalAccuracy, unavailable),
		Course:           sample.Bearing,
		CourseAccuracy:   valueOr(sample.BearingAccuracy, unavailable),
		Speed:            sample.Speed,
		SpeedAccuracy:    valueOr(sample.SpeedAccuracy, unavailable),
		Timestamp:        floorDiv(sample.TimeMillis, 1000),
	}

	if returnStringCoordinates {
		data.LatitudeString = strconv.FormatFloat(sample.Latitude, 'f', -1, 64)
		data.LongitudeString = strconv.FormatFloat(sample.Longitude, 'f', -1, 64)
	}

	return data
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

// floorDiv rounds toward negative infinity, unlike Go's integer division.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

package domain

// RawSample is a location fix as reported by the provider. Optional
// accuracies are nil when the platform does not report them.
type RawSample struct {
	Latitude         float64
	Longitude        float64
	Accuracy         float64
	Altitude         float64
	VerticalAccuracy *float64
	Bearing          float64
	BearingAccuracy  *float64
	Speed            float64
	SpeedAccuracy    *float64
	TimeMillis       int64
}

// LocationData is the canonical record handed to the consumer.
type LocationData struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	LatitudeString   string  `json:"latitude_string,omitempty"`
	LongitudeString  string  `json:"longitude_string,omitempty"`
	Accuracy         float64 `json:"accuracy"`
	Altitude         float64 `json:"altitude"`
	AltitudeAccuracy float64 `json:"altitude_accuracy"`
	Course           float64 `json:"course"`
	CourseAccuracy   float64 `json:"course_accuracy"`
	Speed            float64 `json:"speed"`
	SpeedAccuracy    float64 `json:"speed_accuracy"`
	Timestamp        int64   `json:"timestamp"`
}

// HasStringCoordinates reports whether the stringified coordinates are set.
func (d LocationData) HasStringCoordinates() bool {
	return d.LatitudeString != "" || d.LongitudeString != ""
}

// HeadingData is part of the signal surface but never produced by this
// bridge; heading is not available from the fused provider.
type HeadingData struct {
	MagneticHeading float64 `json:"magnetic_heading"`
	TrueHeading     float64 `json:"true_heading"`
	HeadingAccuracy float64 `json:"heading_accuracy"`
	Timestamp       int64   `json:"timestamp"`
}

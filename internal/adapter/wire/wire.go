// Package wire holds the JSON messages exchanged with the device bridge and
// the subscription registry shared by the provider transports.
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/domain"
)

type Action string

const (
	ActionStart Action = "start"
	ActionStop  Action = "stop"
)

// Request asks the device to start or stop a location subscription.
type Request struct {
	SubscriptionID string          `json:"subscription_id"`
	Action         Action          `json:"action"`
	Priority       domain.Priority `json:"priority,omitempty"`
	IntervalMS     int64           `json:"interval_ms,omitempty"`
	MaxWaitMS      int64           `json:"max_wait_ms,omitempty"`
	MinDistanceM   float64         `json:"min_distance_m,omitempty"`
	MaxUpdates     int             `json:"max_updates,omitempty"`
}

func StartRequest(subscriptionID string, req domain.LocationRequest) Request {
	return Request{
		SubscriptionID: subscriptionID,
		Action:         ActionStart,
		Priority:       req.Priority,
		IntervalMS:     req.Interval.Milliseconds(),
		MaxWaitMS:      req.MaxWait.Milliseconds(),
		MinDistanceM:   req.MinDistance,
		MaxUpdates:     req.MaxUpdates,
	}
}

func StopRequest(subscriptionID string) Request {
	return Request{SubscriptionID: subscriptionID, Action: ActionStop}
}

// LocationRequest converts a start request back to the provider request.
func (r Request) LocationRequest() domain.LocationRequest {
	return domain.LocationRequest{
		Priority:    r.Priority,
		Interval:    time.Duration(r.IntervalMS) * time.Millisecond,
		MaxWait:     time.Duration(r.MaxWaitMS) * time.Millisecond,
		MinDistance: r.MinDistanceM,
		MaxUpdates:  r.MaxUpdates,
	}
}

// Sample is a location fix reported by the device. A sample without a
// subscription id is meant for every open subscription.
type Sample struct {
	SubscriptionID   string   `json:"subscription_id,omitempty"`
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	Accuracy         float64  `json:"accuracy"`
	Altitude         float64  `json:"altitude"`
	VerticalAccuracy *float64 `json:"vertical_accuracy,omitempty"`
	Bearing          float64  `json:"bearing"`
	BearingAccuracy  *float64 `json:"bearing_accuracy,omitempty"`
	Speed            float64  `json:"speed"`
	SpeedAccuracy    *float64 `json:"speed_accuracy,omitempty"`
	TimeMS           int64    `json:"time_ms"`
	Error            string   `json:"error,omitempty"`
}

func (s Sample) Raw() domain.RawSample {
	return domain.RawSample{
		Latitude:         s.Latitude,
		Longitude:        s.Longitude,
		Accuracy:         s.Accuracy,
		Altitude:         s.Altitude,
		VerticalAccuracy: s.VerticalAccuracy,
		Bearing:          s.Bearing,
		BearingAccuracy:  s.BearingAccuracy,
		Speed:            s.Speed,
		SpeedAccuracy:    s.SpeedAccuracy,
		TimeMillis:       s.TimeMS,
	}
}

// CapabilityReply answers a capability check.
type CapabilityReply struct {
	LocationPresent bool `json:"location_present"`
}

func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	return data, nil
}

// DecodeSample parses and sanity-checks a sample message.
func DecodeSample(data []byte) (Sample, error) {
	var s Sample
	if err := json.Unmarshal(data, &s); err != nil {
		return Sample{}, fmt.Errorf("failed to decode sample: %w", err)
	}
	if s.Error != "" {
		return s, nil
	}
	if s.Latitude < -90 || s.Latitude > 90 || s.Longitude < -180 || s.Longitude > 180 {
		return Sample{}, fmt.Errorf("sample coordinates out of range: %v,%v", s.Latitude, s.Longitude)
	}
	return s, nil
}

func DecodeRequest(data []byte) (Request, error) {
	var r Request
	if err := json.Unmarshal(data, &r); err != nil {
		return Request{}, fmt.Errorf("failed to decode request: %w", err)
	}
	if r.SubscriptionID == "" {
		return Request{}, fmt.Errorf("request without subscription id")
	}
	if r.Action != ActionStart && r.Action != ActionStop {
		return Request{}, fmt.Errorf("unknown request action %q", r.Action)
	}
	return r, nil
}

package domain

import (
	"context"
	"time"
)

// LocationRequest describes a provider subscription.
// MaxUpdates == 0 means unlimited.
type LocationRequest struct {
	Priority    Priority
	Interval    time.Duration
	MaxWait     time.Duration
	MinDistance float64
	MaxUpdates  int
}

// SampleHandler receives samples and stream errors from a subscription.
// Implementations of LocationProvider may call it from any goroutine.
type SampleHandler interface {
	OnSample(sample RawSample)
	OnError(err error)
}

// Subscription is a running provider subscription.
type Subscription interface {
	Cancel(ctx context.Context) error
}

// LocationProvider is the fused location provider of the device.
type LocationProvider interface {
	Subscribe(ctx context.Context, req LocationRequest, handler SampleHandler) (Subscription, error)
	// CheckSettings reports whether locations can be produced under req.
	CheckSettings(ctx context.Context, req LocationRequest) (bool, error)
}

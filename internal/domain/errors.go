package domain

import "errors"

var (
	// ErrProviderUnavailable marks provider failures caused by the transport
	// rather than by the provider itself.
	ErrProviderUnavailable = errors.New("location provider unavailable")
	ErrSubscriptionClosed  = errors.New("subscription closed")
	ErrManagerStopped      = errors.New("session manager stopped")
)

package wire

import (
	"errors"
	"sync"

	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/domain"
)

// ErrDeviceReported wraps errors reported by the device in a sample message.
var ErrDeviceReported = errors.New("device reported location error")

// Registry routes incoming samples to the handlers of open subscriptions.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]domain.SampleHandler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]domain.SampleHandler)}
}

func (r *Registry) Add(subscriptionID string, handler domain.SampleHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[subscriptionID] = handler
}

// Remove reports whether the subscription was still open.
func (r *Registry) Remove(subscriptionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handlers[subscriptionID]
	delete(r.handlers, subscriptionID)
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Dispatch delivers s and returns the number of handlers reached.
func (r *Registry) Dispatch(s Sample) int {
	r.mu.RLock()
	var targets []domain.SampleHandler
	if s.SubscriptionID != "" {
		if h, ok := r.handlers[s.SubscriptionID]; ok {
			targets = append(targets, h)
		}
	} else {
		for _, h := range r.handlers {
			targets = append(targets, h)
		}
	}
	r.mu.RUnlock()

	for _, h := range targets {
		if s.Error != "" {
			h.OnError(errors.Join(ErrDeviceReported, errors.New(s.Error)))
			continue
		}
		h.OnSample(s.Raw())
	}
	return len(targets)
}

// Fail reports err to every open subscription.
func (r *Registry) Fail(err error) {
	r.mu.RLock()
	targets := make([]domain.SampleHandler, 0, len(r.handlers))
	for _, h := range r.handlers {
		targets = append(targets, h)
	}
	r.mu.RUnlock()

	for _, h := range targets {
		h.OnError(err)
	}
}

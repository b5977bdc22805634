package rabbitmq

import (
	"log/slog"
	"time"

	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/adapter/metrics"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
)

// newBreaker opens after 5 consecutive publish failures and lets one probe
// through after delay.
func newBreaker(delay time.Duration, providerMetrics *metrics.ProviderMetrics) circuitbreaker.CircuitBreaker[any] {
	return circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(5).
		WithDelay(delay).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "rabbitmq",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			if providerMetrics != nil {
				providerMetrics.BreakerState.Set(stateToFloat(e.NewState))
			}
		}).
		Build()
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

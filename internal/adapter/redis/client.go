package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/adapter/metrics"
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/platform/retry"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

// NewClient connects to Redis, installs the metrics and circuit breaker hooks and waits
// until the server answers a ping. Both metric sets may be nil.
func NewClient(ctx context.Context, redisURL string, providerMetrics *metrics.ProviderMetrics, redisMetrics *metrics.RedisMetrics) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	if redisMetrics != nil {
		rdb.AddHook(NewMetricsHook(redisMetrics, clockwork.NewRealClock()))
	}

	policy := retry.Connect
	policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Redis not reachable, retrying", "attempt", attempt, "backoff", backoff, "error", err)
	}
	_, err = retry.Do(ctx, policy, retry.Always, func(ctx context.Context) (string, error) {
		return rdb.Ping(ctx).Result()
	})
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis not reachable: %w", err)
	}

	// Installed after the startup pings so connection retries cannot trip it
	rdb.AddHook(NewCircuitBreakerHook(providerMetrics))
	return rdb, nil
}

package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/platform/retry"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Connection owns the broker connection and the single channel the provider
// publishes and consumes on.
type Connection struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Dial connects to the broker, retrying with the connect policy.
func Dial(ctx context.Context, url string) (*Connection, error) {
	policy := retry.Connect
	policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.Warn("RabbitMQ not reachable, retrying", "attempt", attempt, "backoff", backoff, "error", err)
	}

	conn, err := retry.Do(ctx, policy, retry.Always, func(context.Context) (*amqp.Connection, error) {
		return amqp.Dial(url)
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq not reachable: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.Qos(10, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	slog.Info("Connected to RabbitMQ")
	return &Connection{conn: conn, ch: ch}, nil
}

func (c *Connection) Channel() *amqp.Channel {
	return c.ch
}

func (c *Connection) Close() error {
	return errors.Join(c.ch.Close(), c.conn.Close())
}

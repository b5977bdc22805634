package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/adapter/metrics"
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/adapter/wire"
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/domain"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Provider bridges the device's fused location provider over Redis pub/sub.
// Requests go out on RequestsChannel, samples come back on SamplesChannel and
// the device mirrors its location settings into CapabilityKey.
type Provider struct {
	rdb      *goredis.Client
	registry *wire.Registry
	checks   singleflight.Group
	metrics  *metrics.ProviderMetrics
	ready    chan struct{}
}

var _ domain.LocationProvider = (*Provider)(nil)

// NewProvider creates the provider. Run must be started to receive samples.
// providerMetrics may be nil.
func NewProvider(rdb *goredis.Client, providerMetrics *metrics.ProviderMetrics) *Provider {
	return &Provider{
		rdb:      rdb,
		registry: wire.NewRegistry(),
		metrics:  providerMetrics,
		ready:    make(chan struct{}),
	}
}

func (p *Provider) Subscribe(ctx context.Context, req domain.LocationRequest, handler domain.SampleHandler) (domain.Subscription, error) {
	id := uuid.NewString()
	p.registry.Add(id, handler)

	if err := p.publish(ctx, wire.StartRequest(id, req)); err != nil {
		p.registry.Remove(id)
		return nil, err
	}

	slog.DebugContext(ctx, "Location subscription requested", "subscription_id", id, "priority", req.Priority, "interval", req.Interval)
	return &subscription{provider: p, id: id}, nil
}

// CheckSettings reads the capability the device last reported. Concurrent
// checks share one round trip. A missing report counts as not capable.
func (p *Provider) CheckSettings(ctx context.Context, _ domain.LocationRequest) (bool, error) {
	v, err, _ := p.checks.Do(CapabilityKey, func() (any, error) {
		present, err := p.rdb.HGet(ctx, CapabilityKey, fieldLocationPresent).Bool()
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%w: capability lookup: %w", domain.ErrProviderUnavailable, err)
		}
		return present, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// SetCapability records the device capability. Used by the device bridge
// and in tests.
func (p *Provider) SetCapability(ctx context.Context, locationPresent bool) error {
	if err := p.rdb.HSet(ctx, CapabilityKey, fieldLocationPresent, locationPresent).Err(); err != nil {
		return fmt.Errorf("failed to store capability: %w", err)
	}
	return nil
}

// Ready is closed once Run is subscribed to the samples channel.
func (p *Provider) Ready() <-chan struct{} {
	return p.ready
}

// Run receives samples until ctx is cancelled. If the subscription breaks,
// every open subscription is told the provider is unavailable.
func (p *Provider) Run(ctx context.Context) error {
	pubsub := p.rdb.Subscribe(ctx, SamplesChannel)
	defer func() { _ = pubsub.Close() }()

	if _, err := pubsub.Receive(ctx); err != nil {
		p.registry.Fail(domain.ErrProviderUnavailable)
		return fmt.Errorf("failed to subscribe to %s: %w", SamplesChannel, err)
	}
	close(p.ready)
	slog.Info("Redis location provider listening", "channel", SamplesChannel)

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				p.registry.Fail(domain.ErrProviderUnavailable)
				return fmt.Errorf("sample subscription closed: %w", domain.ErrProviderUnavailable)
			}
			p.handleSample(ctx, msg.Payload)
		case <-ctx.Done():
			return nil
		}
	}
}

func (p *Provider) handleSample(ctx context.Context, payload string) {
	sample, err := wire.DecodeSample([]byte(payload))
	if err != nil {
		if p.metrics != nil {
			p.metrics.DecodeFailures.Inc()
		}
		slog.WarnContext(ctx, "Dropping undecodable sample", "error", err)
		return
	}

	if p.metrics != nil {
		p.metrics.SamplesReceived.Inc()
	}
	if n := p.registry.Dispatch(sample); n == 0 {
		slog.DebugContext(ctx, "Sample without open subscription", "subscription_id", sample.SubscriptionID)
	}
}

func (p *Provider) publish(ctx context.Context, req wire.Request) error {
	data, err := wire.Encode(req)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, RequestsChannel, data).Err(); err != nil {
		return fmt.Errorf("%w: publish %s request: %w", domain.ErrProviderUnavailable, req.Action, err)
	}
	if p.metrics != nil {
		p.metrics.MessagesPublished.WithLabelValues(string(req.Action)).Inc()
	}
	return nil
}

type subscription struct {
	provider *Provider
	id       string
}

// Cancel stops the device subscription. Cancelling twice is a no-op.
func (s *subscription) Cancel(ctx context.Context) error {
	if !s.provider.registry.Remove(s.id) {
		return nil
	}
	return s.provider.publish(ctx, wire.StopRequest(s.id))
}

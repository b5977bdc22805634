package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/adapter/metrics"
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/adapter/wire"
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/domain"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Topology shared with the device bridge.
const (
	Exchange        = "geolocation"
	SamplesExchange = "geolocation.samples"
	RequestKey      = "request"
	CapabilityKey   = "capability"
)

const (
	publishTimeout = 5 * time.Second
	breakerDelay   = 30 * time.Second
)

// channel is the subset of *amqp.Channel the provider uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

var _ channel = (*amqp.Channel)(nil)

type Provider struct {
	ch       channel
	registry *wire.Registry
	breaker  circuitbreaker.CircuitBreaker[any]
	metrics  *metrics.ProviderMetrics
	ready    chan struct{}

	mu      sync.Mutex
	replyTo string
	pending map[string]chan wire.CapabilityReply
}

var _ domain.LocationProvider = (*Provider)(nil)

// NewProvider creates the provider on ch. Run must be started before
// samples or capability replies are received. providerMetrics may be nil.
func NewProvider(ch *amqp.Channel, providerMetrics *metrics.ProviderMetrics) *Provider {
	return newProvider(ch, breakerDelay, providerMetrics)
}

func newProvider(ch channel, delay time.Duration, providerMetrics *metrics.ProviderMetrics) *Provider {
	return &Provider{
		ch:       ch,
		registry: wire.NewRegistry(),
		breaker:  newBreaker(delay, providerMetrics),
		metrics:  providerMetrics,
		ready:    make(chan struct{}),
		pending:  make(map[string]chan wire.CapabilityReply),
	}
}

func (p *Provider) Subscribe(ctx context.Context, req domain.LocationRequest, handler domain.SampleHandler) (domain.Subscription, error) {
	id := uuid.NewString()
	p.registry.Add(id, handler)

	if err := p.publishRequest(ctx, wire.StartRequest(id, req)); err != nil {
		p.registry.Remove(id)
		return nil, err
	}

	slog.DebugContext(ctx, "Location subscription requested", "subscription_id", id, "priority", req.Priority, "interval", req.Interval)
	return &subscription{provider: p, id: id}, nil
}

// CheckSettings asks the device over RPC. It fails with
// ErrProviderUnavailable until Run has declared the reply queue.
func (p *Provider) CheckSettings(ctx context.Context, req domain.LocationRequest) (bool, error) {
	p.mu.Lock()
	replyTo := p.replyTo
	p.mu.Unlock()
	if replyTo == "" {
		return false, fmt.Errorf("%w: reply queue not ready", domain.ErrProviderUnavailable)
	}

	correlationID := uuid.NewString()
	body, err := wire.Encode(wire.StartRequest(correlationID, req))
	if err != nil {
		return false, err
	}

	replyCh := make(chan wire.CapabilityReply, 1)
	p.mu.Lock()
	p.pending[correlationID] = replyCh
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pending, correlationID)
		p.mu.Unlock()
	}()

	msg := amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: correlationID,
		ReplyTo:       replyTo,
		Body:          body,
		Timestamp:     time.Now(),
	}
	if err := p.publish(ctx, CapabilityKey, "capability", msg); err != nil {
		return false, err
	}

	select {
	case reply := <-replyCh:
		return reply.LocationPresent, nil
	case <-ctx.Done():
		return false, fmt.Errorf("%w: capability reply: %w", domain.ErrProviderUnavailable, ctx.Err())
	}
}

// Ready is closed once Run is consuming.
func (p *Provider) Ready() <-chan struct{} {
	return p.ready
}

// Run declares the topology and consumes samples and capability replies
// until ctx is cancelled. If a delivery channel closes, every open
// subscription is told the provider is unavailable.
func (p *Provider) Run(ctx context.Context) error {
	samples, replies, err := p.declare()
	if err != nil {
		p.registry.Fail(domain.ErrProviderUnavailable)
		return err
	}
	close(p.ready)
	slog.Info("RabbitMQ location provider listening", "exchange", SamplesExchange)

	for {
		select {
		case msg, ok := <-samples:
			if !ok {
				p.registry.Fail(domain.ErrProviderUnavailable)
				return fmt.Errorf("sample consumer closed: %w", domain.ErrProviderUnavailable)
			}
			p.handleSample(ctx, msg)
		case msg, ok := <-replies:
			if !ok {
				p.registry.Fail(domain.ErrProviderUnavailable)
				return fmt.Errorf("reply consumer closed: %w", domain.ErrProviderUnavailable)
			}
			p.handleReply(ctx, msg)
		case <-ctx.Done():
			return nil
		}
	}
}

func (p *Provider) declare() (<-chan amqp.Delivery, <-chan amqp.Delivery, error) {
	if err := p.ch.ExchangeDeclare(Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return nil, nil, fmt.Errorf("failed to declare exchange %s: %w", Exchange, err)
	}
	if err := p.ch.ExchangeDeclare(SamplesExchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return nil, nil, fmt.Errorf("failed to declare exchange %s: %w", SamplesExchange, err)
	}

	sampleQueue, err := p.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to declare sample queue: %w", err)
	}
	if err := p.ch.QueueBind(sampleQueue.Name, "", SamplesExchange, false, nil); err != nil {
		return nil, nil, fmt.Errorf("failed to bind sample queue: %w", err)
	}
	samples, err := p.ch.Consume(sampleQueue.Name, "", false, true, false, false, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to consume samples: %w", err)
	}

	replyQueue, err := p.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to declare reply queue: %w", err)
	}
	replies, err := p.ch.Consume(replyQueue.Name, "", false, true, false, false, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to consume replies: %w", err)
	}

	p.mu.Lock()
	p.replyTo = replyQueue.Name
	p.mu.Unlock()
	return samples, replies, nil
}

// handleSample acks decoded samples and drops undecodable ones without
// requeueing them.
func (p *Provider) handleSample(ctx context.Context, msg amqp.Delivery) {
	sample, err := wire.DecodeSample(msg.Body)
	if err != nil {
		if p.metrics != nil {
			p.metrics.DecodeFailures.Inc()
		}
		slog.WarnContext(ctx, "Dropping undecodable sample", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	if p.metrics != nil {
		p.metrics.SamplesReceived.Inc()
	}
	if n := p.registry.Dispatch(sample); n == 0 {
		slog.DebugContext(ctx, "Sample without open subscription", "subscription_id", sample.SubscriptionID)
	}
	_ = msg.Ack(false)
}

func (p *Provider) handleReply(ctx context.Context, msg amqp.Delivery) {
	_ = msg.Ack(false)

	var reply wire.CapabilityReply
	if err := json.Unmarshal(msg.Body, &reply); err != nil {
		if p.metrics != nil {
			p.metrics.DecodeFailures.Inc()
		}
		slog.WarnContext(ctx, "Dropping undecodable capability reply", "correlation_id", msg.CorrelationId, "error", err)
		return
	}

	p.mu.Lock()
	replyCh, ok := p.pending[msg.CorrelationId]
	p.mu.Unlock()
	if !ok {
		slog.DebugContext(ctx, "Capability reply without pending check", "correlation_id", msg.CorrelationId)
		return
	}

	select {
	case replyCh <- reply:
	default:
	}
}

func (p *Provider) publishRequest(ctx context.Context, req wire.Request) error {
	body, err := wire.Encode(req)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    req.SubscriptionID,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}
	return p.publish(ctx, RequestKey, string(req.Action), msg)
}

func (p *Provider) publish(ctx context.Context, key, action string, msg amqp.Publishing) error {
	if !p.breaker.TryAcquirePermit() {
		return fmt.Errorf("%w: publish %s: %w", domain.ErrProviderUnavailable, action, circuitbreaker.ErrOpen)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.ch.PublishWithContext(ctx, Exchange, key, false, false, msg); err != nil {
		p.breaker.RecordError(err)
		return fmt.Errorf("%w: publish %s: %w", domain.ErrProviderUnavailable, action, err)
	}
	p.breaker.RecordSuccess()

	if p.metrics != nil {
		p.metrics.MessagesPublished.WithLabelValues(action).Inc()
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
	return s.provider.publishRequest(ctx, wire.StopRequest(s.id))
}

// IsBreakerOpen reports whether publishing is currently short-circuited.
func (p *Provider) IsBreakerOpen() bool {
	return p.breaker.State() == circuitbreaker.OpenState
}

package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/adapter/metrics"
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/adapter/wire"
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/domain"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	mu         sync.Mutex
	queues     map[string]chan amqp.Delivery
	order      []string
	published  []published
	publishErr error
	onPublish  func(key string, msg amqp.Publishing)
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{queues: make(map[string]chan amqp.Delivery)}
}

func (f *fakeChannel) ExchangeDeclare(string, string, bool, bool, bool, bool, amqp.Table) error {
	return nil
}

func (f *fakeChannel) QueueDeclare(string, bool, bool, bool, bool, amqp.Table) (amqp.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := fmt.Sprintf("amq.gen-%d", len(f.order)+1)
	f.queues[name] = make(chan amqp.Delivery, 16)
	f.order = append(f.order, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) QueueBind(string, string, string, bool, amqp.Table) error {
	return nil
}

func (f *fakeChannel) Consume(queue string, _ string, _, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queues[queue], nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	err := f.publishErr
	if err == nil {
		f.published = append(f.published, published{exchange: exchange, key: key, msg: msg})
	}
	onPublish := f.onPublish
	f.mu.Unlock()

	if err == nil && onPublish != nil {
		onPublish(key, msg)
	}
	return err
}

func (f *fakeChannel) deliver(queueIndex int, d amqp.Delivery) {
	f.mu.Lock()
	q := f.queues[f.order[queueIndex]]
	f.mu.Unlock()
	q <- d
}

func (f *fakeChannel) publishedMessages() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.published...)
}

type fakeAcknowledger struct {
	mu       sync.Mutex
	acks     int
	nacks    int
	requeued bool
}

func (a *fakeAcknowledger) Ack(uint64, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks++
	return nil
}

func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks++
	a.requeued = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(uint64, bool) error { return nil }

func (a *fakeAcknowledger) counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acks, a.nacks
}

type recordingHandler struct {
	mu      sync.Mutex
	samples []domain.RawSample
	errs    []error
}

func (h *recordingHandler) OnSample(s domain.RawSample) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = append(h.samples, s)
}

func (h *recordingHandler) OnError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
}

func (h *recordingHandler) counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.samples), len(h.errs)
}

func startProvider(t *testing.T, ch *fakeChannel, m *metrics.ProviderMetrics) (*Provider, chan error) {
	t.Helper()
	p := newProvider(ch, time.Hour, m)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	t.Cleanup(cancel)

	select {
	case <-p.Ready():
	case <-time.After(time.Second):
		t.Fatal("provider not ready")
	}
	return p, done
}

func TestProvider_SubscribePublishesStartAndStop(t *testing.T) {
	ch := newFakeChannel()
	m := metrics.NewProviderMetrics(prometheus.NewRegistry(), "amqp")
	p := newProvider(ch, time.Hour, m)
	ctx := context.Background()

	sub, err := p.Subscribe(ctx, domain.LocationRequest{Priority: domain.PriorityLowPower, Interval: 2 * time.Second}, &recordingHandler{})
	require.NoError(t, err)
	require.NoError(t, sub.Cancel(ctx))
	require.NoError(t, sub.Cancel(ctx))

	msgs := ch.publishedMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, Exchange, msgs[0].exchange)
	assert.Equal(t, RequestKey, msgs[0].key)

	start, err := wire.DecodeRequest(msgs[0].msg.Body)
	require.NoError(t, err)
	assert.Equal(t, wire.ActionStart, start.Action)
	assert.Equal(t, domain.PriorityLowPower, start.Priority)
	assert.Equal(t, int64(2000), start.IntervalMS)
	assert.Equal(t, start.SubscriptionID, msgs[0].msg.MessageId)

	stop, err := wire.DecodeRequest(msgs[1].msg.Body)
	require.NoError(t, err)
	assert.Equal(t, wire.ActionStop, stop.Action)
	assert.Equal(t, start.SubscriptionID, stop.SubscriptionID)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesPublished.WithLabelValues("start")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesPublished.WithLabelValues("stop")))
}

func TestProvider_PublishFailure(t *testing.T) {
	ch := newFakeChannel()
	ch.publishErr = errors.New("channel/connection is not open")
	p := newProvider(ch, time.Hour, nil)

	sub, err := p.Subscribe(context.Background(), domain.LocationRequest{}, &recordingHandler{})

	assert.Nil(t, sub)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Zero(t, p.registry.Len())
}

func TestProvider_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	ch := newFakeChannel()
	ch.publishErr = errors.New("channel/connection is not open")
	m := metrics.NewProviderMetrics(prometheus.NewRegistry(), "amqp")
	p := newProvider(ch, time.Hour, m)

	for i := 0; i < 5; i++ {
		_, err := p.Subscribe(context.Background(), domain.LocationRequest{}, &recordingHandler{})
		require.Error(t, err)
	}
	require.True(t, p.IsBreakerOpen())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState))

	ch.mu.Lock()
	ch.publishErr = nil
	ch.mu.Unlock()

	_, err := p.Subscribe(context.Background(), domain.LocationRequest{}, &recordingHandler{})
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Empty(t, ch.publishedMessages())
}

func TestProvider_RunDispatchesSamples(t *testing.T) {
	ch := newFakeChannel()
	m := metrics.NewProviderMetrics(prometheus.NewRegistry(), "amqp")
	p, _ := startProvider(t, ch, m)

	h := &recordingHandler{}
	_, err := p.Subscribe(context.Background(), domain.LocationRequest{}, h)
	require.NoError(t, err)

	good := &fakeAcknowledger{}
	ch.deliver(0, amqp.Delivery{Acknowledger: good, Body: []byte(`{"latitude":48.1,"longitude":11.5,"time_ms":1000}`)})
	bad := &fakeAcknowledger{}
	ch.deliver(0, amqp.Delivery{Acknowledger: bad, Body: []byte(`{"latitude":120,"longitude":0}`)})

	require.Eventually(t, func() bool {
		acks, _ := good.counts()
		_, nacks := bad.counts()
		return acks == 1 && nacks == 1
	}, time.Second, 5*time.Millisecond)

	samples, errs := h.counts()
	assert.Equal(t, 1, samples)
	assert.Zero(t, errs)
	assert.False(t, bad.requeued, "undecodable samples must not be requeued")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SamplesReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodeFailures))
}

func TestProvider_RunFailsSubscriptionsWhenConsumerCloses(t *testing.T) {
	ch := newFakeChannel()
	p, done := startProvider(t, ch, nil)

	h := &recordingHandler{}
	_, err := p.Subscribe(context.Background(), domain.LocationRequest{}, h)
	require.NoError(t, err)

	ch.mu.Lock()
	close(ch.queues[ch.order[0]])
	ch.mu.Unlock()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	_, errs := h.counts()
	assert.Equal(t, 1, errs)
}

func TestProvider_CheckSettingsBeforeRun(t *testing.T) {
	p := newProvider(newFakeChannel(), time.Hour, nil)

	_, err := p.CheckSettings(context.Background(), domain.LocationRequest{})

	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestProvider_CheckSettingsRoundTrip(t *testing.T) {
	ch := newFakeChannel()
	p, _ := startProvider(t, ch, nil)

	ch.mu.Lock()
	ch.onPublish = func(key string, msg amqp.Publishing) {
		if key != CapabilityKey {
			return
		}
		go func() {
			// unrelated reply first; must be ignored
			ch.deliver(1, amqp.Delivery{Acknowledger: &fakeAcknowledger{}, CorrelationId: "other", Body: []byte(`{"location_present":false}`)})
			body, _ := json.Marshal(wire.CapabilityReply{LocationPresent: true})
			ch.deliver(1, amqp.Delivery{Acknowledger: &fakeAcknowledger{}, CorrelationId: msg.CorrelationId, Body: body})
		}()
	}
	ch.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	capable, err := p.CheckSettings(ctx, domain.LocationRequest{Priority: domain.PriorityHighAccuracy})
	require.NoError(t, err)
	assert.True(t, capable)

	msgs := ch.publishedMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "amq.gen-2", msgs[0].msg.ReplyTo)
	assert.NotEmpty(t, msgs[0].msg.CorrelationId)
}

func TestProvider_CheckSettingsTimeout(t *testing.T) {
	ch := newFakeChannel()
	p, _ := startProvider(t, ch, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	capable, err := p.CheckSettings(ctx, domain.LocationRequest{})

	assert.False(t, capable)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Empty(t, p.pending)
}

package websocket

import (
	"encoding/json"
	"log/slog"

	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/adapter/metrics"
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/domain"
	"github.com/centrifugal/centrifuge"
)

// Signal names as seen by game scripts.
const (
	SignalLog                      = "log"
	SignalError                    = "error"
	SignalAuthorizationChanged     = "authorization_changed"
	SignalLocationUpdate           = "location_update"
	SignalHeadingUpdate            = "heading_update"
	SignalLocationCapabilityResult = "location_capability_result"
)

type envelope struct {
	Signal string `json:"signal"`
	Data   any    `json:"data"`
}

type logPayload struct {
	Message string  `json:"message"`
	Number  float64 `json:"number"`
}

type errorPayload struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

type authorizationPayload struct {
	Status int    `json:"status"`
	Name   string `json:"name"`
}

type capabilityPayload struct {
	Capable bool `json:"capable"`
}

// broker is the part of *centrifuge.Node the publisher needs.
type broker interface {
	Publish(channel string, data []byte, opts ...centrifuge.PublishOption) (centrifuge.PublishResult, error)
	PresenceStats(channel string) (centrifuge.PresenceStatsResult, error)
}

// Publisher delivers consumer signals to every connected game client.
// Delivery is best effort; failures are logged and never reach the
// session manager.
type Publisher struct {
	node      broker
	wsMetrics *metrics.WebSocketMetrics
}

var _ domain.Signals = (*Publisher)(nil)

func NewPublisher(node *centrifuge.Node, wsMetrics *metrics.WebSocketMetrics) *Publisher {
	return &Publisher{node: node, wsMetrics: wsMetrics}
}

func (p *Publisher) Log(message string, number float64) {
	p.publish(SignalLog, logPayload{Message: message, Number: number})
}

func (p *Publisher) Error(code domain.ErrorCode) {
	p.publish(SignalError, errorPayload{Code: int(code), Name: code.String()})
}

func (p *Publisher) AuthorizationChanged(status domain.AuthorizationStatus) {
	p.publish(SignalAuthorizationChanged, authorizationPayload{Status: int(status), Name: status.String()})
}

func (p *Publisher) LocationUpdate(data domain.LocationData) {
	p.publish(SignalLocationUpdate, data)
}

func (p *Publisher) HeadingUpdate(data domain.HeadingData) {
	p.publish(SignalHeadingUpdate, data)
}

func (p *Publisher) LocationCapabilityResult(capable bool) {
	p.publish(SignalLocationCapabilityResult, capabilityPayload{Capable: capable})
}

// Listeners returns the number of clients subscribed to the signals channel.
func (p *Publisher) Listeners() int {
	stats, err := p.node.PresenceStats(SignalsChannel)
	if err != nil {
		return 0
	}
	return stats.NumClients
}

func (p *Publisher) publish(signal string, data any) {
	payload, err := json.Marshal(envelope{Signal: signal, Data: data})
	if err != nil {
		slog.Error("Failed to marshal signal", "signal", signal, "error", err)
		return
	}

	if _, err := p.node.Publish(SignalsChannel, payload); err != nil {
		slog.Warn("Failed to publish signal", "signal", signal, "error", err)
		return
	}

	if p.wsMetrics != nil {
		p.wsMetrics.SignalsPublished.WithLabelValues(signal).Inc()
	}
}

package metrics

import "github.com/prometheus/client_golang/prometheus"

// LocationMetrics holds Prometheus metrics for the location session manager.
type LocationMetrics struct {
	Requests           *prometheus.CounterVec
	Errors             *prometheus.CounterVec
	Samples            prometheus.Counter
	WatchdogExpiries   prometheus.Counter
	CapabilityResults  *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
	SettingsRestarts   prometheus.Counter
	LoopPanics         prometheus.Counter
	CommandQueueLength prometheus.Gauge
}

// NewLocationMetrics creates and registers session manager metrics on the given registry.
func NewLocationMetrics(reg prometheus.Registerer) *LocationMetrics {
	m := &LocationMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of provider subscriptions started, by kind.",
		}, []string{"kind"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of error signals emitted, by code.",
		}, []string{"code"}),
		Samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Total number of location updates emitted.",
		}),
		WatchdogExpiries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watchdog_expiries_total",
			Help:      "Total number of failure watchdog expiries.",
		}),
		CapabilityResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capability_results_total",
			Help:      "Total number of capability checks, by result.",
		}, []string{"result"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of one-shot and continuous sessions currently tracked.",
		}),
		SettingsRestarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settings_restarts_total",
			Help:      "Continuous sessions restarted after a settings change.",
		}),
		LoopPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_panics_total",
			Help:      "Panics recovered in the session manager loop.",
		}),
		CommandQueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "command_queue_length",
			Help:      "Current depth of the session manager command channel.",
		}),
	}

	reg.MustRegister(
		m.Requests, m.Errors, m.Samples, m.WatchdogExpiries, m.CapabilityResults,
		m.ActiveSessions, m.SettingsRestarts, m.LoopPanics, m.CommandQueueLength,
	)
	return m
}

// ProviderMetrics holds Prometheus metrics for the provider bridges.
type ProviderMetrics struct {
	MessagesPublished *prometheus.CounterVec
	SamplesReceived   prometheus.Counter
	DecodeFailures    prometheus.Counter
	BreakerState      prometheus.Gauge
}

// NewProviderMetrics creates and registers provider bridge metrics on the given registry.
func NewProviderMetrics(reg prometheus.Registerer, transport string) *ProviderMetrics {
	labels := prometheus.Labels{"transport": transport}
	m := &ProviderMetrics{
		MessagesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "provider",
			Name:        "messages_published_total",
			Help:        "Total number of messages published to the device, by action.",
			ConstLabels: labels,
		}, []string{"action"}),
		SamplesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "provider",
			Name:        "samples_received_total",
			Help:        "Total number of raw samples received from the device.",
			ConstLabels: labels,
		}),
		DecodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "provider",
			Name:        "decode_failures_total",
			Help:        "Total number of device messages that could not be decoded.",
			ConstLabels: labels,
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "provider",
			Name:        "circuit_breaker_state",
			Help:        "Current circuit breaker state (0=closed, 1=half-open, 2=open).",
			ConstLabels: labels,
		}),
	}

	reg.MustRegister(m.MessagesPublished, m.SamplesReceived, m.DecodeFailures, m.BreakerState)
	return m
}

// WebSocketMetrics holds Prometheus metrics for signal delivery over WebSocket.
type WebSocketMetrics struct {
	ActiveConnections prometheus.Gauge
	SignalsPublished  *prometheus.CounterVec
}

// NewWebSocketMetrics creates and registers WebSocket metrics on the given registry.
func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	m := &WebSocketMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of active WebSocket connections.",
		}),
		SignalsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "signals_published_total",
			Help:      "Total number of signals published, by signal name.",
		}, []string{"signal"}),
	}

	reg.MustRegister(m.ActiveConnections, m.SignalsPublished)
	return m
}

package geolocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/adapter/metrics"
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/domain"
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/platform/correlation"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	commandTimeout    = 5 * time.Second  // reply timeout for queries
	providerTimeout   = 10 * time.Second // bound on a single subscribe/cancel call
	permissionTimeout = 2 * time.Second
	stopTimeout       = 10 * time.Second
	commandBuffer     = 256
)

// managerCmd is the command interface for the Manager actor.
type managerCmd interface{ isManagerCmd() }

type baseManagerCmd struct{}

func (baseManagerCmd) isManagerCmd() {}

type requestOnceCmd struct {
	baseManagerCmd
	ctx context.Context
}

type startContinuousCmd struct {
	baseManagerCmd
	ctx context.Context
}

type stopContinuousCmd struct {
	baseManagerCmd
	ctx context.Context
}

type probeCapabilityCmd struct {
	baseManagerCmd
	ctx context.Context
}

type updateSettingsCmd struct {
	baseManagerCmd
	ctx     context.Context
	name    string
	apply   func(*domain.Settings)
	restart bool
}

type raiseCmd struct {
	baseManagerCmd
	ctx  context.Context
	code domain.ErrorCode
}

type getStateCmd struct {
	baseManagerCmd
	replyCh chan State
}

type permissionResultCmd struct {
	baseManagerCmd
	sessionID uuid.UUID
	grants    domain.Grants
	err       error
}

type subscribedCmd struct {
	baseManagerCmd
	sessionID uuid.UUID
	sub       domain.Subscription
	err       error
}

type sampleCmd struct {
	baseManagerCmd
	sessionID uuid.UUID
	sample    domain.RawSample
}

type streamErrorCmd struct {
	baseManagerCmd
	sessionID uuid.UUID
	err       error
}

type watchdogExpiredCmd struct {
	baseManagerCmd
	sessionID  uuid.UUID
	generation uint64
}

type stopCmd struct {
	baseManagerCmd
}

// State is a consistent snapshot of the manager.
type State struct {
	Mode               domain.SessionMode
	Settings           domain.Settings
	OneShotPending     bool
	ContinuousActive   bool
	CapabilityChecks   int
	ContinuousRequest  *domain.LocationRequest
	ContinuousWatchdog bool
	OneShotWatchdog    bool
}

// Manager owns the location-request lifecycle: gating, provider
// subscriptions, settings changes and failure supervision.
type Manager struct {
	cmdCh       chan managerCmd
	clock       clockwork.Clock
	provider    domain.LocationProvider
	permissions domain.PermissionSource
	signals     domain.Signals
	metrics     *metrics.LocationMetrics
	settings    domain.Settings
	gate        *capabilityGate
	oneShot     *session
	continuous  *session
	done        chan struct{}
	stopTimeout time.Duration
}

// NewManager validates the initial settings and starts the manager loop.
// locationMetrics may be nil.
func NewManager(provider domain.LocationProvider, permissions domain.PermissionSource, signals domain.Signals, clock clockwork.Clock, settings domain.Settings, locationMetrics *metrics.LocationMetrics) (*Manager, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid initial settings: %w", err)
	}

	m := &Manager{
		cmdCh:       make(chan managerCmd, commandBuffer),
		clock:       clock,
		provider:    provider,
		permissions: permissions,
		signals:     signals,
		metrics:     locationMetrics,
		settings:    settings,
		done:        make(chan struct{}),
		stopTimeout: stopTimeout,
	}
	m.gate = newCapabilityGate(provider, m.post, m.reportCapability, m.raise)

	go m.run()
	return m, nil
}

// RequestLocation asks for a single fix. Calls made while a one-shot
// request is pending join it and are answered by the same fix.
func (m *Manager) RequestLocation(ctx context.Context) {
	m.post(requestOnceCmd{ctx: detach(ctx)})
}

// StartUpdatingLocation starts continuous updates; a no-op if running.
func (m *Manager) StartUpdatingLocation(ctx context.Context) {
	m.post(startContinuousCmd{ctx: detach(ctx)})
}

// StopUpdatingLocation stops continuous updates. Idempotent.
func (m *Manager) StopUpdatingLocation(ctx context.Context) {
	m.post(stopContinuousCmd{ctx: detach(ctx)})
}

// RequestLocationCapability runs a bare capability probe; the result is
// delivered through the capability signal only.
func (m *Manager) RequestLocationCapability(ctx context.Context) {
	m.post(probeCapabilityCmd{ctx: detach(ctx)})
}

// Report emits an error signal from the manager loop.
func (m *Manager) Report(ctx context.Context, code domain.ErrorCode) {
	m.post(raiseCmd{ctx: detach(ctx), code: code})
}

// IsUpdatingLocation reports whether continuous updates are active.
func (m *Manager) IsUpdatingLocation() bool {
	return m.State().ContinuousActive
}

// Settings returns a copy of the current settings.
func (m *Manager) Settings() domain.Settings {
	return m.State().Settings
}

// State returns a snapshot taken on the manager loop.
// Returns the zero State if the loop does not answer in time.
func (m *Manager) State() State {
	replyCh := make(chan State, 1)
	if !m.post(getStateCmd{replyCh: replyCh}) {
		return State{}
	}

	// Use timeout to prevent blocking forever if the loop is stuck
	timer := m.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case s := <-replyCh:
		return s
	case <-timer.Chan():
		slog.Warn("State query timed out", "timeout", commandTimeout)
		return State{}
	}
}

// Stop cancels every session and shuts the loop down.
// Blocks until the loop has exited or the stop timeout is reached.
func (m *Manager) Stop() {
	if !m.post(stopCmd{}) {
		return
	}

	timeout := m.clock.NewTimer(m.stopTimeout)
	defer timeout.Stop()

	select {
	case <-m.done:
		slog.Info("Session manager stopped gracefully")
	case <-timeout.Chan():
		slog.Warn("Session manager stop timeout exceeded", "timeout", m.stopTimeout)
	}
}

// post hands a command to the loop. Returns false once the loop is gone.
func (m *Manager) post(cmd managerCmd) bool {
	select {
	case <-m.done:
		return false
	default:
	}

	select {
	case m.cmdCh <- cmd:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) run() {
	defer func() {
		close(m.done)
		m.drain()
	}()

	for cmd := range m.cmdCh {
		if m.metrics != nil {
			m.metrics.CommandQueueLength.Set(float64(len(m.cmdCh)))
		}

		if _, ok := cmd.(stopCmd); ok {
			m.handleStop()
			return
		}
		m.dispatch(cmd)
	}
}

func (m *Manager) dispatch(cmd managerCmd) {
	// A panicking handler (usually a consumer callback) must not take the loop down
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Session manager panic recovered", "panic", r, "command_type", fmt.Sprintf("%T", cmd))
			if m.metrics != nil {
				m.metrics.LoopPanics.Inc()
			}
			m.raiseRecovered(domain.ErrorUnknown)
		}
	}()

	switch c := cmd.(type) {
	case requestOnceCmd:
		m.handleRequestOnce(c.ctx)
	case startContinuousCmd:
		m.handleStartContinuous(c.ctx)
	case stopContinuousCmd:
		m.handleStopContinuous(c.ctx)
	case probeCapabilityCmd:
		m.debug(c.ctx, "Capability probe requested", 0)
		m.gate.check(c.ctx, m.settings, nil)
	case updateSettingsCmd:
		m.handleUpdateSettings(c)
	case raiseCmd:
		m.raise(c.ctx, c.code)
	case getStateCmd:
		c.replyCh <- m.snapshot()
	case permissionResultCmd:
		m.handlePermissionResult(c)
	case subscribedCmd:
		m.handleSubscribed(c)
	case sampleCmd:
		m.handleSample(c)
	case streamErrorCmd:
		m.handleStreamError(c)
	case watchdogExpiredCmd:
		m.handleWatchdogExpired(c)
	case capabilityResultCmd:
		m.gate.resolve(c)
	default:
		slog.Warn("Session manager received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
	}
}

func (m *Manager) handleRequestOnce(ctx context.Context) {
	if m.oneShot != nil {
		m.debug(ctx, "Location request joined pending request", 0)
		return
	}

	s := m.newSession(ctx, kindOneShot)
	m.oneShot = s
	m.observeSessions()
	m.debug(ctx, "Location requested", 0)
	m.authorize(s)
}

func (m *Manager) handleStartContinuous(ctx context.Context) {
	if m.continuous != nil {
		m.debug(ctx, "Location updates already running", 0)
		return
	}

	s := m.newSession(ctx, kindContinuous)
	m.continuous = s
	m.observeSessions()
	m.debug(ctx, "Location updates started", float64(m.settings.UpdateIntervalSeconds))
	m.authorize(s)
}

func (m *Manager) handleStopContinuous(ctx context.Context) {
	if m.continuous == nil {
		return
	}
	m.drop(m.continuous)
	m.debug(ctx, "Location updates stopped", 0)
}

// restartIfActive re-subscribes continuous updates with fresh settings.
func (m *Manager) restartIfActive(ctx context.Context) {
	if m.continuous == nil {
		return
	}
	if m.metrics != nil {
		m.metrics.SettingsRestarts.Inc()
	}
	m.handleStopContinuous(ctx)
	m.handleStartContinuous(ctx)
}

func (m *Manager) handleUpdateSettings(c updateSettingsCmd) {
	c.apply(&m.settings)
	slog.DebugContext(c.ctx, "Setting updated", "setting", c.name)
	if c.restart {
		m.restartIfActive(c.ctx)
	}
}

// authorize looks the grants up off the loop. The session stays tracked
// while the lookup runs so repeated calls join it.
func (m *Manager) authorize(s *session) {
	id, ctx := s.id, s.ctx
	go func() {
		permCtx, cancel := context.WithTimeout(ctx, permissionTimeout)
		defer cancel()

		grants, err := m.permissions.Grants(permCtx)
		m.post(permissionResultCmd{sessionID: id, grants: grants, err: err})
	}()
}

// handlePermissionResult fails fast with DENIED when no location permission
// is granted.
func (m *Manager) handlePermissionResult(c permissionResultCmd) {
	s := m.lookup(c.sessionID)
	if s == nil {
		return
	}

	switch {
	case c.err != nil:
		slog.WarnContext(s.ctx, "Permission lookup failed", "session_id", s.id.String(), "error", c.err)
		m.drop(s)
		m.raise(s.ctx, domain.ErrorUnknown)
	case !c.grants.Granted():
		m.drop(s)
		m.raise(s.ctx, domain.ErrorDenied)
	default:
		m.gateThenSubscribe(s)
	}
}

func (m *Manager) gateThenSubscribe(s *session) {
	if !m.settings.AutoCheckCapability {
		m.subscribe(s)
		return
	}

	s.state = stateChecking
	m.gate.check(s.ctx, m.settings, &continuation{
		proceed: func() {
			if m.lookup(s.id) == s {
				m.subscribe(s)
			}
		},
		abandon: func() {
			if m.lookup(s.id) == s {
				m.drop(s)
			}
		},
	})
}

func (m *Manager) subscribe(s *session) {
	if s.kind == kindOneShot {
		s.request = m.settings.SingleFixRequest()
	} else {
		s.request = m.settings.ContinuousRequest()
	}
	s.state = stateSubscribing

	req := s.request
	handler := sessionHandler{sessionID: s.id, post: m.post}
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, providerTimeout)
		defer cancel()

		sub, err := m.provider.Subscribe(ctx, req, handler)
		if !m.post(subscribedCmd{sessionID: s.id, sub: sub, err: err}) && sub != nil {
			m.cancelSubscription(context.Background(), sub)
		}
	}()

	if m.metrics != nil {
		m.metrics.Requests.WithLabelValues(s.kind.String()).Inc()
	}
	if s.watchdog.Arm(m.settings.FailureTimeout()) {
		slog.DebugContext(s.ctx, "Failure watchdog armed", "session_id", s.id.String(), "timeout", m.settings.FailureTimeout())
	}
}

func (m *Manager) handleSubscribed(c subscribedCmd) {
	s := m.lookup(c.sessionID)
	if s == nil {
		// Session ended while the provider call was in flight
		if c.sub != nil {
			m.cancelSubscription(context.Background(), c.sub)
		}
		return
	}

	// A failed subscription frees its slot so the next call subscribes again
	if c.err != nil {
		slog.WarnContext(s.ctx, "Location subscription failed", "session_id", s.id.String(), "kind", s.kind.String(), "error", c.err)
		m.drop(s)
		m.raise(s.ctx, classify(c.err))
		return
	}

	s.sub = c.sub
	s.state = stateSubscribed
	slog.DebugContext(s.ctx, "Location subscription active", "session_id", s.id.String(), "kind", s.kind.String())
}

func (m *Manager) handleSample(c sampleCmd) {
	s := m.lookup(c.sessionID)
	if s == nil {
		return
	}

	s.watchdog.Disarm()
	s.samples++
	data := Normalize(c.sample, m.settings.ReturnStringCoordinates)

	if s.kind == kindOneShot {
		m.drop(s)
	}

	if m.metrics != nil {
		m.metrics.Samples.Inc()
	}
	m.debug(s.ctx, "Location update", data.Accuracy)
	m.signals.LocationUpdate(data)
}

func (m *Manager) handleStreamError(c streamErrorCmd) {
	s := m.lookup(c.sessionID)
	if s == nil {
		return
	}
	slog.WarnContext(s.ctx, "Location stream error", "session_id", s.id.String(), "error", c.err)
	m.raise(s.ctx, classify(c.err))
}

func (m *Manager) handleWatchdogExpired(c watchdogExpiredCmd) {
	s := m.lookup(c.sessionID)
	if s == nil || !s.watchdog.Fire(c.generation) {
		return
	}

	if m.metrics != nil {
		m.metrics.WatchdogExpiries.Inc()
	}
	slog.InfoContext(s.ctx, "No location within failure timeout", "session_id", s.id.String(), "kind", s.kind.String())

	m.drop(s)
	m.raise(s.ctx, domain.ErrorTimeout)
}

func (m *Manager) handleStop() {
	slog.Info("Session manager shutting down", "one_shot", m.oneShot != nil, "continuous", m.continuous != nil)
	if m.oneShot != nil {
		m.drop(m.oneShot)
	}
	if m.continuous != nil {
		m.drop(m.continuous)
	}
}

// drain releases subscriptions that completed while the loop was stopping.
func (m *Manager) drain() {
	for {
		select {
		case cmd := <-m.cmdCh:
			if c, ok := cmd.(subscribedCmd); ok && c.sub != nil {
				m.cancelSubscription(context.Background(), c.sub)
			}
		default:
			return
		}
	}
}

func (m *Manager) newSession(ctx context.Context, kind sessionKind) *session {
	id := uuid.New()
	s := &session{id: id, kind: kind, state: stateAuthorizing, ctx: ctx}
	s.watchdog = NewWatchdog(m.clock, func(generation uint64) {
		m.post(watchdogExpiredCmd{sessionID: id, generation: generation})
	})
	return s
}

func (m *Manager) lookup(id uuid.UUID) *session {
	if m.oneShot != nil && m.oneShot.id == id {
		return m.oneShot
	}
	if m.continuous != nil && m.continuous.id == id {
		return m.continuous
	}
	return nil
}

// drop disarms the session's own watchdog, cancels its subscription and
// forgets it.
func (m *Manager) drop(s *session) {
	s.watchdog.Disarm()
	if s.sub != nil {
		m.cancelSubscription(s.ctx, s.sub)
		s.sub = nil
	}

	switch s {
	case m.oneShot:
		m.oneShot = nil
	case m.continuous:
		m.continuous = nil
	}
	m.observeSessions()
}

func (m *Manager) cancelSubscription(ctx context.Context, sub domain.Subscription) {
	go func() {
		cancelCtx, cancel := context.WithTimeout(ctx, providerTimeout)
		defer cancel()

		if err := sub.Cancel(cancelCtx); err != nil {
			slog.WarnContext(ctx, "Failed to cancel location subscription", "error", err)
		}
	}()
}

func (m *Manager) snapshot() State {
	st := State{
		Mode:             m.mode(),
		Settings:         m.settings,
		OneShotPending:   m.oneShot != nil,
		ContinuousActive: m.continuous != nil,
		CapabilityChecks: m.gate.inFlight(),
	}
	if m.oneShot != nil {
		st.OneShotWatchdog = m.oneShot.watchdog.Armed()
	}
	if m.continuous != nil {
		req := m.continuous.request
		st.ContinuousRequest = &req
		st.ContinuousWatchdog = m.continuous.watchdog.Armed()
	}
	return st
}

func (m *Manager) mode() domain.SessionMode {
	switch {
	case m.continuous != nil:
		return domain.SessionContinuousActive
	case m.oneShot != nil:
		return domain.SessionOneShotPending
	default:
		return domain.SessionIdle
	}
}

func (m *Manager) observeSessions() {
	if m.metrics == nil {
		return
	}
	n := 0
	if m.oneShot != nil {
		n++
	}
	if m.continuous != nil {
		n++
	}
	m.metrics.ActiveSessions.Set(float64(n))
}

func (m *Manager) reportCapability(ctx context.Context, capable bool) {
	if m.metrics != nil {
		m.metrics.CapabilityResults.WithLabelValues(fmt.Sprint(capable)).Inc()
	}
	m.debug(ctx, "Location capability result", boolNumber(capable))
	m.signals.LocationCapabilityResult(capable)
}

func (m *Manager) raise(ctx context.Context, code domain.ErrorCode) {
	if m.metrics != nil {
		m.metrics.Errors.WithLabelValues(code.String()).Inc()
	}
	slog.InfoContext(ctx, "Location error", "code", code.String())
	m.signals.Error(code)
}

// raiseRecovered reports an error after a recovered panic without letting a
// second panic escape the loop.
func (m *Manager) raiseRecovered(code domain.ErrorCode) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Error signal panicked", "panic", r)
		}
	}()
	m.raise(context.Background(), code)
}

// debug writes a debug line and, when enabled, the consumer log signal.
func (m *Manager) debug(ctx context.Context, message string, number float64) {
	slog.DebugContext(ctx, message, "number", number)
	if m.settings.DebugLogEnabled {
		m.signals.Log(message, number)
	}
}

func classify(err error) domain.ErrorCode {
	if errors.Is(err, domain.ErrProviderUnavailable) {
		return domain.ErrorNetwork
	}
	return domain.ErrorLocationUnknown
}

func boolNumber(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// detach keeps the values of ctx but drops its cancellation; sessions
// outlive the call that started them. Every command carries a correlation ID.
func detach(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return correlation.Ensure(context.WithoutCancel(ctx))
}

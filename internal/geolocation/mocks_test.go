package geolocation

import (
	"context"
	"sync"

	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/domain"
)

// fakeProvider records subscriptions and lets tests drive their handlers.
type fakeProvider struct {
	mu           sync.Mutex
	subscribeErr error
	capable      bool
	checkErr     error
	requests     []domain.LocationRequest
	handlers     []domain.SampleHandler
	cancels      int
	checks       int
}

func (p *fakeProvider) Subscribe(_ context.Context, req domain.LocationRequest, handler domain.SampleHandler) (domain.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)
	if p.subscribeErr != nil {
		return nil, p.subscribeErr
	}
	p.handlers = append(p.handlers, handler)
	return &fakeSubscription{provider: p}, nil
}

func (p *fakeProvider) CheckSettings(_ context.Context, _ domain.LocationRequest) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.checks++
	return p.capable, p.checkErr
}

func (p *fakeProvider) setSubscribeErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribeErr = err
}

func (p *fakeProvider) subscribeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func (p *fakeProvider) request(i int) domain.LocationRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[i]
}

func (p *fakeProvider) handler(i int) domain.SampleHandler {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handlers[i]
}

func (p *fakeProvider) cancelCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancels
}

func (p *fakeProvider) checkCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checks
}

type fakeSubscription struct {
	provider *fakeProvider
}

func (s *fakeSubscription) Cancel(_ context.Context) error {
	s.provider.mu.Lock()
	defer s.provider.mu.Unlock()
	s.provider.cancels++
	return nil
}

// fakePermissions answers grant lookups. A non-nil release channel holds
// every lookup until it is closed.
type fakePermissions struct {
	mu      sync.Mutex
	grants  domain.Grants
	err     error
	release chan struct{}
	lookups int
}

func (p *fakePermissions) Grants(ctx context.Context) (domain.Grants, error) {
	p.mu.Lock()
	p.lookups++
	grants, err, release := p.grants, p.err, p.release
	p.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return domain.Grants{}, ctx.Err()
		}
	}
	return grants, err
}

func (p *fakePermissions) lookupCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lookups
}

// recordingSignals captures every emitted signal.
type recordingSignals struct {
	mu              sync.Mutex
	logs            []string
	errors          []domain.ErrorCode
	locations       []domain.LocationData
	capability      []bool
	panicOnLocation bool
}

func (s *recordingSignals) Log(message string, _ float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, message)
}

func (s *recordingSignals) Error(code domain.ErrorCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, code)
}

func (s *recordingSignals) AuthorizationChanged(domain.AuthorizationStatus) {}

func (s *recordingSignals) LocationUpdate(data domain.LocationData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicOnLocation {
		panic("consumer callback failed")
	}
	s.locations = append(s.locations, data)
}

func (s *recordingSignals) HeadingUpdate(domain.HeadingData) {}

func (s *recordingSignals) LocationCapabilityResult(capable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capability = append(s.capability, capable)
}

func (s *recordingSignals) errorCodes() []domain.ErrorCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ErrorCode(nil), s.errors...)
}

func (s *recordingSignals) locationUpdates() []domain.LocationData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.LocationData(nil), s.locations...)
}

func (s *recordingSignals) capabilityResults() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.capability...)
}

func (s *recordingSignals) logMessages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.logs...)
}

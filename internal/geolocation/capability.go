package geolocation

import (
	"context"
	"log/slog"
	"time"

	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/domain"
	"github.com/google/uuid"
)

const capabilityTimeout = 10 * time.Second

// continuation is what a gated caller runs after the check.
// proceed runs on a positive result; abandon runs after the error on a
// negative one so the caller can release its session.
type continuation struct {
	proceed func()
	abandon func()
}

// capabilityGate asks the provider whether locations can be produced under
// the current settings. Results are posted back to the manager loop and
// resolved there; every check resolves exactly once.
type capabilityGate struct {
	provider domain.LocationProvider
	post     func(managerCmd) bool
	report   func(ctx context.Context, capable bool)
	raise    func(ctx context.Context, code domain.ErrorCode)
	pending  map[uuid.UUID]pendingCheck
}

type pendingCheck struct {
	ctx  context.Context
	next *continuation
}

type capabilityResultCmd struct {
	baseManagerCmd
	checkID uuid.UUID
	capable bool
	err     error
}

func newCapabilityGate(provider domain.LocationProvider, post func(managerCmd) bool, report func(context.Context, bool), raise func(context.Context, domain.ErrorCode)) *capabilityGate {
	return &capabilityGate{
		provider: provider,
		post:     post,
		report:   report,
		raise:    raise,
		pending:  make(map[uuid.UUID]pendingCheck),
	}
}

// check issues one asynchronous settings check. A nil next makes it a bare
// probe: a negative result is reported but never raised as an error.
func (g *capabilityGate) check(ctx context.Context, settings domain.Settings, next *continuation) uuid.UUID {
	checkID := uuid.New()
	g.pending[checkID] = pendingCheck{ctx: ctx, next: next}

	req := settings.ContinuousRequest()
	go func() {
		checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), capabilityTimeout)
		defer cancel()

		capable, err := g.provider.CheckSettings(checkCtx, req)
		g.post(capabilityResultCmd{checkID: checkID, capable: capable, err: err})
	}()

	return checkID
}

func (g *capabilityGate) resolve(c capabilityResultCmd) {
	p, ok := g.pending[c.checkID]
	if !ok {
		return
	}
	delete(g.pending, c.checkID)

	if c.err != nil {
		slog.WarnContext(p.ctx, "Capability check failed", "check_id", c.checkID.String(), "error", c.err)
	}

	capable := c.err == nil && c.capable
	g.report(p.ctx, capable)

	if capable {
		if p.next != nil && p.next.proceed != nil {
			p.next.proceed()
		}
		return
	}

	if p.next != nil {
		g.raise(p.ctx, domain.ErrorLocationDisabled)
		if p.next.abandon != nil {
			p.next.abandon()
		}
	}
}

// inFlight returns the number of unresolved checks.
func (g *capabilityGate) inFlight() int {
	return len(g.pending)
}

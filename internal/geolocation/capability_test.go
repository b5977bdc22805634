package geolocation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gateHarness captures what the gate posts and emits so resolve can be
// driven synchronously.
type gateHarness struct {
	mu       sync.Mutex
	posted   []capabilityResultCmd
	reported []bool
	raised   []domain.ErrorCode
}

func (h *gateHarness) post(cmd managerCmd) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.posted = append(h.posted, cmd.(capabilityResultCmd))
	return true
}

func (h *gateHarness) report(_ context.Context, capable bool) { h.reported = append(h.reported, capable) }

func (h *gateHarness) raise(_ context.Context, code domain.ErrorCode) { h.raised = append(h.raised, code) }

func (h *gateHarness) result(t *testing.T) capabilityResultCmd {
	t.Helper()
	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.posted) == 1
	}, time.Second, time.Millisecond)

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.posted[0]
}

func TestCapabilityGate_PositiveProceeds(t *testing.T) {
	h := &gateHarness{}
	g := newCapabilityGate(&fakeProvider{capable: true}, h.post, h.report, h.raise)

	var proceeded, abandoned bool
	g.check(context.Background(), domain.DefaultSettings(), &continuation{
		proceed: func() { proceeded = true },
		abandon: func() { abandoned = true },
	})
	assert.Equal(t, 1, g.inFlight())

	g.resolve(h.result(t))

	assert.True(t, proceeded)
	assert.False(t, abandoned)
	assert.Equal(t, []bool{true}, h.reported)
	assert.Empty(t, h.raised)
	assert.Zero(t, g.inFlight())
}

func TestCapabilityGate_NegativeGatedRaisesDisabled(t *testing.T) {
	h := &gateHarness{}
	g := newCapabilityGate(&fakeProvider{capable: false}, h.post, h.report, h.raise)

	var proceeded, abandoned bool
	g.check(context.Background(), domain.DefaultSettings(), &continuation{
		proceed: func() { proceeded = true },
		abandon: func() { abandoned = true },
	})
	g.resolve(h.result(t))

	assert.False(t, proceeded)
	assert.True(t, abandoned)
	assert.Equal(t, []bool{false}, h.reported)
	assert.Equal(t, []domain.ErrorCode{domain.ErrorLocationDisabled}, h.raised)
}

func TestCapabilityGate_BareProbeNeverRaises(t *testing.T) {
	h := &gateHarness{}
	g := newCapabilityGate(&fakeProvider{checkErr: errors.New("boom")}, h.post, h.report, h.raise)

	g.check(context.Background(), domain.DefaultSettings(), nil)
	g.resolve(h.result(t))

	assert.Equal(t, []bool{false}, h.reported)
	assert.Empty(t, h.raised)
}

func TestCapabilityGate_ResolvesOnce(t *testing.T) {
	h := &gateHarness{}
	g := newCapabilityGate(&fakeProvider{capable: true}, h.post, h.report, h.raise)

	calls := 0
	g.check(context.Background(), domain.DefaultSettings(), &continuation{proceed: func() { calls++ }})
	result := h.result(t)

	g.resolve(result)
	g.resolve(result)

	assert.Equal(t, 1, calls)
	assert.Len(t, h.reported, 1)
}

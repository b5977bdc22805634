package geolocation

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Watchdog bounds the time until the first location event of a session.
// It lives on the manager loop and is not safe for concurrent use; the
// expired callback runs on a timer goroutine and must only hand the
// generation back to the loop, which then calls Fire.
type Watchdog struct {
	clock      clockwork.Clock
	expired    func(generation uint64)
	timer      clockwork.Timer
	generation uint64
	armed      bool
}

func NewWatchdog(clock clockwork.Clock, expired func(generation uint64)) *Watchdog {
	return &Watchdog{clock: clock, expired: expired}
}

// Arm starts a new arm cycle, cancelling any pending one first.
// A non-positive timeout leaves the watchdog disarmed.
func (w *Watchdog) Arm(timeout time.Duration) bool {
	w.Disarm()
	if timeout <= 0 {
		return false
	}

	w.generation++
	generation := w.generation
	expired := w.expired
	w.timer = w.clock.AfterFunc(timeout, func() { expired(generation) })
	w.armed = true
	return true
}

// Disarm cancels the pending expiry. Returns false if nothing was armed.
func (w *Watchdog) Disarm() bool {
	if !w.armed {
		return false
	}
	w.timer.Stop()
	w.timer = nil
	w.armed = false
	return true
}

// Fire consumes an expiry delivered for generation. Expiries from an
// earlier cycle, or ones that lost the race against Disarm, are rejected,
// so each arm cycle fires at most once.
func (w *Watchdog) Fire(generation uint64) bool {
	if !w.armed || generation != w.generation {
		return false
	}
	w.timer = nil
	w.armed = false
	return true
}

// Armed reports whether an expiry is pending.
func (w *Watchdog) Armed() bool {
	return w.armed
}

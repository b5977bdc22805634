// Package geolocation implements the location-update session manager.
//
// The Manager is an actor: one goroutine owns the settings and the tracked sessions and is fed by a
// command channel (no mutexes). Provider calls run in their own goroutines and report back through the
// same channel, so samples, capability results and watchdog expiries never race session state.
// Each session owns its own failure Watchdog.
package geolocation

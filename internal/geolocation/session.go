package geolocation

import (
	"context"

	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/domain"
	"github.com/google/uuid"
)

type sessionKind int

const (
	kindOneShot sessionKind = iota
	kindContinuous
)

func (k sessionKind) String() string {
	if k == kindContinuous {
		return "continuous"
	}
	return "one_shot"
}

type sessionState int

const (
	stateAuthorizing sessionState = iota
	stateChecking
	stateSubscribing
	stateSubscribed
)

// session is one in-flight request. It owns its watchdog so that stopping
// one session can never cancel the timeout of another.
type session struct {
	id       uuid.UUID
	kind     sessionKind
	state    sessionState
	ctx      context.Context
	request  domain.LocationRequest
	sub      domain.Subscription
	watchdog *Watchdog
	samples  int
}

// sessionHandler forwards provider callbacks onto the manager loop.
type sessionHandler struct {
	sessionID uuid.UUID
	post      func(managerCmd) bool
}

func (h sessionHandler) OnSample(sample domain.RawSample) {
	h.post(sampleCmd{sessionID: h.sessionID, sample: sample})
}

func (h sessionHandler) OnError(err error) {
	h.post(streamErrorCmd{sessionID: h.sessionID, err: err})
}

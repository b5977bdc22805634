package domain

// SessionMode is the observable state of the session manager.
type SessionMode int

const (
	SessionIdle SessionMode = iota
	SessionOneShotPending
	SessionContinuousActive
)

func (m SessionMode) String() string {
	switch m {
	case SessionOneShotPending:
		return "one_shot_pending"
	case SessionContinuousActive:
		return "continuous_active"
	default:
		return "idle"
	}
}

package domain

import "context"

// AuthorizationStatus is derived from the permission grants on demand.
type AuthorizationStatus int

const (
	AuthorizationUnknown AuthorizationStatus = 1 << 0
	AuthorizationDenied  AuthorizationStatus = 1 << 1
	AuthorizationAllowed AuthorizationStatus = 1 << 2
)

func (s AuthorizationStatus) String() string {
	switch s {
	case AuthorizationDenied:
		return "denied"
	case AuthorizationAllowed:
		return "allowed"
	default:
		return "unknown"
	}
}

// Grants are the independent permission grants of the device.
type Grants struct {
	Coarse        bool
	Fine          bool
	ShowRationale bool
	CanRequest    bool
}

// Granted reports whether any location permission is present.
func (g Grants) Granted() bool {
	return g.Coarse || g.Fine
}

// Status folds the grants into the three-valued authorization status.
func (g Grants) Status() AuthorizationStatus {
	if g.Granted() {
		return AuthorizationAllowed
	}
	return AuthorizationDenied
}

// PermissionSource reads the current permission grants.
type PermissionSource interface {
	Grants(ctx context.Context) (Grants, error)
}

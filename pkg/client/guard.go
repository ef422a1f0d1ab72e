package client

import "github.com/edushield/edushield/pkg/rbac"

// Requirement names a permission a route needs
type Requirement struct {
	Resource rbac.Resource
	Action   rbac.Action
}

// Decision is the access guard's verdict for a route
type Decision int

const (
	// DecisionAllow renders the route
	DecisionAllow Decision = iota
	// DecisionDefer renders a loading state; identity or permissions
	// are still being established and no verdict is possible yet
	DecisionDefer
	// DecisionSignIn routes to the sign-in view; no identity exists
	DecisionSignIn
	// DecisionUnauthorized renders the unauthorized view. The identity
	// is established and definitively lacks the requirement; this is a
	// view outcome, not a session change.
	DecisionUnauthorized
)

func (d Decision) String() string {
	return []string{"allow", "defer", "sign-in", "unauthorized"}[d]
}

// Guard turns session snapshots into routing decisions
type Guard struct {
	session *Session
}

// NewGuard creates a guard over a session
func NewGuard(session *Session) *Guard {
	return &Guard{session: session}
}

// Check evaluates a route's requirements against the current session.
// All requirements must be held; an empty list only requires an
// authenticated identity.
func (g *Guard) Check(requirements ...Requirement) Decision {
	snapshot := g.session.Snapshot()

	switch snapshot.State {
	case StateLoading:
		return DecisionDefer
	case StateUnauthenticated:
		return DecisionSignIn
	}

	if snapshot.PermissionState != PermissionsReady {
		return DecisionDefer
	}

	for _, req := range requirements {
		if !snapshot.Permissions.Has(req.Resource, req.Action) {
			return DecisionUnauthorized
		}
	}
	return DecisionAllow
}

// CheckRole evaluates a route's role requirement: the identity's role
// name must appear in the list. The role arrives with the identity
// itself, so unlike permission checks no readiness wait is needed.
// An empty list denies.
func (g *Guard) CheckRole(roles ...string) Decision {
	snapshot := g.session.Snapshot()

	switch snapshot.State {
	case StateLoading:
		return DecisionDefer
	case StateUnauthenticated:
		return DecisionSignIn
	}

	if snapshot.User != nil {
		for _, role := range roles {
			if snapshot.User.RoleName == role {
				return DecisionAllow
			}
		}
	}
	return DecisionUnauthorized
}

// CheckAny is Check with any-of semantics: one held requirement
// admits. An empty list denies.
func (g *Guard) CheckAny(requirements ...Requirement) Decision {
	snapshot := g.session.Snapshot()

	switch snapshot.State {
	case StateLoading:
		return DecisionDefer
	case StateUnauthenticated:
		return DecisionSignIn
	}

	if snapshot.PermissionState != PermissionsReady {
		return DecisionDefer
	}

	for _, req := range requirements {
		if snapshot.Permissions.Has(req.Resource, req.Action) {
			return DecisionAllow
		}
	}
	return DecisionUnauthorized
}

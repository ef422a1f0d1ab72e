package client

import (
	"context"
	"sync"

	"github.com/edushield/edushield/pkg/auth"
	"github.com/edushield/edushield/pkg/rbac"
)

// State is the session's authentication state
type State int

const (
	// StateUnauthenticated means no identity is established
	StateUnauthenticated State = iota
	// StateLoading means a sign-in or session resume is in flight
	StateLoading
	// StateAuthenticated means an identity is established
	StateAuthenticated
)

func (s State) String() string {
	return []string{"unauthenticated", "loading", "authenticated"}[s]
}

// PermissionState tracks the permission set within an authenticated
// session
type PermissionState int

const (
	// PermissionsLoading means the effective set is being fetched
	PermissionsLoading PermissionState = iota
	// PermissionsReady means the effective set is usable
	PermissionsReady
)

// Snapshot is a point-in-time view of the session. All fields are
// copies; the snapshot stays valid after the session moves on.
type Snapshot struct {
	State           State
	PermissionState PermissionState
	User            *auth.User
	Permissions     rbac.PermissionSet
	LastError       error
}

// Session drives the client-side identity lifecycle:
//
//	Unauthenticated -> Loading -> Authenticated
//	                               PermissionsLoading -> PermissionsReady
//
// Signing out from any state returns to Unauthenticated and discards
// whatever any in-flight fetch later produces.
type Session struct {
	client  *Client
	onError func(error)

	mu          sync.Mutex
	state       State
	permState   PermissionState
	user        *auth.User
	permissions rbac.PermissionSet
	lastError   error
	notified    bool

	// epoch increments on every sign-in and sign-out; a fetch started
	// under an older epoch must not apply its result
	epoch uint64

	cancelFetch context.CancelFunc
}

// SessionOption configures the session
type SessionOption func(*Session)

// OnPermissionError installs a callback invoked once per failure
// episode when a permission fetch fails. The session still fails
// closed; the callback exists so the UI can tell the user why
// everything is denied.
func OnPermissionError(fn func(error)) SessionOption {
	return func(s *Session) { s.onError = fn }
}

// NewSession creates a session over the API client
func NewSession(client *Client, opts ...SessionOption) *Session {
	s := &Session{
		client:      client,
		state:       StateUnauthenticated,
		permissions: rbac.EmptyPermissionSet(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current session view
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:           s.state,
		PermissionState: s.permState,
		User:            s.user,
		Permissions:     s.permissions,
		LastError:       s.lastError,
	}
}

// SignIn establishes an identity and loads its permission set. On any
// failure the session returns to Unauthenticated.
func (s *Session) SignIn(ctx context.Context, email, password string) error {
	s.mu.Lock()
	s.state = StateLoading
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()

	result, err := s.client.Login(ctx, email, password)
	if err != nil {
		s.mu.Lock()
		if s.epoch == epoch {
			s.state = StateUnauthenticated
			s.lastError = err
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if s.epoch != epoch {
		// Signed out while the login round trip was in flight
		s.mu.Unlock()
		return ErrUnauthenticated
	}
	s.state = StateAuthenticated
	s.permState = PermissionsLoading
	s.user = result.User
	s.permissions = rbac.EmptyPermissionSet()
	s.lastError = nil
	s.notified = false
	s.mu.Unlock()

	return s.refreshPermissions(ctx, epoch)
}

// Resume adopts an existing token, re-establishing identity and
// permissions from /auth/me. Used at startup when a stored token
// survives a restart.
func (s *Session) Resume(ctx context.Context, token string) error {
	s.mu.Lock()
	s.state = StateLoading
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()

	s.client.SetToken(token)
	identity, err := s.client.Me(ctx)
	if err != nil {
		s.mu.Lock()
		if s.epoch == epoch {
			s.state = StateUnauthenticated
			s.lastError = err
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return ErrUnauthenticated
	}
	s.state = StateAuthenticated
	s.permState = PermissionsReady
	s.user = identity.User
	s.permissions = rbac.NewPermissionSet(identity.Permissions)
	s.lastError = nil
	s.notified = false
	return nil
}

// RefreshPermissions re-fetches the effective permission set. Called
// after the server signals a role change, or periodically.
func (s *Session) RefreshPermissions(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateAuthenticated {
		s.mu.Unlock()
		return ErrUnauthenticated
	}
	s.permState = PermissionsLoading
	epoch := s.epoch
	s.mu.Unlock()

	return s.refreshPermissions(ctx, epoch)
}

// refreshPermissions fetches and applies the permission set for the
// given epoch. A result arriving after a sign-out or a newer sign-in
// is discarded unseen.
func (s *Session) refreshPermissions(ctx context.Context, epoch uint64) error {
	fetchCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancelFetch = cancel
	s.mu.Unlock()
	defer cancel()

	perms, err := s.client.MyPermissions(fetchCtx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		// Stale: the session moved on while this fetch was in flight
		return nil
	}

	if err != nil {
		// Fail closed: no permissions means no access, never stale access
		s.permissions = rbac.EmptyPermissionSet()
		s.permState = PermissionsReady
		s.lastError = err
		if s.onError != nil && !s.notified {
			s.notified = true
			s.onError(err)
		}
		return err
	}

	s.permissions = rbac.NewPermissionSet(perms)
	s.permState = PermissionsReady
	s.lastError = nil
	s.notified = false
	return nil
}

// SignOut tears the session down. The local state clears immediately;
// in-flight fetches are cancelled and their results discarded. Server
// side revocation happens best-effort afterwards.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	s.epoch++
	s.state = StateUnauthenticated
	s.user = nil
	s.permissions = rbac.EmptyPermissionSet()
	s.permState = PermissionsLoading
	s.lastError = nil
	s.notified = false
	cancel := s.cancelFetch
	s.cancelFetch = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return s.client.Logout(ctx)
}

// HasPermission reports whether the ready permission set holds the
// exact pair. False whenever the set is not ready.
func (s *Session) HasPermission(resource rbac.Resource, action rbac.Action) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticated || s.permState != PermissionsReady {
		return false
	}
	return s.permissions.Has(resource, action)
}

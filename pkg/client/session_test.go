package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edushield/edushield/pkg/rbac"
)

// fakeAPI is a minimal in-process API for session tests
type fakeAPI struct {
	mu          sync.Mutex
	permissions string
	permStatus  int

	// when set, the permissions handler signals on started and blocks
	// until release closes
	started chan struct{}
	release chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		permissions: `{"data":[{"id":1,"resource":"events","action":"view","display_name":"View Events"}]}`,
		permStatus:  http.StatusOK,
	}
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK,
			`{"data":{"token":"eds_abc","user":{"id":9,"email":"jo@example.org","role_name":"staff"}}}`)
	})
	mux.HandleFunc("/api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK,
			`{"data":{"user":{"id":9,"email":"jo@example.org","role_name":"staff"},"permissions":[{"id":1,"resource":"events","action":"view"}]}}`)
	})
	mux.HandleFunc("/api/v1/permissions/me", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		started, release := f.started, f.release
		status, body := f.permStatus, f.permissions
		f.mu.Unlock()

		if started != nil {
			started <- struct{}{}
			<-release
		}
		jsonResponse(w, status, body)
	})
	return mux
}

func (f *fakeAPI) failPermissions() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permStatus = http.StatusServiceUnavailable
	f.permissions = `{"error":"backend temporarily unavailable"}`
}

func setupSession(t *testing.T, opts ...SessionOption) (*Session, *fakeAPI) {
	t.Helper()
	api := newFakeAPI()
	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)
	return NewSession(New(server.URL), opts...), api
}

func TestSession_SignIn(t *testing.T) {
	session, _ := setupSession(t)

	require.NoError(t, session.SignIn(context.Background(), "jo@example.org", "hunter2hunter2"))

	snapshot := session.Snapshot()
	assert.Equal(t, StateAuthenticated, snapshot.State)
	assert.Equal(t, PermissionsReady, snapshot.PermissionState)
	assert.Equal(t, int64(9), snapshot.User.ID)
	assert.True(t, session.HasPermission(rbac.ResourceEvents, rbac.ActionView))
	assert.False(t, session.HasPermission(rbac.ResourceEvents, rbac.ActionDelete))
}

func TestSession_SignIn_BadCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusUnauthorized, `{"error":"invalid credentials"}`)
	}))
	defer server.Close()
	session := NewSession(New(server.URL))

	err := session.SignIn(context.Background(), "jo@example.org", "wrong")
	require.Error(t, err)

	snapshot := session.Snapshot()
	assert.Equal(t, StateUnauthenticated, snapshot.State)
	assert.NotNil(t, snapshot.LastError)
}

func TestSession_PermissionFetchFailureFailsClosed(t *testing.T) {
	var notifications []error
	session, api := setupSession(t, OnPermissionError(func(err error) {
		notifications = append(notifications, err)
	}))
	api.failPermissions()

	err := session.SignIn(context.Background(), "jo@example.org", "hunter2hunter2")
	require.Error(t, err)

	// Authenticated, but with an empty set: every check denies
	snapshot := session.Snapshot()
	assert.Equal(t, StateAuthenticated, snapshot.State)
	assert.Equal(t, PermissionsReady, snapshot.PermissionState)
	assert.Zero(t, snapshot.Permissions.Len())
	assert.False(t, session.HasPermission(rbac.ResourceEvents, rbac.ActionView))

	// The failure surfaced exactly once
	require.Len(t, notifications, 1)

	// A second failing refresh does not renotify
	_ = session.RefreshPermissions(context.Background())
	assert.Len(t, notifications, 1)
}

func TestSession_RefreshAfterFailureRecovers(t *testing.T) {
	var notifications []error
	session, api := setupSession(t, OnPermissionError(func(err error) {
		notifications = append(notifications, err)
	}))
	api.failPermissions()

	_ = session.SignIn(context.Background(), "jo@example.org", "hunter2hunter2")
	require.Len(t, notifications, 1)

	api.mu.Lock()
	api.permStatus = http.StatusOK
	api.permissions = `{"data":[{"id":1,"resource":"events","action":"view"}]}`
	api.mu.Unlock()

	require.NoError(t, session.RefreshPermissions(context.Background()))
	assert.True(t, session.HasPermission(rbac.ResourceEvents, rbac.ActionView))
	assert.Nil(t, session.Snapshot().LastError)
}

func TestSession_SignOut(t *testing.T) {
	session, _ := setupSession(t)
	require.NoError(t, session.SignIn(context.Background(), "jo@example.org", "hunter2hunter2"))

	require.NoError(t, session.SignOut(context.Background()))

	snapshot := session.Snapshot()
	assert.Equal(t, StateUnauthenticated, snapshot.State)
	assert.Nil(t, snapshot.User)
	assert.False(t, session.HasPermission(rbac.ResourceEvents, rbac.ActionView))
	assert.Empty(t, session.client.Token())
}

func TestSession_SignOutDiscardsInFlightFetch(t *testing.T) {
	session, api := setupSession(t)
	require.NoError(t, session.SignIn(context.Background(), "jo@example.org", "hunter2hunter2"))

	// Block the next permissions fetch mid-flight
	api.mu.Lock()
	api.started = make(chan struct{}, 1)
	api.release = make(chan struct{})
	api.mu.Unlock()

	refreshDone := make(chan error, 1)
	go func() {
		refreshDone <- session.RefreshPermissions(context.Background())
	}()

	// Wait until the fetch reached the server, then sign out under it
	<-api.started
	require.NoError(t, session.SignOut(context.Background()))
	close(api.release)

	select {
	case <-refreshDone:
	case <-time.After(5 * time.Second):
		t.Fatal("refresh did not finish")
	}

	// The stale result never resurrects the session
	snapshot := session.Snapshot()
	assert.Equal(t, StateUnauthenticated, snapshot.State)
	assert.Zero(t, snapshot.Permissions.Len())
	assert.False(t, session.HasPermission(rbac.ResourceEvents, rbac.ActionView))
}

func TestSession_Resume(t *testing.T) {
	session, _ := setupSession(t)

	require.NoError(t, session.Resume(context.Background(), "eds_stored"))

	snapshot := session.Snapshot()
	assert.Equal(t, StateAuthenticated, snapshot.State)
	assert.Equal(t, PermissionsReady, snapshot.PermissionState)
	assert.True(t, session.HasPermission(rbac.ResourceEvents, rbac.ActionView))
}

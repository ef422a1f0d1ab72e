package rbac

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/edushield/edushield/pkg/auth"
	"github.com/edushield/edushield/pkg/contextkeys"
)

func guardRequest(t *testing.T, userID int64) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/roles", nil)
	ctx := contextkeys.WithAuth(req.Context(), &auth.AuthContext{
		User: &auth.User{ID: userID, RoleName: "staff"},
	})
	return req.WithContext(ctx)
}

func okHandler() (http.Handler, *bool) {
	called := false
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}), &called
}

func expectResolve(mock sqlmock.Sqlmock, userID int64, perms ...[2]string) {
	rows := sqlmock.NewRows([]string{"id", "resource", "action", "display_name"})
	for i, p := range perms {
		rows.AddRow(i+1, p[0], p[1], p[0]+" "+p[1])
	}
	mock.ExpectQuery("SELECT p.id, p.resource, p.action, p.display_name").
		WithArgs(userID).
		WillReturnRows(rows)
}

func TestGuard_RequirePermission(t *testing.T) {
	t.Run("allows a holder", func(t *testing.T) {
		registry, mock, done := setupRegistry(t)
		defer done()
		guard := NewGuard(registry, nil)

		expectResolve(mock, 9, [2]string{"roles", "view"})
		next, called := okHandler()
		rec := httptest.NewRecorder()

		guard.RequirePermission(ResourceRoles, ActionView)(next).ServeHTTP(rec, guardRequest(t, 9))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, *called)
	})

	t.Run("denies a non-holder", func(t *testing.T) {
		registry, mock, done := setupRegistry(t)
		defer done()
		guard := NewGuard(registry, nil)

		expectResolve(mock, 9, [2]string{"events", "view"})
		next, called := okHandler()
		rec := httptest.NewRecorder()

		guard.RequirePermission(ResourceRoles, ActionView)(next).ServeHTTP(rec, guardRequest(t, 9))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.False(t, *called)
	})

	t.Run("401 without an identity", func(t *testing.T) {
		registry, _, done := setupRegistry(t)
		defer done()
		guard := NewGuard(registry, nil)

		next, called := okHandler()
		rec := httptest.NewRecorder()

		req := httptest.NewRequest(http.MethodGet, "/roles", nil)
		guard.RequirePermission(ResourceRoles, ActionView)(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, *called)
	})

	t.Run("denies when resolution fails", func(t *testing.T) {
		registry, mock, done := setupRegistry(t)
		defer done()
		guard := NewGuard(registry, nil)

		mock.ExpectQuery("SELECT p.id, p.resource, p.action, p.display_name").
			WithArgs(int64(9)).
			WillReturnError(errors.New("connection refused"))
		next, called := okHandler()
		rec := httptest.NewRecorder()

		guard.RequirePermission(ResourceRoles, ActionView)(next).ServeHTTP(rec, guardRequest(t, 9))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.False(t, *called)
	})
}

func TestGuard_RequireAnyPermission(t *testing.T) {
	registry, mock, done := setupRegistry(t)
	defer done()
	guard := NewGuard(registry, nil)

	expectResolve(mock, 9, [2]string{"events", "view"})
	next, called := okHandler()
	rec := httptest.NewRecorder()

	guard.RequireAnyPermission(
		Permission{Resource: ResourceRoles, Action: ActionView},
		Permission{Resource: ResourceEvents, Action: ActionView},
	)(next).ServeHTTP(rec, guardRequest(t, 9))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, *called)
}

func TestGuard_RequireAllPermissions(t *testing.T) {
	registry, mock, done := setupRegistry(t)
	defer done()
	guard := NewGuard(registry, nil)

	expectResolve(mock, 9, [2]string{"events", "view"})
	next, called := okHandler()
	rec := httptest.NewRecorder()

	guard.RequireAllPermissions(
		Permission{Resource: ResourceEvents, Action: ActionView},
		Permission{Resource: ResourceEvents, Action: ActionUpdate},
	)(next).ServeHTTP(rec, guardRequest(t, 9))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, *called)
}

func TestGuard_RequireRole(t *testing.T) {
	registry, _, done := setupRegistry(t)
	defer done()
	guard := NewGuard(registry, nil)

	t.Run("role held", func(t *testing.T) {
		next, called := okHandler()
		rec := httptest.NewRecorder()
		guard.RequireRole("staff", "admin")(next).ServeHTTP(rec, guardRequest(t, 9))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, *called)
	})

	t.Run("role not held", func(t *testing.T) {
		next, called := okHandler()
		rec := httptest.NewRecorder()
		guard.RequireRole("admin")(next).ServeHTTP(rec, guardRequest(t, 9))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.False(t, *called)
	})
}

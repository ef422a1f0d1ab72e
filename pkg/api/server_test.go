package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/edushield/edushield/pkg/auth"
	"github.com/edushield/edushield/pkg/config"
	"github.com/edushield/edushield/pkg/observability"
	"github.com/edushield/edushield/pkg/rbac"
)

func setupServer(t *testing.T) (*Server, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	registry := rbac.NewRegistry(rbac.NewStore(db), rbac.NewPermissionCache(16, time.Minute, nil), logger, nil)
	service := auth.NewService(auth.NewStore(db, nil), time.Hour, bcrypt.MinCost, logger, nil)

	server := NewServer(Dependencies{
		ServerConfig: config.ServerConfig{AllowedOrigins: []string{"*"}},
		Logger:       logger,
		AuthService:  service,
		Registry:     registry,
		Guard:        rbac.NewGuard(registry, nil),
	})
	return server, mock, func() { db.Close() }
}

func expectAuthenticated(t *testing.T, mock sqlmock.Sqlmock) string {
	t.Helper()
	token, tokenHash, err := auth.NewTokenGenerator().GenerateToken()
	require.NoError(t, err)

	now := time.Now()
	mock.ExpectQuery("SELECT id, token_hash, user_id").
		WithArgs(tokenHash).
		WillReturnRows(sqlmock.NewRows([]string{"id", "token_hash", "user_id", "created_at", "expires_at", "revoked_at"}).
			AddRow(1, tokenHash, 9, now, now.Add(time.Hour), nil))
	mock.ExpectQuery("SELECT u.id, u.name, u.email").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "role_id", "name", "is_active", "created_at", "updated_at"}).
			AddRow(9, "Jo", "jo@example.org", "x", 1, "admin", true, now, now))
	return token
}

func TestServer_ProtectedRoutesRequireAuth(t *testing.T) {
	server, _, done := setupServer(t)
	defer done()

	for _, route := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/roles"},
		{http.MethodGet, "/api/v1/permissions"},
		{http.MethodGet, "/api/v1/menus/me"},
		{http.MethodPost, "/api/v1/auth/logout"},
	} {
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, httptest.NewRequest(route.method, route.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.path)
		assert.Empty(t, rec.Header().Get("Location"), "%s %s must not redirect", route.method, route.path)
	}
}

func TestServer_LoginRouteIsOpen(t *testing.T) {
	server, mock, done := setupServer(t)
	defer done()

	mock.ExpectQuery("SELECT u.id, u.name, u.email").
		WithArgs("nobody@example.org").
		WillReturnError(io.ErrUnexpectedEOF)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"email":"nobody@example.org","password":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	// Reaches the handler without a token; fails on credentials only
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_AuthenticatedRoleList(t *testing.T) {
	server, mock, done := setupServer(t)
	defer done()

	token := expectAuthenticated(t, mock)

	// Guard resolves the admin's permission set
	mock.ExpectQuery("SELECT p.id, p.resource, p.action, p.display_name").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "resource", "action", "display_name"}).
			AddRow(1, "roles", "view", "View Roles"))

	now := time.Now()
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT id, name, display_name").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "display_name", "description", "is_system", "created_at", "updated_at"}).
			AddRow(1, "admin", "Administrator", "", true, now, now))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/roles", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	assert.Equal(t, float64(1), envelope["total_data"])
	assert.Equal(t, float64(1), envelope["total_pages"])
}

func TestServer_DeniedWithoutPermission(t *testing.T) {
	server, mock, done := setupServer(t)
	defer done()

	token := expectAuthenticated(t, mock)

	mock.ExpectQuery("SELECT p.id, p.resource, p.action, p.display_name").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "resource", "action", "display_name"}))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/role/3", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServer_MeReturnsIdentityAndPermissions(t *testing.T) {
	server, mock, done := setupServer(t)
	defer done()

	token := expectAuthenticated(t, mock)
	mock.ExpectQuery("SELECT p.id, p.resource, p.action, p.display_name").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "resource", "action", "display_name"}).
			AddRow(1, "roles", "view", "View Roles"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data struct {
			User        *auth.User        `json:"user"`
			Permissions []rbac.Permission `json:"permissions"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	assert.Equal(t, "jo@example.org", envelope.Data.User.Email)
	require.Len(t, envelope.Data.Permissions, 1)
	assert.Equal(t, rbac.ResourceRoles, envelope.Data.Permissions[0].Resource)
}

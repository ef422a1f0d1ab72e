package rbac

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edushield/edushield/pkg/observability"
)

func setupRegistry(t *testing.T) (*Registry, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	registry := NewRegistry(NewStore(db), NewPermissionCache(16, time.Minute, nil), logger, nil)
	return registry, mock, func() { db.Close() }
}

func expectGetRole(mock sqlmock.Sqlmock, role Role) {
	mock.ExpectQuery("SELECT id, name, display_name, description, is_system, created_at, updated_at").
		WithArgs(role.ID).
		WillReturnRows(roleRows(role))
	mock.ExpectQuery("SELECT permission_id FROM role_permissions").
		WithArgs(role.ID).
		WillReturnRows(sqlmock.NewRows([]string{"permission_id"}))
	mock.ExpectQuery("SELECT menu_id FROM role_menus").
		WithArgs(role.ID).
		WillReturnRows(sqlmock.NewRows([]string{"menu_id"}))
}

func TestRegistry_CreateRole(t *testing.T) {
	t.Run("rejects malformed names", func(t *testing.T) {
		registry, _, done := setupRegistry(t)
		defer done()

		for _, name := range []string{"", "Admin", "with space", "9starts_with_digit", "dash-ed"} {
			_, err := registry.CreateRole(context.Background(), name, "", "")
			assert.True(t, IsValidation(err), "name %q should be rejected", name)
		}
	})

	t.Run("display name defaults to name", func(t *testing.T) {
		registry, mock, done := setupRegistry(t)
		defer done()

		mock.ExpectQuery("INSERT INTO roles").
			WithArgs("auditor", "auditor", "", false, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

		role, err := registry.CreateRole(context.Background(), "auditor", "", "")
		require.NoError(t, err)
		assert.Equal(t, "auditor", role.DisplayName)
		assert.False(t, role.IsSystem)
	})
}

func TestRegistry_UpdateRole_SystemRoleIsImmutable(t *testing.T) {
	registry, mock, done := setupRegistry(t)
	defer done()

	now := time.Now()
	expectGetRole(mock, Role{ID: 1, Name: "admin", DisplayName: "Administrator", IsSystem: true, CreatedAt: now, UpdatedAt: now})

	displayName := "Renamed"
	_, err := registry.UpdateRole(context.Background(), 1, &displayName, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrImmutableField))
}

func TestRegistry_UpdateRole_CustomRole(t *testing.T) {
	registry, mock, done := setupRegistry(t)
	defer done()

	now := time.Now()
	expectGetRole(mock, Role{ID: 4, Name: "auditor", DisplayName: "Auditor", CreatedAt: now, UpdatedAt: now})
	mock.ExpectExec("UPDATE roles").
		WithArgs("Lead Auditor", "", sqlmock.AnyArg(), int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	displayName := "Lead Auditor"
	role, err := registry.UpdateRole(context.Background(), 4, &displayName, nil)
	require.NoError(t, err)
	assert.Equal(t, "Lead Auditor", role.DisplayName)
	assert.Equal(t, "auditor", role.Name)
}

func TestRegistry_UpdateRole_EmptyDisplayNameRejected(t *testing.T) {
	registry, mock, done := setupRegistry(t)
	defer done()

	now := time.Now()
	expectGetRole(mock, Role{ID: 4, Name: "auditor", DisplayName: "Auditor", CreatedAt: now, UpdatedAt: now})

	empty := ""
	_, err := registry.UpdateRole(context.Background(), 4, &empty, nil)
	assert.True(t, IsValidation(err))
}

func TestRegistry_DeleteRole_SystemRoleIsProtected(t *testing.T) {
	registry, mock, done := setupRegistry(t)
	defer done()

	now := time.Now()
	expectGetRole(mock, Role{ID: 2, Name: "staff", DisplayName: "Staff", IsSystem: true, CreatedAt: now, UpdatedAt: now})

	err := registry.DeleteRole(context.Background(), 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProtectedResource))
}

func TestRegistry_ReplacePermissions_AllowedOnSystemRoles(t *testing.T) {
	// Assignments stay editable on system roles; only identity fields
	// are frozen, so no system check happens here.
	registry, mock, done := setupRegistry(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM roles WHERE id = (.+) FOR UPDATE").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec("DELETE FROM role_permissions").
		WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec("UPDATE roles SET updated_at").
		WithArgs(sqlmock.AnyArg(), int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT id FROM users WHERE role_id").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := registry.ReplacePermissions(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistry_CreateMenu(t *testing.T) {
	t.Run("rejects malformed names", func(t *testing.T) {
		registry, _, done := setupRegistry(t)
		defer done()

		_, err := registry.CreateMenu(context.Background(), MenuInput{Name: "Bad Name"})
		assert.True(t, IsValidation(err))
	})

	t.Run("defaults to active", func(t *testing.T) {
		registry, mock, done := setupRegistry(t)
		defer done()

		mock.ExpectQuery("INSERT INTO menus").
			WithArgs("events", "events", "", "", nil, 0, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(8))

		menu, err := registry.CreateMenu(context.Background(), MenuInput{Name: "events"})
		require.NoError(t, err)
		assert.True(t, menu.IsActive)
	})
}

func menuRow(m Menu) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "name", "display_name", "path", "icon", "parent_id", "order_index", "is_active", "created_at", "updated_at"})
	if m.ParentID != nil {
		rows.AddRow(m.ID, m.Name, m.DisplayName, m.Path, m.Icon, *m.ParentID, m.OrderIndex, m.IsActive, m.CreatedAt, m.UpdatedAt)
	} else {
		rows.AddRow(m.ID, m.Name, m.DisplayName, m.Path, m.Icon, nil, m.OrderIndex, m.IsActive, m.CreatedAt, m.UpdatedAt)
	}
	return rows
}

func TestRegistry_UpdateMenu(t *testing.T) {
	now := time.Now()

	t.Run("name is immutable", func(t *testing.T) {
		registry, mock, done := setupRegistry(t)
		defer done()

		mock.ExpectQuery("SELECT id, name, display_name, path, icon, parent_id, order_index, is_active").
			WithArgs(int64(5)).
			WillReturnRows(menuRow(Menu{ID: 5, Name: "events", DisplayName: "Events", IsActive: true, CreatedAt: now, UpdatedAt: now}))

		_, err := registry.UpdateMenu(context.Background(), 5, MenuInput{Name: "renamed"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrImmutableField))
	})

	t.Run("self parent rejected", func(t *testing.T) {
		registry, mock, done := setupRegistry(t)
		defer done()

		mock.ExpectQuery("SELECT id, name, display_name, path, icon, parent_id, order_index, is_active").
			WithArgs(int64(5)).
			WillReturnRows(menuRow(Menu{ID: 5, Name: "events", DisplayName: "Events", IsActive: true, CreatedAt: now, UpdatedAt: now}))

		self := int64(5)
		_, err := registry.UpdateMenu(context.Background(), 5, MenuInput{ParentID: &self})
		assert.True(t, IsValidation(err))
	})

	t.Run("cyclic reparent rejected", func(t *testing.T) {
		registry, mock, done := setupRegistry(t)
		defer done()

		// Menu 5 exists; its proposed parent 6 is currently a child of 5
		mock.ExpectQuery("SELECT id, name, display_name, path, icon, parent_id, order_index, is_active").
			WithArgs(int64(5)).
			WillReturnRows(menuRow(Menu{ID: 5, Name: "events", DisplayName: "Events", IsActive: true, CreatedAt: now, UpdatedAt: now}))
		parentOfSix := int64(5)
		mock.ExpectQuery("SELECT id, name, display_name, path, icon, parent_id, order_index, is_active").
			WithArgs(int64(6)).
			WillReturnRows(menuRow(Menu{ID: 6, Name: "sub_events", DisplayName: "Sub Events", ParentID: &parentOfSix, IsActive: true, CreatedAt: now, UpdatedAt: now}))

		parent := int64(6)
		_, err := registry.UpdateMenu(context.Background(), 5, MenuInput{ParentID: &parent})
		assert.True(t, IsValidation(err))
	})
}

func TestRegistry_Resolve(t *testing.T) {
	t.Run("caches resolved sets", func(t *testing.T) {
		registry, mock, done := setupRegistry(t)
		defer done()

		// Only one database round trip for two resolves
		mock.ExpectQuery("SELECT p.id, p.resource, p.action, p.display_name").
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "resource", "action", "display_name"}).
				AddRow(1, "events", "view", "View Events"))

		first, err := registry.Resolve(context.Background(), 9)
		require.NoError(t, err)
		assert.True(t, first.Has(ResourceEvents, ActionView))

		second, err := registry.Resolve(context.Background(), 9)
		require.NoError(t, err)
		assert.True(t, second.Has(ResourceEvents, ActionView))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fails closed on backend failure", func(t *testing.T) {
		registry, mock, done := setupRegistry(t)
		defer done()

		mock.ExpectQuery("SELECT p.id, p.resource, p.action, p.display_name").
			WithArgs(int64(9)).
			WillReturnError(errors.New("connection refused"))

		set, err := registry.Resolve(context.Background(), 9)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrTransientFetch))
		assert.Zero(t, set.Len())
		assert.False(t, set.Has(ResourceEvents, ActionView))
	})

	t.Run("mutation invalidates holders of the role only", func(t *testing.T) {
		registry, mock, done := setupRegistry(t)
		defer done()

		// Prime the cache for a holder of role 1 and a bystander
		mock.ExpectQuery("SELECT p.id, p.resource, p.action, p.display_name").
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "resource", "action", "display_name"}).
				AddRow(1, "events", "view", "View Events"))
		mock.ExpectQuery("SELECT p.id, p.resource, p.action, p.display_name").
			WithArgs(int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "resource", "action", "display_name"}).
				AddRow(2, "schools", "view", "View Schools"))

		_, err := registry.Resolve(context.Background(), 9)
		require.NoError(t, err)
		_, err = registry.Resolve(context.Background(), 10)
		require.NoError(t, err)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM roles WHERE id = (.+) FOR UPDATE").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectExec("DELETE FROM role_permissions").
			WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE roles SET updated_at").
			WithArgs(sqlmock.AnyArg(), int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		mock.ExpectQuery("SELECT id FROM users WHERE role_id").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
		require.NoError(t, registry.ReplacePermissions(context.Background(), 1, nil))

		// The holder resolves fresh; the bystander stays cached
		mock.ExpectQuery("SELECT p.id, p.resource, p.action, p.display_name").
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "resource", "action", "display_name"}))

		set, err := registry.Resolve(context.Background(), 9)
		require.NoError(t, err)
		assert.Zero(t, set.Len())

		bystander, err := registry.Resolve(context.Background(), 10)
		require.NoError(t, err)
		assert.True(t, bystander.Has(ResourceSchools, ActionView))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("membership lookup failure purges the whole cache", func(t *testing.T) {
		registry, mock, done := setupRegistry(t)
		defer done()

		mock.ExpectQuery("SELECT p.id, p.resource, p.action, p.display_name").
			WithArgs(int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "resource", "action", "display_name"}).
				AddRow(2, "schools", "view", "View Schools"))
		_, err := registry.Resolve(context.Background(), 10)
		require.NoError(t, err)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM roles WHERE id = (.+) FOR UPDATE").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectExec("DELETE FROM role_permissions").
			WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE roles SET updated_at").
			WithArgs(sqlmock.AnyArg(), int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		mock.ExpectQuery("SELECT id FROM users WHERE role_id").
			WithArgs(int64(1)).
			WillReturnError(errors.New("connection refused"))
		require.NoError(t, registry.ReplacePermissions(context.Background(), 1, nil))

		// Even the bystander resolves fresh after the fallback purge
		mock.ExpectQuery("SELECT p.id, p.resource, p.action, p.display_name").
			WithArgs(int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "resource", "action", "display_name"}))
		set, err := registry.Resolve(context.Background(), 10)
		require.NoError(t, err)
		assert.Zero(t, set.Len())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

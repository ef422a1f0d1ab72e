package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Store handles RBAC data persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new RBAC store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ListOptions carries pagination, ordering, and filter settings for
// list queries. OrderBy values are checked against a per-query
// whitelist; unknown columns fall back to the default ordering.
type ListOptions struct {
	Limit          int
	Offset         int
	OrderBy        string
	OrderDirection string
	Search         string
	IsSystem       *bool
	IsActive       *bool
}

func (o ListOptions) direction() string {
	if strings.EqualFold(o.OrderDirection, "desc") {
		return "DESC"
	}
	return "ASC"
}

func orderColumn(requested, fallback string, allowed map[string]bool) string {
	if allowed[requested] {
		return requested
	}
	return fallback
}

// --- Permissions ---

// UpsertPermission inserts a catalog entry or refreshes its display
// name. The (resource, action) identity is never rewritten.
func (s *Store) UpsertPermission(ctx context.Context, p *Permission) error {
	query := `
		INSERT INTO permissions (resource, action, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (resource, action) DO UPDATE SET display_name = EXCLUDED.display_name
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query, p.Resource, p.Action, p.DisplayName).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert permission %s: %w", p.Key(), err)
	}
	return nil
}

// ListPermissions returns the full catalog ordered by resource, action
func (s *Store) ListPermissions(ctx context.Context) ([]Permission, error) {
	query := `
		SELECT id, resource, action, display_name
		FROM permissions
		ORDER BY resource ASC, action ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Resource, &p.Action, &p.DisplayName); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// --- Roles ---

// CreateRole creates a new role
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	query := `
		INSERT INTO roles (name, display_name, description, is_system, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		role.Name,
		role.DisplayName,
		role.Description,
		role.IsSystem,
		now,
		now,
	).Scan(&role.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return &ValidationError{Field: "name", Reason: fmt.Sprintf("role name %q already exists", role.Name)}
		}
		return fmt.Errorf("failed to create role: %w", err)
	}

	role.CreatedAt = now
	role.UpdatedAt = now
	return nil
}

// GetRole retrieves a role by ID including its association sets
func (s *Store) GetRole(ctx context.Context, roleID int64) (*Role, error) {
	query := `
		SELECT id, name, display_name, description, is_system, created_at, updated_at
		FROM roles
		WHERE id = $1
	`

	var role Role
	err := s.db.QueryRowContext(ctx, query, roleID).Scan(
		&role.ID,
		&role.Name,
		&role.DisplayName,
		&role.Description,
		&role.IsSystem,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "role", ID: roleID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	if role.PermissionIDs, err = s.ListRolePermissionIDs(ctx, roleID); err != nil {
		return nil, err
	}
	if role.MenuIDs, err = s.ListRoleMenuIDs(ctx, roleID); err != nil {
		return nil, err
	}

	return &role, nil
}

// GetRoleByName retrieves a role by its stable name
func (s *Store) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	query := `
		SELECT id, name, display_name, description, is_system, created_at, updated_at
		FROM roles
		WHERE name = $1
	`

	var role Role
	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&role.ID,
		&role.Name,
		&role.DisplayName,
		&role.Description,
		&role.IsSystem,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "role"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role by name: %w", err)
	}
	return &role, nil
}

var roleOrderColumns = map[string]bool{
	"name":         true,
	"display_name": true,
	"created_at":   true,
	"updated_at":   true,
}

// ListRoles lists roles with pagination and returns the total count
func (s *Store) ListRoles(ctx context.Context, opts ListOptions) ([]Role, int64, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	if opts.IsSystem != nil {
		args = append(args, *opts.IsSystem)
		where = append(where, fmt.Sprintf("is_system = $%d", len(args)))
	}
	if opts.Search != "" {
		args = append(args, "%"+opts.Search+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR display_name ILIKE $%d)", len(args), len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	var total int64
	countQuery := "SELECT COUNT(*) FROM roles WHERE " + whereClause
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count roles: %w", err)
	}

	orderBy := orderColumn(opts.OrderBy, "name", roleOrderColumns)
	args = append(args, opts.Limit, opts.Offset)
	query := fmt.Sprintf(`
		SELECT id, name, display_name, description, is_system, created_at, updated_at
		FROM roles
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, whereClause, orderBy, opts.direction(), len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		err := rows.Scan(
			&role.ID,
			&role.Name,
			&role.DisplayName,
			&role.Description,
			&role.IsSystem,
			&role.CreatedAt,
			&role.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, total, rows.Err()
}

// UpdateRole updates a role's descriptive fields. Name and is_system
// are never touched here.
func (s *Store) UpdateRole(ctx context.Context, role *Role) error {
	query := `
		UPDATE roles
		SET display_name = $1, description = $2, updated_at = $3
		WHERE id = $4
	`

	role.UpdatedAt = time.Now()
	result, err := s.db.ExecContext(ctx, query,
		role.DisplayName,
		role.Description,
		role.UpdatedAt,
		role.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return &NotFoundError{Entity: "role", ID: role.ID}
	}
	return nil
}

// DeleteRole deletes a role and its association rows in one
// transaction so no orphan join rows remain.
func (s *Store) DeleteRole(ctx context.Context, roleID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	for _, query := range []string{
		`DELETE FROM role_permissions WHERE role_id = $1`,
		`DELETE FROM role_menus WHERE role_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, query, roleID); err != nil {
			return fmt.Errorf("failed to delete role associations: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, roleID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return &ValidationError{Field: "id", Reason: "role is still assigned to users"}
		}
		return fmt.Errorf("failed to delete role: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return &NotFoundError{Entity: "role", ID: roleID}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit role deletion: %w", err)
	}
	return nil
}

// ReplaceRolePermissions atomically replaces the role's permission
// set. Readers see either the old set or the new set, never a mix.
// Unknown permission ids fail the whole operation.
func (s *Store) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockRole(ctx, tx, roleID); err != nil {
		return err
	}

	if len(permissionIDs) > 0 {
		var known int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(DISTINCT id) FROM permissions WHERE id = ANY($1)`,
			pq.Array(permissionIDs),
		).Scan(&known)
		if err != nil {
			return fmt.Errorf("failed to verify permission ids: %w", err)
		}
		if known != len(uniqueIDs(permissionIDs)) {
			return &NotFoundError{Entity: "permission"}
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to clear role permissions: %w", err)
	}
	for _, pid := range uniqueIDs(permissionIDs) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)`,
			roleID, pid,
		); err != nil {
			return fmt.Errorf("failed to insert role permission: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE roles SET updated_at = $1 WHERE id = $2`, time.Now(), roleID); err != nil {
		return fmt.Errorf("failed to touch role: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit permission replacement: %w", err)
	}
	return nil
}

// ReplaceRoleMenus atomically replaces the role's menu set with the
// same contract as ReplaceRolePermissions.
func (s *Store) ReplaceRoleMenus(ctx context.Context, roleID int64, menuIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockRole(ctx, tx, roleID); err != nil {
		return err
	}

	if len(menuIDs) > 0 {
		var known int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(DISTINCT id) FROM menus WHERE id = ANY($1)`,
			pq.Array(menuIDs),
		).Scan(&known)
		if err != nil {
			return fmt.Errorf("failed to verify menu ids: %w", err)
		}
		if known != len(uniqueIDs(menuIDs)) {
			return &NotFoundError{Entity: "menu"}
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM role_menus WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to clear role menus: %w", err)
	}
	for _, mid := range uniqueIDs(menuIDs) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO role_menus (role_id, menu_id) VALUES ($1, $2)`,
			roleID, mid,
		); err != nil {
			return fmt.Errorf("failed to insert role menu: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE roles SET updated_at = $1 WHERE id = $2`, time.Now(), roleID); err != nil {
		return fmt.Errorf("failed to touch role: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit menu replacement: %w", err)
	}
	return nil
}

// lockRole takes a row lock on the role so concurrent replaces against
// the same role serialize, and reports NotFound for missing roles.
func lockRole(ctx context.Context, tx *sql.Tx, roleID int64) error {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM roles WHERE id = $1 FOR UPDATE`, roleID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{Entity: "role", ID: roleID}
	}
	if err != nil {
		return fmt.Errorf("failed to lock role: %w", err)
	}
	return nil
}

// ListRolePermissionIDs returns the role's permission id set
func (s *Store) ListRolePermissionIDs(ctx context.Context, roleID int64) ([]int64, error) {
	return s.listIDs(ctx,
		`SELECT permission_id FROM role_permissions WHERE role_id = $1 ORDER BY permission_id`, roleID)
}

// ListRoleMenuIDs returns the role's menu id set
func (s *Store) ListRoleMenuIDs(ctx context.Context, roleID int64) ([]int64, error) {
	return s.listIDs(ctx,
		`SELECT menu_id FROM role_menus WHERE role_id = $1 ORDER BY menu_id`, roleID)
}

func (s *Store) listIDs(ctx context.Context, query string, args ...interface{}) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ids: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- Menus ---

// CreateMenu creates a new menu record
func (s *Store) CreateMenu(ctx context.Context, menu *Menu) error {
	query := `
		INSERT INTO menus (name, display_name, path, icon, parent_id, order_index, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		menu.Name,
		menu.DisplayName,
		menu.Path,
		menu.Icon,
		menu.ParentID,
		menu.OrderIndex,
		menu.IsActive,
		now,
		now,
	).Scan(&menu.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return &ValidationError{Field: "name", Reason: fmt.Sprintf("menu name %q already exists", menu.Name)}
		}
		if isForeignKeyViolation(err) {
			return &NotFoundError{Entity: "menu (parent)"}
		}
		return fmt.Errorf("failed to create menu: %w", err)
	}

	menu.CreatedAt = now
	menu.UpdatedAt = now
	return nil
}

// GetMenu retrieves a menu by ID
func (s *Store) GetMenu(ctx context.Context, menuID int64) (*Menu, error) {
	query := `
		SELECT id, name, display_name, path, icon, parent_id, order_index, is_active, created_at, updated_at
		FROM menus
		WHERE id = $1
	`

	var menu Menu
	var parentID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, menuID).Scan(
		&menu.ID,
		&menu.Name,
		&menu.DisplayName,
		&menu.Path,
		&menu.Icon,
		&parentID,
		&menu.OrderIndex,
		&menu.IsActive,
		&menu.CreatedAt,
		&menu.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "menu", ID: menuID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get menu: %w", err)
	}
	if parentID.Valid {
		id := parentID.Int64
		menu.ParentID = &id
	}
	return &menu, nil
}

var menuOrderColumns = map[string]bool{
	"name":         true,
	"display_name": true,
	"order_index":  true,
	"created_at":   true,
}

// ListMenus lists menus with pagination and returns the total count
func (s *Store) ListMenus(ctx context.Context, opts ListOptions) ([]Menu, int64, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	if opts.IsActive != nil {
		args = append(args, *opts.IsActive)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if opts.Search != "" {
		args = append(args, "%"+opts.Search+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR display_name ILIKE $%d)", len(args), len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	var total int64
	countQuery := "SELECT COUNT(*) FROM menus WHERE " + whereClause
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count menus: %w", err)
	}

	orderBy := orderColumn(opts.OrderBy, "order_index", menuOrderColumns)
	args = append(args, opts.Limit, opts.Offset)
	query := fmt.Sprintf(`
		SELECT id, name, display_name, path, icon, parent_id, order_index, is_active, created_at, updated_at
		FROM menus
		WHERE %s
		ORDER BY %s %s, name ASC
		LIMIT $%d OFFSET $%d
	`, whereClause, orderBy, opts.direction(), len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list menus: %w", err)
	}
	defer rows.Close()

	menus, err := scanMenus(rows)
	if err != nil {
		return nil, 0, err
	}
	return menus, total, nil
}

// ListAllMenus returns every menu without pagination, in tree-build
// order (order_index then name).
func (s *Store) ListAllMenus(ctx context.Context) ([]Menu, error) {
	query := `
		SELECT id, name, display_name, path, icon, parent_id, order_index, is_active, created_at, updated_at
		FROM menus
		ORDER BY order_index ASC, name ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list menus: %w", err)
	}
	defer rows.Close()
	return scanMenus(rows)
}

func scanMenus(rows *sql.Rows) ([]Menu, error) {
	var menus []Menu
	for rows.Next() {
		var menu Menu
		var parentID sql.NullInt64
		err := rows.Scan(
			&menu.ID,
			&menu.Name,
			&menu.DisplayName,
			&menu.Path,
			&menu.Icon,
			&parentID,
			&menu.OrderIndex,
			&menu.IsActive,
			&menu.CreatedAt,
			&menu.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan menu: %w", err)
		}
		if parentID.Valid {
			id := parentID.Int64
			menu.ParentID = &id
		}
		menus = append(menus, menu)
	}
	return menus, rows.Err()
}

// UpdateMenu updates a menu's mutable fields. Name is never touched.
func (s *Store) UpdateMenu(ctx context.Context, menu *Menu) error {
	query := `
		UPDATE menus
		SET display_name = $1, path = $2, icon = $3, parent_id = $4, order_index = $5, is_active = $6, updated_at = $7
		WHERE id = $8
	`

	menu.UpdatedAt = time.Now()
	result, err := s.db.ExecContext(ctx, query,
		menu.DisplayName,
		menu.Path,
		menu.Icon,
		menu.ParentID,
		menu.OrderIndex,
		menu.IsActive,
		menu.UpdatedAt,
		menu.ID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return &NotFoundError{Entity: "menu (parent)"}
		}
		return fmt.Errorf("failed to update menu: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return &NotFoundError{Entity: "menu", ID: menu.ID}
	}
	return nil
}

// DeleteMenu deletes a menu and its role associations. Children keep
// their parent_id pointing at the deleted id only until the FK sets it
// NULL, so they become roots rather than orphans.
func (s *Store) DeleteMenu(ctx context.Context, menuID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM role_menus WHERE menu_id = $1`, menuID); err != nil {
		return fmt.Errorf("failed to delete menu associations: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM menus WHERE id = $1`, menuID)
	if err != nil {
		return fmt.Errorf("failed to delete menu: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return &NotFoundError{Entity: "menu", ID: menuID}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit menu deletion: %w", err)
	}
	return nil
}

// --- Effective permissions ---

// EffectivePermissions resolves the permission set for a user through
// its single role. Derived at query time, never stored.
func (s *Store) EffectivePermissions(ctx context.Context, userID int64) ([]Permission, error) {
	query := `
		SELECT p.id, p.resource, p.action, p.display_name
		FROM users u
		JOIN role_permissions rp ON rp.role_id = u.role_id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE u.id = $1
		ORDER BY p.resource ASC, p.action ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, &TransientFetchError{Op: "resolve effective permissions", Err: err}
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Resource, &p.Action, &p.DisplayName); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// MenusForUser returns the active menus visible to the user's role
func (s *Store) MenusForUser(ctx context.Context, userID int64) ([]Menu, error) {
	query := `
		SELECT m.id, m.name, m.display_name, m.path, m.icon, m.parent_id, m.order_index, m.is_active, m.created_at, m.updated_at
		FROM users u
		JOIN role_menus rm ON rm.role_id = u.role_id
		JOIN menus m ON m.id = rm.menu_id
		WHERE u.id = $1 AND m.is_active = TRUE
		ORDER BY m.order_index ASC, m.name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, &TransientFetchError{Op: "resolve user menus", Err: err}
	}
	defer rows.Close()
	return scanMenus(rows)
}

// GetUserRole returns the role assigned to a user
func (s *Store) GetUserRole(ctx context.Context, userID int64) (*Role, error) {
	query := `
		SELECT r.id, r.name, r.display_name, r.description, r.is_system, r.created_at, r.updated_at
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1
	`

	var role Role
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&role.ID,
		&role.Name,
		&role.DisplayName,
		&role.Description,
		&role.IsSystem,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "role for user", ID: userID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user role: %w", err)
	}
	return &role, nil
}

// UsersWithRole returns the ids of users currently assigned a role.
// Used to invalidate cached permission sets after a role mutation.
func (s *Store) UsersWithRole(ctx context.Context, roleID int64) ([]int64, error) {
	return s.listIDs(ctx, `SELECT id FROM users WHERE role_id = $1 ORDER BY id`, roleID)
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

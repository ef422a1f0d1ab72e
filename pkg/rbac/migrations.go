package rbac

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/edushield/edushield/pkg/observability"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all RBAC migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS permissions (
					id BIGSERIAL PRIMARY KEY,
					resource VARCHAR(100) NOT NULL,
					action VARCHAR(100) NOT NULL,
					display_name VARCHAR(255) NOT NULL,
					UNIQUE(resource, action)
				);

				CREATE INDEX idx_permissions_resource ON permissions(resource);
			`,
		},
		{
			Version:     2,
			Description: "Create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(100) NOT NULL UNIQUE,
					display_name VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					is_system BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_roles_name ON roles(name);
				CREATE INDEX idx_roles_is_system ON roles(is_system);
			`,
		},
		{
			Version:     3,
			Description: "Create role_permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS role_permissions (
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					permission_id BIGINT NOT NULL REFERENCES permissions(id) ON DELETE RESTRICT,
					PRIMARY KEY (role_id, permission_id)
				);

				CREATE INDEX idx_role_permissions_role_id ON role_permissions(role_id);
			`,
		},
		{
			Version:     4,
			Description: "Create menus table",
			SQL: `
				CREATE TABLE IF NOT EXISTS menus (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(100) NOT NULL UNIQUE,
					display_name VARCHAR(255) NOT NULL,
					path VARCHAR(255) NOT NULL DEFAULT '',
					icon VARCHAR(100) NOT NULL DEFAULT '',
					parent_id BIGINT REFERENCES menus(id) ON DELETE SET NULL,
					order_index INT NOT NULL DEFAULT 0,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_menus_parent_id ON menus(parent_id);
				CREATE INDEX idx_menus_is_active ON menus(is_active);
			`,
		},
		{
			Version:     5,
			Description: "Create role_menus table",
			SQL: `
				CREATE TABLE IF NOT EXISTS role_menus (
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					menu_id BIGINT NOT NULL REFERENCES menus(id) ON DELETE CASCADE,
					PRIMARY KEY (role_id, menu_id)
				);

				CREATE INDEX idx_role_menus_role_id ON role_menus(role_id);
			`,
		},
		{
			Version:     6,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					email VARCHAR(255) NOT NULL UNIQUE,
					password_hash VARCHAR(255) NOT NULL,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE RESTRICT,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_users_email ON users(email);
				CREATE INDEX idx_users_role_id ON users(role_id);
			`,
		},
		{
			Version:     7,
			Description: "Create sessions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS sessions (
					id BIGSERIAL PRIMARY KEY,
					token_hash VARCHAR(64) NOT NULL UNIQUE,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMP NOT NULL,
					revoked_at TIMESTAMP
				);

				CREATE INDEX idx_sessions_user_id ON sessions(user_id);
				CREATE INDEX idx_sessions_expires_at ON sessions(expires_at);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rbac_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM rbac_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		logger.Infof("Running migration %d: %s", migration.Version, migration.Description)

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO rbac_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		logger.Infof("Migration %d completed", migration.Version)
	}

	return nil
}

// SeedCatalog upserts the fixed permission universe. Safe to re-run;
// display names refresh, identities never change.
func SeedCatalog(ctx context.Context, store *Store) error {
	for _, p := range DefaultCatalog() {
		perm := p
		if err := store.UpsertPermission(ctx, &perm); err != nil {
			return fmt.Errorf("failed to seed permission %s: %w", p.Key(), err)
		}
	}
	return nil
}

// SeedSystemRoles creates the system roles if they do not exist and
// grants the admin role the full catalog. Existing roles keep their
// current association sets.
func SeedSystemRoles(ctx context.Context, store *Store, logger *observability.Logger) error {
	catalog, err := store.ListPermissions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	byKey := make(map[string]int64, len(catalog))
	for _, p := range catalog {
		byKey[p.Key()] = p.ID
	}

	for _, role := range SystemRoles() {
		existing, err := store.GetRoleByName(ctx, role.Name)
		if err == nil && existing != nil {
			continue
		}
		if !IsNotFound(err) && err != nil {
			return err
		}

		r := role
		if err := store.CreateRole(ctx, &r); err != nil {
			return fmt.Errorf("failed to create system role %s: %w", role.Name, err)
		}

		var grant []int64
		switch r.Name {
		case RoleAdmin:
			for _, p := range catalog {
				grant = append(grant, p.ID)
			}
		case RoleStaff:
			for _, p := range staffPermissions() {
				if id, ok := byKey[p.Key()]; ok {
					grant = append(grant, id)
				}
			}
		}
		if err := store.ReplaceRolePermissions(ctx, r.ID, grant); err != nil {
			return fmt.Errorf("failed to grant permissions to %s: %w", r.Name, err)
		}

		logger.Infof("Created system role: %s", r.Name)
	}

	return nil
}

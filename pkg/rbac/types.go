package rbac

import (
	"time"
)

// Resource represents a resource type in the system
type Resource string

const (
	ResourceSchools   Resource = "schools"
	ResourceEvents    Resource = "events"
	ResourceAccidents Resource = "accidents"
	ResourceBudgets   Resource = "budgets"
	ResourceReports   Resource = "reports"
	ResourceUsers     Resource = "users"
	ResourceRoles     Resource = "roles"
	ResourceMenus     Resource = "menus"
	ResourceSettings  Resource = "settings"
)

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionView    Action = "view"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionExport  Action = "export"
	ActionApprove Action = "approve"
)

// Permission represents a specific permission (resource + action).
// The resource/action pair is the identity and is immutable; only the
// display name may change after seeding.
type Permission struct {
	ID          int64    `json:"id"`
	Resource    Resource `json:"resource"`
	Action      Action   `json:"action"`
	DisplayName string   `json:"display_name"`
}

// Key returns the canonical "resource:action" form of the permission
func (p Permission) Key() string {
	return string(p.Resource) + ":" + string(p.Action)
}

// Role represents a named bundle of permissions and visible menus.
// Name is a stable identifier and immutable after creation. System
// roles cannot be deleted and their descriptive fields cannot be
// changed through the generic update path.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description"`
	IsSystem    bool      `json:"is_system"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Association sets; populated on reads that request them.
	PermissionIDs []int64 `json:"permission_ids,omitempty"`
	MenuIDs       []int64 `json:"menu_ids,omitempty"`
}

// System role names seeded at startup
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// Menu represents a navigation node. ParentID links menus into a
// forest; nil means root. Siblings are ordered by OrderIndex with name
// as the tie-break.
type Menu struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Path        string    `json:"path"`
	Icon        string    `json:"icon"`
	ParentID    *int64    `json:"parent_id,omitempty"`
	OrderIndex  int       `json:"order_index"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MenuNode is a menu with its resolved children, as produced by
// BuildMenuTree. Children is never nil.
type MenuNode struct {
	Menu
	Children []*MenuNode `json:"children"`
}

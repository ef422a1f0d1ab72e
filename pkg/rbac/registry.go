package rbac

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/edushield/edushield/pkg/audit"
	"github.com/edushield/edushield/pkg/observability"
)

// nameFormat is the accepted identifier format for role and menu
// names: lowercase, starts with a letter, no whitespace.
var nameFormat = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

const maxMenuDepth = 16

// Registry enforces the RBAC business rules on top of the store:
// identifier validation, system-role protection, menu forest
// integrity, and cache invalidation after mutations.
type Registry struct {
	store   *Store
	cache   *PermissionCache
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewRegistry creates a role registry. Cache and metrics may be nil.
func NewRegistry(store *Store, cache *PermissionCache, logger *observability.Logger, metrics *observability.Metrics) *Registry {
	return &Registry{
		store:   store,
		cache:   cache,
		logger:  logger,
		metrics: metrics,
	}
}

// --- Roles ---

// CreateRole creates a non-system role after validating its name
func (r *Registry) CreateRole(ctx context.Context, name, displayName, description string) (*Role, error) {
	if !nameFormat.MatchString(name) {
		return nil, &ValidationError{Field: "name", Reason: "must be lowercase letters, digits, and underscores, starting with a letter"}
	}
	if displayName == "" {
		displayName = name
	}

	role := &Role{
		Name:        name,
		DisplayName: displayName,
		Description: description,
	}
	if err := r.store.CreateRole(ctx, role); err != nil {
		return nil, err
	}

	r.auditMutation(ctx, audit.EventTypeRoleCreate, audit.ResourceTypeRole, role.ID, "role created: "+role.Name)
	return role, nil
}

// UpdateRole updates a role's descriptive fields. System roles are
// rejected outright: there is no administrative override path, so any
// attempt to touch a system role through this path fails.
func (r *Registry) UpdateRole(ctx context.Context, roleID int64, displayName, description *string) (*Role, error) {
	role, err := r.store.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role.IsSystem {
		return nil, &ImmutableFieldError{Entity: "system role", Field: "display_name/description"}
	}

	if displayName != nil {
		if *displayName == "" {
			return nil, &ValidationError{Field: "display_name", Reason: "must not be empty"}
		}
		role.DisplayName = *displayName
	}
	if description != nil {
		role.Description = *description
	}

	if err := r.store.UpdateRole(ctx, role); err != nil {
		return nil, err
	}

	r.auditMutation(ctx, audit.EventTypeRoleUpdate, audit.ResourceTypeRole, role.ID, "role updated: "+role.Name)
	return role, nil
}

// DeleteRole deletes a non-system role and its associations
func (r *Registry) DeleteRole(ctx context.Context, roleID int64) error {
	role, err := r.store.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return &ProtectedResourceError{Entity: "role", Name: role.Name}
	}

	if err := r.store.DeleteRole(ctx, roleID); err != nil {
		return err
	}

	r.invalidateRole(ctx, roleID)
	r.auditMutation(ctx, audit.EventTypeRoleDelete, audit.ResourceTypeRole, roleID, "role deleted: "+role.Name)
	return nil
}

// GetRole returns a role with its association sets
func (r *Registry) GetRole(ctx context.Context, roleID int64) (*Role, error) {
	return r.store.GetRole(ctx, roleID)
}

// ListRoles lists roles with pagination
func (r *Registry) ListRoles(ctx context.Context, opts ListOptions) ([]Role, int64, error) {
	return r.store.ListRoles(ctx, opts)
}

// ReplacePermissions replaces a role's permission set atomically.
// Allowed on system roles: assignments stay editable, only the
// identity fields are frozen.
func (r *Registry) ReplacePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if err := r.store.ReplaceRolePermissions(ctx, roleID, permissionIDs); err != nil {
		return err
	}

	r.invalidateRole(ctx, roleID)
	r.auditMutation(ctx, audit.EventTypeRolePermissionsReplace, audit.ResourceTypeRole, roleID,
		fmt.Sprintf("role permissions replaced (%d entries)", len(permissionIDs)))
	return nil
}

// ReplaceMenus replaces a role's menu set atomically
func (r *Registry) ReplaceMenus(ctx context.Context, roleID int64, menuIDs []int64) error {
	if err := r.store.ReplaceRoleMenus(ctx, roleID, menuIDs); err != nil {
		return err
	}

	r.auditMutation(ctx, audit.EventTypeRoleMenusReplace, audit.ResourceTypeRole, roleID,
		fmt.Sprintf("role menus replaced (%d entries)", len(menuIDs)))
	return nil
}

// --- Permissions ---

// ListPermissions returns the catalog
func (r *Registry) ListPermissions(ctx context.Context) ([]Permission, error) {
	return r.store.ListPermissions(ctx)
}

// --- Menus ---

// MenuInput carries the writable fields of a menu
type MenuInput struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Path        string `json:"path"`
	Icon        string `json:"icon"`
	ParentID    *int64 `json:"parent_id"`
	OrderIndex  int    `json:"order_index"`
	IsActive    *bool  `json:"is_active"`
}

// CreateMenu creates a menu record. The parent must already exist, so
// a new record can never close a cycle.
func (r *Registry) CreateMenu(ctx context.Context, input MenuInput) (*Menu, error) {
	if !nameFormat.MatchString(input.Name) {
		return nil, &ValidationError{Field: "name", Reason: "must be lowercase letters, digits, and underscores, starting with a letter"}
	}
	if input.DisplayName == "" {
		input.DisplayName = input.Name
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	menu := &Menu{
		Name:        input.Name,
		DisplayName: input.DisplayName,
		Path:        input.Path,
		Icon:        input.Icon,
		ParentID:    input.ParentID,
		OrderIndex:  input.OrderIndex,
		IsActive:    active,
	}
	if err := r.store.CreateMenu(ctx, menu); err != nil {
		return nil, err
	}

	r.auditMutation(ctx, audit.EventTypeMenuCreate, audit.ResourceTypeMenu, menu.ID, "menu created: "+menu.Name)
	return menu, nil
}

// UpdateMenu updates a menu's mutable fields. The name is immutable;
// reparenting is rejected when it would create a cycle or exceed the
// depth bound.
func (r *Registry) UpdateMenu(ctx context.Context, menuID int64, input MenuInput) (*Menu, error) {
	menu, err := r.store.GetMenu(ctx, menuID)
	if err != nil {
		return nil, err
	}
	if input.Name != "" && input.Name != menu.Name {
		return nil, &ImmutableFieldError{Entity: "menu", Field: "name"}
	}

	if input.ParentID != nil {
		if err := r.checkParentChain(ctx, menuID, *input.ParentID); err != nil {
			return nil, err
		}
	}

	if input.DisplayName != "" {
		menu.DisplayName = input.DisplayName
	}
	menu.Path = input.Path
	menu.Icon = input.Icon
	menu.ParentID = input.ParentID
	menu.OrderIndex = input.OrderIndex
	if input.IsActive != nil {
		menu.IsActive = *input.IsActive
	}

	if err := r.store.UpdateMenu(ctx, menu); err != nil {
		return nil, err
	}

	r.auditMutation(ctx, audit.EventTypeMenuUpdate, audit.ResourceTypeMenu, menu.ID, "menu updated: "+menu.Name)
	return menu, nil
}

// DeleteMenu deletes a menu and its role associations
func (r *Registry) DeleteMenu(ctx context.Context, menuID int64) error {
	menu, err := r.store.GetMenu(ctx, menuID)
	if err != nil {
		return err
	}

	if err := r.store.DeleteMenu(ctx, menuID); err != nil {
		return err
	}

	r.auditMutation(ctx, audit.EventTypeMenuDelete, audit.ResourceTypeMenu, menuID, "menu deleted: "+menu.Name)
	return nil
}

// GetMenu returns a single menu record
func (r *Registry) GetMenu(ctx context.Context, menuID int64) (*Menu, error) {
	return r.store.GetMenu(ctx, menuID)
}

// ListMenus lists menus with pagination
func (r *Registry) ListMenus(ctx context.Context, opts ListOptions) ([]Menu, int64, error) {
	return r.store.ListMenus(ctx, opts)
}

// ActiveMenuTree builds the navigation forest from all active menus
func (r *Registry) ActiveMenuTree(ctx context.Context) ([]*MenuNode, error) {
	menus, err := r.store.ListAllMenus(ctx)
	if err != nil {
		return nil, err
	}
	return r.buildTree(FilterActive(menus)), nil
}

// MenuTreeForUser builds the navigation forest scoped to the user's
// role. Only active menus are considered.
func (r *Registry) MenuTreeForUser(ctx context.Context, userID int64) ([]*MenuNode, error) {
	menus, err := r.store.MenusForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return r.buildTree(menus), nil
}

func (r *Registry) buildTree(menus []Menu) []*MenuNode {
	roots, orphans := BuildMenuTree(menus)
	if r.metrics != nil {
		r.metrics.MenuTreeBuildsTotal.Inc()
		if orphans > 0 {
			r.metrics.MenuTreeOrphansDetected.Add(float64(orphans))
		}
	}
	if orphans > 0 && r.logger != nil {
		r.logger.Warnf("menu tree build excluded %d orphaned records", orphans)
	}
	return roots
}

// checkParentChain rejects a reparent that would produce a self-loop,
// a cycle, or a chain deeper than maxMenuDepth.
func (r *Registry) checkParentChain(ctx context.Context, menuID, parentID int64) error {
	if parentID == menuID {
		return &ValidationError{Field: "parent_id", Reason: "menu cannot be its own parent"}
	}

	current := parentID
	for depth := 0; depth < maxMenuDepth; depth++ {
		parent, err := r.store.GetMenu(ctx, current)
		if err != nil {
			return err
		}
		if parent.ParentID == nil {
			return nil
		}
		if *parent.ParentID == menuID {
			return &ValidationError{Field: "parent_id", Reason: "reparenting would create a cycle"}
		}
		current = *parent.ParentID
	}
	return &ValidationError{Field: "parent_id", Reason: fmt.Sprintf("menu chain exceeds maximum depth %d", maxMenuDepth)}
}

// --- Effective permissions ---

// Resolve returns the effective permission set for a user, consulting
// the cache first. On backend failure the empty set is returned along
// with the error so callers fail closed while still surfacing the
// failure once.
func (r *Registry) Resolve(ctx context.Context, userID int64) (PermissionSet, error) {
	if r.cache != nil {
		if set, ok := r.cache.Get(userID); ok {
			return set, nil
		}
	}

	perms, err := r.store.EffectivePermissions(ctx, userID)
	if err != nil {
		if r.metrics != nil {
			r.metrics.PermissionFetchesTotal.WithLabelValues("failure").Inc()
		}
		return EmptyPermissionSet(), err
	}
	if r.metrics != nil {
		r.metrics.PermissionFetchesTotal.WithLabelValues("success").Inc()
	}

	set := NewPermissionSet(perms)
	if r.cache != nil {
		r.cache.Set(userID, set)
	}
	return set, nil
}

// InvalidateUser drops one user's cached permission set
func (r *Registry) InvalidateUser(userID int64) {
	if r.cache != nil {
		r.cache.InvalidateUser(userID)
	}
}

// invalidateRole drops the cached sets of every user holding the role.
// If the membership lookup fails the whole cache is purged instead, so
// a stale set never outlives the mutation.
func (r *Registry) invalidateRole(ctx context.Context, roleID int64) {
	if r.cache == nil {
		return
	}
	userIDs, err := r.store.UsersWithRole(ctx, roleID)
	if err != nil {
		r.invalidate()
		return
	}
	for _, id := range userIDs {
		r.cache.InvalidateUser(id)
	}
}

func (r *Registry) invalidate() {
	if r.cache != nil {
		r.cache.InvalidateAll()
	}
}

func (r *Registry) auditMutation(ctx context.Context, eventType audit.EventType, resourceType audit.ResourceType, id int64, message string) {
	event := audit.NewEvent(ctx, eventType, audit.EventStatusSuccess)
	event.ResourceType = resourceType
	event.ResourceID = strconv.FormatInt(id, 10)
	event.Message = message
	if userID := observability.GetUserID(ctx); userID != "" {
		if parsed, err := strconv.ParseInt(userID, 10, 64); err == nil {
			event.UserID = &parsed
		}
	}
	if err := audit.FromContext(ctx).Log(ctx, event); err != nil && r.logger != nil {
		r.logger.WithError(err).Warn("failed to record audit event")
	}
}

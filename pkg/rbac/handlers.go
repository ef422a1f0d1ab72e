package rbac

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/edushield/edushield/pkg/httputil"
	"github.com/edushield/edushield/pkg/middleware"
	"github.com/edushield/edushield/pkg/observability"
)

// Handler serves the role, permission, and menu REST surface
type Handler struct {
	registry *Registry
	logger   *observability.Logger
}

// NewHandler creates an RBAC HTTP handler
func NewHandler(registry *Registry, logger *observability.Logger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

// RegisterRoutes attaches all RBAC routes to the router. Every route
// assumes the authentication middleware already ran; the guard adds
// per-route permission checks on top.
func (h *Handler) RegisterRoutes(router *mux.Router, guard *Guard) {
	// Roles
	router.Handle("/roles", guard.RequirePermission(ResourceRoles, ActionView)(
		http.HandlerFunc(h.ListRoles))).Methods(http.MethodGet)
	router.Handle("/role", guard.RequirePermission(ResourceRoles, ActionCreate)(
		http.HandlerFunc(h.CreateRole))).Methods(http.MethodPost)
	router.Handle("/role/{id:[0-9]+}", guard.RequirePermission(ResourceRoles, ActionView)(
		http.HandlerFunc(h.GetRole))).Methods(http.MethodGet)
	router.Handle("/role/{id:[0-9]+}", guard.RequirePermission(ResourceRoles, ActionUpdate)(
		http.HandlerFunc(h.UpdateRole))).Methods(http.MethodPut)
	router.Handle("/role/{id:[0-9]+}", guard.RequirePermission(ResourceRoles, ActionDelete)(
		http.HandlerFunc(h.DeleteRole))).Methods(http.MethodDelete)
	router.Handle("/role/{id:[0-9]+}/permissions", guard.RequirePermission(ResourceRoles, ActionUpdate)(
		http.HandlerFunc(h.ReplaceRolePermissions))).Methods(http.MethodPost)
	router.Handle("/role/{id:[0-9]+}/menus", guard.RequirePermission(ResourceRoles, ActionUpdate)(
		http.HandlerFunc(h.ReplaceRoleMenus))).Methods(http.MethodPost)

	// Permissions. The catalog and the caller's own set only need an
	// authenticated identity, no specific grant.
	router.HandleFunc("/permissions", h.ListPermissions).Methods(http.MethodGet)
	router.HandleFunc("/permissions/me", h.MyPermissions).Methods(http.MethodGet)

	// Menus
	router.Handle("/menus", guard.RequirePermission(ResourceMenus, ActionView)(
		http.HandlerFunc(h.ListMenus))).Methods(http.MethodGet)
	router.HandleFunc("/menus/active", h.ActiveMenus).Methods(http.MethodGet)
	router.HandleFunc("/menus/me", h.MyMenus).Methods(http.MethodGet)
	router.Handle("/menu", guard.RequirePermission(ResourceMenus, ActionCreate)(
		http.HandlerFunc(h.CreateMenu))).Methods(http.MethodPost)
	router.Handle("/menu/{id:[0-9]+}", guard.RequirePermission(ResourceMenus, ActionUpdate)(
		http.HandlerFunc(h.UpdateMenu))).Methods(http.MethodPut)
	router.Handle("/menu/{id:[0-9]+}", guard.RequirePermission(ResourceMenus, ActionDelete)(
		http.HandlerFunc(h.DeleteMenu))).Methods(http.MethodDelete)
}

// --- Roles ---

// ListRoles handles GET /roles
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	params, ok := httputil.ParseListParamsOrError(w, r)
	if !ok {
		return
	}

	opts := listOptionsFrom(params)
	if raw, present := params.Filters["is_system"]; present {
		isSystem := raw == "true"
		opts.IsSystem = &isSystem
	}

	roles, total, err := h.registry.ListRoles(r.Context(), opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if roles == nil {
		roles = []Role{}
	}
	httputil.WriteList(w, roles, total, params.Limit)
}

// GetRole handles GET /role/{id}
func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	role, err := h.registry.GetRole(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, role)
}

type createRoleRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// CreateRole handles POST /role
func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	role, err := h.registry.CreateRole(r.Context(), req.Name, req.DisplayName, req.Description)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, role)
}

type updateRoleRequest struct {
	DisplayName *string `json:"display_name"`
	Description *string `json:"description"`
}

// UpdateRole handles PUT /role/{id}
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req updateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	role, err := h.registry.UpdateRole(r.Context(), id, req.DisplayName, req.Description)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, role)
}

// DeleteRole handles DELETE /role/{id}
func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.registry.DeleteRole(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

type replacePermissionsRequest struct {
	PermissionIDs []int64 `json:"permission_ids"`
}

// ReplaceRolePermissions handles POST /role/{id}/permissions
func (h *Handler) ReplaceRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req replacePermissionsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.registry.ReplacePermissions(r.Context(), id, req.PermissionIDs); err != nil {
		h.writeError(w, r, err)
		return
	}

	role, err := h.registry.GetRole(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, role)
}

type replaceMenusRequest struct {
	MenuIDs []int64 `json:"menu_ids"`
}

// ReplaceRoleMenus handles POST /role/{id}/menus
func (h *Handler) ReplaceRoleMenus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req replaceMenusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.registry.ReplaceMenus(r.Context(), id, req.MenuIDs); err != nil {
		h.writeError(w, r, err)
		return
	}

	role, err := h.registry.GetRole(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, role)
}

// --- Permissions ---

// ListPermissions handles GET /permissions. With group_by=resource
// the catalog is returned as an object keyed by resource instead of a
// flat list.
func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.registry.ListPermissions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if perms == nil {
		perms = []Permission{}
	}
	if r.URL.Query().Get("group_by") == "resource" {
		httputil.WriteSuccess(w, CatalogByResource(perms))
		return
	}
	httputil.WriteList(w, perms, int64(len(perms)), 0)
}

// MyPermissions handles GET /permissions/me
func (h *Handler) MyPermissions(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil || authCtx.User == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	set, err := h.registry.Resolve(r.Context(), authCtx.User.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteList(w, set.List(), int64(set.Len()), 0)
}

// --- Menus ---

// ListMenus handles GET /menus
func (h *Handler) ListMenus(w http.ResponseWriter, r *http.Request) {
	params, ok := httputil.ParseListParamsOrError(w, r)
	if !ok {
		return
	}

	opts := listOptionsFrom(params)
	if raw, present := params.Filters["is_active"]; present {
		isActive := raw == "true"
		opts.IsActive = &isActive
	}

	menus, total, err := h.registry.ListMenus(r.Context(), opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if menus == nil {
		menus = []Menu{}
	}
	httputil.WriteList(w, menus, total, params.Limit)
}

// ActiveMenus handles GET /menus/active, returning the full active
// navigation forest
func (h *Handler) ActiveMenus(w http.ResponseWriter, r *http.Request) {
	tree, err := h.registry.ActiveMenuTree(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteList(w, tree, int64(len(tree)), 0)
}

// MyMenus handles GET /menus/me, returning the caller's navigation
// forest scoped to its role
func (h *Handler) MyMenus(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil || authCtx.User == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	tree, err := h.registry.MenuTreeForUser(r.Context(), authCtx.User.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteList(w, tree, int64(len(tree)), 0)
}

// CreateMenu handles POST /menu
func (h *Handler) CreateMenu(w http.ResponseWriter, r *http.Request) {
	var input MenuInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}
	if !httputil.RequireNonEmpty(w, input.Name, "name") {
		return
	}

	menu, err := h.registry.CreateMenu(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, menu)
}

// UpdateMenu handles PUT /menu/{id}
func (h *Handler) UpdateMenu(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var input MenuInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	menu, err := h.registry.UpdateMenu(r.Context(), id, input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, menu)
}

// DeleteMenu handles DELETE /menu/{id}
func (h *Handler) DeleteMenu(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.registry.DeleteMenu(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func listOptionsFrom(params httputil.ListParams) ListOptions {
	return ListOptions{
		Limit:          params.Limit,
		Offset:         params.Offset(),
		OrderBy:        params.OrderBy,
		OrderDirection: params.OrderDirection,
		Search:         params.Search,
	}
}

// writeError maps the error taxonomy onto HTTP statuses
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		httputil.WriteError(w, http.StatusBadRequest, err)
	case errors.Is(err, ErrImmutableField):
		httputil.WriteError(w, http.StatusConflict, err)
	case errors.Is(err, ErrProtectedResource):
		httputil.WriteError(w, http.StatusConflict, err)
	case errors.Is(err, ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, err)
	case errors.Is(err, ErrTransientFetch):
		httputil.WriteServiceUnavailable(w, "backend temporarily unavailable")
	default:
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		httputil.WriteInternalError(w, errors.New("internal server error"))
	}
}

package rbac

import (
	"net/http"

	"github.com/edushield/edushield/pkg/audit"
	"github.com/edushield/edushield/pkg/httputil"
	"github.com/edushield/edushield/pkg/middleware"
	"github.com/edushield/edushield/pkg/observability"
)

// Guard enforces permission checks on protected routes. Resolution
// failures deny: an unknown permission state is never an allow.
type Guard struct {
	registry *Registry
	metrics  *observability.Metrics
}

// NewGuard creates a guard backed by the registry's resolver
func NewGuard(registry *Registry, metrics *observability.Metrics) *Guard {
	return &Guard{registry: registry, metrics: metrics}
}

// RequirePermission admits only identities holding the exact pair
func (g *Guard) RequirePermission(resource Resource, action Action) func(http.Handler) http.Handler {
	return g.require(func(set PermissionSet) bool {
		return set.Has(resource, action)
	})
}

// RequireAnyPermission admits identities holding at least one pair
func (g *Guard) RequireAnyPermission(checks ...Permission) func(http.Handler) http.Handler {
	return g.require(func(set PermissionSet) bool {
		return set.HasAny(checks...)
	})
}

// RequireAllPermissions admits only identities holding every pair
func (g *Guard) RequireAllPermissions(checks ...Permission) func(http.Handler) http.Handler {
	return g.require(func(set PermissionSet) bool {
		return set.HasAll(checks...)
	})
}

func (g *Guard) require(satisfied func(PermissionSet) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := middleware.GetAuthContext(r)
			if authCtx == nil || authCtx.User == nil {
				g.record("unauthenticated")
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			set, err := g.registry.Resolve(r.Context(), authCtx.User.ID)
			if err != nil {
				// Fail closed: unresolved permissions deny
				g.record("deny")
				g.auditDenied(r, authCtx.User.ID, "permission resolution failed")
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}

			if !satisfied(set) {
				g.record("deny")
				g.auditDenied(r, authCtx.User.ID, "insufficient permissions")
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}

			g.record("allow")
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole admits only identities whose role name is in the list
func (g *Guard) RequireRole(roleNames ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roleNames))
	for _, name := range roleNames {
		allowed[name] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := middleware.GetAuthContext(r)
			if authCtx == nil || authCtx.User == nil {
				g.record("unauthenticated")
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			if !allowed[authCtx.User.RoleName] {
				g.record("deny")
				g.auditDenied(r, authCtx.User.ID, "required role not held")
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}

			g.record("allow")
			next.ServeHTTP(w, r)
		})
	}
}

func (g *Guard) record(decision string) {
	if g.metrics != nil {
		g.metrics.AuthzDecisionsTotal.WithLabelValues(decision).Inc()
	}
}

func (g *Guard) auditDenied(r *http.Request, userID int64, message string) {
	ctx := r.Context()
	event := audit.NewEvent(ctx, audit.EventTypeAuthzAccessDenied, audit.EventStatusDenied)
	event.UserID = &userID
	event.ResourceID = r.URL.Path
	event.Message = message
	event.Metadata = map[string]interface{}{"method": r.Method}
	_ = audit.FromContext(ctx).Log(ctx, event)
}

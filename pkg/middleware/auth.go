// Package middleware provides authentication middleware that resolves
// bearer tokens into request identities.
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/edushield/edushield/pkg/auth"
	"github.com/edushield/edushield/pkg/contextkeys"
	"github.com/edushield/edushield/pkg/httputil"
	"github.com/edushield/edushield/pkg/observability"
)

// AuthMiddleware authenticates requests via the Authorization header
type AuthMiddleware struct {
	service  *auth.Service
	optional bool
}

// NewAuthMiddleware creates authentication middleware. With optional
// set, requests without credentials pass through unauthenticated.
func NewAuthMiddleware(service *auth.Service, optional bool) *AuthMiddleware {
	return &AuthMiddleware{service: service, optional: optional}
}

// Handler wraps an HTTP handler with bearer-token authentication.
// Failures answer 401 with a JSON body and never redirect; routing to
// a sign-in view is the client's decision.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing or malformed authorization header")
			return
		}

		authCtx, err := m.service.Authenticate(r.Context(), token)
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := contextkeys.WithAuth(r.Context(), authCtx)
		ctx = observability.WithUserID(ctx, strconv.FormatInt(authCtx.User.ID, 10))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BearerToken extracts the bearer token from a request
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// GetAuthContext extracts the resolved identity from a request,
// returning nil for unauthenticated requests
func GetAuthContext(r *http.Request) *auth.AuthContext {
	value := r.Context().Value(contextkeys.AuthKey)
	if value == nil {
		return nil
	}
	authCtx, ok := value.(*auth.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

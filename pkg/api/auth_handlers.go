package api

import (
	"errors"
	"net/http"

	"github.com/edushield/edushield/pkg/audit"
	"github.com/edushield/edushield/pkg/auth"
	"github.com/edushield/edushield/pkg/httputil"
	"github.com/edushield/edushield/pkg/middleware"
	"github.com/edushield/edushield/pkg/observability"
	"github.com/edushield/edushield/pkg/rbac"
)

// AuthHandlers serves sign-in, sign-out, and the identity endpoint
type AuthHandlers struct {
	service  *auth.Service
	registry *rbac.Registry
	logger   *observability.Logger
}

// NewAuthHandlers creates the authentication handlers
func NewAuthHandlers(service *auth.Service, registry *rbac.Registry, logger *observability.Logger) *AuthHandlers {
	return &AuthHandlers{service: service, registry: registry, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string     `json:"token"`
	User  *auth.User `json:"user"`
}

// Login handles POST /auth/login. On success the plaintext token is
// returned exactly once; it cannot be recovered later.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.WriteBadRequest(w, "email and password are required")
		return
	}

	token, user, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.auditLogin(r, audit.EventStatusFailure, req.Email, nil)
			httputil.WriteUnauthorized(w, "invalid credentials")
			return
		}
		h.logger.WithError(err).Error("login failed")
		httputil.WriteInternalError(w, errors.New("internal server error"))
		return
	}

	h.auditLogin(r, audit.EventStatusSuccess, user.Email, &user.ID)
	httputil.WriteSuccess(w, loginResponse{Token: token, User: user})
}

// Logout handles POST /auth/logout. Revoking an already-dead token
// still answers 204.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		httputil.WriteUnauthorized(w, "missing or malformed authorization header")
		return
	}

	if err := h.service.Logout(r.Context(), token); err != nil {
		h.logger.WithError(err).Error("logout failed")
		httputil.WriteInternalError(w, errors.New("internal server error"))
		return
	}

	event := audit.NewEvent(r.Context(), audit.EventTypeAuthLogout, audit.EventStatusSuccess)
	if authCtx := middleware.GetAuthContext(r); authCtx != nil && authCtx.User != nil {
		event.UserID = &authCtx.User.ID
		event.Username = authCtx.User.Email
	}
	_ = audit.FromContext(r.Context()).Log(r.Context(), event)

	httputil.WriteNoContent(w)
}

type meResponse struct {
	User        *auth.User        `json:"user"`
	Permissions []rbac.Permission `json:"permissions"`
}

// Me handles GET /auth/me, returning the identity plus its effective
// permission set so clients hydrate in one round trip.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil || authCtx.User == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	set, err := h.registry.Resolve(r.Context(), authCtx.User.ID)
	if err != nil {
		httputil.WriteServiceUnavailable(w, "backend temporarily unavailable")
		return
	}

	httputil.WriteSuccess(w, meResponse{User: authCtx.User, Permissions: set.List()})
}

func (h *AuthHandlers) auditLogin(r *http.Request, status audit.EventStatus, username string, userID *int64) {
	eventType := audit.EventTypeAuthLogin
	if status == audit.EventStatusFailure {
		eventType = audit.EventTypeAuthLoginFailed
	}
	event := audit.NewEvent(r.Context(), eventType, status)
	event.Username = username
	event.UserID = userID
	event.IPAddress = r.RemoteAddr
	_ = audit.FromContext(r.Context()).Log(r.Context(), event)
}

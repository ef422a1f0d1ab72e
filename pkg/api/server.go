// Package api assembles the HTTP surface: routing, middleware, and
// the handlers for authentication, roles, permissions, and menus.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/edushield/edushield/pkg/audit"
	"github.com/edushield/edushield/pkg/auth"
	"github.com/edushield/edushield/pkg/config"
	"github.com/edushield/edushield/pkg/httputil"
	"github.com/edushield/edushield/pkg/middleware"
	"github.com/edushield/edushield/pkg/observability"
	"github.com/edushield/edushield/pkg/rbac"
)

// Server represents the API server
type Server struct {
	router      *mux.Router
	logger      *observability.Logger
	metrics     *observability.Metrics
	authService *auth.Service
	registry    *rbac.Registry
	guard       *rbac.Guard
	auditLogger audit.Logger
	serverCfg   config.ServerConfig
}

// Dependencies carries everything the server needs. AuditLogger,
// Metrics, and Guard may be nil; routing degrades accordingly.
type Dependencies struct {
	ServerConfig config.ServerConfig
	Logger       *observability.Logger
	Metrics      *observability.Metrics
	AuthService  *auth.Service
	Registry     *rbac.Registry
	Guard        *rbac.Guard
	AuditLogger  audit.Logger
}

// NewServer creates the API server and wires all routes
func NewServer(deps Dependencies) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		authService: deps.AuthService,
		registry:    deps.Registry,
		guard:       deps.Guard,
		auditLogger: deps.AuditLogger,
		serverCfg:   deps.ServerConfig,
	}
	if s.auditLogger == nil {
		s.auditLogger = audit.NewNoOpLogger()
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(httputil.RequestIDMiddleware)
	s.router.Use(httputil.LoggingMiddleware(s.logger))
	s.router.Use(httputil.RecoveryMiddleware(s.logger))
	if len(s.serverCfg.AllowedOrigins) > 0 {
		s.router.Use(httputil.CORSMiddleware(s.serverCfg.AllowedOrigins))
	}
	if s.serverCfg.MaxBodyBytes > 0 {
		s.router.Use(httputil.MaxBytesMiddleware(s.serverCfg.MaxBodyBytes))
	}
	s.router.Use(httputil.ContentTypeMiddleware)
	if s.metrics != nil {
		s.router.Use(s.metrics.HTTPMiddleware)
	}
	s.router.Use(s.auditContextMiddleware)
}

// auditContextMiddleware installs the audit sink on every request
// context so handlers reach it through audit.FromContext.
func (s *Server) auditContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := audit.WithLogger(r.Context(), s.auditLogger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Sign-in is the only route reachable without a bearer token
	authHandlers := NewAuthHandlers(s.authService, s.registry, s.logger)
	api.HandleFunc("/auth/login", authHandlers.Login).Methods(http.MethodPost)

	requireAuth := middleware.NewAuthMiddleware(s.authService, false)
	protected := api.NewRoute().Subrouter()
	protected.Use(requireAuth.Handler)

	protected.HandleFunc("/auth/logout", authHandlers.Logout).Methods(http.MethodPost)
	protected.HandleFunc("/auth/me", authHandlers.Me).Methods(http.MethodGet)

	rbacHandler := rbac.NewHandler(s.registry, s.logger)
	rbacHandler.RegisterRoutes(protected, s.guard)
}

// Router exposes the assembled router, mainly for tests
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

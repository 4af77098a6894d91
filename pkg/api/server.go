package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/couchuser/pkg/audit"
	"github.com/platinummonkey/couchuser/pkg/httputil"
	"github.com/platinummonkey/couchuser/pkg/middleware"
	"github.com/platinummonkey/couchuser/pkg/observability"
)

// DefaultMaxBodyBytes caps request bodies
const DefaultMaxBodyBytes = 1 << 20

// ServerOptions configures a Server
type ServerOptions struct {
	Logger       *observability.Logger
	Metrics      *observability.Metrics
	MaxBodyBytes int64
	// LoginRateLimiter, when set, limits PUT requests per account
	LoginRateLimiter *middleware.DistributedRateLimiter
	// Audit, when set, records login outcomes
	Audit audit.Logger
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
	users   *UserHandlers
	logger  *observability.Logger
}

// NewServer creates a new API server
func NewServer(service UserService, opts ServerOptions) *Server {
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	handlers := NewUserHandlers(service, opts.Logger)
	if opts.LoginRateLimiter != nil {
		handlers.WithLoginRateLimit(middleware.NewRateLimitMiddleware(opts.LoginRateLimiter, LoginRateLimitKey, opts.Logger, opts.Metrics))
	}
	if opts.Audit != nil {
		handlers.WithAudit(opts.Audit)
	}

	s := &Server{
		router: mux.NewRouter(),
		users:  handlers,
		logger: opts.Logger,
	}

	// route metrics need the matched route template, so they run inside the router
	if opts.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(opts.Metrics))
	}
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.RegisterRoutes(s.users)

	chain := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(opts.Logger),
		httputil.RecoveryMiddleware(opts.Logger),
		httputil.MaxBytesMiddleware(opts.MaxBodyBytes),
		httputil.ContentTypeMiddleware,
	)
	s.handler = otelhttp.NewHandler(chain(s.router), "couchuser")

	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.router)
}

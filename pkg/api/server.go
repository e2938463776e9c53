package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Aniket2927/Renx-sub004/pkg/audit"
	"github.com/Aniket2927/Renx-sub004/pkg/auth"
	"github.com/Aniket2927/Renx-sub004/pkg/config"
	"github.com/Aniket2927/Renx-sub004/pkg/csrf"
	"github.com/Aniket2927/Renx-sub004/pkg/httputil"
	"github.com/Aniket2927/Renx-sub004/pkg/lockout"
	"github.com/Aniket2927/Renx-sub004/pkg/middleware"
	"github.com/Aniket2927/Renx-sub004/pkg/observability"
	"github.com/Aniket2927/Renx-sub004/pkg/ratelimit"
	"github.com/Aniket2927/Renx-sub004/pkg/rbac"
	"github.com/Aniket2927/Renx-sub004/pkg/session"
)

// Invalidator drops cached permission sets
type Invalidator interface {
	Invalidate(tenantID string, userID int64)
}

// Options wires the server's collaborators. Config, Verifier and Store are
// required; a nil limiter, tracker or manager disables the filter it backs.
type Options struct {
	Config   *config.Config
	Verifier middleware.TokenVerifier
	Store    rbac.Store
	// Cache is invalidated by the admin endpoint when set
	Cache Invalidator

	Limiters map[ratelimit.Class]*ratelimit.Limiter
	SlowDown *ratelimit.SlowDown
	Lockout  *lockout.Tracker
	CSRF     *csrf.Manager
	Sessions *session.Manager

	Emitter  *audit.Emitter
	Metrics  *observability.Metrics
	Registry *prometheus.Registry
	Health   *observability.HealthChecker
	Logger   logrus.FieldLogger
}

// Server is the gateway's HTTP surface: the security filter chain in front of
// the tenant-scoped API routes
type Server struct {
	opts      Options
	router    *mux.Router
	protected *mux.Router
	handler   http.Handler
	auth      *middleware.AuthMiddleware
	guard     *rbac.Guard
	deps      middleware.Deps
	logger    logrus.FieldLogger
	now       func() time.Time
}

// NewServer creates a server and sets up its routes
func NewServer(opts Options) *Server {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	deps := middleware.Deps{Emitter: opts.Emitter, Metrics: opts.Metrics, Logger: logger}
	s := &Server{
		opts:   opts,
		router: mux.NewRouter(),
		deps:   deps,
		logger: logger.WithField("component", "api"),
		now:    time.Now,
		auth: middleware.NewAuthMiddleware(middleware.AuthConfig{
			Verifier:   opts.Verifier,
			Store:      opts.Store,
			Production: opts.Config.IsProduction(),
			Deps:       deps,
		}),
		guard: rbac.NewGuard(rbac.GuardConfig{
			Store:   opts.Store,
			Emitter: opts.Emitter,
			Metrics: opts.Metrics,
			Logger:  logger,
		}),
	}

	s.setupRoutes()

	sec := opts.Config.Security
	trusted, err := httputil.ParseTrustedProxies(sec.TrustedProxies)
	if err != nil {
		s.logger.WithError(err).Warn("Ignoring trusted proxies; client addresses come from the peer")
		trusted = nil
	}
	s.handler = otelhttp.NewHandler(httputil.Chain(
		httputil.ClientIPMiddleware(trusted),
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(logger),
		httputil.LoggingMiddleware(logger),
		middleware.When(sec.EnableSecurityHeaders, middleware.SecurityHeaders),
		httputil.CORSMiddleware(sec.AllowedOrigins),
	)(s.router), opts.Config.Observability.OTelServiceName)

	return s
}

// setupRoutes configures all the routes. Health checks and metrics sit outside the
// security filters; everything under /api passes through them.
func (s *Server) setupRoutes() {
	cfg := s.opts.Config
	sec := cfg.Security

	s.router.Use(observability.HTTPMetricsMiddleware(s.opts.Metrics))

	if s.opts.Health != nil {
		s.router.HandleFunc("/healthz", s.opts.Health.Liveness).Methods("GET")
		s.router.HandleFunc("/readyz", s.opts.Health.Readiness).Methods("GET")
	}
	if s.opts.Registry != nil && cfg.Observability.MetricsEnabled {
		s.router.Handle("/metrics", observability.MetricsHandler(s.opts.Registry)).Methods("GET")
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(
		httputil.MaxBytesMiddleware(sec.MaxBodyBytes),
		httputil.ContentTypeMiddleware,
		middleware.When(s.opts.Lockout != nil, s.lockout()),
		s.limit(ratelimit.ClassGeneral),
		middleware.When(sec.EnableSlowDown, s.slowDown()),
		middleware.When(sec.EnableCSRF, s.csrf()),
	)

	optionalAuth := middleware.NewAuthMiddleware(middleware.AuthConfig{
		Verifier:   s.opts.Verifier,
		Store:      s.opts.Store,
		Production: cfg.IsProduction(),
		Optional:   true,
		Deps:       s.deps,
	})
	if s.opts.CSRF != nil {
		api.Handle("/csrf-token", optionalAuth.Handler(http.HandlerFunc(s.issueCSRFToken))).Methods("GET")
	}
	api.Handle("/auth/verify", s.limit(ratelimit.ClassAuth)(http.HandlerFunc(s.verifyToken))).Methods("GET")

	s.protected = api.NewRoute().Subrouter()
	s.protected.Use(
		s.auth.Handler,
		middleware.TenantIsolation(s.logger),
		middleware.When(sec.EnableSessionMonitor, s.sessionMonitor()),
		s.limit(ratelimit.ClassTenant),
		s.limit(ratelimit.ClassAPI),
		middleware.TenantRequestLog(s.deps),
	)

	s.protected.HandleFunc("/me", s.getIdentity).Methods("GET")

	s.protected.Handle("/trading/orders", httputil.Chain(
		s.limit(ratelimit.ClassTrading),
		s.guard.RequirePermission("orders", "create"),
	)(http.HandlerFunc(s.acceptOrder))).Methods("POST")

	if s.opts.Cache != nil {
		s.protected.Handle("/admin/tenants/{tenantId}/users/{userId}/permissions/invalidate",
			s.guard.RequireAdmin()(http.HandlerFunc(s.invalidatePermissions))).Methods("POST")
	}
}

// limit returns the middleware for a rate limit class, or a pass-through
// when rate limiting is off or the class has no limiter
func (s *Server) limit(class ratelimit.Class) func(http.Handler) http.Handler {
	limiter := s.opts.Limiters[class]
	if limiter == nil {
		return middleware.When(false, nil)
	}
	return middleware.When(s.opts.Config.Security.EnableRateLimit,
		middleware.NewRateLimitMiddleware(limiter, s.deps).Handler)
}

func (s *Server) slowDown() func(http.Handler) http.Handler {
	if s.opts.SlowDown == nil {
		return nil
	}
	return middleware.NewSlowDownMiddleware(s.opts.SlowDown, s.deps).Handler
}

func (s *Server) lockout() func(http.Handler) http.Handler {
	if s.opts.Lockout == nil {
		return nil
	}
	return middleware.NewLockoutMiddleware(s.opts.Lockout, s.deps).Handler
}

func (s *Server) csrf() func(http.Handler) http.Handler {
	if s.opts.CSRF == nil {
		return nil
	}
	return middleware.NewCSRFMiddleware(s.opts.CSRF, s.opts.Verifier, s.deps).Handler
}

func (s *Server) sessionMonitor() func(http.Handler) http.Handler {
	if s.opts.Sessions == nil {
		return nil
	}
	return middleware.NewSessionMonitor(s.opts.Sessions, 0, s.deps).Handler
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Guard returns the RBAC guard used by the built-in routes, for registrars
// that protect their own routes
func (s *Server) Guard() *rbac.Guard {
	return s.guard
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar behind the
// authentication, session and tenant filters
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.protected)
}

// tenantContext is shorthand for handlers behind the auth filter
func tenantContext(r *http.Request) *auth.TenantContext {
	return auth.TenantContextFrom(r.Context())
}

// Package middleware provides the HTTP security layer in front of the RenX
// trading API: authentication and tenant resolution, tenant isolation, rate
// limiting, slow-down, CSRF protection, failed-attempt lockout, session
// monitoring, security headers and tenant request auditing.
//
// # Middleware Components
//
// AuthMiddleware: bearer token verification and tenant context resolution
//
//	authn := middleware.NewAuthMiddleware(middleware.AuthConfig{
//		Verifier: verifier,
//		Store:    rbacStore,
//		Deps:     deps,
//	})
//	router.Use(authn.Handler)
//
// TenantIsolation: pins the tenantId query parameter and the tenantId/userId
// body fields to the authenticated identity
//
//	router.Use(middleware.TenantIsolation(logger))
//
// RateLimitMiddleware and SlowDownMiddleware: fixed-window limits per policy
// and progressive delays
//
//	limiter, _ := ratelimit.NewLimiter(ratelimit.AuthPolicy(), records)
//	router.Use(middleware.NewRateLimitMiddleware(limiter, deps).Handler)
//
// CSRFMiddleware, LockoutMiddleware, SessionMonitor, SecurityHeaders and
// TenantRequestLog complete the chain. When disables a component:
//
//	router.Use(middleware.When(cfg.Security.Enable.CSRF, csrfMW.Handler))
//
// # Ordering
//
// LockoutMiddleware goes first so that locked clients are refused before
// any other work. SessionMonitor, TenantIsolation and TenantRequestLog read
// the identity and must run after AuthMiddleware.
//
// # Related Packages
//
//   - pkg/auth: token verification and identity types
//   - pkg/rbac: tenant resolution and role/permission guards
//   - pkg/ratelimit, pkg/lockout, pkg/csrf, pkg/session: the state behind
//     each middleware
package middleware

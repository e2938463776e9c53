// Package api provides the HTTP server of the RenX gateway: the security
// filter chain and the routes that sit behind it.
//
// # Overview
//
// The server is built on gorilla/mux. Liveness, readiness and Prometheus
// endpoints live on the root router and bypass the security filters. Every
// route under /api passes through them:
//
//	request id → recovery → logging → security headers → CORS        (all routes)
//	body size → content type → lockout → general limit → slow-down → CSRF   (/api)
//	authentication → session monitor → tenant limit → API limit → request log (protected /api)
//
// Filters whose feature toggle is off, or whose backing component was not
// supplied in Options, are replaced by pass-through middleware.
//
// # Routes
//
//	GET  /healthz                    liveness
//	GET  /readyz                     readiness (Postgres and Redis when configured)
//	GET  /metrics                    Prometheus exposition
//	GET  /api/csrf-token             issue a CSRF token bound to the caller's session
//	GET  /api/auth/verify            verify a bearer token, starting a session if needed
//	GET  /api/me                     the resolved tenant context
//	POST /api/trading/orders         place an order (trading limit, tenant isolation, orders:create)
//	POST /api/admin/tenants/{tenantId}/users/{userId}/permissions/invalidate
//
// # Extending
//
// Downstream handlers mount behind the authentication and tenant filters
// with RegisterRoutes:
//
//	server := api.NewServer(opts)
//	server.RegisterRoutes(portfolio.NewHandlers(db))
//	http.ListenAndServe(":8080", server)
//
// Guard returns the RBAC guard so that registrars can require roles or
// permissions on their own routes.
//
// # Related Packages
//
//   - pkg/middleware: The security filters
//   - pkg/rbac: Role and permission guards
//   - pkg/observability: Metrics, health checks and tracing
package api

// Package rbac resolves tenant identities and enforces role and permission
// checks on protected routes.
//
// # Stores
//
// A Store answers three questions for the request path: the tenant context
// of a user, the user record, and whether the user holds a permission.
// MemoryStore serves development and tests and can be seeded from YAML;
// PostgresStore reads the users, permissions, role_permissions and
// user_permissions tables created by RunMigrations. CachingStore keeps
// effective permission sets for five minutes:
//
//	store := rbac.NewCachingStore(rbac.NewPostgresStore(db), 0, 0, metrics)
//	store.Invalidate(tenantID, userID) // after a grant changes
//
// A user's effective permissions are the union of the permissions of their
// role and those granted to them directly. A wildcard "*" resource or action
// matches anything.
//
// # Guards
//
//	guard := rbac.NewGuard(rbac.GuardConfig{Store: store, Emitter: emitter})
//	router.Handle("/api/admin/users", guard.RequireAdmin()(handler))
//	router.Handle("/api/trading/orders", guard.RequirePermission("trades", "create")(handler))
//
// A request without a tenant context is rejected with UNAUTHORIZED before any
// role or permission logic runs. Denials return INSUFFICIENT_PERMISSIONS and
// write a permission_denied audit event. Store failures return a 500.
package rbac

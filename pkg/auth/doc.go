// Package auth provides credential verification and the tenant identity model
// for the RenX trading API.
//
// # Overview
//
// Requests carry a bearer JWT whose claims bind the caller to a tenant and a
// user. The Verifier checks the signature and expiry and enforces the presence
// of the tenant and user claims before anything downstream sees them.
//
//	verifier, err := auth.NewVerifier(auth.VerifierConfig{Secret: []byte(secret)})
//	claims, err := verifier.VerifyRequest(r)
//	// claims.TenantID, claims.UserID, claims.Email, claims.Role
//
// Failures map onto the apierror taxonomy: a missing or malformed header is
// apierror.Unauthenticated, a bad signature or expired token is
// apierror.InvalidToken, and a token without tenantId or userId is
// apierror.MalformedClaims.
//
// # Tenant Context
//
// A TenantContext is the per-request view of who the caller is inside a
// tenant: the user record, the role, and the effective permission set (the
// union of role-derived and directly granted permissions). It is rebuilt for
// every authenticated request and never persisted by this package.
//
//	tc := auth.TenantContextFrom(r.Context())
//	if tc.HasPermission("trades", "create") { ... }
//
// A wildcard "*" on either side of a Permission matches any resource or action.
//
// # Demo Tenant
//
// NewDemoTenantContext synthesizes the fixed context used for the demo_tenant
// fallback. Callers are responsible for the environment gating.
package auth

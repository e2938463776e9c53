// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//
//	import "github.com/Aniket2927/Renx-sub004/pkg/contextkeys"
//	ctx = contextkeys.WithTenantContext(ctx, tc)
//	tc := auth.TenantContextFrom(ctx)
package contextkeys

import (
	"context"
	"time"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// TenantContextKey contains *auth.TenantContext
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: RBAC guards, tenant isolation, tenant request log
	// Type: *auth.TenantContext
	TenantContextKey Key = "tenant_context"

	// ClaimsKey contains the verified *auth.Claims
	// Set by: middleware.AuthMiddleware
	// Used by: CSRF bypass for bearer-authenticated API calls, rate limit keying
	// Type: *auth.Claims
	ClaimsKey Key = "claims"

	// UserKey contains *auth.EnhancedUser
	// Set by: middleware.AuthMiddleware
	// Type: *auth.EnhancedUser
	UserKey Key = "user"

	// TenantIDKey contains the authenticated tenant id
	// Set by: middleware.AuthMiddleware
	// Type: string
	TenantIDKey Key = "tenant_id"

	// UserIDKey contains the authenticated user id
	// Set by: middleware.AuthMiddleware
	// Type: int64
	UserIDKey Key = "user_id"

	// SessionIDKey contains the caller's session id
	// Set by: middleware.AuthMiddleware (from X-Session-ID or the session_id cookie)
	// Used by: session monitor, CSRF token binding
	// Type: string
	SessionIDKey Key = "session_id"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, audit trail, distributed tracing
	// Type: string
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: observability.LoggingMiddleware
	// Used by: Handlers that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"

	// RequestStartTimeKey contains request start timestamp
	// Set by: middleware.TenantRequestLog
	// Used by: Duration calculation for audit logs
	// Type: time.Time
	RequestStartTimeKey Key = "request_start_time"

	// ClientIPKey contains the caller's resolved address
	// Set by: httputil.ClientIPMiddleware
	// Used by: lockout, rate limiting, session fingerprints and audit events
	// Type: string
	ClientIPKey Key = "client_ip"
)

// Helper functions for type-safe context operations

// WithTenantContext adds the resolved tenant context to the context
func WithTenantContext(ctx context.Context, tc interface{}) context.Context {
	return context.WithValue(ctx, TenantContextKey, tc)
}

// WithClaims adds verified credential claims to the context
func WithClaims(ctx context.Context, claims interface{}) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// WithUser adds the authenticated user to the context
func WithUser(ctx context.Context, user interface{}) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// WithTenantID adds tenant ID to the context
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, TenantIDKey, tenantID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithSessionID adds session ID to the context
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// WithRequestStartTime adds request start time to the context
func WithRequestStartTime(ctx context.Context, startTime time.Time) context.Context {
	return context.WithValue(ctx, RequestStartTimeKey, startTime)
}

// WithClientIP adds the resolved client address to the context
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ClientIPKey, ip)
}

// GetClientIP retrieves the resolved client address from context
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ClientIPKey).(string); ok {
		return ip
	}
	return ""
}

// GetTenantID retrieves tenant ID from context
func GetTenantID(ctx context.Context) string {
	if tenantID, ok := ctx.Value(TenantIDKey).(string); ok {
		return tenantID
	}
	return ""
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	return userID, ok
}

// GetSessionID retrieves session ID from context
func GetSessionID(ctx context.Context) string {
	if sessionID, ok := ctx.Value(SessionIDKey).(string); ok {
		return sessionID
	}
	return ""
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetRequestStartTime retrieves the request start time from context
func GetRequestStartTime(ctx context.Context) (time.Time, bool) {
	start, ok := ctx.Value(RequestStartTimeKey).(time.Time)
	return start, ok
}

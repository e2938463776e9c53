package auth

import (
	"context"

	"github.com/Aniket2927/Renx-sub004/pkg/contextkeys"
)

// TenantContextFrom returns the resolved tenant context, or nil
func TenantContextFrom(ctx context.Context) *TenantContext {
	tc, _ := ctx.Value(contextkeys.TenantContextKey).(*TenantContext)
	return tc
}

// ClaimsFrom returns the verified claims, or nil
func ClaimsFrom(ctx context.Context) *Claims {
	claims, _ := ctx.Value(contextkeys.ClaimsKey).(*Claims)
	return claims
}

// UserFrom returns the authenticated user, or nil
func UserFrom(ctx context.Context) *EnhancedUser {
	user, _ := ctx.Value(contextkeys.UserKey).(*EnhancedUser)
	return user
}

// WithIdentity attaches claims, tenant context and user to ctx along with the
// scalar tenant and user ids
func WithIdentity(ctx context.Context, claims *Claims, tc *TenantContext, user *EnhancedUser) context.Context {
	ctx = contextkeys.WithClaims(ctx, claims)
	ctx = contextkeys.WithTenantID(ctx, claims.TenantID)
	ctx = contextkeys.WithUserID(ctx, claims.UserID)
	if tc != nil {
		ctx = contextkeys.WithTenantContext(ctx, tc)
	}
	if user != nil {
		ctx = contextkeys.WithUser(ctx, user)
	}
	return ctx
}

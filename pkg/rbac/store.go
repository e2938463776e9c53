package rbac

import (
	"context"
	"errors"

	"github.com/Aniket2927/Renx-sub004/pkg/auth"
)

// ErrNotFound is returned when a tenant, or a user within a tenant, does not exist
var ErrNotFound = errors.New("rbac: not found")

// Store resolves identities and permissions. Implementations must be safe
// for concurrent use.
type Store interface {
	// CreateTenantContext builds the context for userID inside tenantID.
	// It returns ErrNotFound when the user has no mapping to the tenant.
	CreateTenantContext(ctx context.Context, tenantID string, userID int64) (*auth.TenantContext, error)

	// GetUser returns the user with its effective permissions
	GetUser(ctx context.Context, tenantID string, userID int64) (*auth.EnhancedUser, error)

	// HasPermission reports whether the user's effective permissions cover
	// resource and action
	HasPermission(ctx context.Context, tenantID string, userID int64, resource, action string) (bool, error)
}

// PermissionStore is a Store that can list a user's effective permissions.
// It is what CachingStore needs underneath.
type PermissionStore interface {
	Store
	UserPermissions(ctx context.Context, tenantID string, userID int64) ([]auth.Permission, error)
}

// Tenant is a tenant record
type Tenant struct {
	ID       string                 `json:"id" yaml:"id"`
	Name     string                 `json:"name" yaml:"name"`
	Status   string                 `json:"status" yaml:"status"`
	Settings map[string]interface{} `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// anyMatches reports whether any permission in perms covers resource and action
func anyMatches(perms []auth.Permission, resource, action string) bool {
	for _, p := range perms {
		if p.Matches(resource, action) {
			return true
		}
	}
	return false
}

// mergePermissions returns the union of role-derived and direct permissions,
// deduplicated on resource:action
func mergePermissions(sets ...[]auth.Permission) []auth.Permission {
	seen := make(map[string]bool)
	out := make([]auth.Permission, 0)
	for _, set := range sets {
		for _, p := range set {
			k := p.String()
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, p)
		}
	}
	return out
}

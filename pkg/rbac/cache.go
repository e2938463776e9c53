package rbac

import (
	"context"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Aniket2927/Renx-sub004/pkg/auth"
	"github.com/Aniket2927/Renx-sub004/pkg/observability"
)

const (
	// DefaultCacheTTL is how long a user's effective permissions are reused
	DefaultCacheTTL  = 5 * time.Minute
	defaultCacheSize = 10000
)

// CachingStore memoizes effective permissions per tenant and user. Entries
// expire after the TTL or when Invalidate is called after a grant change.
type CachingStore struct {
	next    PermissionStore
	cache   *expirable.LRU[string, []auth.Permission]
	metrics *observability.Metrics
}

// NewCachingStore wraps next. size and ttl fall back to 10000 entries and
// five minutes.
func NewCachingStore(next PermissionStore, size int, ttl time.Duration, metrics *observability.Metrics) *CachingStore {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachingStore{
		next:    next,
		cache:   expirable.NewLRU[string, []auth.Permission](size, nil, ttl),
		metrics: metrics,
	}
}

func cacheKey(tenantID string, userID int64) string {
	return tenantID + ":" + strconv.FormatInt(userID, 10) + ":permissions"
}

// UserPermissions implements PermissionStore
func (s *CachingStore) UserPermissions(ctx context.Context, tenantID string, userID int64) ([]auth.Permission, error) {
	key := cacheKey(tenantID, userID)
	if perms, ok := s.cache.Get(key); ok {
		s.metrics.PermissionCache(true)
		return perms, nil
	}
	s.metrics.PermissionCache(false)

	perms, err := s.next.UserPermissions(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, perms)
	return perms, nil
}

// HasPermission implements Store
func (s *CachingStore) HasPermission(ctx context.Context, tenantID string, userID int64, resource, action string) (bool, error) {
	perms, err := s.UserPermissions(ctx, tenantID, userID)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return anyMatches(perms, resource, action), nil
}

// GetUser implements Store
func (s *CachingStore) GetUser(ctx context.Context, tenantID string, userID int64) (*auth.EnhancedUser, error) {
	user, err := s.next.GetUser(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	s.cache.Add(cacheKey(tenantID, userID), user.Permissions)
	return user, nil
}

// CreateTenantContext implements Store. The resolved permissions prime the
// cache for the guards that run later in the same request.
func (s *CachingStore) CreateTenantContext(ctx context.Context, tenantID string, userID int64) (*auth.TenantContext, error) {
	tc, err := s.next.CreateTenantContext(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	s.cache.Add(cacheKey(tenantID, userID), tc.Permissions)
	return tc, nil
}

// Invalidate drops the cached permissions of one user
func (s *CachingStore) Invalidate(tenantID string, userID int64) {
	s.cache.Remove(cacheKey(tenantID, userID))
}

// Purge drops every cached entry
func (s *CachingStore) Purge() {
	s.cache.Purge()
}

// Len returns the number of cached entries
func (s *CachingStore) Len() int {
	return s.cache.Len()
}

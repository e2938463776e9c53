package rbac

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aniket2927/Renx-sub004/pkg/auth"
	"github.com/Aniket2927/Renx-sub004/pkg/observability"
)

// countingStore records how often the underlying permission lookup runs
type countingStore struct {
	*MemoryStore
	calls int
	err   error
}

func (c *countingStore) UserPermissions(ctx context.Context, tenantID string, userID int64) ([]auth.Permission, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.MemoryStore.UserPermissions(ctx, tenantID, userID)
}

func TestCachingStore_HitsAndMisses(t *testing.T) {
	inner := &countingStore{MemoryStore: seededStore(t)}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	store := NewCachingStore(inner, 0, 0, metrics)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := store.HasPermission(ctx, "acme", 2, "trades", "read")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.PermissionCacheHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.PermissionCacheMisses))
}

func TestCachingStore_Invalidate(t *testing.T) {
	inner := &countingStore{MemoryStore: seededStore(t)}
	store := NewCachingStore(inner, 0, 0, nil)
	ctx := context.Background()

	ok, err := store.HasPermission(ctx, "acme", 2, "trades", "create")
	require.NoError(t, err)
	assert.False(t, ok)

	inner.GrantUserPermissions("acme", 2, auth.Permission{Resource: "trades", Action: "create"})

	// still served from cache until invalidated
	ok, _ = store.HasPermission(ctx, "acme", 2, "trades", "create")
	assert.False(t, ok)

	store.Invalidate("acme", 2)
	ok, err = store.HasPermission(ctx, "acme", 2, "trades", "create")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, inner.calls)
}

func TestCachingStore_Expiry(t *testing.T) {
	inner := &countingStore{MemoryStore: seededStore(t)}
	store := NewCachingStore(inner, 10, 20*time.Millisecond, nil)
	ctx := context.Background()

	_, err := store.UserPermissions(ctx, "acme", 2)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 10*time.Millisecond)

	_, err = store.UserPermissions(ctx, "acme", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachingStore_ResolutionPrimesCache(t *testing.T) {
	inner := &countingStore{MemoryStore: seededStore(t)}
	store := NewCachingStore(inner, 0, 0, nil)
	ctx := context.Background()

	_, err := store.CreateTenantContext(ctx, "acme", 1)
	require.NoError(t, err)

	ok, err := store.HasPermission(ctx, "acme", 1, "settings", "update")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, inner.calls)

	store.Purge()
	assert.Zero(t, store.Len())
}

func TestCachingStore_ErrorsAreNotCached(t *testing.T) {
	inner := &countingStore{MemoryStore: seededStore(t), err: errors.New("db down")}
	store := NewCachingStore(inner, 0, 0, nil)
	ctx := context.Background()

	_, err := store.HasPermission(ctx, "acme", 2, "trades", "read")
	assert.Error(t, err)

	inner.err = nil
	ok, err := store.HasPermission(ctx, "acme", 2, "trades", "read")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCachingStore_UnknownUserHasNoPermission(t *testing.T) {
	store := NewCachingStore(seededStore(t), 0, 0, nil)

	ok, err := store.HasPermission(context.Background(), "acme", 404, "trades", "read")
	require.NoError(t, err)
	assert.False(t, ok)
}

package contextkeys

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHelpers(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, GetTenantID(ctx))
	_, ok := GetUserID(ctx)
	assert.False(t, ok)

	start := time.Unix(1700000000, 0)
	ctx = WithTenantID(ctx, "tenant_a")
	ctx = WithUserID(ctx, 42)
	ctx = WithSessionID(ctx, "sess-1")
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithRequestStartTime(ctx, start)

	assert.Equal(t, "tenant_a", GetTenantID(ctx))
	userID, ok := GetUserID(ctx)
	assert.True(t, ok)
	assert.Equal(t, int64(42), userID)
	assert.Equal(t, "sess-1", GetSessionID(ctx))
	assert.Equal(t, "req-1", GetRequestID(ctx))
	got, ok := GetRequestStartTime(ctx)
	assert.True(t, ok)
	assert.Equal(t, start, got)
}

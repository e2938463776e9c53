package audit

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogrusLogger(t *testing.T) {
	base, hook := test.NewNullLogger()
	logger := NewLogrusLogger(base)
	ctx := context.Background()

	require.NoError(t, logger.Log(ctx, &Event{Type: EventAPIAccess, TenantID: "acme", UserID: 3}))
	entry := hook.LastEntry()
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "audit", entry.Data["component"])
	assert.Equal(t, "acme", entry.Data["tenant_id"])
	assert.Equal(t, int64(3), entry.Data["user_id"])

	require.NoError(t, logger.LogSecurityEvent(ctx, &Event{
		Type:     EventSuspiciousActivity,
		Severity: SeverityHigh,
		Details:  map[string]interface{}{"reason": ReasonAccountLocked},
	}))
	entry = hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, true, entry.Data["security"])
	assert.Equal(t, ReasonAccountLocked, entry.Data["detail_reason"])

	require.NoError(t, logger.LogSecurityEvent(ctx, &Event{Type: EventCSRFFailure, Severity: SeverityLow}))
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
}

func TestEventType_IsSecurity(t *testing.T) {
	assert.False(t, EventAPIAccess.IsSecurity())
	assert.False(t, EventAPIRequest.IsSecurity())
	assert.True(t, EventSuspiciousActivity.IsSecurity())
	assert.True(t, EventPermissionDenied.IsSecurity())
}

func TestPrepareDefaults(t *testing.T) {
	event := &Event{Type: EventCSRFFailure}
	prepare(event)
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.Timestamp.IsZero())
	assert.Equal(t, SeverityMedium, event.Severity)
}

package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aniket2927/Renx-sub004/pkg/contextkeys"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("debug", "json", &buf)
	require.NoError(t, err)

	logger.WithField("tenant_id", "acme").Debug("hello")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "acme", line["tenant_id"])
}

func TestNewLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("warn", "text", &buf)
	require.NoError(t, err)

	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNewLogger_Invalid(t *testing.T) {
	_, err := NewLogger("loud", "json", nil)
	assert.Error(t, err)

	_, err = NewLogger("info", "xml", nil)
	assert.Error(t, err)
}

func TestFromContext(t *testing.T) {
	base, hook := test.NewNullLogger()

	ctx := WithLogger(context.Background(), base)
	ctx = contextkeys.WithRequestID(ctx, "req-1")
	ctx = contextkeys.WithTenantID(ctx, "acme")
	ctx = contextkeys.WithUserID(ctx, 42)

	FromContext(ctx).Info("resolved")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "req-1", entry.Data["request_id"])
	assert.Equal(t, "acme", entry.Data["tenant_id"])
	assert.Equal(t, int64(42), entry.Data["user_id"])
	assert.NotContains(t, entry.Data, "trace_id")
}

func TestGetLogger_Default(t *testing.T) {
	assert.Equal(t, logrus.StandardLogger(), GetLogger(context.Background()))
}

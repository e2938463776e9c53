package observability

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

func TestStartTelemetry_Disabled(t *testing.T) {
	logger, hook := test.NewNullLogger()
	tel, err := StartTelemetry(context.Background(), OTelConfig{Enabled: false}, logger)
	require.NoError(t, err)
	assert.Nil(t, tel)
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.Equal(t, "OpenTelemetry is disabled", hook.LastEntry().Message)
}

func TestStartTelemetry_RequiresEndpoint(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, err := StartTelemetry(context.Background(), OTelConfig{Enabled: true}, logger)
	assert.ErrorContains(t, err, "endpoint is required")
}

func TestGatewayResource(t *testing.T) {
	res, err := gatewayResource(context.Background(), OTelConfig{
		ServiceName:    "renx-gateway",
		ServiceVersion: "1.4.0",
		Environment:    "staging",
	})
	require.NoError(t, err)

	attrs := res.Set()
	value := func(key attribute.Key) attribute.Value {
		v, ok := attrs.Value(key)
		require.True(t, ok, "missing %s", key)
		return v
	}

	assert.Equal(t, "renx-gateway", value(semconv.ServiceNameKey).AsString())
	assert.Equal(t, "1.4.0", value(semconv.ServiceVersionKey).AsString())
	assert.Equal(t, ServiceNamespace, value(semconv.ServiceNamespaceKey).AsString())
	assert.Equal(t, "staging", value(semconv.DeploymentEnvironmentKey).AsString())
	assert.Equal(t, "security-gateway", value(ComponentKey).AsString())
	assert.True(t, value(TenantIsolationKey).AsBool())
	assert.NotEmpty(t, value(semconv.ServiceInstanceIDKey).AsString())

	other, err := gatewayResource(context.Background(), OTelConfig{ServiceName: "renx-gateway"})
	require.NoError(t, err)
	id, _ := other.Set().Value(semconv.ServiceInstanceIDKey)
	assert.NotEqual(t, value(semconv.ServiceInstanceIDKey).AsString(), id.AsString())
	_, ok := other.Set().Value(semconv.DeploymentEnvironmentKey)
	assert.False(t, ok)
}

func TestUpdateLoggerWithTraceContext(t *testing.T) {
	logger, hook := test.NewNullLogger()

	UpdateLoggerWithTraceContext(context.Background(), logger).Info("no span")
	assert.NotContains(t, hook.LastEntry().Data, "trace_id")

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	UpdateLoggerWithTraceContext(ctx, logger).Info("with span")
	entry := hook.LastEntry()
	assert.Equal(t, span.SpanContext().TraceID().String(), entry.Data["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entry.Data["span_id"])
}

func TestTelemetry_Shutdown(t *testing.T) {
	logger, hook := test.NewNullLogger()
	tel := &Telemetry{tracer: sdktrace.NewTracerProvider(), logger: logger}
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.Equal(t, "OpenTelemetry export stopped", hook.LastEntry().Message)
}

package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	// ServiceNamespace groups every RenX service in the tracing backend
	ServiceNamespace = "renx"

	// ComponentKey tags spans from the security layer so they can be told
	// apart from the trading services behind it
	ComponentKey = attribute.Key("renx.component")
	// TenantIsolationKey records whether the gateway pins tenants per request
	TenantIsolationKey = attribute.Key("renx.tenant_isolation")

	gatewayComponent = "security-gateway"
	exportTimeout    = 10 * time.Second
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	Enabled        bool
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	// Environment becomes deployment.environment
	Environment string
	Insecure    bool
	SampleRatio float64 // fraction of root spans sampled, 1 samples everything
}

// Telemetry owns the trace and meter providers of one gateway process
type Telemetry struct {
	tracer *sdktrace.TracerProvider
	meter  *metric.MeterProvider
	logger logrus.FieldLogger
}

// StartTelemetry installs OTLP gRPC trace and metric exporters as the global
// providers. Disabled telemetry returns a nil *Telemetry, whose Shutdown is
// a no-op, and leaves the global no-op tracer in place.
func StartTelemetry(ctx context.Context, cfg OTelConfig, logger logrus.FieldLogger) (*Telemetry, error) {
	if !cfg.Enabled {
		logger.Info("OpenTelemetry is disabled")
		return nil, nil
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("OpenTelemetry endpoint is required when tracing is enabled")
	}
	if cfg.SampleRatio <= 0 || cfg.SampleRatio > 1 {
		cfg.SampleRatio = 1
	}

	logger = logger.WithFields(logrus.Fields{
		"endpoint":     cfg.Endpoint,
		"environment":  cfg.Environment,
		"sample_ratio": cfg.SampleRatio,
	})

	res, err := gatewayResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var dial []grpc.DialOption
	if cfg.Insecure {
		dial = append(dial, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	tel := &Telemetry{logger: logger}
	if tel.tracer, err = newTracerProvider(ctx, cfg, res, dial); err != nil {
		return nil, err
	}
	if tel.meter, err = newMeterProvider(ctx, cfg, res, dial); err != nil {
		if shutdownErr := tel.tracer.Shutdown(ctx); shutdownErr != nil {
			logger.WithError(shutdownErr).Warn("Failed to stop tracer provider")
		}
		return nil, err
	}

	otel.SetTracerProvider(tel.tracer)
	otel.SetMeterProvider(tel.meter)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("OpenTelemetry export started")
	return tel, nil
}

// gatewayResource describes this process to the tracing backend. Each
// process gets its own instance id so spans from gateway replicas sharing a
// Redis store stay distinguishable.
func gatewayResource(ctx context.Context, cfg OTelConfig) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.ServiceNamespace(ServiceNamespace),
		semconv.ServiceInstanceID(uuid.NewString()),
		ComponentKey.String(gatewayComponent),
		TenantIsolationKey.Bool(true),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithHost(),
	)
	// A detector that cannot read host or process details still leaves the
	// gateway attributes in place
	if err != nil && !errors.Is(err, resource.ErrPartialResource) {
		return nil, fmt.Errorf("failed to describe gateway resource: %w", err)
	}
	return res, nil
}

func newTracerProvider(ctx context.Context, cfg OTelConfig, res *resource.Resource, dial []grpc.DialOption) (*sdktrace.TracerProvider, error) {
	ctx, cancel := context.WithTimeout(ctx, exportTimeout)
	defer cancel()

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithDialOption(dial...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	// A sampled parent keeps the request sampled
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithMaxExportBatchSize(512),
		),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	), nil
}

func newMeterProvider(ctx context.Context, cfg OTelConfig, res *resource.Resource, dial []grpc.DialOption) (*metric.MeterProvider, error) {
	ctx, cancel := context.WithTimeout(ctx, exportTimeout)
	defer cancel()

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
		otlpmetricgrpc.WithDialOption(dial...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	return metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(10*time.Second))),
	), nil
}

// Shutdown flushes pending spans and metrics. Both providers are stopped
// even when the first one fails.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}

	var errs []error
	if t.tracer != nil {
		if err := t.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if t.meter != nil {
		if err := t.meter.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		t.logger.WithError(err).Error("OpenTelemetry shutdown failed")
		return err
	}

	t.logger.Info("OpenTelemetry export stopped")
	return nil
}

// UpdateLoggerWithTraceContext adds the trace and span ids of the active
// span to logger, so audit and access logs can be joined with traces
func UpdateLoggerWithTraceContext(ctx context.Context, logger logrus.FieldLogger) logrus.FieldLogger {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return logger
	}

	spanCtx := span.SpanContext()
	return logger.WithFields(logrus.Fields{
		"trace_id": spanCtx.TraceID().String(),
		"span_id":  spanCtx.SpanID().String(),
	})
}

// Tracer returns the named tracer from the global provider. With tracing
// disabled this is a no-op tracer.
func Tracer(name string) trace.Tracer {
	return otel.Tracer("github.com/Aniket2927/Renx-sub004/" + name)
}

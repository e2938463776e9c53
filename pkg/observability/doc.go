// Package observability provides structured logging, Prometheus metrics,
// health checks and OpenTelemetry tracing for the gateway.
//
// # Logging
//
//	logger, err := observability.NewLogger("info", "json", os.Stdout)
//	ctx = observability.WithLogger(ctx, logger)
//	observability.FromContext(ctx).Info("tenant resolved")
//
// FromContext adds request_id, tenant_id, user_id and, when a span is
// recording, trace_id and span_id.
//
// # Metrics
//
//	metrics := observability.NewMetrics(registry)
//	metrics.RateLimited("auth")
//
// All recording methods accept a nil *Metrics.
//
// # Health
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	router.HandleFunc("/healthz", checker.Liveness)
//	router.HandleFunc("/readyz", checker.Readiness)
//
// # Tracing
//
// StartTelemetry installs OTLP gRPC trace and metric exporters when enabled.
// Tracer returns a tracer from the global provider for guard and resolver
// spans.
package observability

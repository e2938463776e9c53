package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. Every method is safe on a nil
// receiver so components can run without metrics in tests.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authentication and authorization
	AuthFailuresTotal      *prometheus.CounterVec
	PermissionDenialsTotal *prometheus.CounterVec

	// Adaptive defences
	RateLimitRejectionsTotal *prometheus.CounterVec
	SlowDownDelaySeconds     *prometheus.HistogramVec
	LockoutsTotal            prometheus.Counter
	LockedRejectionsTotal    prometheus.Counter
	CSRFFailuresTotal        *prometheus.CounterVec
	SessionTerminationsTotal prometheus.Counter

	// Supporting components
	AuditFailuresTotal    *prometheus.CounterVec
	PermissionCacheHits   prometheus.Counter
	PermissionCacheMisses prometheus.Counter
	SweepDeletedTotal     *prometheus.CounterVec
	SweepErrorsTotal      *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "renx_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "renx_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		AuthFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "renx_auth_failures_total",
				Help: "Authentication failures by error code",
			},
			[]string{"code"},
		),
		PermissionDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "renx_permission_denials_total",
				Help: "Authorization denials by guard kind (role, permission, tenant)",
			},
			[]string{"kind"},
		),

		RateLimitRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "renx_ratelimit_rejections_total",
				Help: "Requests rejected by a rate limit policy",
			},
			[]string{"policy"},
		),
		SlowDownDelaySeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "renx_slowdown_delay_seconds",
				Help:    "Delay applied by the slow-down policy",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20},
			},
			[]string{"policy"},
		),
		LockoutsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "renx_lockouts_total",
				Help: "Client IPs locked out after repeated failures",
			},
		),
		LockedRejectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "renx_locked_rejections_total",
				Help: "Requests rejected because the client IP is locked out",
			},
		),
		CSRFFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "renx_csrf_failures_total",
				Help: "CSRF validation failures by reason (missing, invalid)",
			},
			[]string{"reason"},
		),
		SessionTerminationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "renx_session_terminations_total",
				Help: "Sessions terminated by the session monitor",
			},
		),

		AuditFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "renx_audit_failures_total",
				Help: "Audit events that were dropped or failed to reach the sink",
			},
			[]string{"event_type", "reason"},
		),
		PermissionCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "renx_permission_cache_hits_total",
				Help: "Permission cache hits",
			},
		),
		PermissionCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "renx_permission_cache_misses_total",
				Help: "Permission cache misses",
			},
		),
		SweepDeletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "renx_sweep_deleted_total",
				Help: "Expired records removed by scheduled sweeps",
			},
			[]string{"job"},
		),
		SweepErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "renx_sweep_errors_total",
				Help: "Scheduled sweeps that failed",
			},
			[]string{"job"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthFailuresTotal,
		m.PermissionDenialsTotal,
		m.RateLimitRejectionsTotal,
		m.SlowDownDelaySeconds,
		m.LockoutsTotal,
		m.LockedRejectionsTotal,
		m.CSRFFailuresTotal,
		m.SessionTerminationsTotal,
		m.AuditFailuresTotal,
		m.PermissionCacheHits,
		m.PermissionCacheMisses,
		m.SweepDeletedTotal,
		m.SweepErrorsTotal,
	)

	return m
}

// AuthFailure counts a failed authentication by error code
func (m *Metrics) AuthFailure(code string) {
	if m == nil {
		return
	}
	m.AuthFailuresTotal.WithLabelValues(code).Inc()
}

// PermissionDenied counts a guard denial
func (m *Metrics) PermissionDenied(kind string) {
	if m == nil {
		return
	}
	m.PermissionDenialsTotal.WithLabelValues(kind).Inc()
}

// RateLimited counts a rejection by the named policy
func (m *Metrics) RateLimited(policy string) {
	if m == nil {
		return
	}
	m.RateLimitRejectionsTotal.WithLabelValues(policy).Inc()
}

// SlowedDown records an applied slow-down delay
func (m *Metrics) SlowedDown(policy string, delay time.Duration) {
	if m == nil {
		return
	}
	m.SlowDownDelaySeconds.WithLabelValues(policy).Observe(delay.Seconds())
}

// LockedOut counts a new lockout
func (m *Metrics) LockedOut() {
	if m == nil {
		return
	}
	m.LockoutsTotal.Inc()
}

// RejectedWhileLocked counts a request refused because of an active lockout
func (m *Metrics) RejectedWhileLocked() {
	if m == nil {
		return
	}
	m.LockedRejectionsTotal.Inc()
}

// CSRFFailure counts a CSRF failure
func (m *Metrics) CSRFFailure(reason string) {
	if m == nil {
		return
	}
	m.CSRFFailuresTotal.WithLabelValues(reason).Inc()
}

// SessionTerminated counts a terminated session
func (m *Metrics) SessionTerminated() {
	if m == nil {
		return
	}
	m.SessionTerminationsTotal.Inc()
}

// AuditFailure counts an undelivered audit event. Its signature matches
// audit.FailureFunc once the event type is converted to a string.
func (m *Metrics) AuditFailure(eventType, reason string) {
	if m == nil {
		return
	}
	m.AuditFailuresTotal.WithLabelValues(eventType, reason).Inc()
}

// PermissionCache records a permission cache lookup
func (m *Metrics) PermissionCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.PermissionCacheHits.Inc()
		return
	}
	m.PermissionCacheMisses.Inc()
}

// Sweep records the result of a scheduled sweep
func (m *Metrics) Sweep(job string, deleted int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SweepErrorsTotal.WithLabelValues(job).Inc()
		return
	}
	m.SweepDeletedTotal.WithLabelValues(job).Add(float64(deleted))
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routeName returns the mux route template so that path parameters do not
// explode label cardinality
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := routeName(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

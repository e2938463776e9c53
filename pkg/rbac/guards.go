package rbac

import (
	"context"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Aniket2927/Renx-sub004/pkg/apierror"
	"github.com/Aniket2927/Renx-sub004/pkg/audit"
	"github.com/Aniket2927/Renx-sub004/pkg/auth"
	"github.com/Aniket2927/Renx-sub004/pkg/contextkeys"
	"github.com/Aniket2927/Renx-sub004/pkg/httputil"
	"github.com/Aniket2927/Renx-sub004/pkg/observability"
)

var (
	errAuthRequired  = apierror.Unauthenticated.WithMessage("Authentication required")
	errAuthzInternal = apierror.InternalError.WithMessage("Internal authorization error")
)

// GuardConfig configures a Guard
type GuardConfig struct {
	Store   Store
	Emitter *audit.Emitter
	Metrics *observability.Metrics
	Logger  logrus.FieldLogger
}

// Guard builds role and permission middleware for protected routes. Every
// guard needs a resolved tenant context on the request.
type Guard struct {
	store   Store
	emitter *audit.Emitter
	metrics *observability.Metrics
	logger  logrus.FieldLogger
	tracer  trace.Tracer
}

// NewGuard creates a guard
func NewGuard(cfg GuardConfig) *Guard {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Guard{
		store:   cfg.Store,
		emitter: cfg.Emitter,
		metrics: cfg.Metrics,
		logger:  logger.WithField("component", "rbac"),
		tracer:  observability.Tracer("rbac"),
	}
}

// RequireRoles admits requests whose resolved role is one of roles
func (g *Guard) RequireRoles(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := g.tracer.Start(r.Context(), "rbac.RequireRoles")
			defer span.End()

			if err := g.CheckRoles(ctx, r, roles...); err != nil {
				recordDenial(span, err)
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole admits a single role
func (g *Guard) RequireRole(role auth.Role) func(http.Handler) http.Handler {
	return g.RequireRoles(role)
}

// RequireAdmin admits admin and super_admin
func (g *Guard) RequireAdmin() func(http.Handler) http.Handler {
	return g.RequireRoles(auth.RoleAdmin, auth.RoleSuperAdmin)
}

// RequireSuperAdmin admits super_admin only
func (g *Guard) RequireSuperAdmin() func(http.Handler) http.Handler {
	return g.RequireRoles(auth.RoleSuperAdmin)
}

// RequirePermissions admits requests holding every listed permission. The
// first missing one rejects the request.
func (g *Guard) RequirePermissions(perms ...auth.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := g.tracer.Start(r.Context(), "rbac.RequirePermissions")
			defer span.End()

			if err := g.CheckPermissions(ctx, r, perms...); err != nil {
				recordDenial(span, err)
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission is RequirePermissions for a single resource and action
func (g *Guard) RequirePermission(resource, action string) func(http.Handler) http.Handler {
	return g.RequirePermissions(auth.Permission{Resource: resource, Action: action})
}

// CheckRoles returns nil when the request's tenant context holds one of roles
func (g *Guard) CheckRoles(ctx context.Context, r *http.Request, roles ...auth.Role) error {
	tc := auth.TenantContextFrom(ctx)
	if tc == nil || tc.User == nil {
		return errAuthRequired
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("renx.tenant_id", tc.TenantID),
		attribute.String("renx.role", string(tc.Role())),
	)

	if tc.HasRole(roles...) {
		return nil
	}

	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}

	g.metrics.PermissionDenied("role")
	g.deny(ctx, r, tc, map[string]interface{}{
		"requiredRoles": names,
		"userRole":      string(tc.Role()),
		"resource":      r.URL.Path,
	})

	return apierror.InsufficientPermissions.WithMessage("Required roles: " + strings.Join(names, ", "))
}

// CheckPermissions returns nil when the request's tenant context holds every
// permission in perms. The demo context is checked against its own grants;
// any other context asks the store.
func (g *Guard) CheckPermissions(ctx context.Context, r *http.Request, perms ...auth.Permission) error {
	tc := auth.TenantContextFrom(ctx)
	if tc == nil || tc.User == nil {
		return errAuthRequired
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("renx.tenant_id", tc.TenantID),
		attribute.Int64("renx.user_id", tc.UserID()),
	)

	for _, p := range perms {
		allowed, err := g.allowed(ctx, tc, p)
		if err != nil {
			g.logger.WithError(err).WithFields(logrus.Fields{
				"tenant_id":  tc.TenantID,
				"user_id":    tc.UserID(),
				"permission": p.String(),
			}).Error("Permission check failed")
			return errAuthzInternal
		}
		if allowed {
			continue
		}

		g.metrics.PermissionDenied("permission")
		g.deny(ctx, r, tc, map[string]interface{}{
			"requiredPermission": p.String(),
			"resource":           r.URL.Path,
		})
		return apierror.InsufficientPermissions.WithMessagef("Missing permission: %s on %s", p.Action, p.Resource)
	}

	return nil
}

func (g *Guard) allowed(ctx context.Context, tc *auth.TenantContext, p auth.Permission) (bool, error) {
	if tc.Demo || g.store == nil {
		return tc.HasPermission(p.Resource, p.Action), nil
	}
	return g.store.HasPermission(ctx, tc.TenantID, tc.UserID(), p.Resource, p.Action)
}

// deny records the denial synchronously, before the response is written.
func (g *Guard) deny(ctx context.Context, r *http.Request, tc *auth.TenantContext, details map[string]interface{}) {
	if g.emitter == nil {
		return
	}
	g.emitter.EmitSync(ctx, &audit.Event{
		Type:      audit.EventPermissionDenied,
		TenantID:  tc.TenantID,
		UserID:    tc.UserID(),
		Resource:  r.URL.Path,
		Details:   details,
		IPAddress: httputil.ClientIP(r),
		UserAgent: r.UserAgent(),
		SessionID: contextkeys.GetSessionID(ctx),
		RequestID: contextkeys.GetRequestID(ctx),
		Severity:  audit.SeverityMedium,
	})
}

func recordDenial(span trace.Span, err error) {
	apiErr := apierror.From(err)
	span.SetAttributes(attribute.String("renx.error_code", string(apiErr.Code)))
	span.SetStatus(codes.Error, apiErr.Message)
}

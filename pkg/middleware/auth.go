package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

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
	"github.com/Aniket2927/Renx-sub004/pkg/rbac"
)

var errAuthInternal = apierror.InternalError.WithMessage("Internal authentication error")

// TokenVerifier verifies the bearer credential on a request
type TokenVerifier interface {
	VerifyRequest(r *http.Request) (*auth.Claims, error)
}

// AuthConfig configures AuthMiddleware
type AuthConfig struct {
	Verifier TokenVerifier
	Store    rbac.Store
	// Production disables the demo tenant fallback
	Production bool
	// Optional lets requests without an Authorization header through
	// anonymously. A header that is present must still verify.
	Optional bool
	Deps
}

// AuthMiddleware verifies the caller's token and resolves its tenant context
type AuthMiddleware struct {
	verifier   TokenVerifier
	store      rbac.Store
	production bool
	optional   bool
	deps       Deps
	logger     logrus.FieldLogger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(cfg AuthConfig) *AuthMiddleware {
	return &AuthMiddleware{
		verifier:   cfg.Verifier,
		store:      cfg.Store,
		production: cfg.Production,
		optional:   cfg.Optional,
		deps:       cfg.Deps,
		logger:     cfg.Deps.logger("auth"),
		tracer:     observability.Tracer("middleware"),
		now:        time.Now,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.optional && r.Header.Get("Authorization") == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx, span := m.tracer.Start(r.Context(), "middleware.Authenticate")
		defer span.End()

		ctx, err := m.Resolve(ctx, r)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(apierror.From(err).Code))
			httputil.WriteError(w, err)
			return
		}

		tc := auth.TenantContextFrom(ctx)
		span.SetAttributes(
			attribute.String("tenant.id", tc.TenantID),
			attribute.Int64("user.id", tc.UserID()),
			attribute.Bool("tenant.demo", tc.Demo),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Resolve verifies the request's token and returns ctx carrying the claims,
// tenant context, user and session id
func (m *AuthMiddleware) Resolve(ctx context.Context, r *http.Request) (context.Context, error) {
	claims, err := m.verifier.VerifyRequest(r)
	if err != nil {
		m.deps.Metrics.AuthFailure(string(apierror.From(err).Code))
		return ctx, err
	}

	r = r.WithContext(ctx)
	tc, user, err := m.resolveTenant(r, claims)
	if err != nil {
		return ctx, err
	}

	ctx = auth.WithIdentity(ctx, claims, tc, user)
	if sessionID := httputil.SessionID(r); sessionID != "" {
		ctx = contextkeys.WithSessionID(ctx, sessionID)
	}

	if !tc.Demo {
		m.deps.emit(r.WithContext(ctx), &audit.Event{
			Type:     audit.EventAPIAccess,
			Action:   string(audit.EventAPIAccess),
			Resource: r.URL.Path,
			Details: map[string]interface{}{
				"method": r.Method,
				"path":   r.URL.Path,
				"query":  r.URL.RawQuery,
			},
			Severity: audit.SeverityLow,
		})
	}
	return ctx, nil
}

func (m *AuthMiddleware) resolveTenant(r *http.Request, claims *auth.Claims) (*auth.TenantContext, *auth.EnhancedUser, error) {
	ctx := r.Context()
	logger := m.logger.WithFields(logrus.Fields{
		"tenant_id": claims.TenantID,
		"user_id":   claims.UserID,
	})

	tc, err := m.store.CreateTenantContext(ctx, claims.TenantID, claims.UserID)
	switch {
	case errors.Is(err, rbac.ErrNotFound):
		if !m.production && claims.TenantID == auth.DemoTenantID {
			demo := auth.NewDemoTenantContext(claims, m.now())
			return demo, demo.User, nil
		}
		m.deps.Metrics.PermissionDenied("tenant")
		m.deps.emitSync(r, &audit.Event{
			Type:     audit.EventUnauthorizedAccess,
			TenantID: claims.TenantID,
			UserID:   claims.UserID,
			Resource: r.URL.Path,
			Details: map[string]interface{}{
				"reason": audit.ReasonTenantAccessDenied,
				"method": r.Method,
			},
			Severity: audit.SeverityHigh,
		})
		return nil, nil, apierror.TenantAccessDenied
	case err != nil:
		logger.WithError(err).Error("Failed to resolve tenant context")
		return nil, nil, errAuthInternal
	}

	user, err := m.store.GetUser(ctx, claims.TenantID, claims.UserID)
	if err != nil {
		logger.WithError(err).Warn("Failed to load user, using tenant context user")
		user = tc.User
	}
	return tc, user, nil
}

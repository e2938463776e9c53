package middleware

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Aniket2927/Renx-sub004/pkg/audit"
	"github.com/Aniket2927/Renx-sub004/pkg/auth"
	"github.com/Aniket2927/Renx-sub004/pkg/contextkeys"
	"github.com/Aniket2927/Renx-sub004/pkg/httputil"
	"github.com/Aniket2927/Renx-sub004/pkg/observability"
)

// Deps are the collaborators shared by the security middleware. Every field
// is optional.
type Deps struct {
	Emitter *audit.Emitter
	Metrics *observability.Metrics
	Logger  logrus.FieldLogger
}

func (d Deps) logger(component string) logrus.FieldLogger {
	logger := d.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return logger.WithField("component", component)
}

// emitSync records a security event before the response is written
func (d Deps) emitSync(r *http.Request, event *audit.Event) {
	if d.Emitter == nil {
		return
	}
	stampRequest(r, event)
	d.Emitter.EmitSync(r.Context(), event)
}

// emit queues an event without waiting for the sink
func (d Deps) emit(r *http.Request, event *audit.Event) {
	if d.Emitter == nil {
		return
	}
	stampRequest(r, event)
	d.Emitter.Emit(r.Context(), event)
}

func stampRequest(r *http.Request, event *audit.Event) {
	ctx := r.Context()
	if event.TenantID == "" {
		event.TenantID = contextkeys.GetTenantID(ctx)
	}
	if event.UserID == 0 {
		event.UserID, _ = contextkeys.GetUserID(ctx)
	}
	if event.IPAddress == "" {
		event.IPAddress = httputil.ClientIP(r)
	}
	if event.UserAgent == "" {
		event.UserAgent = r.UserAgent()
	}
	if event.SessionID == "" {
		event.SessionID = contextkeys.GetSessionID(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = contextkeys.GetRequestID(ctx)
	}
}

// When returns mw if enabled, and a pass-through middleware otherwise
func When(enabled bool, mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if enabled && mw != nil {
		return mw
	}
	return func(next http.Handler) http.Handler { return next }
}

// GetTenantContext returns the tenant context resolved by AuthMiddleware
func GetTenantContext(r *http.Request) *auth.TenantContext {
	return auth.TenantContextFrom(r.Context())
}

// GetClaims returns the verified token claims
func GetClaims(r *http.Request) *auth.Claims {
	return auth.ClaimsFrom(r.Context())
}

// GetUser returns the authenticated user
func GetUser(r *http.Request) *auth.EnhancedUser {
	return auth.UserFrom(r.Context())
}

// GetTenantID returns the authenticated tenant id, or ""
func GetTenantID(r *http.Request) string {
	return contextkeys.GetTenantID(r.Context())
}

// GetUserID returns the authenticated user id
func GetUserID(r *http.Request) (int64, bool) {
	return contextkeys.GetUserID(r.Context())
}

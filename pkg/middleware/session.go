package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Aniket2927/Renx-sub004/pkg/apierror"
	"github.com/Aniket2927/Renx-sub004/pkg/audit"
	"github.com/Aniket2927/Renx-sub004/pkg/contextkeys"
	"github.com/Aniket2927/Renx-sub004/pkg/httputil"
	"github.com/Aniket2927/Renx-sub004/pkg/session"
)

const (
	defaultSessionTimeout = 2 * time.Second
	terminationReason     = "suspicious_activity"
)

// SessionMonitor asks the session service about every authenticated request
// that carries a session id. Service failures are logged and never block.
type SessionMonitor struct {
	service session.Service
	deps    Deps
	logger  logrus.FieldLogger
	timeout time.Duration
}

// NewSessionMonitor creates a session monitor. A zero timeout means two
// seconds per service call.
func NewSessionMonitor(service session.Service, timeout time.Duration, deps Deps) *SessionMonitor {
	if timeout <= 0 {
		timeout = defaultSessionTimeout
	}
	return &SessionMonitor{
		service: service,
		deps:    deps,
		logger:  deps.logger("session_monitor"),
		timeout: timeout,
	}
}

// Handler wraps an HTTP handler with session checks
func (m *SessionMonitor) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := contextkeys.GetSessionID(r.Context())
		if GetTenantContext(r) == nil || sessionID == "" {
			next.ServeHTTP(w, r)
			return
		}
		logger := m.logger.WithField("session_id", sessionID)

		ctx, cancel := context.WithTimeout(r.Context(), m.timeout)
		defer cancel()

		ip := httputil.ClientIP(r)
		decision, err := m.service.DetectSuspiciousActivity(ctx, sessionID, ip, r.UserAgent())
		if err != nil {
			logger.WithError(err).Warn("Session check failed")
			next.ServeHTTP(w, r)
			return
		}

		if decision.Action == session.ActionLogout {
			if err := m.service.TerminateSession(ctx, sessionID, terminationReason); err != nil {
				logger.WithError(err).Warn("Failed to terminate session")
			}
			m.deps.Metrics.SessionTerminated()
			m.deps.emitSync(r, &audit.Event{
				Type:     audit.EventSessionTerminated,
				Resource: r.URL.Path,
				Details: map[string]interface{}{
					"reason":  audit.ReasonSessionAnomaly,
					"message": decision.Message,
					"signals": decision.Reasons,
				},
				Severity: audit.SeverityHigh,
			})
			err := apierror.SessionTerminated
			if decision.Message != "" {
				err = err.WithMessage(decision.Message)
			}
			httputil.WriteError(w, err)
			return
		}

		err = m.service.UpdateActivity(ctx, sessionID, session.Activity{
			Path:      r.URL.Path,
			Method:    r.Method,
			UserAgent: r.UserAgent(),
			IP:        ip,
		})
		if err != nil {
			logger.WithError(err).Warn("Failed to update session activity")
		}
		next.ServeHTTP(w, r)
	})
}

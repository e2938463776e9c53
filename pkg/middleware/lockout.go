package middleware

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Aniket2927/Renx-sub004/pkg/apierror"
	"github.com/Aniket2927/Renx-sub004/pkg/audit"
	"github.com/Aniket2927/Renx-sub004/pkg/httputil"
	"github.com/Aniket2927/Renx-sub004/pkg/lockout"
)

// LockoutMiddleware refuses clients that are locked out and counts every
// 401 or 403 response as a failed attempt
type LockoutMiddleware struct {
	tracker *lockout.Tracker
	deps    Deps
	logger  logrus.FieldLogger
}

// NewLockoutMiddleware creates a lockout middleware keyed by client IP
func NewLockoutMiddleware(tracker *lockout.Tracker, deps Deps) *LockoutMiddleware {
	return &LockoutMiddleware{
		tracker: tracker,
		deps:    deps,
		logger:  deps.logger("lockout"),
	}
}

// Handler wraps an HTTP handler with lockout checks
func (m *LockoutMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := httputil.ClientIP(r)
		logger := m.logger.WithField("ip", ip)

		status, err := m.tracker.Check(r.Context(), ip)
		if err != nil {
			logger.WithError(err).Warn("Lockout store unavailable, skipping check")
		} else if status.Locked {
			m.rejectLocked(w, r, status)
			return
		}

		rw := httputil.NewResponseWriter(w)
		next.ServeHTTP(rw, r)

		if rw.Status() != http.StatusUnauthorized && rw.Status() != http.StatusForbidden {
			return
		}
		ctx := context.WithoutCancel(r.Context())
		attempt, lockedNow, err := m.tracker.RecordFailure(ctx, ip)
		if err != nil {
			logger.WithError(err).Warn("Failed to record failed attempt")
			return
		}
		if !lockedNow {
			return
		}

		duration := m.tracker.Config().Duration
		m.deps.Metrics.LockedOut()
		logger.WithField("failed_attempts", attempt.Count).Warn("Client locked out")
		m.deps.emitSync(r.WithContext(ctx), &audit.Event{
			Type:     audit.EventSuspiciousActivity,
			Resource: r.URL.Path,
			Details: map[string]interface{}{
				"reason":          audit.ReasonAccountLocked,
				"failedAttempts":  attempt.Count,
				"lockoutDuration": int(duration.Minutes()),
			},
			Severity: audit.SeverityHigh,
		})
	})
}

func (m *LockoutMiddleware) rejectLocked(w http.ResponseWriter, r *http.Request, status lockout.Status) {
	minutes := status.RemainingMinutes()
	m.deps.Metrics.RejectedWhileLocked()
	m.deps.emitSync(r, &audit.Event{
		Type:     audit.EventSuspiciousActivity,
		Resource: r.URL.Path,
		Details: map[string]interface{}{
			"reason":                  audit.ReasonAccessWhileLocked,
			"remainingLockoutMinutes": minutes,
			"endpoint":                r.URL.Path,
		},
		Severity: audit.SeverityHigh,
	})
	httputil.WriteError(w, apierror.AccountLocked.
		WithMessagef("Too many failed attempts. Try again in %d minutes.", minutes).
		WithRetryAfter(status.Remaining))
}

package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Aniket2927/Renx-sub004/pkg/apierror"
	"github.com/Aniket2927/Renx-sub004/pkg/audit"
	"github.com/Aniket2927/Renx-sub004/pkg/httputil"
	"github.com/Aniket2927/Renx-sub004/pkg/ratelimit"
)

// RateLimitMiddleware enforces one rate limit policy
type RateLimitMiddleware struct {
	limiter *ratelimit.Limiter
	policy  ratelimit.Policy
	deps    Deps
	logger  logrus.FieldLogger
}

// NewRateLimitMiddleware creates a rate limit middleware for limiter's policy
func NewRateLimitMiddleware(limiter *ratelimit.Limiter, deps Deps) *RateLimitMiddleware {
	policy := limiter.Policy()
	return &RateLimitMiddleware{
		limiter: limiter,
		policy:  policy,
		deps:    deps,
		logger:  deps.logger("ratelimit").WithField("policy", string(policy.Class)),
	}
}

// identity returns the key the request counts against. ok is false when
// the policy does not apply to the request.
func (m *RateLimitMiddleware) identity(r *http.Request) (string, bool) {
	ip := httputil.ClientIP(r)
	switch m.policy.Key {
	case ratelimit.KeyByUserOrIP:
		if userID, ok := GetUserID(r); ok {
			return fmt.Sprintf("user:%s:%d", GetTenantID(r), userID), true
		}
		return "ip:" + ip, true
	case ratelimit.KeyByTenantIP:
		tenantID := GetTenantID(r)
		if tenantID == "" {
			return "", false
		}
		return tenantID + ":" + ip, true
	default:
		return ip, true
	}
}

// Handler wraps an HTTP handler with rate limiting
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := m.identity(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		decision, err := m.limiter.Take(r.Context(), identity)
		if err != nil {
			m.logger.WithError(err).Warn("Rate limit store unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		setRateLimitHeaders(w, decision)
		if !decision.Allowed {
			m.rateLimitExceeded(w, r, decision)
			return
		}

		if !m.policy.SkipSuccessful {
			next.ServeHTTP(w, r)
			return
		}

		rw := httputil.NewResponseWriter(w)
		next.ServeHTTP(rw, r)
		if rw.Status() >= 200 && rw.Status() < 300 {
			// The request context may already be cancelled once the
			// response is written.
			ctx := context.WithoutCancel(r.Context())
			if err := m.limiter.Refund(ctx, identity, decision.ResetAt); err != nil {
				m.logger.WithError(err).Warn("Failed to refund successful request")
			}
		}
	})
}

func setRateLimitHeaders(w http.ResponseWriter, d ratelimit.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

func (m *RateLimitMiddleware) rateLimitExceeded(w http.ResponseWriter, r *http.Request, d ratelimit.Decision) {
	m.deps.Metrics.RateLimited(string(m.policy.Class))

	reason := audit.ReasonRateLimitExceeded
	severity := audit.SeverityMedium
	details := map[string]interface{}{
		"endpoint":  r.URL.Path,
		"method":    r.Method,
		"userAgent": r.UserAgent(),
		"policy":    string(m.policy.Class),
	}
	if m.policy.Class == ratelimit.ClassAuth {
		reason = audit.ReasonAuthRateLimitExceeded
		severity = audit.SeverityHigh
		if body, ok, _ := httputil.PeekJSONObject(r); ok {
			if email, ok := body["email"].(string); ok {
				details["email"] = email
			}
		}
	}
	details["reason"] = reason

	m.logger.WithFields(logrus.Fields{
		"ip":    httputil.ClientIP(r),
		"count": d.Count,
	}).Warn("Rate limit exceeded")
	m.deps.emitSync(r, &audit.Event{
		Type:     audit.EventSuspiciousActivity,
		Resource: r.URL.Path,
		Details:  details,
		Severity: severity,
	})

	httputil.WriteError(w, m.rejection().WithRetryAfter(d.RetryAfter))
}

func (m *RateLimitMiddleware) rejection() *apierror.Error {
	var err *apierror.Error
	switch m.policy.Class {
	case ratelimit.ClassAuth:
		err = apierror.AuthRateLimitExceeded
	case ratelimit.ClassAPI:
		err = apierror.APIRateLimitExceeded
	default:
		err = apierror.RateLimitExceeded
	}
	if m.policy.Message != "" {
		err = err.WithMessage(m.policy.Message)
	}
	return err
}

// SlowDownMiddleware delays requests once a client passes the slow-down
// threshold. It never rejects.
type SlowDownMiddleware struct {
	slowDown *ratelimit.SlowDown
	deps     Deps
	logger   logrus.FieldLogger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewSlowDownMiddleware creates a slow-down middleware keyed by client IP
func NewSlowDownMiddleware(sd *ratelimit.SlowDown, deps Deps) *SlowDownMiddleware {
	return &SlowDownMiddleware{
		slowDown: sd,
		deps:     deps,
		logger:   deps.logger("slowdown"),
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handler wraps an HTTP handler with progressive delays
func (m *SlowDownMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delay, err := m.slowDown.Hit(r.Context(), httputil.ClientIP(r))
		if err != nil {
			m.logger.WithError(err).Warn("Slow-down store unavailable, not delaying")
		}
		if delay > 0 {
			m.deps.Metrics.SlowedDown(string(ratelimit.ClassGeneral), delay)
			if err := m.sleep(r.Context(), delay); err != nil {
				// The client went away while waiting.
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aniket2927/Renx-sub004/pkg/audit"
	"github.com/Aniket2927/Renx-sub004/pkg/lockout"
	"github.com/Aniket2927/Renx-sub004/pkg/store"
)

func newTracker(t *testing.T, now *time.Time) *lockout.Tracker {
	t.Helper()
	tracker, err := lockout.NewTracker(store.NewMemoryStore[lockout.Attempt](), lockout.Config{
		Threshold: 3,
		Duration:  15 * time.Minute,
	})
	require.NoError(t, err)
	if now != nil {
		tracker.SetClock(func() time.Time { return *now })
	}
	return tracker
}

func TestLockoutMiddleware_LocksAfterRepeatedFailures(t *testing.T) {
	f := newFixture(t)
	handler := NewLockoutMiddleware(newTracker(t, nil), f.deps).Handler(statusHandler(http.StatusUnauthorized))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, fromIP(http.MethodPost, "/api/auth/verify", "203.0.113.9"))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, fromIP(http.MethodGet, "/api/portfolio", "203.0.113.9"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.InDelta(t, 15*60, retryAfter, 2)
	body := decodeError(t, rec)
	assert.Equal(t, "ACCOUNT_LOCKED", body.Code)
	assert.Equal(t, "Too many failed attempts. Try again in 15 minutes.", body.Message)

	// Other clients are unaffected
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, fromIP(http.MethodGet, "/api/portfolio", "203.0.113.10"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LockoutsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LockedRejectionsTotal))

	events := f.securityEvents(audit.EventSuspiciousActivity)
	require.Len(t, events, 2)
	assert.Equal(t, audit.ReasonAccountLocked, events[0].Details["reason"])
	assert.Equal(t, 3, events[0].Details["failedAttempts"])
	assert.Equal(t, 15, events[0].Details["lockoutDuration"])
	assert.Equal(t, audit.SeverityHigh, events[0].Severity)
	assert.Equal(t, audit.ReasonAccessWhileLocked, events[1].Details["reason"])
	assert.Equal(t, 15, events[1].Details["remainingLockoutMinutes"])
	assert.Equal(t, "/api/portfolio", events[1].Details["endpoint"])
}

func TestLockoutMiddleware_LockedClientSkipsHandler(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	tracker := newTracker(t, &now)
	m := NewLockoutMiddleware(tracker, f.deps)

	for i := 0; i < 3; i++ {
		m.Handler(statusHandler(http.StatusForbidden)).ServeHTTP(httptest.NewRecorder(), fromIP(http.MethodGet, "/admin", "198.51.100.4"))
	}

	now = now.Add(5 * time.Minute)
	rec := httptest.NewRecorder()
	m.Handler(failHandler(t)).ServeHTTP(rec, fromIP(http.MethodGet, "/admin", "198.51.100.4"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many failed attempts. Try again in 10 minutes.", decodeError(t, rec).Message)

	now = now.Add(11 * time.Minute)
	rec = httptest.NewRecorder()
	m.Handler(okHandler()).ServeHTTP(rec, fromIP(http.MethodGet, "/admin", "198.51.100.4"))
	assert.Equal(t, http.StatusOK, rec.Code, "lockout expires")
}

func TestLockoutMiddleware_SuccessIsNotAFailure(t *testing.T) {
	f := newFixture(t)
	tracker := newTracker(t, nil)
	handler := NewLockoutMiddleware(tracker, f.deps)

	for i := 0; i < 5; i++ {
		handler.Handler(okHandler()).ServeHTTP(httptest.NewRecorder(), fromIP(http.MethodGet, "/api/quotes", "10.0.0.1"))
		handler.Handler(statusHandler(http.StatusNotFound)).ServeHTTP(httptest.NewRecorder(), fromIP(http.MethodGet, "/api/missing", "10.0.0.1"))
	}

	status, err := tracker.Check(t.Context(), "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, status.Locked)
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.LockoutsTotal))
}

func TestLockoutMiddleware_FailsOpen(t *testing.T) {
	f := newFixture(t)
	tracker, err := lockout.NewTracker(brokenStore[lockout.Attempt]{}, lockout.DefaultConfig())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	NewLockoutMiddleware(tracker, f.deps).Handler(statusHandler(http.StatusUnauthorized)).
		ServeHTTP(rec, fromIP(http.MethodGet, "/api/portfolio", "10.0.0.1"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, f.hook.LastEntry().Message, "Failed to record failed attempt")
}

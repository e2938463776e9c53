package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aniket2927/Renx-sub004/pkg/audit"
	"github.com/Aniket2927/Renx-sub004/pkg/auth"
	"github.com/Aniket2927/Renx-sub004/pkg/csrf"
	"github.com/Aniket2927/Renx-sub004/pkg/httputil"
	"github.com/Aniket2927/Renx-sub004/pkg/store"
)

func newCSRF(t *testing.T, f *fixture) (*CSRFMiddleware, *csrf.Manager) {
	t.Helper()
	tokens := csrf.NewManager(store.NewMemoryStore[csrf.Record](), 15*time.Minute)
	return NewCSRFMiddleware(tokens, f.verifier, f.deps), tokens
}

func TestCSRFMiddleware_SafeMethodsPass(t *testing.T) {
	f := newFixture(t)
	m, _ := newCSRF(t, f)

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		rec := httptest.NewRecorder()
		m.Handler(okHandler()).ServeHTTP(rec, httptest.NewRequest(method, "/settings", nil))
		assert.Equal(t, http.StatusOK, rec.Code, method)
	}
}

func TestCSRFMiddleware_MissingToken(t *testing.T) {
	f := newFixture(t)
	m, _ := newCSRF(t, f)

	rec := httptest.NewRecorder()
	m.Handler(failHandler(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/settings", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "CSRF_TOKEN_MISSING", decodeError(t, rec).Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CSRFFailuresTotal.WithLabelValues("missing")))

	events := f.securityEvents(audit.EventCSRFFailure)
	require.Len(t, events, 1)
	assert.Equal(t, "missing", events[0].Details["reason"])
}

func TestCSRFMiddleware_InvalidToken(t *testing.T) {
	f := newFixture(t)
	m, tokens := newCSRF(t, f)

	other, err := tokens.Generate(context.Background(), "sess-other")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"unknown token", "deadbeef"},
		{"token bound to another session", other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/settings", nil)
			req.Header.Set(CSRFHeader, tt.token)
			req.Header.Set(httputil.SessionHeader, "sess-1")
			rec := httptest.NewRecorder()
			m.Handler(failHandler(t)).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Equal(t, "CSRF_TOKEN_INVALID", decodeError(t, rec).Code)
		})
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.CSRFFailuresTotal.WithLabelValues("invalid")))
}

func TestCSRFMiddleware_ValidToken(t *testing.T) {
	f := newFixture(t)
	m, tokens := newCSRF(t, f)
	token, err := tokens.Generate(context.Background(), "sess-1")
	require.NoError(t, err)

	t.Run("from header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/settings/alerts/3", nil)
		req.Header.Set(CSRFHeader, token)
		req.AddCookie(&http.Cookie{Name: httputil.SessionCookie, Value: "sess-1"})
		rec := httptest.NewRecorder()
		m.Handler(okHandler()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("from body, body still readable", func(t *testing.T) {
		body := `{"_csrf":"` + token + `","theme":"dark"}`
		req := httptest.NewRequest(http.MethodPost, "/settings", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(httputil.SessionHeader, "sess-1")

		var got string
		handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			got = string(data)
		}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, body, got)
	})

	t.Run("reusable until expiry", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodPost, "/settings", nil)
			req.Header.Set(CSRFHeader, token)
			req.Header.Set(httputil.SessionHeader, "sess-1")
			rec := httptest.NewRecorder()
			m.Handler(okHandler()).ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})
}

func TestCSRFMiddleware_BearerAPICallsSkip(t *testing.T) {
	f := newFixture(t)
	m, _ := newCSRF(t, f)

	t.Run("verified bearer on /api/", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/trading/orders", nil)
		req.Header.Set("Authorization", "Bearer "+f.token(t, "acme", 2, auth.RoleUser))
		rec := httptest.NewRecorder()
		m.Handler(okHandler()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("already authenticated upstream", func(t *testing.T) {
		noVerifier := NewCSRFMiddleware(csrf.NewManager(store.NewMemoryStore[csrf.Record](), time.Minute), nil, f.deps)
		req := f.withIdentity(t, httptest.NewRequest(http.MethodPost, "/api/trading/orders", nil), 2, "")
		rec := httptest.NewRecorder()
		noVerifier.Handler(okHandler()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("forged bearer still needs a token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/trading/orders", nil)
		req.Header.Set("Authorization", "Bearer forged")
		rec := httptest.NewRecorder()
		m.Handler(failHandler(t)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bearer outside /api/ still needs a token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/settings", nil)
		req.Header.Set("Authorization", "Bearer "+f.token(t, "acme", 2, auth.RoleUser))
		rec := httptest.NewRecorder()
		m.Handler(failHandler(t)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestCSRFMiddleware_StoreFailure(t *testing.T) {
	f := newFixture(t)
	m := NewCSRFMiddleware(csrf.NewManager(brokenStore[csrf.Record]{}, time.Minute), nil, f.deps)

	req := httptest.NewRequest(http.MethodPost, "/settings", nil)
	req.Header.Set(CSRFHeader, "abc")
	rec := httptest.NewRecorder()
	m.Handler(failHandler(t)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aniket2927/Renx-sub004/pkg/audit"
)

func TestTenantRequestLog(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		severity audit.Severity
	}{
		{"success is low", http.StatusOK, audit.SeverityLow},
		{"client error is medium", http.StatusNotFound, audit.SeverityMedium},
		{"server error is medium", http.StatusBadGateway, audit.SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			handler := TenantRequestLog(f.deps)(statusHandler(tt.status))

			req := f.withIdentity(t, fromIP(http.MethodGet, "/api/portfolio", "10.0.0.3"), 2, "sess-9")
			handler.ServeHTTP(httptest.NewRecorder(), req)

			f.drain()
			events := f.sink.Events()
			require.Len(t, events, 1)
			e := events[0]
			assert.Equal(t, audit.EventAPIRequest, e.Type)
			assert.Equal(t, "acme", e.TenantID)
			assert.Equal(t, int64(2), e.UserID)
			assert.Equal(t, "/api/portfolio", e.Resource)
			assert.Equal(t, tt.status, e.Details["statusCode"])
			assert.Equal(t, http.MethodGet, e.Details["method"])
			assert.Contains(t, e.Details, "duration")
			assert.Equal(t, "10.0.0.3", e.IPAddress)
			assert.Equal(t, "sess-9", e.SessionID)
			assert.Equal(t, tt.severity, e.Severity)
		})
	}
}

func TestTenantRequestLog_AnonymousNotLogged(t *testing.T) {
	f := newFixture(t)
	TenantRequestLog(f.deps)(okHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	f.drain()
	assert.Empty(t, f.sink.Events())
}

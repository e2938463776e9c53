package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aniket2927/Renx-sub004/pkg/auth"
	"github.com/Aniket2927/Renx-sub004/pkg/httputil"
)

type seenRequest struct {
	query string
	body  map[string]interface{}
	raw   string
}

func captureHandler(t *testing.T, seen *seenRequest) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.query = r.URL.Query().Get(TenantIDField)
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		seen.raw = string(data)
		if httputil.IsJSON(r) && strings.HasPrefix(seen.raw, "{") {
			require.NoError(t, json.Unmarshal(data, &seen.body))
		}
		w.WriteHeader(http.StatusCreated)
	})
}

func TestTenantIsolation_OverridesClientSuppliedTenant(t *testing.T) {
	f := newFixture(t)
	var seen seenRequest
	handler := httputil.Chain(
		f.authMiddleware(false).Handler,
		TenantIsolation(f.deps.Logger),
	)(captureHandler(t, &seen))

	body := `{"tenantId":"T2","userId":99,"symbol":"AAPL","quantity":10}`
	req := httptest.NewRequest(http.MethodPost, "/api/trading/orders?tenantId=T2", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.token(t, "acme", 2, auth.RoleUser))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "acme", seen.query)
	assert.Equal(t, "acme", seen.body["tenantId"])
	assert.Equal(t, float64(2), seen.body["userId"])
	assert.Equal(t, "AAPL", seen.body["symbol"])
	assert.Equal(t, float64(10), seen.body["quantity"])
}

func TestTenantIsolation_AddsMissingTenantQuery(t *testing.T) {
	f := newFixture(t)
	var seen seenRequest
	handler := TenantIsolation(f.deps.Logger)(captureHandler(t, &seen))

	req := f.withIdentity(t, httptest.NewRequest(http.MethodGet, "/api/trades?limit=5", nil), 1, "")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "acme", seen.query)
}

func TestTenantIsolation_Idempotent(t *testing.T) {
	f := newFixture(t)
	var once, twice seenRequest

	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/orders?tenantId=evil",
			strings.NewReader(`{"tenantId":"evil","side":"buy"}`))
		req.Header.Set("Content-Type", "application/json")
		return f.withIdentity(t, req, 2, "")
	}

	TenantIsolation(nil)(captureHandler(t, &once)).ServeHTTP(httptest.NewRecorder(), newReq())
	TenantIsolation(nil)(TenantIsolation(nil)(captureHandler(t, &twice))).ServeHTTP(httptest.NewRecorder(), newReq())

	assert.Equal(t, once.query, twice.query)
	assert.Equal(t, once.body, twice.body)
}

func TestTenantIsolation_LeavesNonObjectBodies(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"json array", "application/json", `[{"tenantId":"T2"}]`},
		{"plain text", "text/plain", `tenantId=T2`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen seenRequest
			req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			req = f.withIdentity(t, req, 2, "")

			TenantIsolation(nil)(captureHandler(t, &seen)).ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.body, seen.raw)
			assert.Equal(t, "acme", seen.query)
		})
	}
}

func TestTenantIsolation_RequiresIdentity(t *testing.T) {
	rec := httptest.NewRecorder()
	TenantIsolation(nil)(failHandler(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/trades", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "UNAUTHORIZED", body.Code)
	assert.Equal(t, "Tenant context required", body.Message)
}

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/Aniket2927/Renx-sub004/pkg/audit"
	"github.com/Aniket2927/Renx-sub004/pkg/auth"
	"github.com/Aniket2927/Renx-sub004/pkg/contextkeys"
	"github.com/Aniket2927/Renx-sub004/pkg/observability"
	"github.com/Aniket2927/Renx-sub004/pkg/rbac"
	"github.com/Aniket2927/Renx-sub004/pkg/store"
)

const testSecret = "middleware-test-secret-0123456789abcdef"

var errBackendDown = errors.New("backend down")

type fixture struct {
	store    *rbac.MemoryStore
	signer   *auth.Signer
	verifier *auth.Verifier
	sink     *audit.MemoryLogger
	emitter  *audit.Emitter
	metrics  *observability.Metrics
	hook     *test.Hook
	deps     Deps

	metricsRegistry *prometheus.Registry

	closeOnce sync.Once
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mem := rbac.NewMemoryStore()
	mem.AddTenant(rbac.Tenant{ID: "acme", Name: "Acme Capital"})
	mem.SetRolePermissions(auth.RoleAdmin, auth.Permission{Resource: "*", Action: "*"})
	mem.SetRolePermissions(auth.RoleUser,
		auth.Permission{Resource: "trades", Action: "read"},
		auth.Permission{Resource: "orders", Action: "*"},
	)
	mem.AddUser(auth.EnhancedUser{ID: 1, TenantID: "acme", Username: "alice", Email: "alice@acme.test", Role: auth.RoleAdmin})
	mem.AddUser(auth.EnhancedUser{ID: 2, TenantID: "acme", Username: "bob", Email: "bob@acme.test", Role: auth.RoleUser})

	signer, err := auth.NewSigner([]byte(testSecret), "", time.Hour)
	require.NoError(t, err)
	verifier, err := auth.NewVerifier(auth.VerifierConfig{Secret: []byte(testSecret)})
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	sink := audit.NewMemoryLogger()
	emitter := audit.NewEmitter(sink, logger, time.Second)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	f := &fixture{
		store:    mem,
		signer:   signer,
		verifier: verifier,
		sink:     sink,
		emitter:  emitter,
		metrics:  metrics,
		hook:     hook,
		deps:     Deps{Emitter: emitter, Metrics: metrics, Logger: logger},

		metricsRegistry: registry,
	}
	t.Cleanup(f.drain)
	return f
}

// drain waits for queued audit events. The emitter cannot be used afterwards.
func (f *fixture) drain() {
	f.closeOnce.Do(func() { f.emitter.Close() })
}

func (f *fixture) token(t *testing.T, tenantID string, userID int64, role auth.Role) string {
	t.Helper()
	token, err := f.signer.Issue(tenantID, userID, "user@acme.test", role)
	require.NoError(t, err)
	return token
}

func (f *fixture) authMiddleware(production bool) *AuthMiddleware {
	return NewAuthMiddleware(AuthConfig{
		Verifier:   f.verifier,
		Store:      f.store,
		Production: production,
		Deps:       f.deps,
	})
}

// withIdentity attaches the resolved identity of userID in acme to req
func (f *fixture) withIdentity(t *testing.T, req *http.Request, userID int64, sessionID string) *http.Request {
	t.Helper()
	tc, err := f.store.CreateTenantContext(context.Background(), "acme", userID)
	require.NoError(t, err)
	claims := &auth.Claims{TenantID: "acme", UserID: userID, Role: tc.Role()}
	ctx := auth.WithIdentity(req.Context(), claims, tc, tc.User)
	if sessionID != "" {
		ctx = contextkeys.WithSessionID(ctx, sessionID)
	}
	return req.WithContext(ctx)
}

func (f *fixture) securityEvents(eventType audit.EventType) []audit.Event {
	f.drain()
	return f.sink.SecurityEventsOfType(eventType)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func statusHandler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
}

func failHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})
}

type errorBody struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details"`
	RetryAfter int                    `json:"retryAfter"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body struct {
		Success bool      `json:"success"`
		Error   errorBody `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.False(t, body.Success)
	return body.Error
}

// brokenStore fails every operation
type brokenStore[V any] struct{}

func (brokenStore[V]) Get(context.Context, string) (V, bool, error) {
	var zero V
	return zero, false, errBackendDown
}

func (brokenStore[V]) Set(context.Context, string, V, time.Duration) error {
	return errBackendDown
}

func (brokenStore[V]) Update(context.Context, string, time.Duration, store.UpdateFunc[V]) (V, error) {
	var zero V
	return zero, errBackendDown
}

func (brokenStore[V]) Delete(context.Context, string) error {
	return errBackendDown
}

func (brokenStore[V]) Sweep(context.Context, store.ExpiredFunc[V]) (int, error) {
	return 0, errBackendDown
}

// brokenRBAC fails tenant resolution with a backend error
type brokenRBAC struct{}

func (brokenRBAC) CreateTenantContext(context.Context, string, int64) (*auth.TenantContext, error) {
	return nil, errBackendDown
}

func (brokenRBAC) GetUser(context.Context, string, int64) (*auth.EnhancedUser, error) {
	return nil, errBackendDown
}

func (brokenRBAC) HasPermission(context.Context, string, int64, string, string) (bool, error) {
	return false, errBackendDown
}

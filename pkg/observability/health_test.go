package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestHealthChecker_NoDependencies(t *testing.T) {
	checker := NewHealthChecker(nil, nil, "test")
	status := checker.Check(context.Background())
	assert.Equal(t, StatusHealthy, status.Status)
	assert.Equal(t, "test", status.Version)
	assert.Empty(t, status.Dependencies)
}

func TestHealthChecker_AllHealthy(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	_, client := newTestRedis(t)

	status := NewHealthChecker(db, client, "v1").Check(context.Background())
	assert.Equal(t, StatusHealthy, status.Status)
	assert.Equal(t, StatusHealthy, status.Dependencies["postgres"].Status)
	assert.Equal(t, StatusHealthy, status.Dependencies["redis"].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthChecker_DatabaseDown(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	status := NewHealthChecker(db, nil, "v1").Check(context.Background())
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Equal(t, "connection refused", status.Dependencies["postgres"].Message)
}

func TestHealthChecker_Readiness(t *testing.T) {
	mr, client := newTestRedis(t)
	checker := NewHealthChecker(nil, client, "v1")

	rec := httptest.NewRecorder()
	checker.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	mr.Close()

	rec = httptest.NewRecorder()
	checker.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, StatusUnhealthy, status.Dependencies["redis"].Status)
}

func TestHealthChecker_Liveness(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthChecker(nil, nil, "v1").Liveness(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), StatusHealthy)
}

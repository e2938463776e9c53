package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDBLogger(t *testing.T) (*DBLogger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_logs").WillReturnResult(sqlmock.NewResult(0, 0))
	logger, err := NewDBLogger(db)
	require.NoError(t, err)
	return logger, mock
}

func TestNewDBLogger_NilDB(t *testing.T) {
	_, err := NewDBLogger(nil)
	assert.Error(t, err)
}

func TestNewDBLogger_TableCreationFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_logs").WillReturnError(errors.New("permission denied"))
	_, err = NewDBLogger(db)
	assert.ErrorContains(t, err, "failed to ensure audit tables")
}

func TestDBLogger_Log(t *testing.T) {
	logger, mock := newMockDBLogger(t)
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	event := &Event{
		ID:        "5f0c5c8e-51a2-4b38-9f0e-4e2b1d3f2a10",
		Timestamp: ts,
		Type:      EventAPIAccess,
		Action:    "GET",
		TenantID:  "acme",
		UserID:    42,
		Resource:  "/api/trades",
		IPAddress: "10.0.0.1",
		Severity:  SeverityLow,
	}

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(event.ID, ts, "acme", int64(42), "GET", "/api/trades", []byte("{}"),
			"10.0.0.1", nil, nil, nil, "low").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, logger.Log(context.Background(), event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLogger_LogDefaultsActionToType(t *testing.T) {
	logger, mock := newMockDBLogger(t)

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "acme", nil, "api_request", nil, sqlmock.AnyArg(),
			nil, nil, nil, nil, "medium").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, logger.Log(context.Background(), &Event{Type: EventAPIRequest, TenantID: "acme"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLogger_LogError(t *testing.T) {
	logger, mock := newMockDBLogger(t)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnError(errors.New("connection reset"))

	err := logger.Log(context.Background(), &Event{Type: EventAPIAccess})
	assert.ErrorContains(t, err, "failed to insert audit log")
}

func TestDBLogger_LogSecurityEvent(t *testing.T) {
	logger, mock := newMockDBLogger(t)

	event := &Event{
		Type:      EventSuspiciousActivity,
		TenantID:  "acme",
		IPAddress: "10.0.0.9",
		Severity:  SeverityHigh,
		Details:   map[string]interface{}{"reason": ReasonAccountLocked},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO security_events").
		WithArgs(sqlmock.AnyArg(), "suspicious_activity", "acme", nil,
			[]byte(`{"reason":"account_locked"}`), "10.0.0.9", nil, "high", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "acme", nil,
			"security_event_suspicious_activity", "security", sqlmock.AnyArg(),
			"10.0.0.9", nil, nil, nil, "high").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, logger.LogSecurityEvent(context.Background(), event))
	assert.NotEmpty(t, event.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLogger_LogSecurityEventRollsBack(t *testing.T) {
	logger, mock := newMockDBLogger(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO security_events").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := logger.LogSecurityEvent(context.Background(), &Event{Type: EventCSRFFailure})
	assert.ErrorContains(t, err, "failed to insert security event")
	assert.NoError(t, mock.ExpectationsWereMet())
}

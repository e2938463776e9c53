package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// DBLogger implements audit logging to PostgreSQL
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a new database-based audit logger
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	logger := &DBLogger{db: db}
	if err := logger.ensureTables(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit tables: %w", err)
	}
	return logger, nil
}

// ensureTables creates the audit_logs and security_events tables if they don't exist
func (l *DBLogger) ensureTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_logs (
		id UUID PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		tenant_id VARCHAR(100),
		user_id BIGINT,
		action VARCHAR(100) NOT NULL,
		resource TEXT,
		details JSONB,
		ip_address VARCHAR(45),
		user_agent TEXT,
		session_id VARCHAR(100),
		request_id VARCHAR(100),
		severity VARCHAR(20) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS security_events (
		id UUID PRIMARY KEY,
		event_type VARCHAR(100) NOT NULL,
		tenant_id VARCHAR(100),
		user_id BIGINT,
		details JSONB,
		ip_address VARCHAR(45),
		user_agent TEXT,
		severity VARCHAR(20) NOT NULL,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_logs_tenant_time ON audit_logs(tenant_id, timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_action ON audit_logs(action);
	CREATE INDEX IF NOT EXISTS idx_security_events_time ON security_events(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_security_events_ip ON security_events(ip_address);
	`

	_, err := l.db.Exec(query)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func marshalDetails(details map[string]interface{}) ([]byte, error) {
	if details == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal details: %w", err)
	}
	return data, nil
}

// Log inserts an access event into audit_logs
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	prepare(event)
	return l.insertAuditLog(ctx, event)
}

func (l *DBLogger) insertAuditLog(ctx context.Context, event *Event) error {
	details, err := marshalDetails(event.Details)
	if err != nil {
		return err
	}

	action := event.Action
	if action == "" {
		action = string(event.Type)
	}

	query := `
		INSERT INTO audit_logs (
			id, timestamp, tenant_id, user_id,
			action, resource, details,
			ip_address, user_agent, session_id, request_id,
			severity
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = l.db.ExecContext(ctx, query,
		event.ID, event.Timestamp, nullString(event.TenantID), nullInt64(event.UserID),
		action, nullString(event.Resource), details,
		nullString(event.IPAddress), nullString(event.UserAgent), nullString(event.SessionID), nullString(event.RequestID),
		string(event.Severity),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// LogSecurityEvent inserts into security_events and mirrors the event into
// audit_logs as security_event_<type>
func (l *DBLogger) LogSecurityEvent(ctx context.Context, event *Event) error {
	prepare(event)

	details, err := marshalDetails(event.Details)
	if err != nil {
		return err
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO security_events (
			id, event_type, tenant_id, user_id, details, ip_address, user_agent, severity, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		event.ID, string(event.Type), nullString(event.TenantID), nullInt64(event.UserID), details,
		nullString(event.IPAddress), nullString(event.UserAgent), string(event.Severity), event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert security event: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, timestamp, tenant_id, user_id,
			action, resource, details,
			ip_address, user_agent, session_id, request_id,
			severity
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		event.ID, event.Timestamp, nullString(event.TenantID), nullInt64(event.UserID),
		"security_event_"+string(event.Type), "security", details,
		nullString(event.IPAddress), nullString(event.UserAgent), nullString(event.SessionID), nullString(event.RequestID),
		string(event.Severity),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit security event: %w", err)
	}
	return nil
}

// Close implements Logger. The database handle is owned by the caller.
func (l *DBLogger) Close() error {
	return nil
}

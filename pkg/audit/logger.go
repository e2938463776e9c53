package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log logs an access event
	Log(ctx context.Context, event *Event) error

	// LogSecurityEvent logs an event to the security event stream
	LogSecurityEvent(ctx context.Context, event *Event) error

	// Close closes the logger and flushes any buffered logs
	Close() error
}

// prepare fills the id and timestamp of an event that has none
func prepare(event *Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Severity == "" {
		event.Severity = SeverityMedium
	}
}

// NewNoOpLogger returns a logger that discards everything
func NewNoOpLogger() Logger {
	return noOpLogger{}
}

// noOpLogger is a logger that does nothing (used when no sink is configured)
type noOpLogger struct{}

func (noOpLogger) Log(ctx context.Context, event *Event) error {
	return nil
}

func (noOpLogger) LogSecurityEvent(ctx context.Context, event *Event) error {
	return nil
}

func (noOpLogger) Close() error {
	return nil
}

package audit

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogrusLogger writes audit events as structured log entries
type LogrusLogger struct {
	logger logrus.FieldLogger
}

// NewLogrusLogger creates a logger that writes through l
func NewLogrusLogger(l logrus.FieldLogger) *LogrusLogger {
	return &LogrusLogger{logger: l.WithField("component", "audit")}
}

// Log implements Logger
func (l *LogrusLogger) Log(ctx context.Context, event *Event) error {
	prepare(event)
	l.logger.WithFields(event.Fields()).Info("audit event")
	return nil
}

// LogSecurityEvent implements Logger. High and critical events are logged at
// warn level so they stand out.
func (l *LogrusLogger) LogSecurityEvent(ctx context.Context, event *Event) error {
	prepare(event)
	entry := l.logger.WithFields(event.Fields()).WithField("security", true)
	switch event.Severity {
	case SeverityHigh, SeverityCritical:
		entry.Warn("security event")
	default:
		entry.Info("security event")
	}
	return nil
}

// Close implements Logger
func (l *LogrusLogger) Close() error {
	return nil
}

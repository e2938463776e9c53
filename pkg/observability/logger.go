package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Aniket2927/Renx-sub004/pkg/contextkeys"
)

// Log formats accepted by NewLogger
const (
	FormatJSON = "json"
	FormatText = "text"
)

// NewLogger creates a logrus logger writing to output at the given level
// ("debug", "info", "warn", "error") and format ("json" or "text")
func NewLogger(level, format string, output io.Writer) (*logrus.Logger, error) {
	if output == nil {
		output = os.Stdout
	}

	lvl := logrus.InfoLevel
	if level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}

	logger := logrus.New()
	logger.SetOutput(output)
	logger.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	case FormatText:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}

	return logger, nil
}

// WithLogger adds a logger to the context
func WithLogger(ctx context.Context, logger logrus.FieldLogger) context.Context {
	return contextkeys.WithLogger(ctx, logger)
}

// GetLogger retrieves the logger from context, falling back to the standard logger
func GetLogger(ctx context.Context) logrus.FieldLogger {
	if logger, ok := ctx.Value(contextkeys.LoggerKey).(logrus.FieldLogger); ok {
		return logger
	}
	return logrus.StandardLogger()
}

// FromContext returns the context logger enriched with the request id, tenant
// id, user id and trace id found in ctx
func FromContext(ctx context.Context) logrus.FieldLogger {
	logger := GetLogger(ctx)

	fields := logrus.Fields{}
	if requestID := contextkeys.GetRequestID(ctx); requestID != "" {
		fields["request_id"] = requestID
	}
	if tenantID := contextkeys.GetTenantID(ctx); tenantID != "" {
		fields["tenant_id"] = tenantID
	}
	if userID, ok := contextkeys.GetUserID(ctx); ok {
		fields["user_id"] = userID
	}
	if len(fields) > 0 {
		logger = logger.WithFields(fields)
	}

	return UpdateLoggerWithTraceContext(ctx, logger)
}

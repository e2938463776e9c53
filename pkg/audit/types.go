package audit

import (
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Access events
	EventAPIAccess  EventType = "api_access"
	EventAPIRequest EventType = "api_request"

	// Security events
	EventSuspiciousActivity EventType = "suspicious_activity"
	EventUnauthorizedAccess EventType = "unauthorized_access"
	EventPermissionDenied   EventType = "permission_denied"
	EventCSRFFailure        EventType = "csrf_failure"
	EventSessionTerminated  EventType = "session_terminated"
)

// Severity grades an event
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Reasons recorded in Details["reason"] for suspicious activity
const (
	ReasonRateLimitExceeded     = "rate_limit_exceeded"
	ReasonAuthRateLimitExceeded = "auth_rate_limit_exceeded"
	ReasonAccountLocked         = "account_locked"
	ReasonAccessWhileLocked     = "access_attempt_while_locked"
	ReasonTenantAccessDenied    = "tenant_access_denied"
	ReasonSessionAnomaly        = "session_anomaly"
)

// Event is a single audit record
type Event struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Type      EventType              `json:"type"`
	Action    string                 `json:"action,omitempty"`
	TenantID  string                 `json:"tenantId,omitempty"`
	UserID    int64                  `json:"userId,omitempty"`
	Resource  string                 `json:"resource,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	IPAddress string                 `json:"ipAddress,omitempty"`
	UserAgent string                 `json:"userAgent,omitempty"`
	SessionID string                 `json:"sessionId,omitempty"`
	RequestID string                 `json:"requestId,omitempty"`
	Severity  Severity               `json:"severity"`
}

// Fields flattens the event for structured loggers
func (e *Event) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"audit_id":   e.ID,
		"event_type": string(e.Type),
		"severity":   string(e.Severity),
	}
	if e.Action != "" {
		fields["action"] = e.Action
	}
	if e.TenantID != "" {
		fields["tenant_id"] = e.TenantID
	}
	if e.UserID != 0 {
		fields["user_id"] = e.UserID
	}
	if e.Resource != "" {
		fields["resource"] = e.Resource
	}
	if e.IPAddress != "" {
		fields["ip_address"] = e.IPAddress
	}
	if e.UserAgent != "" {
		fields["user_agent"] = e.UserAgent
	}
	if e.SessionID != "" {
		fields["session_id"] = e.SessionID
	}
	if e.RequestID != "" {
		fields["request_id"] = e.RequestID
	}
	for k, v := range e.Details {
		fields["detail_"+k] = v
	}
	return fields
}

// IsSecurity reports whether events of this type belong in the security
// event stream
func (t EventType) IsSecurity() bool {
	switch t {
	case EventAPIAccess, EventAPIRequest:
		return false
	}
	return true
}

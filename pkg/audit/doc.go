// Package audit records security and access events emitted by the gateway.
//
// # Overview
//
// Every denial path (tenant access denied, role or permission failure, CSRF
// failure, lockout) and every successful tenant resolution produces an Event.
// Events are written through the Logger interface, which has two entry
// points: Log for regular access events and LogSecurityEvent for events that
// also belong in the security event stream.
//
// # Sinks
//
//	LogrusLogger - structured log lines through logrus
//	FileLogger   - rotating JSON-lines files
//	DBLogger     - PostgreSQL audit_logs and security_events tables
//	MultiLogger  - fan-out to several sinks
//	MemoryLogger - in-memory capture for tests
//
// # Emitter
//
// Request-path code does not call a Logger directly. The Emitter decouples
// the request from sink latency: Emit is fire-and-forget, while EmitSync waits
// for the sink up to a bounded timeout and is used for denials that must not
// be lost. Sink errors are logged and never surface to the caller.
//
//	emitter := audit.NewEmitter(sink, logger, 2*time.Second)
//	emitter.EmitSync(ctx, &audit.Event{
//		Type:     audit.EventPermissionDenied,
//		Severity: audit.SeverityMedium,
//		Details:  map[string]interface{}{"requiredPermission": "trades:create"},
//	})
package audit

package audit

import (
	"context"
	"sync"
)

// MemoryLogger keeps events in memory. It is used by tests and by the
// development server when no other sink is configured.
type MemoryLogger struct {
	mu       sync.Mutex
	events   []Event
	security []Event
	err      error
}

// NewMemoryLogger creates an empty in-memory logger
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

// FailWith makes every subsequent write return err
func (m *MemoryLogger) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Log implements Logger
func (m *MemoryLogger) Log(ctx context.Context, event *Event) error {
	prepare(event)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, *event)
	return nil
}

// LogSecurityEvent implements Logger
func (m *MemoryLogger) LogSecurityEvent(ctx context.Context, event *Event) error {
	prepare(event)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.security = append(m.security, *event)
	return nil
}

// Events returns a copy of the access events logged so far
func (m *MemoryLogger) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// SecurityEvents returns a copy of the security events logged so far
func (m *MemoryLogger) SecurityEvents() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.security...)
}

// SecurityEventsOfType filters SecurityEvents by type
func (m *MemoryLogger) SecurityEventsOfType(t EventType) []Event {
	var out []Event
	for _, e := range m.SecurityEvents() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Reset discards everything logged so far
func (m *MemoryLogger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
	m.security = nil
}

// Close implements Logger
func (m *MemoryLogger) Close() error {
	return nil
}

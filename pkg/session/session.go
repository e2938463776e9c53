// Package session tracks authenticated sessions and flags requests whose
// client fingerprint drifts from the one the session was created with.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Aniket2927/Renx-sub004/pkg/store"
)

// DefaultTimeout is the idle lifetime of a session
const DefaultTimeout = 30 * time.Minute

// ErrNotFound is returned for unknown or expired sessions
var ErrNotFound = errors.New("session: not found")

// Action is the monitor's verdict for a request
type Action string

const (
	ActionContinue Action = "continue"
	ActionLogout   Action = "logout"
)

// Decision is the result of DetectSuspiciousActivity
type Decision struct {
	Action  Action   `json:"action"`
	Message string   `json:"message,omitempty"`
	Reasons []string `json:"reasons,omitempty"`
}

// Continue is the decision for requests that match their session
var Continue = Decision{Action: ActionContinue}

// Activity describes one request made within a session
type Activity struct {
	Path      string
	Method    string
	UserAgent string
	IP        string
}

// Session is the stored state of a session
type Session struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenantId"`
	UserID       int64     `json:"userId"`
	IPAddress    string    `json:"ipAddress"`
	UserAgent    string    `json:"userAgent"`
	Active       bool      `json:"isActive"`
	LastPath     string    `json:"lastPath,omitempty"`
	EndReason    string    `json:"endReason,omitempty"`
	LastActivity time.Time `json:"lastActivity"`
	ExpiresAt    time.Time `json:"expiresAt"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Service is consulted by the session monitor on every authenticated request
// that carries a session id
type Service interface {
	DetectSuspiciousActivity(ctx context.Context, sessionID, ip, userAgent string) (Decision, error)
	TerminateSession(ctx context.Context, sessionID, reason string) error
	UpdateActivity(ctx context.Context, sessionID string, activity Activity) error
}

// Manager is a Service over a keyed store. Sessions expire after the idle
// timeout; terminated sessions are kept until then so that later requests
// on them are refused.
type Manager struct {
	store   store.Store[Session]
	timeout time.Duration
	now     func() time.Time
}

// NewManager creates a manager. A zero timeout uses DefaultTimeout.
func NewManager(s store.Store[Session], timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{store: s, timeout: timeout, now: time.Now}
}

// SetClock overrides the time source
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

func key(sessionID string) string {
	return "session:" + sessionID
}

// Create starts a session fingerprinted with ip and userAgent
func (m *Manager) Create(ctx context.Context, tenantID string, userID int64, ip, userAgent string) (*Session, error) {
	now := m.now()
	s := Session{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		UserID:       userID,
		IPAddress:    ip,
		UserAgent:    userAgent,
		Active:       true,
		LastActivity: now,
		ExpiresAt:    now.Add(m.timeout),
		CreatedAt:    now,
	}
	if err := m.store.Set(ctx, key(s.ID), s, m.timeout); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return &s, nil
}

// Get returns a live session
func (m *Manager) Get(ctx context.Context, sessionID string) (*Session, error) {
	s, ok, err := m.store.Get(ctx, key(sessionID))
	if err != nil {
		return nil, err
	}
	if !ok || !m.now().Before(s.ExpiresAt) {
		return nil, ErrNotFound
	}
	return &s, nil
}

// DetectSuspiciousActivity compares ip and userAgent against the session's
// fingerprint. Any change, or use of a terminated session, asks for logout.
// Unknown sessions are not this monitor's concern and continue.
func (m *Manager) DetectSuspiciousActivity(ctx context.Context, sessionID, ip, userAgent string) (Decision, error) {
	s, err := m.Get(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return Continue, nil
	}
	if err != nil {
		return Continue, err
	}

	if !s.Active {
		return Decision{Action: ActionLogout, Message: "Session has been terminated", Reasons: []string{s.EndReason}}, nil
	}

	var reasons []string
	if s.IPAddress != ip {
		reasons = append(reasons, "IP address change")
	}
	if s.UserAgent != userAgent {
		reasons = append(reasons, "User agent change")
	}
	if len(reasons) == 0 {
		return Continue, nil
	}

	return Decision{
		Action:  ActionLogout,
		Message: "Suspicious activity detected: " + strings.Join(reasons, ", "),
		Reasons: reasons,
	}, nil
}

// TerminateSession marks the session inactive. Terminating an unknown
// session is a no-op.
func (m *Manager) TerminateSession(ctx context.Context, sessionID, reason string) error {
	now := m.now()
	_, err := m.store.Update(ctx, key(sessionID), m.timeout, func(s Session, exists bool) (Session, bool, error) {
		if !exists || !now.Before(s.ExpiresAt) {
			return s, false, nil
		}
		s.Active = false
		s.EndReason = reason
		return s, true, nil
	})
	return err
}

// UpdateActivity records the request and extends the session's expiry
func (m *Manager) UpdateActivity(ctx context.Context, sessionID string, activity Activity) error {
	now := m.now()
	_, err := m.store.Update(ctx, key(sessionID), m.timeout, func(s Session, exists bool) (Session, bool, error) {
		if !exists || !now.Before(s.ExpiresAt) {
			return s, false, nil
		}
		if !s.Active {
			return s, true, nil
		}
		s.LastActivity = now
		s.LastPath = activity.Method + " " + activity.Path
		s.ExpiresAt = now.Add(m.timeout)
		return s, true, nil
	})
	return err
}

// Sweep removes expired sessions
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	now := m.now()
	return m.store.Sweep(ctx, func(_ string, s Session) bool {
		return !now.Before(s.ExpiresAt)
	})
}

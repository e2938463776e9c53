// Package csrf issues and validates short-lived anti-forgery tokens.
//
// Tokens are 32 crypto-random bytes, hex encoded, and optionally bound to a
// session id. A token is valid for 15 minutes after issuance; validation of an
// expired token removes it, and a scheduled sweep removes the rest.
package csrf

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/Aniket2927/Renx-sub004/pkg/auth"
	"github.com/Aniket2927/Renx-sub004/pkg/store"
)

// DefaultTTL is how long an issued token stays valid
const DefaultTTL = 15 * time.Minute

// Record is the stored state of an issued token
type Record struct {
	IssuedAt  time.Time `json:"issuedAt"`
	SessionID string    `json:"sessionId,omitempty"`
}

// Manager issues and validates tokens
type Manager struct {
	store store.Store[Record]
	ttl   time.Duration
	now   func() time.Time
}

// NewManager creates a manager. A zero ttl uses DefaultTTL.
func NewManager(s store.Store[Record], ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: s, ttl: ttl, now: time.Now}
}

// SetClock overrides the time source
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// TTL returns the token lifetime
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

func key(token string) string {
	return "csrf:" + token
}

// Generate issues a new token, bound to sessionID when it is non-empty
func (m *Manager) Generate(ctx context.Context, sessionID string) (string, error) {
	token, err := auth.GenerateRandomToken()
	if err != nil {
		return "", err
	}

	rec := Record{IssuedAt: m.now(), SessionID: sessionID}
	// the store ttl is a backstop; expiry is decided from IssuedAt
	if err := m.store.Set(ctx, key(token), rec, m.ttl+time.Minute); err != nil {
		return "", fmt.Errorf("failed to store csrf token: %w", err)
	}
	return token, nil
}

// Validate reports whether token is known, unexpired and bound to a
// compatible session. The session check only applies when both the stored and
// the supplied session ids are present.
func (m *Manager) Validate(ctx context.Context, token, sessionID string) (bool, error) {
	if token == "" {
		return false, nil
	}

	now := m.now()
	valid := false
	_, err := m.store.Update(ctx, key(token), m.ttl+time.Minute, func(rec Record, exists bool) (Record, bool, error) {
		if !exists {
			return rec, false, nil
		}
		if now.Sub(rec.IssuedAt) > m.ttl {
			return rec, false, nil
		}
		if rec.SessionID != "" && sessionID != "" &&
			subtle.ConstantTimeCompare([]byte(rec.SessionID), []byte(sessionID)) != 1 {
			return rec, true, nil
		}
		valid = true
		return rec, true, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to validate csrf token: %w", err)
	}
	return valid, nil
}

// Consume invalidates token
func (m *Manager) Consume(ctx context.Context, token string) error {
	return m.store.Delete(ctx, key(token))
}

// Sweep removes expired tokens
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	now := m.now()
	return m.store.Sweep(ctx, func(key string, rec Record) bool {
		return now.Sub(rec.IssuedAt) > m.ttl
	})
}

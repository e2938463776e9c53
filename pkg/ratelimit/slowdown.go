package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/Aniket2927/Renx-sub004/pkg/store"
)

// SlowDownConfig configures progressive delays
type SlowDownConfig struct {
	// Window is the counting window
	Window time.Duration
	// DelayAfter is the number of requests served at full speed per window
	DelayAfter int
	// DelayStep is added for every request beyond DelayAfter
	DelayStep time.Duration
	// MaxDelay caps the delay
	MaxDelay time.Duration
}

// DefaultSlowDownConfig delays after 50 requests in 15 minutes by 500ms per
// extra request, up to 20 seconds
func DefaultSlowDownConfig() SlowDownConfig {
	return SlowDownConfig{
		Window:     15 * time.Minute,
		DelayAfter: 50,
		DelayStep:  500 * time.Millisecond,
		MaxDelay:   20 * time.Second,
	}
}

// SlowDown computes how long a request should be held back. It never rejects.
type SlowDown struct {
	cfg   SlowDownConfig
	store store.Store[Record]
	now   func() time.Time
}

// NewSlowDown creates a slow-down counter backed by s
func NewSlowDown(cfg SlowDownConfig, s store.Store[Record]) (*SlowDown, error) {
	if cfg.Window <= 0 || cfg.DelayAfter < 0 || cfg.DelayStep <= 0 {
		return nil, fmt.Errorf("invalid slow-down config: %+v", cfg)
	}
	return &SlowDown{cfg: cfg, store: s, now: time.Now}, nil
}

// SetClock overrides the time source
func (s *SlowDown) SetClock(now func() time.Time) {
	s.now = now
}

// Config returns the slow-down configuration
func (s *SlowDown) Config() SlowDownConfig {
	return s.cfg
}

// DelayFor returns the delay for the n-th request in a window
func (s *SlowDown) DelayFor(n int) time.Duration {
	over := n - s.cfg.DelayAfter
	if over <= 0 {
		return 0
	}
	delay := time.Duration(over) * s.cfg.DelayStep
	if s.cfg.MaxDelay > 0 && delay > s.cfg.MaxDelay {
		delay = s.cfg.MaxDelay
	}
	return delay
}

// Hit counts one request for identity and returns the delay to apply
func (s *SlowDown) Hit(ctx context.Context, identity string) (time.Duration, error) {
	now := s.now()
	rec, err := s.store.Update(ctx, "slowdown:"+identity, s.cfg.Window, func(cur Record, exists bool) (Record, bool, error) {
		if !exists || now.After(cur.ResetAt) {
			cur = Record{ResetAt: now.Add(s.cfg.Window)}
		}
		cur.Count++
		return cur, true, nil
	})
	if err != nil {
		return 0, fmt.Errorf("slow-down: %w", err)
	}
	return s.DelayFor(rec.Count), nil
}

// Sweep deletes records whose window has elapsed
func (s *SlowDown) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	return s.store.Sweep(ctx, func(key string, rec Record) bool {
		return now.After(rec.ResetAt)
	})
}

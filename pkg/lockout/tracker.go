// Package lockout tracks failed authentication attempts per client IP and
// locks an IP out once it crosses the failure threshold.
package lockout

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Aniket2927/Renx-sub004/pkg/store"
)

// Attempt is the stored failure record for one IP
type Attempt struct {
	Count         int       `json:"count"`
	LastAttemptAt time.Time `json:"lastAttemptAt"`
	LockedUntil   time.Time `json:"lockedUntil,omitempty"`
}

// Locked reports whether the record holds an active lockout at now
func (a Attempt) Locked(now time.Time) bool {
	return !a.LockedUntil.IsZero() && now.Before(a.LockedUntil)
}

// Config configures the tracker
type Config struct {
	// Threshold is the failure count that triggers a lockout
	Threshold int
	// Duration is how long a lockout lasts, and how long an unlocked record
	// stays relevant after its last failure
	Duration time.Duration
}

// DefaultConfig locks an IP for 15 minutes after 5 failures
func DefaultConfig() Config {
	return Config{Threshold: 5, Duration: 15 * time.Minute}
}

// Status describes the lockout state of an IP
type Status struct {
	Locked      bool
	LockedUntil time.Time
	Remaining   time.Duration
}

// RemainingMinutes rounds the remaining lockout up to whole minutes
func (s Status) RemainingMinutes() int {
	return int(math.Ceil(s.Remaining.Minutes()))
}

// Tracker records failures and answers lockout checks
type Tracker struct {
	store store.Store[Attempt]
	cfg   Config
	now   func() time.Time
}

// NewTracker creates a tracker backed by s
func NewTracker(s store.Store[Attempt], cfg Config) (*Tracker, error) {
	if cfg.Threshold <= 0 || cfg.Duration <= 0 {
		return nil, fmt.Errorf("invalid lockout config: %+v", cfg)
	}
	return &Tracker{store: s, cfg: cfg, now: time.Now}, nil
}

// SetClock overrides the time source
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

// Config returns the tracker configuration
func (t *Tracker) Config() Config {
	return t.cfg
}

func key(ip string) string {
	return "lockout:" + ip
}

func (t *Tracker) ttl() time.Duration {
	return 2 * t.cfg.Duration
}

func (t *Tracker) stale(a Attempt, now time.Time) bool {
	if !a.LockedUntil.IsZero() {
		return !now.Before(a.LockedUntil)
	}
	return now.Sub(a.LastAttemptAt) > t.cfg.Duration
}

// Check returns the lockout status for ip
func (t *Tracker) Check(ctx context.Context, ip string) (Status, error) {
	a, ok, err := t.store.Get(ctx, key(ip))
	if err != nil {
		return Status{}, fmt.Errorf("lockout check: %w", err)
	}
	now := t.now()
	if !ok || !a.Locked(now) {
		return Status{}, nil
	}
	return Status{Locked: true, LockedUntil: a.LockedUntil, Remaining: a.LockedUntil.Sub(now)}, nil
}

// RecordFailure counts a failed attempt for ip. lockedNow is true only for
// the failure that created the lockout.
func (t *Tracker) RecordFailure(ctx context.Context, ip string) (attempt Attempt, lockedNow bool, err error) {
	now := t.now()
	attempt, err = t.store.Update(ctx, key(ip), t.ttl(), func(a Attempt, exists bool) (Attempt, bool, error) {
		lockedNow = false
		if !exists || t.stale(a, now) {
			a = Attempt{}
		}
		a.Count++
		a.LastAttemptAt = now
		if a.Count >= t.cfg.Threshold && a.LockedUntil.IsZero() {
			a.LockedUntil = now.Add(t.cfg.Duration)
			lockedNow = true
		}
		return a, true, nil
	})
	if err != nil {
		return Attempt{}, false, fmt.Errorf("lockout record: %w", err)
	}
	return attempt, lockedNow, nil
}

// Reset clears the record for ip
func (t *Tracker) Reset(ctx context.Context, ip string) error {
	return t.store.Delete(ctx, key(ip))
}

// Sweep deletes expired lockouts and unlocked records older than the lockout
// duration
func (t *Tracker) Sweep(ctx context.Context) (int, error) {
	now := t.now()
	return t.store.Sweep(ctx, func(key string, a Attempt) bool {
		return t.stale(a, now)
	})
}

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/Aniket2927/Renx-sub004/pkg/store"
)

// Record is the persisted counter for one key
type Record struct {
	Count   int       `json:"count"`
	ResetAt time.Time `json:"resetAt"`
}

// Decision is the outcome of counting one request
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Count      int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter applies a fixed-window policy
type Limiter struct {
	policy Policy
	store  store.Store[Record]
	now    func() time.Time
}

// NewLimiter creates a limiter for policy backed by s
func NewLimiter(policy Policy, s store.Store[Record]) (*Limiter, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Limiter{policy: policy, store: s, now: time.Now}, nil
}

// SetClock overrides the time source
func (l *Limiter) SetClock(now func() time.Time) {
	l.now = now
}

// Policy returns the limiter's policy
func (l *Limiter) Policy() Policy {
	return l.policy
}

func (l *Limiter) key(identity string) string {
	return fmt.Sprintf("ratelimit:%s:%s", l.policy.Class, identity)
}

// Take counts one request for identity. Requests over the limit still
// increment the counter.
func (l *Limiter) Take(ctx context.Context, identity string) (Decision, error) {
	now := l.now()
	rec, err := l.store.Update(ctx, l.key(identity), l.policy.Window, func(cur Record, exists bool) (Record, bool, error) {
		if !exists || now.After(cur.ResetAt) {
			cur = Record{ResetAt: now.Add(l.policy.Window)}
		}
		cur.Count++
		return cur, true, nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", l.policy.Class, err)
	}

	d := Decision{
		Allowed: rec.Count <= l.policy.Max,
		Limit:   l.policy.Max,
		Count:   rec.Count,
		ResetAt: rec.ResetAt,
	}
	if remaining := l.policy.Max - rec.Count; remaining > 0 {
		d.Remaining = remaining
	}
	if !d.Allowed {
		d.RetryAfter = rec.ResetAt.Sub(now)
	}
	return d, nil
}

// Refund undoes one Take within the same window. A refund for a window that
// has since been reset is ignored.
func (l *Limiter) Refund(ctx context.Context, identity string, resetAt time.Time) error {
	_, err := l.store.Update(ctx, l.key(identity), l.policy.Window, func(cur Record, exists bool) (Record, bool, error) {
		if !exists {
			return cur, false, nil
		}
		if cur.ResetAt.Equal(resetAt) && cur.Count > 0 {
			cur.Count--
		}
		return cur, true, nil
	})
	if err != nil {
		return fmt.Errorf("rate limit %s refund: %w", l.policy.Class, err)
	}
	return nil
}

// Reset clears the counter for identity
func (l *Limiter) Reset(ctx context.Context, identity string) error {
	return l.store.Delete(ctx, l.key(identity))
}

// Sweep deletes records whose window has elapsed
func (l *Limiter) Sweep(ctx context.Context) (int, error) {
	now := l.now()
	return l.store.Sweep(ctx, func(key string, rec Record) bool {
		return now.After(rec.ResetAt)
	})
}

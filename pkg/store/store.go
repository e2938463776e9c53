// Package store provides the keyed state store shared by the rate limiter,
// the lockout tracker and the CSRF token manager.
//
// Two backends are available: an in-process sharded map for single-instance
// deployments and a Redis backend for deployments that run several gateway
// replicas behind one load balancer. Both guarantee that Update is an atomic
// read-modify-write for a single key; operations on different keys never
// coordinate.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrConflict is returned when an optimistic update kept losing to concurrent
// writers and ran out of retries
var ErrConflict = errors.New("store: too many concurrent updates")

// UpdateFunc computes the next value for a key. exists is false when the key
// is absent or expired, in which case current is the zero value. Returning
// keep=false deletes the key.
type UpdateFunc[V any] func(current V, exists bool) (next V, keep bool, err error)

// ExpiredFunc reports whether a record should be removed by Sweep
type ExpiredFunc[V any] func(key string, value V) bool

// Store is a keyed store of records of type V
type Store[V any] interface {
	// Get returns the value for key and whether it exists
	Get(ctx context.Context, key string) (V, bool, error)
	// Set stores value under key. A zero ttl never expires.
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
	// Update atomically applies fn to the value stored under key
	Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc[V]) (V, error)
	// Delete removes key
	Delete(ctx context.Context, key string) error
	// Sweep deletes every record for which expired returns true and reports
	// how many were removed
	Sweep(ctx context.Context, expired ExpiredFunc[V]) (int, error)
}

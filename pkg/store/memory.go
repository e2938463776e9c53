package store

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const defaultShards = 32

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

type shard[V any] struct {
	mu    sync.Mutex
	items map[string]entry[V]
}

// MemoryStore is an in-process Store. Keys are spread over independently
// locked shards so that unrelated keys do not contend.
type MemoryStore[V any] struct {
	shards []*shard[V]
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore[V any]() *MemoryStore[V] {
	s := &MemoryStore[V]{
		shards: make([]*shard[V], defaultShards),
		now:    time.Now,
	}
	for i := range s.shards {
		s.shards[i] = &shard[V]{items: make(map[string]entry[V])}
	}
	return s
}

// SetClock overrides the time source used for ttl expiry
func (s *MemoryStore[V]) SetClock(now func() time.Time) {
	s.now = now
}

func (s *MemoryStore[V]) shardFor(key string) *shard[V] {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

func (s *MemoryStore[V]) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

// Get implements Store
func (s *MemoryStore[V]) Get(ctx context.Context, key string) (V, bool, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.items[key]
	if !ok || e.expired(s.now()) {
		var zero V
		return zero, false, nil
	}
	return e.value, true, nil
}

// Set implements Store
func (s *MemoryStore[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.items[key] = entry[V]{value: value, expiresAt: s.expiry(ttl)}
	return nil
}

// Update implements Store. The shard lock is held while fn runs, so fn must
// not block.
func (s *MemoryStore[V]) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc[V]) (V, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	current, exists := sh.items[key]
	if exists && current.expired(s.now()) {
		exists = false
		current = entry[V]{}
	}

	next, keep, err := fn(current.value, exists)
	if err != nil {
		var zero V
		return zero, err
	}

	if keep {
		sh.items[key] = entry[V]{value: next, expiresAt: s.expiry(ttl)}
	} else {
		delete(sh.items, key)
	}
	return next, nil
}

// Delete implements Store
func (s *MemoryStore[V]) Delete(ctx context.Context, key string) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	delete(sh.items, key)
	return nil
}

// Sweep implements Store. Entries past their ttl are removed as well.
func (s *MemoryStore[V]) Sweep(ctx context.Context, expired ExpiredFunc[V]) (int, error) {
	removed := 0
	for _, sh := range s.shards {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		sh.mu.Lock()
		now := s.now()
		for key, e := range sh.items {
			if e.expired(now) || (expired != nil && expired(key, e.value)) {
				delete(sh.items, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}

// Len returns the number of stored entries, including ones past their ttl
// that have not been swept yet
func (s *MemoryStore[V]) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.items)
		sh.mu.Unlock()
	}
	return n
}

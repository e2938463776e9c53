package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const defaultMaxRetries = 10

// RedisStore is a Store backed by Redis so that several gateway instances
// share the same counters. Values are JSON encoded. Update uses WATCH/MULTI
// optimistic transactions and retries when another writer wins the race.
type RedisStore[V any] struct {
	client     *redis.Client
	prefix     string
	maxRetries int
	scanCount  int64
}

// NewRedisStore creates a Redis-backed store. Every key is namespaced under
// prefix.
func NewRedisStore[V any](client *redis.Client, prefix string) *RedisStore[V] {
	if prefix == "" {
		prefix = "renx"
	}
	return &RedisStore[V]{
		client:     client,
		prefix:     prefix,
		maxRetries: defaultMaxRetries,
		scanCount:  100,
	}
}

func (s *RedisStore[V]) redisKey(key string) string {
	return s.prefix + ":" + key
}

func (s *RedisStore[V]) decode(data []byte) (V, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("failed to decode record: %w", err)
	}
	return v, nil
}

// Get implements Store
func (s *RedisStore[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	data, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("redis get: %w", err)
	}

	v, err := s.decode(data)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// Set implements Store
func (s *RedisStore[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if err := s.client.Set(ctx, s.redisKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Update implements Store
func (s *RedisStore[V]) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc[V]) (V, error) {
	rkey := s.redisKey(key)
	var result V

	txf := func(tx *redis.Tx) error {
		var (
			current V
			exists  bool
		)
		data, err := tx.Get(ctx, rkey).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("redis get: %w", err)
		default:
			current, err = s.decode(data)
			if err != nil {
				return err
			}
			exists = true
		}

		next, keep, err := fn(current, exists)
		if err != nil {
			return err
		}

		var payload []byte
		if keep {
			payload, err = json.Marshal(next)
			if err != nil {
				return fmt.Errorf("failed to encode record: %w", err)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if keep {
				pipe.Set(ctx, rkey, payload, ttl)
			} else {
				pipe.Del(ctx, rkey)
			}
			return nil
		})
		if err != nil {
			return err
		}
		result = next
		return nil
	}

	for i := 0; i < s.maxRetries; i++ {
		err := s.client.Watch(ctx, txf, rkey)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		var zero V
		return zero, err
	}

	var zero V
	return zero, ErrConflict
}

// Delete implements Store
func (s *RedisStore[V]) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Sweep implements Store. Each candidate is re-read and removed inside its own
// transaction so a record refreshed by a concurrent request is not lost.
func (s *RedisStore[V]) Sweep(ctx context.Context, expired ExpiredFunc[V]) (int, error) {
	if expired == nil {
		return 0, nil
	}

	removed := 0
	iter := s.client.Scan(ctx, 0, s.prefix+":*", s.scanCount).Iterator()
	for iter.Next(ctx) {
		key := strings.TrimPrefix(iter.Val(), s.prefix+":")

		deleted := false
		_, err := s.Update(ctx, key, 0, func(current V, exists bool) (V, bool, error) {
			if !exists {
				return current, false, nil
			}
			if expired(key, current) {
				deleted = true
				return current, false, nil
			}
			return current, true, errKeep
		})
		if err != nil && !errors.Is(err, errKeep) {
			return removed, err
		}
		if deleted {
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan: %w", err)
	}
	return removed, nil
}

// errKeep aborts a sweep transaction without rewriting a live record, which
// would otherwise reset its ttl
var errKeep = errors.New("keep")

// Ping checks connectivity
func (s *RedisStore[V]) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

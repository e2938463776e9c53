package ratelimit

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/Aniket2927/Renx-sub004/pkg/store"
)

func benchmarkTake(b *testing.B, s store.Store[Record]) {
	l, err := NewLimiter(GeneralPolicy(), s)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if _, err := l.Take(ctx, fmt.Sprintf("10.0.%d.%d", i%16, i%250)); err != nil {
				b.Errorf("take failed: %v", err)
			}
			i++
		}
	})
}

// BenchmarkLimiterTake_Memory measures a window increment on the in-process store
func BenchmarkLimiterTake_Memory(b *testing.B) {
	benchmarkTake(b, store.NewMemoryStore[Record]())
}

// BenchmarkLimiterTake_Redis measures a window increment through the
// optimistic Redis transaction
func BenchmarkLimiterTake_Redis(b *testing.B) {
	if testing.Short() {
		b.Skip("Skipping benchmark in short mode")
	}

	mr := miniredis.RunT(b)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	benchmarkTake(b, store.NewRedisStore[Record](client, "bench"))
}

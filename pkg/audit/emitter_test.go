package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingLogger struct {
	release chan struct{}
}

func (b *blockingLogger) Log(ctx context.Context, event *Event) error {
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *blockingLogger) LogSecurityEvent(ctx context.Context, event *Event) error {
	return b.Log(ctx, event)
}

func (b *blockingLogger) Close() error { return nil }

func TestEmitter_RoutesByType(t *testing.T) {
	sink := NewMemoryLogger()
	logger, _ := test.NewNullLogger()
	emitter := NewEmitter(sink, logger, time.Second)

	ctx := context.Background()
	emitter.Emit(ctx, &Event{Type: EventAPIAccess, TenantID: "acme"})
	require.NoError(t, emitter.EmitSync(ctx, &Event{Type: EventPermissionDenied, TenantID: "acme"}))
	require.NoError(t, emitter.Close())

	require.Len(t, sink.Events(), 1)
	assert.Equal(t, EventAPIAccess, sink.Events()[0].Type)
	require.Len(t, sink.SecurityEvents(), 1)
	assert.Equal(t, EventPermissionDenied, sink.SecurityEvents()[0].Type)
	assert.Zero(t, emitter.Failures())
}

func TestEmitter_SinkErrorsAreLoggedAndCounted(t *testing.T) {
	sink := NewMemoryLogger()
	sink.FailWith(errors.New("db unavailable"))
	logger, hook := test.NewNullLogger()
	emitter := NewEmitter(sink, logger, time.Second)

	var mu sync.Mutex
	var reasons []string
	emitter.OnFailure(func(eventType EventType, reason string) {
		mu.Lock()
		defer mu.Unlock()
		reasons = append(reasons, reason)
	})

	err := emitter.EmitSync(context.Background(), &Event{Type: EventCSRFFailure})
	assert.EqualError(t, err, "db unavailable")
	assert.Equal(t, int64(1), emitter.Failures())
	assert.Equal(t, []string{"error"}, reasons)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "csrf_failure", entry.Data["event_type"])
}

func TestEmitter_EmitSyncTimesOut(t *testing.T) {
	sink := &blockingLogger{release: make(chan struct{})}
	defer close(sink.release)
	logger, _ := test.NewNullLogger()
	emitter := NewEmitter(sink, logger, 20*time.Millisecond)

	start := time.Now()
	err := emitter.EmitSync(context.Background(), &Event{Type: EventPermissionDenied})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestEmitter_EmitSyncIgnoresCallerCancellation(t *testing.T) {
	sink := NewMemoryLogger()
	logger, _ := test.NewNullLogger()
	emitter := NewEmitter(sink, logger, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, emitter.EmitSync(ctx, &Event{Type: EventSessionTerminated}))
	assert.Len(t, sink.SecurityEvents(), 1)
}

func TestEmitter_NilSink(t *testing.T) {
	emitter := NewEmitter(nil, nil, 0)
	emitter.Emit(context.Background(), &Event{Type: EventAPIAccess})
	assert.NoError(t, emitter.EmitSync(context.Background(), &Event{Type: EventAPIAccess}))
	assert.NoError(t, emitter.Close())
}

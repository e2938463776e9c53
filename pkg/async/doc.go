// Package async provides safe concurrent execution primitives for background tasks.
//
// SafeGo runs a function in its own goroutine with a timeout and panic
// recovery, logging failures through logrus:
//
//	async.SafeGo(ctx, 5*time.Second, "audit delivery", func(ctx context.Context) error {
//		return sink.LogSecurityEvent(ctx, event)
//	})
//
// WorkerPool is a bounded queue drained by a fixed number of workers. TrySubmit
// never blocks, which is what request paths want:
//
//	pool := async.NewWorkerPoolWithQueue(ctx, 4, 1024, "audit", 5*time.Second)
//	defer pool.Shutdown(10 * time.Second)
//
//	if err := pool.TrySubmit(task); errors.Is(err, async.ErrPoolFull) {
//		// dropped
//	}
//
// Batch fans a slice out over a temporary pool and collects errors. The
// sweeper uses it to sweep every store at once.
package async

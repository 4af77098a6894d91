// Package async provides a bounded worker pool for background work that must
// not hold up a request.
//
// # WorkerPool
//
//	pool := async.NewWorkerPool(ctx, "audit write", async.PoolOptions{
//		Workers:   2,
//		QueueSize: 1000,
//		Timeout:   5 * time.Second,
//		Logger:    logger,
//	})
//	defer pool.Shutdown(5 * time.Second)
//
//	err := pool.Submit(func(ctx context.Context) error {
//		return sink.Log(ctx, event)
//	})
//
// Submit returns ErrPoolFull instead of blocking when the queue is full, and
// ErrPoolClosed after Shutdown. Each task runs under its own timeout; task
// errors and panics are logged and never reach the caller.
//
// Shutdown drains queued tasks, then cancels whatever is still running once
// its timeout passes.
//
// # Related Packages
//
//   - pkg/audit: Dispatches audit events through a WorkerPool
package async

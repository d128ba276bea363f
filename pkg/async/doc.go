// Package async provides safe concurrent execution primitives for background tasks.
//
// # Overview
//
// This package handles goroutine lifecycle management with panic recovery, timeout
// enforcement, context cancellation, and structured failure logging.
//
// # Key Functions
//
// SafeGo: Execute function in goroutine with safety features
//
//	async.SafeGo(ctx, 30*time.Second, "webhook publish", func(ctx context.Context) error {
//		// Task code with automatic panic recovery and timeout
//		return publishEvent(ctx)
//	})
//
// WorkerPool: Managed pool of concurrent workers
//
//	pool := async.NewWorkerPool(ctx, 4, "webhook delivery", 15*time.Second)
//	defer pool.Shutdown(10 * time.Second)
//
//	pool.Submit(func(ctx context.Context) error {
//		return deliver(ctx)
//	})
//
// # Features
//
// Panic Recovery: Captures panics with stack traces
// Timeout Enforcement: Per-task timeouts
// Context Cancellation: Respects context cancellation
// Backpressure: Submit blocks while the queue is full
// Graceful Shutdown: Worker draining
//
// # Use Cases
//
// Webhook delivery fan-out, fire-and-forget event publishing
//
// # Related Packages
//
//   - pkg/webhooks: Uses WorkerPool for delivery fan-out
//   - pkg/notifications: Uses SafeGo for event publishing
package async

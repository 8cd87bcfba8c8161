// Package async provides safe concurrent execution primitives for background tasks.
//
// # Overview
//
// This package handles goroutine lifecycle management with panic recovery, timeout
// enforcement, and context cancellation for fire-and-forget work.
//
// # Key Functions
//
// SafeGo: Execute function in goroutine with safety features
//
//	async.SafeGo(ctx, 10*time.Second, "collaboration notification", func(ctx context.Context) error {
//		// Task code with automatic panic recovery and timeout
//		return notifier.Dispatch(ctx, notification)
//	})
//
// # Features
//
// Panic Recovery: Captures panics with stack traces
// Timeout Enforcement: Per-task timeouts
// Context Cancellation: Respects context cancellation
//
// # Use Cases
//
// Notification dispatch after collaboration state changes, where delivery is
// not awaited by the originating operation.
//
// # Related Packages
//
//   - pkg/collaboration: Uses SafeGo for notification dispatch
package async

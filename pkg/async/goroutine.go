package async

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"
)

// SafeGo executes a function in a goroutine with:
// - Context cancellation support
// - Panic recovery
// - Timeout enforcement
// - Error logging
//
// Use this instead of bare `go func()` for fire-and-forget work such as
// notification dispatch, where delivery is not awaited by the caller but a
// panic must never take the process down.
//
// Example:
//
//	SafeGo(ctx, 10*time.Second, "collaboration notification", func(ctx context.Context) error {
//	    return notifier.Dispatch(ctx, notification)
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in background task",
					"task", taskName, "panic", r, "stack", string(debug.Stack()))
			}
		}()

		if err := fn(ctx); err != nil {
			// Log and move on. The caller already decided not to await this
			// work, so the error is observability only.
			slog.Error("background task failed", "task", taskName, "error", err)
		}
	}()
}

// SafeGoNoError is like SafeGo but for functions that don't return errors.
// Still provides panic recovery and context support.
func SafeGoNoError(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context)) {
	SafeGo(parentCtx, timeout, taskName, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}
